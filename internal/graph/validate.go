// Package graph implements validation, ordering and pure mutation of
// workflow node graphs.
package graph

import (
	"fmt"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/trigger"
)

// Warning is a non-fatal validation finding, tolerated to allow
// in-progress editing.
type Warning struct {
	NodeID  core.NodeID
	Message string
}

// Validate checks graph invariants: edge endpoints must exist, at most one
// trigger-category node may be present, no cycle may be reachable from the
// trigger, and every non-trigger node should have an incoming edge.
// Unreachable or unconnected nodes produce warnings, not errors.
func Validate(wf *core.Workflow) ([]Warning, error) {
	for _, n := range wf.Nodes {
		if !core.IsValidNodeKind(n.Kind) {
			return nil, core.ErrGraph(core.CodeUnknownNodeKind,
				fmt.Sprintf("node %s has unknown kind %q", n.ID, n.Kind))
		}
	}

	for _, e := range wf.Edges {
		if !wf.HasNode(e.Source) {
			return nil, core.ErrGraph(core.CodeDanglingEdge,
				fmt.Sprintf("edge %s references missing source node %s", e.ID, e.Source))
		}
		if !wf.HasNode(e.Target) {
			return nil, core.ErrGraph(core.CodeDanglingEdge,
				fmt.Sprintf("edge %s references missing target node %s", e.ID, e.Target))
		}
	}

	triggers := trigger.TriggerNodes(wf)
	if len(triggers) > 1 {
		return nil, core.ErrMultipleTriggers()
	}

	incoming := make(map[core.NodeID]int)
	for _, e := range wf.Edges {
		incoming[e.Target]++
	}

	var warnings []Warning
	for _, n := range wf.Nodes {
		if trigger.IsTriggerKind(n.Kind) {
			if incoming[n.ID] > 0 {
				return nil, core.ErrGraph(core.CodeCycleDetected,
					fmt.Sprintf("trigger node %s has incoming edges", n.ID))
			}
			continue
		}
		if n.Kind == core.NodeKindInitial {
			continue
		}
		if incoming[n.ID] == 0 {
			warnings = append(warnings, Warning{
				NodeID:  n.ID,
				Message: "node has no incoming edge and will not execute",
			})
		}
	}

	if len(triggers) == 1 {
		if err := checkAcyclicFrom(wf, triggers[0].ID); err != nil {
			return nil, err
		}
	}

	return warnings, nil
}

// checkAcyclicFrom rejects any cycle reachable from the start node.
func checkAcyclicFrom(wf *core.Workflow, start core.NodeID) error {
	out := adjacency(wf)

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[core.NodeID]int)

	var visit func(id core.NodeID) error
	visit = func(id core.NodeID) error {
		state[id] = inStack
		for _, next := range out[id] {
			switch state[next] {
			case inStack:
				return core.ErrGraph(core.CodeCycleDetected,
					fmt.Sprintf("cycle reachable from trigger via node %s", next))
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		state[id] = done
		return nil
	}

	return visit(start)
}

// adjacency builds the outgoing edge map preserving edge insertion order,
// which is the deterministic tie break for topological ordering.
func adjacency(wf *core.Workflow) map[core.NodeID][]core.NodeID {
	out := make(map[core.NodeID][]core.NodeID)
	for _, e := range wf.Edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}
	return out
}
