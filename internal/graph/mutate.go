package graph

import (
	"fmt"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/trigger"
)

// Mutations are pure: each returns a new workflow value and never aliases
// the input, so partially-applied concurrent edits cannot corrupt a shared
// graph.

// AddNode returns a copy of the workflow with the node appended. Inserting
// a trigger node into a workflow that already has one is rejected.
func AddNode(wf *core.Workflow, node core.Node) (*core.Workflow, error) {
	if !core.IsValidNodeKind(node.Kind) {
		return nil, core.ErrGraph(core.CodeUnknownNodeKind,
			fmt.Sprintf("unknown node kind %q", node.Kind))
	}
	if wf.HasNode(node.ID) {
		return nil, core.ErrState(core.CodeInvalidState,
			fmt.Sprintf("node %s already exists", node.ID))
	}
	if !trigger.CanInsert(wf, node.Kind) {
		return nil, core.ErrMultipleTriggers()
	}

	next := wf.Clone()
	next.Nodes = append(next.Nodes, node)
	return next, nil
}

// RemoveNode returns a copy of the workflow without the node and without
// any edge touching it.
func RemoveNode(wf *core.Workflow, id core.NodeID) (*core.Workflow, error) {
	if !wf.HasNode(id) {
		return nil, core.ErrNotFound("node", string(id))
	}

	next := wf.Clone()
	nodes := next.Nodes[:0]
	for _, n := range next.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	next.Nodes = nodes

	edges := next.Edges[:0]
	for _, e := range next.Edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	next.Edges = edges
	return next, nil
}

// AddEdge returns a copy of the workflow with the edge appended. Both
// endpoints must exist and a trigger node cannot be an edge target.
func AddEdge(wf *core.Workflow, edge core.Edge) (*core.Workflow, error) {
	if !wf.HasNode(edge.Source) {
		return nil, core.ErrGraph(core.CodeDanglingEdge,
			fmt.Sprintf("source node %s does not exist", edge.Source))
	}
	if !wf.HasNode(edge.Target) {
		return nil, core.ErrGraph(core.CodeDanglingEdge,
			fmt.Sprintf("target node %s does not exist", edge.Target))
	}
	if tgt, ok := wf.NodeByID(edge.Target); ok && trigger.IsTriggerKind(tgt.Kind) {
		return nil, core.ErrGraph(core.CodeCycleDetected,
			fmt.Sprintf("trigger node %s cannot have incoming edges", edge.Target))
	}

	next := wf.Clone()
	next.Edges = append(next.Edges, edge)
	if _, err := Validate(next); err != nil {
		return nil, err
	}
	return next, nil
}

// ReplaceWithInitial returns a copy of the workflow whose node set is
// exactly one INITIAL placeholder and whose edge set is empty, regardless
// of prior graph size. Fresh-canvas reset, not an additive insert.
func ReplaceWithInitial(wf *core.Workflow, node core.Node) *core.Workflow {
	node.Kind = core.NodeKindInitial
	next := wf.Clone()
	next.Nodes = []core.Node{node}
	next.Edges = []core.Edge{}
	return next
}
