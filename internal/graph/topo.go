package graph

import (
	"fmt"

	"github.com/flowline-dev/flowline/internal/core"
)

// TopologicalOrder returns the execution order of nodes reachable from the
// given start node, Kahn style. Ties are broken by edge insertion order so
// the result is deterministic for a given graph value.
func TopologicalOrder(wf *core.Workflow, from core.NodeID) ([]core.NodeID, error) {
	if !wf.HasNode(from) {
		return nil, core.ErrNotFound("node", string(from))
	}

	out := adjacency(wf)

	// Restrict to the reachable subgraph first; unreachable nodes are
	// excluded from execution rather than failing the run.
	reachable := map[core.NodeID]bool{from: true}
	frontier := []core.NodeID{from}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, next := range out[id] {
			if !reachable[next] {
				reachable[next] = true
				frontier = append(frontier, next)
			}
		}
	}

	indeg := make(map[core.NodeID]int)
	for id := range reachable {
		indeg[id] = 0
	}
	for _, e := range wf.Edges {
		if reachable[e.Source] && reachable[e.Target] {
			indeg[e.Target]++
		}
	}

	// Seed the queue in node declaration order for determinism.
	queue := make([]core.NodeID, 0, len(reachable))
	for _, n := range wf.Nodes {
		if reachable[n.ID] && indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]core.NodeID, 0, len(reachable))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range out[id] {
			if !reachable[next] {
				continue
			}
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(reachable) {
		return nil, core.ErrGraph(core.CodeCycleDetected,
			fmt.Sprintf("cycle among nodes reachable from %s", from))
	}

	return order, nil
}
