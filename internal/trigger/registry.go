// Package trigger maps trigger node kinds to activation events and
// enforces the one-trigger-per-workflow invariant.
package trigger

import (
	"github.com/flowline-dev/flowline/internal/core"
)

// EventManualTrigger is the ingress event name that activates manual
// trigger nodes.
const EventManualTrigger = "manual.trigger"

// triggerKinds is the set of node kinds that act as workflow activation
// points. Currently exactly the manual trigger; scheduled and webhook
// triggers extend this set.
var triggerKinds = map[core.NodeKind]string{
	core.NodeKindManualTrigger: EventManualTrigger,
}

// Kinds returns the node kinds tagged as activation points.
func Kinds() []core.NodeKind {
	kinds := make([]core.NodeKind, 0, len(triggerKinds))
	for k := range triggerKinds {
		kinds = append(kinds, k)
	}
	return kinds
}

// IsTriggerKind reports whether the kind belongs to the trigger category.
func IsTriggerKind(kind core.NodeKind) bool {
	_, ok := triggerKinds[kind]
	return ok
}

// EventFor returns the ingress event name that activates the given trigger
// kind.
func EventFor(kind core.NodeKind) (string, bool) {
	name, ok := triggerKinds[kind]
	return name, ok
}

// KindsForEvent returns the trigger kinds activated by an ingress event
// name.
func KindsForEvent(name string) []core.NodeKind {
	var kinds []core.NodeKind
	for k, n := range triggerKinds {
		if n == name {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// TriggerNodes returns all trigger-category nodes in the workflow.
func TriggerNodes(wf *core.Workflow) []core.Node {
	var nodes []core.Node
	for _, n := range wf.Nodes {
		if IsTriggerKind(n.Kind) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// CanInsert reports whether a node of the candidate kind may be inserted.
// False if the candidate is a trigger kind and the workflow already holds
// a node of any trigger kind.
func CanInsert(wf *core.Workflow, candidate core.NodeKind) bool {
	if !IsTriggerKind(candidate) {
		return true
	}
	return len(TriggerNodes(wf)) == 0
}

// Entry resolves the single trigger node a run starts from. A graph that
// slipped past edit-time checks fails here instead of partially executing.
func Entry(wf *core.Workflow) (core.Node, error) {
	nodes := TriggerNodes(wf)
	switch len(nodes) {
	case 0:
		return core.Node{}, core.ErrNoTrigger()
	case 1:
		return nodes[0], nil
	default:
		return core.Node{}, core.ErrMultipleTriggers()
	}
}
