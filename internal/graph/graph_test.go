package graph

import (
	"reflect"
	"testing"

	"github.com/flowline-dev/flowline/internal/core"
)

func linearWorkflow() *core.Workflow {
	return &core.Workflow{
		ID: "wf-1",
		Nodes: []core.Node{
			{ID: "trigger", Kind: core.NodeKindManualTrigger},
			{ID: "fetch", Kind: core.NodeKindHTTPRequest},
			{ID: "summarize", Kind: core.NodeKindModelGenerate},
		},
		Edges: []core.Edge{
			{ID: "e1", Source: "trigger", Target: "fetch"},
			{ID: "e2", Source: "fetch", Target: "summarize"},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	warnings, err := Validate(linearWorkflow())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestValidate_DanglingEdge(t *testing.T) {
	wf := linearWorkflow()
	wf.Edges = append(wf.Edges, core.Edge{ID: "e3", Source: "fetch", Target: "ghost"})

	_, err := Validate(wf)
	if !core.IsCode(err, core.CodeDanglingEdge) {
		t.Errorf("error = %v, want DANGLING_EDGE", err)
	}
}

func TestValidate_MultipleTriggers(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes = append(wf.Nodes, core.Node{ID: "trigger-2", Kind: core.NodeKindManualTrigger})

	_, err := Validate(wf)
	if !core.IsCode(err, core.CodeMultipleTriggers) {
		t.Errorf("error = %v, want MULTIPLE_TRIGGERS", err)
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes[1].Kind = "TELEPORT"

	_, err := Validate(wf)
	if !core.IsCode(err, core.CodeUnknownNodeKind) {
		t.Errorf("error = %v, want UNKNOWN_NODE_KIND", err)
	}
}

func TestValidate_CycleFromTrigger(t *testing.T) {
	wf := linearWorkflow()
	wf.Edges = append(wf.Edges, core.Edge{ID: "e3", Source: "summarize", Target: "fetch"})

	_, err := Validate(wf)
	if !core.IsCode(err, core.CodeCycleDetected) {
		t.Errorf("error = %v, want CYCLE_DETECTED", err)
	}
}

func TestValidate_TriggerWithIncomingEdge(t *testing.T) {
	wf := linearWorkflow()
	wf.Edges = append(wf.Edges, core.Edge{ID: "e3", Source: "fetch", Target: "trigger"})

	_, err := Validate(wf)
	if !core.IsCode(err, core.CodeCycleDetected) {
		t.Errorf("error = %v, want CYCLE_DETECTED", err)
	}
}

func TestValidate_UnconnectedNodeWarns(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes = append(wf.Nodes, core.Node{ID: "orphan", Kind: core.NodeKindSleep})

	warnings, err := Validate(wf)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 1 || warnings[0].NodeID != "orphan" {
		t.Errorf("warnings = %v, want one for orphan", warnings)
	}
}

func TestValidate_InitialPlaceholderNoWarning(t *testing.T) {
	wf := &core.Workflow{
		ID:    "wf-1",
		Nodes: []core.Node{{ID: "start", Kind: core.NodeKindInitial}},
	}
	warnings, err := Validate(wf)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestTopologicalOrder_Linear(t *testing.T) {
	order, err := TopologicalOrder(linearWorkflow(), "trigger")
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	want := []core.NodeID{"trigger", "fetch", "summarize"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestTopologicalOrder_FanOutIsEdgeOrdered(t *testing.T) {
	wf := &core.Workflow{
		ID: "wf-1",
		Nodes: []core.Node{
			{ID: "trigger", Kind: core.NodeKindManualTrigger},
			{ID: "a", Kind: core.NodeKindHTTPRequest},
			{ID: "b", Kind: core.NodeKindHTTPRequest},
			{ID: "join", Kind: core.NodeKindModelGenerate},
		},
		Edges: []core.Edge{
			{ID: "e1", Source: "trigger", Target: "b"},
			{ID: "e2", Source: "trigger", Target: "a"},
			{ID: "e3", Source: "b", Target: "join"},
			{ID: "e4", Source: "a", Target: "join"},
		},
	}

	order, err := TopologicalOrder(wf, "trigger")
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	// b precedes a because its inbound edge was inserted first.
	want := []core.NodeID{"trigger", "b", "a", "join"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestTopologicalOrder_ExcludesUnreachable(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes = append(wf.Nodes, core.Node{ID: "island", Kind: core.NodeKindSleep})

	order, err := TopologicalOrder(wf, "trigger")
	if err != nil {
		t.Fatalf("TopologicalOrder() error = %v", err)
	}
	for _, id := range order {
		if id == "island" {
			t.Error("unreachable node included in order")
		}
	}
}

func TestTopologicalOrder_CycleError(t *testing.T) {
	wf := linearWorkflow()
	wf.Edges = append(wf.Edges, core.Edge{ID: "e3", Source: "summarize", Target: "fetch"})

	_, err := TopologicalOrder(wf, "trigger")
	if !core.IsCode(err, core.CodeCycleDetected) {
		t.Errorf("error = %v, want CYCLE_DETECTED", err)
	}
}

func TestTopologicalOrder_UnknownStart(t *testing.T) {
	_, err := TopologicalOrder(linearWorkflow(), "missing")
	if err == nil {
		t.Error("expected error for unknown start node")
	}
}

func TestAddNode(t *testing.T) {
	wf := linearWorkflow()
	next, err := AddNode(wf, core.Node{ID: "wait", Kind: core.NodeKindSleep})
	if err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	if !next.HasNode("wait") {
		t.Error("node not added")
	}
	if wf.HasNode("wait") {
		t.Error("AddNode mutated the input workflow")
	}
}

func TestAddNode_SecondTriggerRejected(t *testing.T) {
	_, err := AddNode(linearWorkflow(), core.Node{ID: "t2", Kind: core.NodeKindManualTrigger})
	if !core.IsCode(err, core.CodeMultipleTriggers) {
		t.Errorf("error = %v, want MULTIPLE_TRIGGERS", err)
	}
}

func TestAddNode_DuplicateID(t *testing.T) {
	_, err := AddNode(linearWorkflow(), core.Node{ID: "fetch", Kind: core.NodeKindSleep})
	if !core.IsCode(err, core.CodeInvalidState) {
		t.Errorf("error = %v, want INVALID_STATE", err)
	}
}

func TestAddNode_UnknownKind(t *testing.T) {
	_, err := AddNode(linearWorkflow(), core.Node{ID: "x", Kind: "TELEPORT"})
	if !core.IsCode(err, core.CodeUnknownNodeKind) {
		t.Errorf("error = %v, want UNKNOWN_NODE_KIND", err)
	}
}

func TestRemoveNode_DropsTouchingEdges(t *testing.T) {
	next, err := RemoveNode(linearWorkflow(), "fetch")
	if err != nil {
		t.Fatalf("RemoveNode() error = %v", err)
	}
	if next.HasNode("fetch") {
		t.Error("node still present")
	}
	if len(next.Edges) != 0 {
		t.Errorf("edges = %v, want none after removing the shared endpoint", next.Edges)
	}
}

func TestRemoveNode_NotFound(t *testing.T) {
	_, err := RemoveNode(linearWorkflow(), "missing")
	if err == nil {
		t.Error("expected error for missing node")
	}
}

func TestAddEdge(t *testing.T) {
	wf := linearWorkflow()
	wf.Nodes = append(wf.Nodes, core.Node{ID: "wait", Kind: core.NodeKindSleep})

	next, err := AddEdge(wf, core.Edge{ID: "e3", Source: "summarize", Target: "wait"})
	if err != nil {
		t.Fatalf("AddEdge() error = %v", err)
	}
	if len(next.Edges) != 3 {
		t.Errorf("edges = %d, want 3", len(next.Edges))
	}
	if len(wf.Edges) != 2 {
		t.Error("AddEdge mutated the input workflow")
	}
}

func TestAddEdge_IntoTriggerRejected(t *testing.T) {
	_, err := AddEdge(linearWorkflow(), core.Edge{ID: "e3", Source: "fetch", Target: "trigger"})
	if !core.IsCode(err, core.CodeCycleDetected) {
		t.Errorf("error = %v, want CYCLE_DETECTED", err)
	}
}

func TestAddEdge_CycleRejected(t *testing.T) {
	_, err := AddEdge(linearWorkflow(), core.Edge{ID: "e3", Source: "summarize", Target: "fetch"})
	if !core.IsCode(err, core.CodeCycleDetected) {
		t.Errorf("error = %v, want CYCLE_DETECTED", err)
	}
}

func TestAddEdge_MissingEndpoint(t *testing.T) {
	_, err := AddEdge(linearWorkflow(), core.Edge{ID: "e3", Source: "fetch", Target: "ghost"})
	if !core.IsCode(err, core.CodeDanglingEdge) {
		t.Errorf("error = %v, want DANGLING_EDGE", err)
	}
}

func TestReplaceWithInitial(t *testing.T) {
	wf := linearWorkflow()
	next := ReplaceWithInitial(wf, core.Node{ID: "fresh", Kind: core.NodeKindHTTPRequest})

	if len(next.Nodes) != 1 || len(next.Edges) != 0 {
		t.Errorf("graph = %d nodes %d edges, want 1/0", len(next.Nodes), len(next.Edges))
	}
	if next.Nodes[0].ID != "fresh" || next.Nodes[0].Kind != core.NodeKindInitial {
		t.Errorf("placeholder = %+v", next.Nodes[0])
	}
	if len(wf.Nodes) != 3 {
		t.Error("ReplaceWithInitial mutated the input workflow")
	}
}
