package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testWorkflow() *Workflow {
	return &Workflow{
		ID:   "wf-1",
		Name: "Test",
		Nodes: []Node{
			{ID: "t", Kind: NodeKindManualTrigger},
			{ID: "h", Kind: NodeKindHTTPRequest, Data: json.RawMessage(`{"url":"https://example.com"}`)},
		},
		Edges: []Edge{{ID: "e1", Source: "t", Target: "h"}},
	}
}

func TestNewRun_SnapshotsGraph(t *testing.T) {
	wf := testWorkflow()
	run := NewRun("run-1", wf, json.RawMessage(`{"k":"v"}`))

	if run.Status != RunStatusPending {
		t.Errorf("Status = %q, want pending", run.Status)
	}
	if run.WorkflowID != "wf-1" {
		t.Errorf("WorkflowID = %q", run.WorkflowID)
	}

	// Mutating the source workflow must not touch the snapshot.
	wf.Nodes[0].Kind = NodeKindSleep
	wf.Edges[0].Target = "elsewhere"
	if run.Graph.Nodes[0].Kind != NodeKindManualTrigger {
		t.Error("snapshot node mutated through source workflow")
	}
	if run.Graph.Edges[0].Target != "h" {
		t.Error("snapshot edge mutated through source workflow")
	}
}

func TestRun_Lifecycle(t *testing.T) {
	run := NewRun("run-1", testWorkflow(), nil)

	if err := run.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if run.Status != RunStatusRunning || run.StartedAt == nil {
		t.Errorf("after Start: status %q, startedAt %v", run.Status, run.StartedAt)
	}

	wake := time.Now().Add(time.Hour)
	if err := run.Sleep(wake); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if run.Status != RunStatusSleeping || run.WakeAt == nil {
		t.Errorf("after Sleep: status %q, wakeAt %v", run.Status, run.WakeAt)
	}

	// Resume clears the wake time but keeps the original start time.
	started := *run.StartedAt
	if err := run.Start(); err != nil {
		t.Fatalf("Start() after sleep error = %v", err)
	}
	if run.WakeAt != nil {
		t.Error("WakeAt should be cleared on resume")
	}
	if !run.StartedAt.Equal(started) {
		t.Error("StartedAt should not change on resume")
	}

	if err := run.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !run.IsTerminal() || run.CompletedAt == nil {
		t.Error("run should be terminal after Complete")
	}

	// Terminal status is immutable.
	if err := run.Start(); err == nil {
		t.Error("Start() on terminal run should fail")
	}
	run.Fail(errors.New("late failure"))
	if run.Status != RunStatusSucceeded {
		t.Errorf("Fail() after Complete changed status to %q", run.Status)
	}
	run.Cancel("late cancel")
	if run.Status != RunStatusSucceeded {
		t.Errorf("Cancel() after Complete changed status to %q", run.Status)
	}
}

func TestRun_SleepRequiresRunning(t *testing.T) {
	run := NewRun("run-1", testWorkflow(), nil)
	if err := run.Sleep(time.Now()); err == nil {
		t.Error("Sleep() on pending run should fail")
	}
}

func TestRun_Fail(t *testing.T) {
	run := NewRun("run-1", testWorkflow(), nil)
	if err := run.Start(); err != nil {
		t.Fatal(err)
	}
	run.Fail(errors.New("boom"))

	if run.Status != RunStatusFailed {
		t.Errorf("Status = %q, want failed", run.Status)
	}
	if run.Error != "boom" {
		t.Errorf("Error = %q", run.Error)
	}
}

func TestStepID(t *testing.T) {
	if got := StepID("node-a", 3); got != "node-a#3" {
		t.Errorf("StepID = %q, want node-a#3", got)
	}
}

func TestRun_StepQueries(t *testing.T) {
	run := NewRun("run-1", testWorkflow(), nil)

	run.AppendStep(StepRecord{
		ID: StepID("h", 2), NodeID: "h", Kind: StepKindCompute,
		Status: StepStatusRunning, Attempt: 2,
	})

	if run.TerminalStepFor("h") != nil {
		t.Error("running record should not be terminal")
	}
	if open := run.OpenStepFor("h"); open == nil || open.Attempt != 2 {
		t.Errorf("OpenStepFor = %+v", open)
	}
	if got := run.AttemptsFor("h"); got != 2 {
		t.Errorf("AttemptsFor = %d, want 2", got)
	}

	run.Steps[0].Status = StepStatusSucceeded
	if term := run.TerminalStepFor("h"); term == nil || term.Attempt != 2 {
		t.Errorf("TerminalStepFor = %+v", term)
	}
	if run.OpenStepFor("h") != nil {
		t.Error("no open record should remain once terminal")
	}
	if run.TerminalStepFor("t") != nil {
		t.Error("unexecuted node should have no terminal record")
	}
}

func TestWorkflow_Clone(t *testing.T) {
	wf := testWorkflow()
	clone := wf.Clone()

	clone.Nodes[1].Data = json.RawMessage(`{"url":"https://changed"}`)
	clone.Edges[0].ID = "changed"

	if string(wf.Nodes[1].Data) != `{"url":"https://example.com"}` {
		t.Error("clone shares node data with source")
	}
	if wf.Edges[0].ID != "e1" {
		t.Error("clone shares edges with source")
	}
}

func TestIsValidNodeKind(t *testing.T) {
	for _, kind := range NodeKinds() {
		if !IsValidNodeKind(kind) {
			t.Errorf("IsValidNodeKind(%q) = false", kind)
		}
	}
	if IsValidNodeKind("WEBHOOK") {
		t.Error("unknown kind accepted")
	}
}
