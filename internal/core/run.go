package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunID uniquely identifies a run.
type RunID string

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSleeping  RunStatus = "sleeping"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// StepKind classifies what a step does.
type StepKind string

const (
	StepKindCompute         StepKind = "compute"
	StepKindSleep           StepKind = "sleep"
	StepKindModelInvocation StepKind = "model_invocation"
)

// StepStatus represents the state of a single step record.
type StepStatus string

const (
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
)

// StepRecord is the durable, replay-safe record of one step. The step id is
// derived from node id and attempt index and serves as the memoization key:
// a resumed run must never re-execute a step whose record is terminal.
type StepRecord struct {
	ID          string          `json:"id"`
	NodeID      NodeID          `json:"node_id"`
	Kind        StepKind        `json:"kind"`
	Status      StepStatus      `json:"status"`
	Attempt     int             `json:"attempt"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// StepID derives the stable step identifier for a node attempt.
func StepID(node NodeID, attempt int) string {
	return fmt.Sprintf("%s#%d", node, attempt)
}

// IsTerminal reports whether the step reached a final state.
func (s *StepRecord) IsTerminal() bool {
	return s.Status == StepStatusSucceeded || s.Status == StepStatusFailed
}

// Run is one execution instance of a workflow. It references the workflow by
// id only weakly (the run survives workflow deletion for audit) and carries
// an immutable snapshot of the graph taken at trigger time.
type Run struct {
	ID          RunID        `json:"id"`
	WorkflowID  string       `json:"workflow_id"`
	Status      RunStatus    `json:"status"`
	Graph       *Workflow    `json:"graph"`
	Steps       []StepRecord `json:"steps"`
	TriggerData json.RawMessage `json:"trigger_data,omitempty"`
	WakeAt      *time.Time   `json:"wake_at,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// NewRun creates a pending run over a snapshot of the given workflow.
func NewRun(id RunID, wf *Workflow, triggerData json.RawMessage) *Run {
	return &Run{
		ID:          id,
		WorkflowID:  wf.ID,
		Status:      RunStatusPending,
		Graph:       wf.Clone(),
		Steps:       make([]StepRecord, 0),
		TriggerData: triggerData,
		CreatedAt:   time.Now(),
	}
}

// IsTerminal reports whether the run is in a final state. Terminal status is
// immutable once set.
func (r *Run) IsTerminal() bool {
	return r.Status == RunStatusSucceeded ||
		r.Status == RunStatusFailed ||
		r.Status == RunStatusCancelled
}

// Start transitions the run to running.
func (r *Run) Start() error {
	switch r.Status {
	case RunStatusPending, RunStatusSleeping:
		r.Status = RunStatusRunning
		if r.StartedAt == nil {
			now := time.Now()
			r.StartedAt = &now
		}
		r.WakeAt = nil
		return nil
	case RunStatusRunning:
		return nil
	default:
		return fmt.Errorf("cannot start run in %s state", r.Status)
	}
}

// Sleep transitions the run to sleeping with a persisted wake time.
func (r *Run) Sleep(wakeAt time.Time) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("cannot sleep run in %s state", r.Status)
	}
	r.Status = RunStatusSleeping
	r.WakeAt = &wakeAt
	return nil
}

// Complete transitions the run to succeeded.
func (r *Run) Complete() error {
	if r.IsTerminal() {
		return fmt.Errorf("run already terminal in %s state", r.Status)
	}
	r.Status = RunStatusSucceeded
	now := time.Now()
	r.CompletedAt = &now
	r.WakeAt = nil
	return nil
}

// Fail transitions the run to failed and records the terminal error.
func (r *Run) Fail(err error) {
	if r.IsTerminal() {
		return
	}
	r.Status = RunStatusFailed
	r.Error = err.Error()
	now := time.Now()
	r.CompletedAt = &now
	r.WakeAt = nil
}

// Cancel transitions the run to cancelled.
func (r *Run) Cancel(reason string) {
	if r.IsTerminal() {
		return
	}
	r.Status = RunStatusCancelled
	r.Error = reason
	now := time.Now()
	r.CompletedAt = &now
	r.WakeAt = nil
}

// AppendStep appends a step record to the ordered log.
func (r *Run) AppendStep(rec StepRecord) {
	r.Steps = append(r.Steps, rec)
}

// TerminalStepFor returns the terminal step record for a node, if one
// exists. This is the sole artifact from which a resumed run decides
// "already done" versus "to do".
func (r *Run) TerminalStepFor(node NodeID) *StepRecord {
	for i := range r.Steps {
		if r.Steps[i].NodeID == node && r.Steps[i].IsTerminal() {
			return &r.Steps[i]
		}
	}
	return nil
}

// OpenStepFor returns the non-terminal (running) step record for a node,
// if one exists. Sleep steps park in this state until their deadline.
func (r *Run) OpenStepFor(node NodeID) *StepRecord {
	for i := range r.Steps {
		if r.Steps[i].NodeID == node && !r.Steps[i].IsTerminal() {
			return &r.Steps[i]
		}
	}
	return nil
}

// AttemptsFor returns how many attempts have been recorded for a node.
func (r *Run) AttemptsFor(node NodeID) int {
	max := 0
	for i := range r.Steps {
		if r.Steps[i].NodeID == node && r.Steps[i].Attempt > max {
			max = r.Steps[i].Attempt
		}
	}
	return max
}

// Duration returns the run execution duration.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	return end.Sub(*r.StartedAt)
}

// RunSummary is a lightweight listing of a run.
type RunSummary struct {
	ID          RunID      `json:"id"`
	WorkflowID  string     `json:"workflow_id"`
	Status      RunStatus  `json:"status"`
	StepCount   int        `json:"step_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Summary returns the run's summary form.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		ID:          r.ID,
		WorkflowID:  r.WorkflowID,
		Status:      r.Status,
		StepCount:   len(r.Steps),
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}
