package events

// Event type names published by the execution engine.
const (
	TypeRunStarted     = "run_started"
	TypeRunSleeping    = "run_sleeping"
	TypeRunCompleted   = "run_completed"
	TypeRunFailed      = "run_failed"
	TypeRunCancelled   = "run_cancelled"
	TypeNodeStarted    = "node_started"
	TypeStepCompleted  = "step_completed"
	TypeStepFailed     = "step_failed"
	TypeStepRetried    = "step_retried"
	TypeModelTelemetry = "model_telemetry"
)

// RunEvent reports a run lifecycle transition.
type RunEvent struct {
	BaseEvent
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// NewRunEvent creates a run lifecycle event.
func NewRunEvent(eventType, runID, workflowID, status, errMsg string) RunEvent {
	return RunEvent{
		BaseEvent:  NewBaseEvent(eventType, runID),
		WorkflowID: workflowID,
		Status:     status,
		Error:      errMsg,
	}
}

// StepEvent reports a step transition within a run.
type StepEvent struct {
	BaseEvent
	NodeID  string `json:"node_id"`
	StepID  string `json:"step_id"`
	Kind    string `json:"kind"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error,omitempty"`
}

// NewStepEvent creates a step transition event.
func NewStepEvent(eventType, runID, nodeID, stepID, kind string, attempt int, errMsg string) StepEvent {
	return StepEvent{
		BaseEvent: NewBaseEvent(eventType, runID),
		NodeID:    nodeID,
		StepID:    stepID,
		Kind:      kind,
		Attempt:   attempt,
		Error:     errMsg,
	}
}

// TelemetryEvent carries recorded model inputs/outputs for audit. Emitted
// by the provider gateway when a request asks for recording, on success
// and failure alike.
type TelemetryEvent struct {
	BaseEvent
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Input    string `json:"input,omitempty"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewTelemetryEvent creates a model telemetry event.
func NewTelemetryEvent(runID, provider, model, input, output, errMsg string) TelemetryEvent {
	return TelemetryEvent{
		BaseEvent: NewBaseEvent(TypeModelTelemetry, runID),
		Provider:  provider,
		Model:     model,
		Input:     input,
		Output:    output,
		Error:     errMsg,
	}
}
