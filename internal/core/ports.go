package core

import (
	"context"
	"encoding/json"
	"time"
)

// =============================================================================
// Model Provider Port
// =============================================================================

// GenerateRequest describes a text-generation call. No provider-specific
// request shape crosses this boundary.
type GenerateRequest struct {
	SystemPrompt  string
	Prompt        string
	Model         string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	RecordInputs  bool
	RecordOutputs bool
}

// GenerateResult contains the provider-agnostic output of a generation.
type GenerateResult struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
	Duration  time.Duration
}

// ModelProvider is the capability interface over an external AI
// text-generation backend. Callers never branch on vendor identity.
type ModelProvider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Ping checks if the backend is reachable and authenticated.
	Ping(ctx context.Context) error

	// Generate runs a single text generation.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// ProviderRegistry manages registered model providers.
type ProviderRegistry interface {
	Register(provider ModelProvider)
	Get(name string) (ModelProvider, error)
	List() []string
}

// =============================================================================
// Storage Ports
// =============================================================================

// WorkflowStore persists workflow graphs. Reads are assumed strongly
// consistent with prior writes.
type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, wf *Workflow) error
	LoadWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context, ownerID string) ([]*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// RunStore persists runs and their step-record logs.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id RunID) (*Run, error)
	ListRunsForWorkflow(ctx context.Context, workflowID string) ([]RunSummary, error)

	// ListSleepingRuns returns runs in the sleeping state whose wake time
	// is at or before the given instant.
	ListSleepingRuns(ctx context.Context, before time.Time) ([]RunID, error)

	// ListActiveRuns returns runs in the pending or running state. A run
	// left in either state by a previous process must be re-entered on
	// startup; its step-record log makes re-entry safe.
	ListActiveRuns(ctx context.Context) ([]RunID, error)
}

// =============================================================================
// Trigger Ingress
// =============================================================================

// TriggerEvent is the envelope accepted from the event-submission boundary.
// Name selects which trigger handlers activate; Data is opaque to the
// engine and validated only by node handlers.
type TriggerEvent struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}
