// Package engine converts triggered workflows into ordered, durable,
// independently-retryable execution steps.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/events"
	"github.com/flowline-dev/flowline/internal/graph"
	"github.com/flowline-dev/flowline/internal/logging"
	"github.com/flowline-dev/flowline/internal/provider"
	"github.com/flowline-dev/flowline/internal/trigger"
)

// ErrRunSleeping is returned when a run parks at a sleep boundary. The
// scheduler re-invokes the run after its wake deadline; resumption is a
// fresh invocation that reads the step-record log, not a resumed stack.
var ErrRunSleeping = errors.New("run is sleeping")

// Executor drives a single run through its topological step plan.
type Executor struct {
	runs       core.RunStore
	gateway    *provider.Gateway
	bus        *events.Bus
	logger     *logging.Logger
	retry      *RetryPolicy
	httpClient *http.Client
	now        func() time.Time
}

// ExecutorOption configures the executor.
type ExecutorOption func(*Executor)

// WithRetryPolicy overrides the step retry policy.
func WithRetryPolicy(p *RetryPolicy) ExecutorOption {
	return func(e *Executor) { e.retry = p }
}

// WithHTTPClient overrides the client used by http request nodes.
func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) { e.httpClient = c }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an executor.
func NewExecutor(runs core.RunStore, gateway *provider.Gateway, bus *events.Bus, logger *logging.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Executor{
		runs:       runs,
		gateway:    gateway,
		bus:        bus,
		logger:     logger,
		retry:      DefaultRetryPolicy(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs (or resumes) a run to its next boundary: completion,
// failure, or a sleep park. Re-entering a run whose step records are all
// terminal executes nothing and leaves the status untouched.
func (e *Executor) Execute(ctx context.Context, run *core.Run) error {
	if run.IsTerminal() {
		return nil
	}

	log := e.logger.WithRun(string(run.ID)).WithWorkflow(run.WorkflowID)

	// Validate the snapshot before any step runs; an invalid graph fails
	// the run immediately with no partial execution.
	if _, err := graph.Validate(run.Graph); err != nil {
		return e.failRun(ctx, run, log, err)
	}
	entry, err := trigger.Entry(run.Graph)
	if err != nil {
		return e.failRun(ctx, run, log, err)
	}
	order, err := graph.TopologicalOrder(run.Graph, entry.ID)
	if err != nil {
		return e.failRun(ctx, run, log, err)
	}

	starting := run.Status == core.RunStatusPending
	resuming := run.Status == core.RunStatusSleeping
	if err := run.Start(); err != nil {
		return core.ErrState(core.CodeInvalidState, err.Error()).WithCause(err)
	}
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return err
	}
	switch {
	case starting:
		log.Info("run started", "nodes", len(order))
		e.publish(events.NewRunEvent(events.TypeRunStarted, string(run.ID), run.WorkflowID, string(run.Status), ""))
	case resuming:
		log.Info("run resumed", "steps_done", len(run.Steps))
	}

	for _, nodeID := range order {
		// Cancellation is honored between steps only.
		if err := ctx.Err(); err != nil {
			return err
		}

		if rec := run.TerminalStepFor(nodeID); rec != nil {
			if rec.Status == core.StepStatusFailed {
				return e.failRun(ctx, run, log,
					core.ErrState(core.CodeInvalidState, "run has a failed step but was re-entered"))
			}
			continue
		}

		node, ok := run.Graph.NodeByID(nodeID)
		if !ok {
			return e.failRun(ctx, run, log, core.ErrNotFound("node", string(nodeID)))
		}

		if node.Kind == core.NodeKindSleep {
			parked, err := e.executeSleep(ctx, run, node, log)
			if err != nil {
				return e.failRun(ctx, run, log, err)
			}
			if parked {
				e.publish(events.NewRunEvent(events.TypeRunSleeping, string(run.ID), run.WorkflowID, string(run.Status), ""))
				return ErrRunSleeping
			}
			continue
		}

		if stepErr := e.executeStep(ctx, run, node, log); stepErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return e.failRun(ctx, run, log, stepErr)
		}
	}

	if err := run.Complete(); err != nil {
		return core.ErrState(core.CodeInvalidState, err.Error()).WithCause(err)
	}
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return err
	}
	log.Info("run completed", "steps", len(run.Steps), "duration", run.Duration())
	e.publish(events.NewRunEvent(events.TypeRunCompleted, string(run.ID), run.WorkflowID, string(run.Status), ""))
	return nil
}

// executeStep runs one non-sleep node with the retry policy and appends
// its terminal record before any later step begins.
func (e *Executor) executeStep(ctx context.Context, run *core.Run, node core.Node, log *logging.Logger) error {
	handler, err := handlerFor(node.Kind)
	if err != nil {
		return err
	}

	kind := stepKindFor(node.Kind)
	stepLog := log.WithNode(string(node.ID))
	started := e.now()

	stepLog.Info("step started", "kind", kind)
	e.publish(events.NewStepEvent(events.TypeNodeStarted, string(run.ID), string(node.ID), "", string(kind), 0, ""))

	hctx := HandlerContext{
		Run:        run,
		Node:       node,
		Logger:     stepLog,
		Gateway:    e.gateway,
		HTTPClient: e.httpClient,
	}

	var output map[string]any
	attempts, execErr := e.retry.Do(ctx, func(ctx context.Context) error {
		out, err := handler.Execute(ctx, hctx)
		if err != nil {
			return err
		}
		output = out
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		stepLog.Warn("step attempt failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		e.publish(events.NewStepEvent(events.TypeStepRetried, string(run.ID), string(node.ID),
			core.StepID(node.ID, attempt), string(kind), attempt, err.Error()))
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if attempts == 0 {
		attempts = 1
	}

	rec := core.StepRecord{
		ID:        core.StepID(node.ID, attempts),
		NodeID:    node.ID,
		Kind:      kind,
		Attempt:   attempts,
		Input:     node.Data,
		StartedAt: started,
	}
	completed := e.now()
	rec.CompletedAt = &completed

	if execErr != nil {
		rec.Status = core.StepStatusFailed
		rec.Error = execErr.Error()
		run.AppendStep(rec)
		if err := e.runs.SaveRun(ctx, run); err != nil {
			return err
		}
		stepLog.Error("step failed", "attempt", attempts, "error", execErr)
		e.publish(events.NewStepEvent(events.TypeStepFailed, string(run.ID), string(node.ID), rec.ID, string(kind), attempts, rec.Error))
		return execErr
	}

	rec.Status = core.StepStatusSucceeded
	if output != nil {
		if data, err := json.Marshal(output); err == nil {
			rec.Output = data
		}
	}
	run.AppendStep(rec)
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return err
	}
	stepLog.Info("step completed", "attempt", attempts)
	e.publish(events.NewStepEvent(events.TypeStepCompleted, string(run.ID), string(node.ID), rec.ID, string(kind), attempts, ""))
	return nil
}

type sleepRecordOutput struct {
	WakeAt   time.Time `json:"wake_at"`
	Duration string    `json:"duration"`
}

// executeSleep implements durable delay: the first encounter persists the
// wake time in an open step record and parks the run; the resumed
// invocation finalizes the record once the deadline has passed.
func (e *Executor) executeSleep(ctx context.Context, run *core.Run, node core.Node, log *logging.Logger) (parked bool, err error) {
	stepLog := log.WithNode(string(node.ID))

	if open := run.OpenStepFor(node.ID); open != nil {
		var out sleepRecordOutput
		if err := json.Unmarshal(open.Output, &out); err != nil {
			return false, core.ErrState(core.CodeStateCorrupted, "sleep record lost its wake time").WithCause(err)
		}
		if e.now().Before(out.WakeAt) {
			if err := run.Sleep(out.WakeAt); err != nil {
				return false, core.ErrState(core.CodeInvalidState, err.Error())
			}
			if err := e.runs.SaveRun(ctx, run); err != nil {
				return false, err
			}
			return true, nil
		}
		open.Status = core.StepStatusSucceeded
		completed := e.now()
		open.CompletedAt = &completed
		if err := e.runs.SaveRun(ctx, run); err != nil {
			return false, err
		}
		stepLog.Info("sleep completed", "wake_at", out.WakeAt)
		e.publish(events.NewStepEvent(events.TypeStepCompleted, string(run.ID), string(node.ID), open.ID, string(core.StepKindSleep), open.Attempt, ""))
		return false, nil
	}

	d, err := sleepDuration(node)
	if err != nil {
		return false, err
	}

	started := e.now()
	wake := started.Add(d)
	out, _ := json.Marshal(sleepRecordOutput{WakeAt: wake, Duration: d.String()})
	rec := core.StepRecord{
		ID:        core.StepID(node.ID, 1),
		NodeID:    node.ID,
		Kind:      core.StepKindSleep,
		Attempt:   1,
		Input:     node.Data,
		Output:    out,
		StartedAt: started,
	}

	if d <= 0 {
		rec.Status = core.StepStatusSucceeded
		completed := started
		rec.CompletedAt = &completed
		run.AppendStep(rec)
		if err := e.runs.SaveRun(ctx, run); err != nil {
			return false, err
		}
		return false, nil
	}

	rec.Status = core.StepStatusRunning
	run.AppendStep(rec)
	if err := run.Sleep(wake); err != nil {
		return false, core.ErrState(core.CodeInvalidState, err.Error())
	}
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return false, err
	}
	stepLog.Info("run sleeping", "duration", d, "wake_at", wake)
	return true, nil
}

// failRun finalizes a run as failed. Lower-level errors arrive here
// already classified; the terminal error is persisted on the run.
func (e *Executor) failRun(ctx context.Context, run *core.Run, log *logging.Logger, cause error) error {
	run.Fail(cause)
	if err := e.runs.SaveRun(ctx, run); err != nil {
		log.Error("failed to persist failed run", "error", err)
	}
	log.Error("run failed", "error", cause)
	e.publish(events.NewRunEvent(events.TypeRunFailed, string(run.ID), run.WorkflowID, string(run.Status), run.Error))
	return nil
}

func (e *Executor) publish(event events.Event) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}
