package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/flowline-dev/flowline/internal/core"
	"github.com/flowline-dev/flowline/internal/events"
	"github.com/flowline-dev/flowline/internal/graph"
	"github.com/flowline-dev/flowline/internal/logging"
	"github.com/flowline-dev/flowline/internal/trigger"
)

// SchedulerConfig holds scheduler tuning.
type SchedulerConfig struct {
	// Workers bounds concurrent in-flight runs and is the primary
	// backpressure control; excess triggers queue.
	Workers      int
	QueueSize    int
	WakeInterval time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:      4,
		QueueSize:    256,
		WakeInterval: time.Second,
	}
}

// Scheduler accepts trigger events, creates runs and dispatches them onto
// a bounded worker pool. It also wakes sleeping runs whose deadline has
// passed.
type Scheduler struct {
	config    SchedulerConfig
	workflows core.WorkflowStore
	runs      core.RunStore
	executor  *Executor
	bus       *events.Bus
	logger    *logging.Logger

	queue chan core.RunID

	mu        sync.Mutex
	inFlight  map[core.RunID]bool
	cancelled map[core.RunID]bool
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig, workflows core.WorkflowStore, runs core.RunStore, executor *Executor, bus *events.Bus, logger *logging.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultSchedulerConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultSchedulerConfig().QueueSize
	}
	if cfg.WakeInterval <= 0 {
		cfg.WakeInterval = DefaultSchedulerConfig().WakeInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		config:    cfg,
		workflows: workflows,
		runs:      runs,
		executor:  executor,
		bus:       bus,
		logger:    logger,
		queue:     make(chan core.RunID, cfg.QueueSize),
		inFlight:  make(map[core.RunID]bool),
		cancelled: make(map[core.RunID]bool),
	}
}

// Start runs the worker pool and wake loop until the context is
// cancelled. Pending and running runs persisted by a previous process
// are re-enqueued first; Execute skips their completed steps.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < s.config.Workers; i++ {
		g.Go(func() error {
			return s.worker(ctx)
		})
	}
	g.Go(func() error {
		return s.wakeLoop(ctx)
	})
	g.Go(func() error {
		s.recoverInterrupted(ctx)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-s.queue:
			s.runOne(ctx, id)
		}
	}
}

func (s *Scheduler) runOne(ctx context.Context, id core.RunID) {
	s.mu.Lock()
	if s.inFlight[id] {
		s.mu.Unlock()
		return
	}
	if s.cancelled[id] {
		delete(s.cancelled, id)
		s.mu.Unlock()
		s.cancelRun(ctx, id)
		return
	}
	s.inFlight[id] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
	}()

	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		s.logger.Error("loading run for execution", "run_id", id, "error", err)
		return
	}

	err = s.executor.Execute(ctx, run)
	switch {
	case err == nil, errors.Is(err, ErrRunSleeping):
	case errors.Is(err, context.Canceled):
		// Shutdown mid-run: the step-record log lets a later invocation
		// resume without repeating completed work.
		s.logger.Info("run interrupted", "run_id", id)
	default:
		s.logger.Error("run execution error", "run_id", id, "error", err)
	}

	// A cancel that arrived while the run was executing takes effect at
	// the next step boundary; if the run parked asleep, apply it now.
	s.mu.Lock()
	wantCancel := s.cancelled[id]
	delete(s.cancelled, id)
	s.mu.Unlock()
	if wantCancel && !run.IsTerminal() {
		s.cancelRun(ctx, id)
	}
}

// recoverInterrupted re-enqueues runs a previous process accepted but
// never finished. Sleeping runs are excluded here; the wake loop picks
// them up when their deadline passes.
func (s *Scheduler) recoverInterrupted(ctx context.Context) {
	ids, err := s.runs.ListActiveRuns(ctx)
	if err != nil {
		s.logger.Error("listing interrupted runs", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	s.logger.Info("recovering interrupted runs", "count", len(ids))
	for _, id := range ids {
		s.enqueue(ctx, id)
	}
}

// wakeLoop periodically re-enqueues sleeping runs whose wake time has
// passed.
func (s *Scheduler) wakeLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.WakeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ids, err := s.runs.ListSleepingRuns(ctx, time.Now())
			if err != nil {
				s.logger.Error("listing sleeping runs", "error", err)
				continue
			}
			for _, id := range ids {
				s.enqueue(ctx, id)
			}
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, id core.RunID) {
	select {
	case s.queue <- id:
	case <-ctx.Done():
	}
}

// HandleEvent accepts a trigger event envelope, creates a run for the
// targeted workflow and enqueues it. Graph-invariant violations fail the
// run synchronously before any step executes.
func (s *Scheduler) HandleEvent(ctx context.Context, event core.TriggerEvent) (*core.Run, error) {
	kinds := trigger.KindsForEvent(event.Name)
	if len(kinds) == 0 {
		return nil, core.ErrNotFound("trigger event", event.Name)
	}

	var payload struct {
		WorkflowID string `json:"workflowId"`
	}
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, core.ErrGraph(core.CodeInvalidNodeData, "invalid trigger event data").WithCause(err)
		}
	}
	if payload.WorkflowID == "" {
		return nil, core.ErrGraph(core.CodeInvalidNodeData, "trigger event requires workflowId")
	}

	wf, err := s.workflows.LoadWorkflow(ctx, payload.WorkflowID)
	if err != nil {
		return nil, err
	}

	run := core.NewRun(core.RunID(uuid.NewString()), wf, event.Data)

	// Invariants are re-checked at run creation; a graph that slipped
	// past edit-time checks fails here before any step executes.
	_, verr := graph.Validate(run.Graph)
	if verr == nil {
		_, verr = trigger.Entry(run.Graph)
	}
	if verr != nil {
		run.Fail(verr)
		if err := s.runs.SaveRun(ctx, run); err != nil {
			return nil, err
		}
		s.publish(events.NewRunEvent(events.TypeRunFailed, string(run.ID), run.WorkflowID, string(run.Status), run.Error))
		return run, nil
	}

	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	s.enqueue(ctx, run.ID)
	s.logger.Info("run enqueued",
		"run_id", run.ID,
		"workflow_id", wf.ID,
		"event", event.Name,
	)
	return run, nil
}

// Cancel requests cancellation of a run. Cancellation takes effect
// between steps only; a run mid-step finishes its current attempt first.
func (s *Scheduler) Cancel(ctx context.Context, id core.RunID) error {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run.IsTerminal() {
		return core.ErrState(core.CodeInvalidState, "run is already terminal")
	}

	s.mu.Lock()
	busy := s.inFlight[id]
	if busy {
		s.cancelled[id] = true
	}
	s.mu.Unlock()

	if busy {
		return nil
	}
	return s.cancelRun(ctx, id)
}

func (s *Scheduler) cancelRun(ctx context.Context, id core.RunID) error {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run.IsTerminal() {
		return nil
	}
	run.Cancel("cancelled by user")
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return err
	}
	s.logger.Info("run cancelled", "run_id", id)
	s.publish(events.NewRunEvent(events.TypeRunCancelled, string(run.ID), run.WorkflowID, string(run.Status), run.Error))
	return nil
}

func (s *Scheduler) publish(event events.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}
