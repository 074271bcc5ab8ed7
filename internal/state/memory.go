package state

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/flowline-dev/flowline/internal/core"
)

// MemoryStore is an in-memory WorkflowStore and RunStore. Used in tests
// and for ephemeral single-process setups; contents are copied on the way
// in and out so callers never share mutable state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string][]byte
	runs      map[core.RunID][]byte
	runOrder  []core.RunID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string][]byte),
		runs:      make(map[core.RunID][]byte),
	}
}

// SaveWorkflow stores a deep copy of the workflow.
func (s *MemoryStore) SaveWorkflow(_ context.Context, wf *core.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = data
	return nil
}

// LoadWorkflow retrieves a workflow by id.
func (s *MemoryStore) LoadWorkflow(_ context.Context, id string) (*core.Workflow, error) {
	s.mu.RLock()
	data, ok := s.workflows[id]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound("workflow", id)
	}
	var wf core.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows returns all workflows, optionally filtered by owner.
func (s *MemoryStore) ListWorkflows(_ context.Context, ownerID string) ([]*core.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*core.Workflow
	for _, data := range s.workflows {
		var wf core.Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return nil, err
		}
		if ownerID != "" && wf.OwnerID != ownerID {
			continue
		}
		result = append(result, &wf)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DeleteWorkflow removes a workflow. Runs are retained for audit.
func (s *MemoryStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return core.ErrNotFound("workflow", id)
	}
	delete(s.workflows, id)
	return nil
}

// SaveRun stores a deep copy of the run.
func (s *MemoryStore) SaveRun(_ context.Context, run *core.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		s.runOrder = append(s.runOrder, run.ID)
	}
	s.runs[run.ID] = data
	return nil
}

// GetRun retrieves a run by id.
func (s *MemoryStore) GetRun(_ context.Context, id core.RunID) (*core.Run, error) {
	s.mu.RLock()
	data, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound("run", string(id))
	}
	var run core.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRunsForWorkflow returns run summaries for a workflow in creation
// order.
func (s *MemoryStore) ListRunsForWorkflow(_ context.Context, workflowID string) ([]core.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []core.RunSummary
	for _, id := range s.runOrder {
		var run core.Run
		if err := json.Unmarshal(s.runs[id], &run); err != nil {
			return nil, err
		}
		if run.WorkflowID == workflowID {
			result = append(result, run.Summary())
		}
	}
	return result, nil
}

// ListSleepingRuns returns ids of sleeping runs due to wake.
func (s *MemoryStore) ListSleepingRuns(_ context.Context, before time.Time) ([]core.RunID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []core.RunID
	for _, id := range s.runOrder {
		var run core.Run
		if err := json.Unmarshal(s.runs[id], &run); err != nil {
			return nil, err
		}
		if run.Status == core.RunStatusSleeping && run.WakeAt != nil && !run.WakeAt.After(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ListActiveRuns returns ids of pending and running runs in creation
// order.
func (s *MemoryStore) ListActiveRuns(_ context.Context) ([]core.RunID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []core.RunID
	for _, id := range s.runOrder {
		var run core.Run
		if err := json.Unmarshal(s.runs[id], &run); err != nil {
			return nil, err
		}
		if run.Status == core.RunStatusPending || run.Status == core.RunStatusRunning {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var (
	_ core.WorkflowStore = (*MemoryStore)(nil)
	_ core.RunStore      = (*MemoryStore)(nil)
)
