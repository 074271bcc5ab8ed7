package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowline-dev/flowline/internal/core"
)

// JSONStore implements WorkflowStore and RunStore with one JSON file per
// entity under a base directory. Writes are atomic and every file carries
// a checksum envelope so corruption is detected on load rather than
// surfacing as silently wrong run state.
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONStore creates a JSON file store rooted at dir. The directory
// layout is dir/workflows/<id>.json and dir/runs/<id>.json.
func NewJSONStore(dir string) (*JSONStore, error) {
	for _, sub := range []string{"workflows", "runs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &JSONStore{dir: dir}, nil
}

// fileEnvelope wraps a stored entity with metadata.
type fileEnvelope struct {
	Version   int             `json:"version"`
	Checksum  string          `json:"checksum"`
	UpdatedAt time.Time       `json:"updated_at"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *JSONStore) writeEntity(path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	hash := sha256.Sum256(payload)
	envelope := fileEnvelope{
		Version:   1,
		Checksum:  hex.EncodeToString(hash[:]),
		UpdatedAt: time.Now(),
		Payload:   payload,
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *JSONStore) readEntity(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return core.ErrState(core.CodeStateCorrupted, fmt.Sprintf("unmarshaling %s: %v", path, err))
	}

	hash := sha256.Sum256(envelope.Payload)
	if hex.EncodeToString(hash[:]) != envelope.Checksum {
		return core.ErrState(core.CodeStateCorrupted, fmt.Sprintf("checksum mismatch in %s", path))
	}

	if err := json.Unmarshal(envelope.Payload, v); err != nil {
		return core.ErrState(core.CodeStateCorrupted, fmt.Sprintf("unmarshaling payload in %s: %v", path, err))
	}
	return nil
}

func (s *JSONStore) workflowPath(id string) string {
	return filepath.Join(s.dir, "workflows", id+".json")
}

func (s *JSONStore) runPath(id core.RunID) string {
	return filepath.Join(s.dir, "runs", string(id)+".json")
}

// SaveWorkflow persists a workflow atomically.
func (s *JSONStore) SaveWorkflow(_ context.Context, wf *core.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEntity(s.workflowPath(wf.ID), wf)
}

// LoadWorkflow retrieves a workflow by id.
func (s *JSONStore) LoadWorkflow(_ context.Context, id string) (*core.Workflow, error) {
	var wf core.Workflow
	if err := s.readEntity(s.workflowPath(id), &wf); err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNotFound("workflow", id)
		}
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows returns all stored workflows, optionally filtered by owner.
func (s *JSONStore) ListWorkflows(_ context.Context, ownerID string) ([]*core.Workflow, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "workflows"))
	if err != nil {
		return nil, fmt.Errorf("reading workflows directory: %w", err)
	}

	var result []*core.Workflow
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var wf core.Workflow
		if err := s.readEntity(filepath.Join(s.dir, "workflows", entry.Name()), &wf); err != nil {
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

// DeleteWorkflow removes a workflow file. Run files are retained.
func (s *JSONStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.workflowPath(id)); err != nil {
		if os.IsNotExist(err) {
			return core.ErrNotFound("workflow", id)
		}
		return fmt.Errorf("deleting workflow: %w", err)
	}
	return nil
}

// SaveRun persists a run atomically.
func (s *JSONStore) SaveRun(_ context.Context, run *core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEntity(s.runPath(run.ID), run)
}

// GetRun retrieves a run by id.
func (s *JSONStore) GetRun(_ context.Context, id core.RunID) (*core.Run, error) {
	var run core.Run
	if err := s.readEntity(s.runPath(id), &run); err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNotFound("run", string(id))
		}
		return nil, err
	}
	return &run, nil
}

// ListRunsForWorkflow returns run summaries for a workflow sorted by
// creation time.
func (s *JSONStore) ListRunsForWorkflow(ctx context.Context, workflowID string) ([]core.RunSummary, error) {
	runs, err := s.scanRuns(ctx)
	if err != nil {
		return nil, err
	}

	var result []core.RunSummary
	for _, run := range runs {
		if run.WorkflowID == workflowID {
			result = append(result, run.Summary())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// ListSleepingRuns returns ids of sleeping runs whose wake time is at or
// before the given instant.
func (s *JSONStore) ListSleepingRuns(ctx context.Context, before time.Time) ([]core.RunID, error) {
	runs, err := s.scanRuns(ctx)
	if err != nil {
		return nil, err
	}

	var ids []core.RunID
	for _, run := range runs {
		if run.Status == core.RunStatusSleeping && run.WakeAt != nil && !run.WakeAt.After(before) {
			ids = append(ids, run.ID)
		}
	}
	return ids, nil
}

// ListActiveRuns returns ids of pending and running runs.
func (s *JSONStore) ListActiveRuns(ctx context.Context) ([]core.RunID, error) {
	runs, err := s.scanRuns(ctx)
	if err != nil {
		return nil, err
	}

	var ids []core.RunID
	for _, run := range runs {
		if run.Status == core.RunStatusPending || run.Status == core.RunStatusRunning {
			ids = append(ids, run.ID)
		}
	}
	return ids, nil
}

func (s *JSONStore) scanRuns(_ context.Context) ([]*core.Run, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "runs"))
	if err != nil {
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var runs []*core.Run
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var run core.Run
		if err := s.readEntity(filepath.Join(s.dir, "runs", entry.Name()), &run); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

var (
	_ core.WorkflowStore = (*JSONStore)(nil)
	_ core.RunStore      = (*JSONStore)(nil)
)
