// Package state provides persistence adapters for workflows and runs.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flowline-dev/flowline/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteStore implements WorkflowStore and RunStore with SQLite storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// WAL mode for concurrent readers during run execution.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(migrationV1); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveWorkflow upserts a workflow graph.
func (s *SQLiteStore) SaveWorkflow(ctx context.Context, wf *core.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshaling workflow: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, owner_id, name, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		wf.ID, wf.OwnerID, wf.Name, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving workflow: %w", err)
	}
	return nil
}

// LoadWorkflow retrieves a workflow by id.
func (s *SQLiteStore) LoadWorkflow(ctx context.Context, id string) (*core.Workflow, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM workflows WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("workflow", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading workflow: %w", err)
	}

	var wf core.Workflow
	if err := json.Unmarshal([]byte(data), &wf); err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted, "workflow record is not valid JSON").WithCause(err)
	}
	return &wf, nil
}

// ListWorkflows returns all workflows, optionally filtered by owner.
func (s *SQLiteStore) ListWorkflows(ctx context.Context, ownerID string) ([]*core.Workflow, error) {
	query := `SELECT data FROM workflows ORDER BY updated_at DESC`
	args := []any{}
	if ownerID != "" {
		query = `SELECT data FROM workflows WHERE owner_id = ? ORDER BY updated_at DESC`
		args = append(args, ownerID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	defer rows.Close()

	var result []*core.Workflow
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var wf core.Workflow
		if err := json.Unmarshal([]byte(data), &wf); err != nil {
			return nil, core.ErrState(core.CodeStateCorrupted, "workflow record is not valid JSON").WithCause(err)
		}
		result = append(result, &wf)
	}
	return result, rows.Err()
}

// DeleteWorkflow removes a workflow. Runs are retained for audit.
func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound("workflow", id)
	}
	return nil
}

// SaveRun upserts a run and its step-record log.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *core.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	var wakeAt any
	if run.WakeAt != nil {
		wakeAt = run.WakeAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_id, status, wake_at, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			wake_at = excluded.wake_at,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		string(run.ID), run.WorkflowID, string(run.Status), wakeAt,
		string(data), run.CreatedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id core.RunID) (*core.Run, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM runs WHERE id = ?`, string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("run", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}

	var run core.Run
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted, "run record is not valid JSON").WithCause(err)
	}
	return &run, nil
}

// ListRunsForWorkflow returns run summaries for a workflow, newest first.
func (s *SQLiteStore) ListRunsForWorkflow(ctx context.Context, workflowID string) ([]core.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM runs WHERE workflow_id = ? ORDER BY created_at DESC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var result []core.RunSummary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var run core.Run
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, core.ErrState(core.CodeStateCorrupted, "run record is not valid JSON").WithCause(err)
		}
		result = append(result, run.Summary())
	}
	return result, rows.Err()
}

// ListSleepingRuns returns ids of sleeping runs due to wake.
func (s *SQLiteStore) ListSleepingRuns(ctx context.Context, before time.Time) ([]core.RunID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE status = ? AND wake_at IS NOT NULL AND wake_at <= ?`,
		string(core.RunStatusSleeping), before.UTC())
	if err != nil {
		return nil, fmt.Errorf("listing sleeping runs: %w", err)
	}
	defer rows.Close()

	var ids []core.RunID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, core.RunID(id))
	}
	return ids, rows.Err()
}

// ListActiveRuns returns ids of pending and running runs, oldest first.
func (s *SQLiteStore) ListActiveRuns(ctx context.Context) ([]core.RunID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE status IN (?, ?) ORDER BY created_at`,
		string(core.RunStatusPending), string(core.RunStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("listing active runs: %w", err)
	}
	defer rows.Close()

	var ids []core.RunID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, core.RunID(id))
	}
	return ids, rows.Err()
}

var (
	_ core.WorkflowStore = (*SQLiteStore)(nil)
	_ core.RunStore      = (*SQLiteStore)(nil)
)
