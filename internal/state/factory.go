package state

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flowline-dev/flowline/internal/core"
)

// Store combines the workflow and run persistence interfaces. All
// backends in this package implement both over a single medium so the
// engine and API share one handle.
type Store interface {
	core.WorkflowStore
	core.RunStore
}

// Backend names accepted by NewStore.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

// NewStore creates a Store for the named backend rooted at path.
// The path is the database file for sqlite, the base directory for
// json, and ignored for memory.
func NewStore(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendSQLite, "":
		if !strings.HasSuffix(path, ".db") {
			path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
		}
		return NewSQLiteStore(path)
	case BackendJSON:
		return NewJSONStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Closeable is an optional interface for stores that need cleanup.
type Closeable interface {
	Close() error
}

// CloseStore safely closes a Store if it implements Closeable.
func CloseStore(s Store) error {
	if closeable, ok := s.(Closeable); ok {
		return closeable.Close()
	}
	return nil
}
