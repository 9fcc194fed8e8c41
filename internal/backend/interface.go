package backend

import (
	"context"

	"jobledger/internal/store"
)

// Backend is one persistence implementation behind the services: the
// entity stores, the sync queue, and lifecycle. Every backend serves
// all of them.
type Backend interface {
	store.JobStore
	store.ExpenseStore
	store.GoalStore
	store.ProfileStore
	store.SyncQueue

	// Ping reports whether the backend can serve requests.
	Ping(ctx context.Context) error
	Close() error
}

// BackendType selects the persistence implementation.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MemoryBackend}
}
