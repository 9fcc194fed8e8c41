package backend

import (
	"fmt"
	"log/slog"

	"jobledger/internal/memory"
	"jobledger/internal/storage"
	"jobledger/internal/storage/postgres"
)

// Config holds what the factory needs to build a backend.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLitePath string

	// Postgres specific
	PostgresURL string
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLitePath == "" {
			return fmt.Errorf("database path is required for the sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("database URL is required for the postgres backend")
		}
	case MemoryBackend:
		// Nothing to configure; data lives for the process lifetime.
	}

	return nil
}

// New builds the backend named by the config. SQLite and Postgres run
// their migrations on startup.
func New(config Config) (Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewRepository(config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		slog.Info("Initialized sqlite backend", "db_path", config.SQLitePath)
		return repo, nil

	case PostgresBackend:
		repo, err := postgres.New(config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres backend: %w", err)
		}
		slog.Info("Initialized postgres backend")
		return repo, nil

	case MemoryBackend:
		slog.Info("Initialized memory backend")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
