// Package store persists the command history of conversation threads. The
// memory backend is the default; SQLite and PostgreSQL keep history across
// restarts.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// ErrInvalidEntry is returned for entries without an id or thread id.
var ErrInvalidEntry = errors.New("history entry requires an id and a thread id")

// Repository is the history store contract shared by every backend.
type Repository interface {
	// Append records one processed command.
	Append(ctx context.Context, entry schemas.HistoryEntry) error
	// List returns up to limit of the thread's most recent entries, oldest first.
	List(ctx context.Context, threadID string, limit int) ([]schemas.HistoryEntry, error)
	// Clear deletes every entry of the thread.
	Clear(ctx context.Context, threadID string) error
	Close() error
}

// Open connects the backend named by cfg.Driver and prepares its schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Repository, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(ctx, cfg.SQLitePath, logger)
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database url: %w", err)
		}
		if cfg.MaxConns > 0 {
			poolCfg.MaxConns = cfg.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		s, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", cfg.Driver)
	}
}

func validate(entry schemas.HistoryEntry) error {
	if entry.ID == "" || entry.ThreadID == "" {
		return ErrInvalidEntry
	}
	return nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
