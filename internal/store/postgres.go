package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const (
	pgSchema = `
        CREATE TABLE IF NOT EXISTS threads (
            id TEXT PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL,
            last_active TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS command_history (
            id TEXT PRIMARY KEY,
            thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            command TEXT NOT NULL,
            intent TEXT NOT NULL,
            status TEXT NOT NULL,
            message TEXT NOT NULL,
            video_urls TEXT[] NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS command_history_thread_idx ON command_history (thread_id, created_at);
    `

	pgUpsertThread = `
        INSERT INTO threads (id, created_at, last_active)
        VALUES ($1, $2, $2)
        ON CONFLICT (id) DO UPDATE SET last_active = EXCLUDED.last_active;
    `

	pgInsertEntry = `
        INSERT INTO command_history (id, thread_id, command, intent, status, message, video_urls, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `

	pgListEntries = `
        SELECT id, command, intent, status, message, video_urls, created_at
        FROM (
            SELECT id, command, intent, status, message, video_urls, created_at
            FROM command_history
            WHERE thread_id = $1
            ORDER BY created_at DESC
            LIMIT $2
        ) recent
        ORDER BY created_at ASC;
    `

	pgDeleteThread = `DELETE FROM threads WHERE id = $1;`
)

// PostgresStore provides a PostgreSQL implementation of the Repository interface.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgres creates a new store instance and verifies the connection.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("store")}, nil
}

// Migrate creates the history tables when they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return nil
}

// Append records the entry and bumps the thread's activity in one transaction.
func (s *PostgresStore) Append(ctx context.Context, entry schemas.HistoryEntry) error {
	if err := validate(entry); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	createdAt := entry.CreatedAt.UTC()
	if _, err := tx.Exec(ctx, pgUpsertThread, entry.ThreadID, createdAt); err != nil {
		return fmt.Errorf("failed to upsert thread %s: %w", entry.ThreadID, err)
	}

	urls := entry.VideoURLs
	if urls == nil {
		urls = []string{}
	}
	if _, err := tx.Exec(ctx, pgInsertEntry,
		entry.ID, entry.ThreadID, entry.Command,
		string(entry.Intent), string(entry.Status), entry.Message,
		urls, createdAt,
	); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, threadID string, limit int) ([]schemas.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, pgListEntries, threadID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []schemas.HistoryEntry{}
	for rows.Next() {
		e := schemas.HistoryEntry{ThreadID: threadID}
		var intentStr, statusStr string
		if err := rows.Scan(&e.ID, &e.Command, &intentStr, &statusStr, &e.Message, &e.VideoURLs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Intent = schemas.Intent(intentStr)
		e.Status = schemas.Status(statusStr)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Clear(ctx context.Context, threadID string) error {
	if _, err := s.pool.Exec(ctx, pgDeleteThread, threadID); err != nil {
		return fmt.Errorf("failed to clear thread %s: %w", threadID, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
