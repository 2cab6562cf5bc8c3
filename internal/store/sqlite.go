package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

// sqliteTimeLayout is fixed width so text order is time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	sqliteSchema = `
        CREATE TABLE IF NOT EXISTS command_history (
            id TEXT PRIMARY KEY,
            thread_id TEXT NOT NULL,
            command TEXT NOT NULL,
            intent TEXT NOT NULL,
            status TEXT NOT NULL,
            message TEXT NOT NULL,
            video_urls TEXT NOT NULL DEFAULT '[]',
            created_at TEXT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS command_history_thread_idx ON command_history (thread_id, created_at);
    `

	sqliteInsertEntry = `
        INSERT INTO command_history (id, thread_id, command, intent, status, message, video_urls, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?);
    `

	sqliteListEntries = `
        SELECT id, command, intent, status, message, video_urls, created_at
        FROM (
            SELECT id, command, intent, status, message, video_urls, created_at, rowid AS seq
            FROM command_history
            WHERE thread_id = ?
            ORDER BY created_at DESC, seq DESC
            LIMIT ?
        )
        ORDER BY created_at ASC, seq ASC;
    `

	sqliteDeleteThread = `DELETE FROM command_history WHERE thread_id = ?;`
)

// SQLiteStore keeps history in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the database at path and migrates it.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store requires a database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return &SQLiteStore{db: db, log: logger.Named("store")}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, entry schemas.HistoryEntry) error {
	if err := validate(entry); err != nil {
		return err
	}
	urls := entry.VideoURLs
	if urls == nil {
		urls = []string{}
	}
	encoded, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("failed to encode video urls: %w", err)
	}

	_, err = s.db.ExecContext(ctx, sqliteInsertEntry,
		entry.ID, entry.ThreadID, entry.Command,
		string(entry.Intent), string(entry.Status), entry.Message,
		string(encoded), entry.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, threadID string, limit int) ([]schemas.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListEntries, threadID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []schemas.HistoryEntry{}
	for rows.Next() {
		e := schemas.HistoryEntry{ThreadID: threadID}
		var intentStr, statusStr, urls, createdAt string
		if err := rows.Scan(&e.ID, &e.Command, &intentStr, &statusStr, &e.Message, &urls, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Intent = schemas.Intent(intentStr)
		e.Status = schemas.Status(statusStr)
		if err := json.Unmarshal([]byte(urls), &e.VideoURLs); err != nil {
			s.log.Warn("Discarding unreadable video urls.", zap.String("id", e.ID), zap.Error(err))
		}
		if len(e.VideoURLs) == 0 {
			e.VideoURLs = nil
		}
		if e.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, sqliteDeleteThread, threadID); err != nil {
		return fmt.Errorf("failed to clear thread %s: %w", threadID, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
