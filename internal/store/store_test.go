package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

var baseTime = time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC)

func entry(id, thread string, offset time.Duration, urls ...string) schemas.HistoryEntry {
	return schemas.HistoryEntry{
		ID:        id,
		ThreadID:  thread,
		Command:   "command " + id,
		Intent:    schemas.IntentGeneral,
		Status:    schemas.StatusSuccess,
		Message:   "message " + id,
		VideoURLs: urls,
		CreatedAt: baseTime.Add(offset),
	}
}

// -- Backend contract, run against every local backend --

func backends(t *testing.T) map[string]Repository {
	t.Helper()
	sqlite, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Repository{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestRepositoryContract(t *testing.T) {
	ctx := context.Background()

	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Append(ctx, entry("a", "t1", 0, "https://www.youtube.com/watch?v=aaaaaaaaaaa")))
			require.NoError(t, repo.Append(ctx, entry("b", "t1", time.Second)))
			require.NoError(t, repo.Append(ctx, entry("c", "t1", 2*time.Second)))
			require.NoError(t, repo.Append(ctx, entry("x", "t2", 0)))

			all, err := repo.List(ctx, "t1", 0)
			require.NoError(t, err)
			expected := []schemas.HistoryEntry{
				entry("a", "t1", 0, "https://www.youtube.com/watch?v=aaaaaaaaaaa"),
				entry("b", "t1", time.Second),
				entry("c", "t1", 2*time.Second),
			}
			if diff := cmp.Diff(expected, all); diff != "" {
				t.Errorf("List mismatch (-want +got):\n%s", diff)
			}

			recent, err := repo.List(ctx, "t1", 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "b", recent[0].ID, "the most recent entries come back oldest first")
			assert.Equal(t, "c", recent[1].ID)

			require.NoError(t, repo.Clear(ctx, "t1"))
			cleared, err := repo.List(ctx, "t1", 0)
			require.NoError(t, err)
			assert.Empty(t, cleared)

			other, err := repo.List(ctx, "t2", 0)
			require.NoError(t, err)
			assert.Len(t, other, 1, "clearing one thread leaves others alone")

			assert.ErrorIs(t, repo.Append(ctx, schemas.HistoryEntry{ThreadID: "t1"}), ErrInvalidEntry)
			assert.ErrorIs(t, repo.Append(ctx, schemas.HistoryEntry{ID: "z"}), ErrInvalidEntry)
		})
	}
}

func TestMemoryStore_CopiesEntries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	urls := []string{"u1"}
	e := entry("a", "t", 0, urls...)
	require.NoError(t, m.Append(ctx, e))
	e.VideoURLs[0] = "mutated"

	got, err := m.List(ctx, "t", 0)
	require.NoError(t, err)
	assert.Equal(t, "u1", got[0].VideoURLs[0])

	got[0].Message = "changed"
	again, _ := m.List(ctx, "t", 0)
	assert.Equal(t, "message a", again[0].Message)
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLite(context.Background(), "", zap.NewNop())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, config.DatabaseConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, repo)

	repo, err = Open(ctx, config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "h.db")}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(ctx, config.DatabaseConfig{Driver: "mongo"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver 'mongo'")

	_, err = Open(ctx, config.DatabaseConfig{Driver: "postgres", URL: "::not a url::"}, zap.NewNop())
	assert.Error(t, err)
}

// -- PostgreSQL, against pgxmock --

func newMockStore(t *testing.T, logger *zap.Logger) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := NewPostgres(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

func TestNewPostgres(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgres(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectExec(flexibleSQLMatcher(pgSchema)).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert inside a transaction without rollback errors", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(core))

		local := time.Date(2025, 5, 30, 5, 0, 0, 0, time.FixedZone("EDT", -4*3600))
		e := entry("a", "t1", 0)
		e.CreatedAt = local

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(pgUpsertThread)).
			WithArgs("t1", baseTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(flexibleSQLMatcher(pgInsertEntry)).
			WithArgs("a", "t1", "command a", "general", "success", "message a", []string{}, baseTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.Append(ctx, e))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, logs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should rollback when the insert fails", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())

		insertErr := errors.New("duplicate key")
		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(pgUpsertThread)).
			WithArgs("t1", baseTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(flexibleSQLMatcher(pgInsertEntry)).
			WithArgs("a", "t1", "command a", "general", "success", "message a", []string{"u"}, baseTime).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		err := s.Append(ctx, entry("a", "t1", 0, "u"))
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should fail when a transaction cannot begin", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := s.Append(ctx, entry("a", "t1", 0))
		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject invalid entries before touching the database", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		assert.ErrorIs(t, s.Append(ctx, schemas.HistoryEntry{}), ErrInvalidEntry)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresStore_List(t *testing.T) {
	ctx := context.Background()
	s, mockPool := newMockStore(t, zap.NewNop())

	columns := []string{"id", "command", "intent", "status", "message", "video_urls", "created_at"}
	rows := pgxmock.NewRows(columns).
		AddRow("a", "play cats", "youtube_search", "success", "Here are cats.", []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"}, baseTime).
		AddRow("b", "hello", "general", "success", "Hi!", []string{}, baseTime.Add(time.Second))
	mockPool.ExpectQuery(flexibleSQLMatcher(pgListEntries)).
		WithArgs("t1", DefaultListLimit).
		WillReturnRows(rows)

	entries, err := s.List(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, schemas.IntentVideoSearch, entries[0].Intent)
	assert.Equal(t, "t1", entries[0].ThreadID)
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"}, entries[0].VideoURLs)
	assert.Equal(t, baseTime.Add(time.Second), entries[1].CreatedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet())

	t.Run("query failure", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(pgListEntries)).
			WithArgs("t1", 5).
			WillReturnError(errors.New("connection reset"))

		_, err := s.List(ctx, "t1", 5)
		assert.ErrorContains(t, err, "failed to query history")
	})
}

func TestPostgresStore_Clear(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectExec(flexibleSQLMatcher(pgDeleteThread)).
		WithArgs("t1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Clear(context.Background(), "t1"))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
