package store

import (
	"context"
	"sync"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

// MemoryStore keeps history in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]schemas.HistoryEntry
}

var _ Repository = (*MemoryStore)(nil)

func NewMemory() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]schemas.HistoryEntry)}
}

func (m *MemoryStore) Append(ctx context.Context, entry schemas.HistoryEntry) error {
	if err := validate(entry); err != nil {
		return err
	}
	entry.VideoURLs = append([]string(nil), entry.VideoURLs...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[entry.ThreadID] = append(m.threads[entry.ThreadID], entry)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, threadID string, limit int) ([]schemas.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.threads[threadID]
	if n := listLimit(limit); len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	out := make([]schemas.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemoryStore) Clear(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
