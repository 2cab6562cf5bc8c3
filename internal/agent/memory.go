package agent

import (
	"fmt"
	"sync"

	"github.com/xkilldash9x/alris-cli/internal/conversation"
)

// DefaultMemoryMessages bounds the per-thread history when no limit is set.
const DefaultMemoryMessages = 20

// Memory keeps the recent dialogue of each thread so follow-up commands see
// what came before. Stored content is always resolved.
type Memory struct {
	mu      sync.Mutex
	limit   int
	threads map[string][]conversation.Message
}

// NewMemory creates a Memory keeping at most limit messages per thread.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryMessages
	}
	return &Memory{limit: limit, threads: make(map[string][]conversation.Message)}
}

// Load returns a copy of the thread's history, oldest first.
func (m *Memory) Load(threadID string) []conversation.Message {
	if m == nil || threadID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]conversation.Message(nil), m.threads[threadID]...)
}

// Append records msgs for the thread, awaiting any pending content.
func (m *Memory) Append(threadID string, msgs ...conversation.Message) {
	if m == nil || threadID == "" || len(msgs) == 0 {
		return
	}
	resolved := make([]conversation.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == conversation.RoleSystem {
			continue
		}
		msg.Content = settle(msg.Content)
		resolved = append(resolved, msg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.threads[threadID], resolved...)
	if over := len(history) - m.limit; over > 0 {
		history = append([]conversation.Message(nil), history[over:]...)
	}
	m.threads[threadID] = history
}

// Clear forgets a thread.
func (m *Memory) Clear(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
}

// settle awaits pending content, turning a failure into its error text.
func settle(c conversation.Content) conversation.Content {
	p, ok := c.(*conversation.Pending)
	if !ok {
		return c
	}
	v, err := p.Await()
	if err != nil {
		return conversation.Text(fmt.Sprintf("Error resolving content: %v", err))
	}
	if v == nil {
		return conversation.Text("")
	}
	return v
}
