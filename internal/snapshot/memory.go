package snapshot

import (
	"context"
	"sync"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

// MemoryStore keeps histories in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{history: make(map[string][]Snapshot)}
}

func (m *MemoryStore) Append(_ context.Context, id diagram.Identity, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.String()
	m.history[key] = append(m.history[key], cloneSnapshot(*snap))
	return nil
}

func (m *MemoryStore) ReadRecent(_ context.Context, id diagram.Identity, n int) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.history[id.String()], n), nil
}

func (m *MemoryStore) Close() error { return nil }

// tail copies the last n entries of h, oldest first.
func tail(h []Snapshot, n int) []Snapshot {
	if n <= 0 || n > len(h) {
		n = len(h)
	}
	out := make([]Snapshot, 0, n)
	for _, s := range h[len(h)-n:] {
		out = append(out, cloneSnapshot(s))
	}
	return out
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Patterns = append([]PatternSummary(nil), s.Patterns...)
	return s
}

var _ Repository = (*MemoryStore)(nil)
