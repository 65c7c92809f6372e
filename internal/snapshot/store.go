package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

const (
	snapshotsDir = "snapshots"
	indexFile    = "index.json"
)

// Index lists every identity's snapshots in append order.
type Index struct {
	Histories map[string][]Summary `json:"histories"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// FileStore keeps one JSON file per snapshot under rootDir, plus an index
// recording append order per identity.
type FileStore struct {
	mu      sync.RWMutex
	rootDir string
	index   *Index
}

// NewFileStore creates or opens a file store at the given directory.
func NewFileStore(rootDir string) (*FileStore, error) {
	s := &FileStore{rootDir: rootDir}

	dir := filepath.Join(rootDir, snapshotsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}

	if err := s.loadIndex(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load snapshot index: %w", err)
		}
		s.index = &Index{Histories: map[string][]Summary{}, UpdatedAt: time.Now()}
	}
	return s, nil
}

func (s *FileStore) Append(ctx context.Context, id diagram.Identity, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return Unavailable("append", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.String()
	dir := s.identityDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Unavailable("append", fmt.Errorf("create snapshot dir: %w", err))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	path := filepath.Join(dir, snap.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Unavailable("append", fmt.Errorf("write snapshot: %w", err))
	}

	prev, prevUpdated := s.index.Histories[key], s.index.UpdatedAt
	s.index.Histories[key] = append(prev, snap.Summary())
	s.index.UpdatedAt = time.Now()
	if err := s.saveIndex(); err != nil {
		// The in-memory index must not list what the persisted one does not.
		if len(prev) == 0 {
			delete(s.index.Histories, key)
		} else {
			s.index.Histories[key] = prev
		}
		s.index.UpdatedAt = prevUpdated
		_ = os.Remove(path)
		return Unavailable("append", fmt.Errorf("save index: %w", err))
	}
	return nil
}

func (s *FileStore) ReadRecent(ctx context.Context, id diagram.Identity, n int) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("read_recent", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := id.String()
	entries := s.index.Histories[key]
	if n <= 0 || n > len(entries) {
		n = len(entries)
	}
	out := make([]Snapshot, 0, n)
	for _, e := range entries[len(entries)-n:] {
		snap, err := s.load(key, e.ID)
		if err != nil {
			return nil, Unavailable("read_recent", err)
		}
		out = append(out, *snap)
	}
	return out, nil
}

// List returns the summaries of an identity's history, oldest first.
func (s *FileStore) List(id diagram.Identity) []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.index.Histories[id.String()]
	out := make([]Summary, len(entries))
	copy(out, entries)
	return out
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load(key, snapID string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.identityDir(key), snapID+".json"))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", snapID, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", snapID, err)
	}
	return &snap, nil
}

func (s *FileStore) identityDir(key string) string {
	return filepath.Join(s.rootDir, snapshotsDir, url.PathEscape(key))
}

func (s *FileStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.rootDir, indexFile))
	if err != nil {
		return err
	}
	s.index = &Index{}
	if err := json.Unmarshal(data, s.index); err != nil {
		return err
	}
	if s.index.Histories == nil {
		s.index.Histories = map[string][]Summary{}
	}
	return nil
}

func (s *FileStore) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(s.rootDir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.rootDir, indexFile))
}

var _ Repository = (*FileStore)(nil)
