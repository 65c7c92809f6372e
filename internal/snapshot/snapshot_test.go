package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/patterns"
	"github.com/efebarandurmaz/archscore/internal/scoring"
)

func makeTestSnapshot(id string, total int) *Snapshot {
	return &Snapshot{
		ID:        id,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, total, 0, time.UTC),
		Total:     total,
		Patterns:  []PatternSummary{{ID: "caching", Category: "performance", Quality: 0.5}},
	}
}

func testIdentity() diagram.Identity {
	return diagram.NewIdentity("sess/1", diagram.DiagramSystem)
}

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	id := testIdentity()
	other := diagram.NewIdentity("sess/2", diagram.DiagramSystem)

	got, err := repo.ReadRecent(ctx, id, 3)
	if err != nil {
		t.Fatalf("ReadRecent on empty history: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty history returned %d snapshots", len(got))
	}

	for i := 1; i <= 5; i++ {
		if err := repo.Append(ctx, id, makeTestSnapshot(fmt.Sprintf("snap-%d", i), i*10)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := repo.Append(ctx, other, makeTestSnapshot("other-1", 99)); err != nil {
		t.Fatalf("Append other: %v", err)
	}

	got, err = repo.ReadRecent(ctx, id, 3)
	if err != nil {
		t.Fatalf("ReadRecent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(got))
	}
	for i, want := range []string{"snap-3", "snap-4", "snap-5"} {
		if got[i].ID != want {
			t.Errorf("got[%d] = %s, want %s (oldest first)", i, got[i].ID, want)
		}
	}
	if len(got[0].Patterns) != 1 || got[0].Patterns[0].ID != "caching" {
		t.Errorf("patterns not preserved: %+v", got[0].Patterns)
	}

	all, err := repo.ReadRecent(ctx, id, 100)
	if err != nil {
		t.Fatalf("ReadRecent all: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("got %d snapshots, want 5", len(all))
	}

	others, _ := repo.ReadRecent(ctx, other, 10)
	if len(others) != 1 || others[0].Total != 99 {
		t.Errorf("identities are not isolated: %+v", others)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseRepository(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Append(ctx, testIdentity(), makeTestSnapshot("a", 1))

	got, _ := store.ReadRecent(ctx, testIdentity(), 1)
	got[0].Patterns[0].ID = "mutated"

	again, _ := store.ReadRecent(ctx, testIdentity(), 1)
	if again[0].Patterns[0].ID != "caching" {
		t.Error("stored history was mutated through a returned snapshot")
	}
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseRepository(t, store)
}

func TestFileStoreReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	_ = store.Append(ctx, testIdentity(), makeTestSnapshot("a", 10))
	_ = store.Append(ctx, testIdentity(), makeTestSnapshot("b", 20))

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.ReadRecent(ctx, testIdentity(), 5)
	if err != nil {
		t.Fatalf("ReadRecent: %v", err)
	}
	if len(got) != 2 || got[1].ID != "b" {
		t.Fatalf("reopened history = %+v", got)
	}
	if list := reopened.List(testIdentity()); len(list) != 2 || list[0].Total != 10 {
		t.Errorf("List = %+v", list)
	}
}

func TestFileStoreMissingObjectIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store, _ := NewFileStore(dir)
	_ = store.Append(ctx, testIdentity(), makeTestSnapshot("gone", 10))

	matches, _ := filepath.Glob(filepath.Join(dir, snapshotsDir, "*", "gone.json"))
	if len(matches) != 1 {
		t.Fatalf("snapshot file not found: %v", matches)
	}
	if err := os.Remove(matches[0]); err != nil {
		t.Fatal(err)
	}

	_, err := store.ReadRecent(ctx, testIdentity(), 1)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestFileStoreFailedIndexSaveRollsBack(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Append(ctx, testIdentity(), makeTestSnapshot("kept", 10)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A directory in place of the temp index file makes saveIndex fail.
	blocker := filepath.Join(dir, indexFile+".tmp")
	if err := os.Mkdir(blocker, 0o755); err != nil {
		t.Fatal(err)
	}
	err = store.Append(ctx, testIdentity(), makeTestSnapshot("lost", 20))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	other := diagram.NewIdentity("sess/new", diagram.DiagramSystem)
	if err := store.Append(ctx, other, makeTestSnapshot("first", 5)); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable for a new identity, got %v", err)
	}

	got, err := store.ReadRecent(ctx, testIdentity(), 5)
	if err != nil {
		t.Fatalf("ReadRecent: %v", err)
	}
	if len(got) != 1 || got[0].ID != "kept" {
		t.Errorf("history after failed append = %+v, want only kept", got)
	}
	if list := store.List(other); len(list) != 0 {
		t.Errorf("new identity should have no history, got %+v", list)
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if list := reopened.List(testIdentity()); len(list) != 1 || list[0].ID != "kept" {
		t.Errorf("persisted history = %+v, want only kept", list)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	snap := makeTestSnapshot("codec", 42)
	blob, err := Encode(snap)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ID != "codec" || got.Total != 42 || !got.CreatedAt.Equal(snap.CreatedAt) {
		t.Errorf("decoded = %+v", got)
	}
	if _, err := Decode([]byte("not zstd")); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestFromReport(t *testing.T) {
	reg, _ := patterns.DefaultRegistry()
	engine := scoring.NewEngine(reg, nil)
	report, err := engine.Score(&diagram.Diagram{
		Nodes: []diagram.Node{{ID: "s", Type: "service"}, {ID: "c", Type: "cache"}},
		Edges: []diagram.Edge{{Source: "s", Target: "c"}},
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	now := time.Now()
	snap := FromReport("sess/system", report, now)
	if snap.ID == "" || snap.Identity != "sess/system" {
		t.Errorf("snapshot identity fields = %+v", snap)
	}
	if snap.Total != report.Total || !snap.HasPattern("caching") {
		t.Errorf("snapshot = %+v", snap)
	}
	if v, ok := snap.Component("bestPracticesScore"); !ok || v != report.BestPracticesScore {
		t.Errorf("Component(bestPracticesScore) = %v, %v", v, ok)
	}
	if _, ok := snap.Component("nope"); ok {
		t.Error("unknown component should not resolve")
	}
}

func TestStoreErrorUnwraps(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Unavailable("append", cause)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
		t.Errorf("StoreError should match both sentinel and cause: %v", err)
	}
}
