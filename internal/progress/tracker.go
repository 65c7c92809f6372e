// Package progress records scoring snapshots per diagram identity and layers
// progress and trend analysis on top of a fresh score.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/recommend"
	"github.com/efebarandurmaz/archscore/internal/scoring"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
)

// DefaultWindow is the number of snapshots trends are computed over.
const DefaultWindow = 3

// Result is the outcome of one tracked scoring call.
type Result struct {
	Identity        string                     `json:"identity"`
	SnapshotID      string                     `json:"snapshotId,omitempty"`
	Report          *scoring.Report            `json:"report"`
	Progress        *Progress                  `json:"progress,omitempty"`
	Trends          *Trends                    `json:"trends,omitempty"`
	TrendStatus     TrendStatus                `json:"trendStatus"`
	TrendError      string                     `json:"trendError,omitempty"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

// Tracker wraps the scoring engine with snapshot persistence.
type Tracker struct {
	engine *scoring.Engine
	repo   snapshot.Repository
	window int
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*identityLock
}

// identityLock serializes tracking of one identity. It is dropped from the
// map once no caller holds or waits for it.
type identityLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWindow sets the trend window. Values below 2 are ignored.
func WithWindow(n int) Option {
	return func(t *Tracker) {
		if n >= 2 {
			t.window = n
		}
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker around an engine and a snapshot repository.
func NewTracker(engine *scoring.Engine, repo snapshot.Repository, opts ...Option) *Tracker {
	t := &Tracker{
		engine: engine,
		repo:   repo,
		window: DefaultWindow,
		now:    time.Now,
		locks:  make(map[string]*identityLock),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Engine returns the wrapped scoring engine.
func (t *Tracker) Engine() *scoring.Engine { return t.engine }

// Window returns the trend window size.
func (t *Tracker) Window() int { return t.window }

// lock blocks until the caller owns key and returns the matching unlock.
func (t *Tracker) lock(key string) (unlock func()) {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &identityLock{}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}

// TrackProgress scores d, appends a snapshot for id and computes progress
// and trends against the stored history. Validation errors are returned
// before anything is stored. Store failures never fail the call; they are
// reported through TrendStatus.
func (t *Tracker) TrackProgress(ctx context.Context, id diagram.Identity, d *diagram.Diagram) (*Result, error) {
	report, err := t.engine.Score(d)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Identity:        id.String(),
		Report:          report,
		TrendStatus:     TrendInsufficientHistory,
		Recommendations: report.Recommendations,
	}

	defer t.lock(id.String())()

	snap := snapshot.FromReport(id.String(), report, t.now())
	if err := t.repo.Append(ctx, id, snap); err != nil {
		t.degrade(res, id, "append", err)
		return res, nil
	}
	res.SnapshotID = snap.ID

	recent, err := t.repo.ReadRecent(ctx, id, t.window)
	if err != nil {
		t.degrade(res, id, "read", err)
		return res, nil
	}
	if len(recent) < 2 {
		return res, nil
	}

	prev, latest := &recent[len(recent)-2], &recent[len(recent)-1]
	res.Progress = Diff(prev, latest)
	res.Trends = ComputeTrends(recent)
	res.TrendStatus = TrendAvailable
	res.Recommendations = recommend.Merge(report.Recommendations, t.trendRecommendations(res.Trends))
	return res, nil
}

func (t *Tracker) trendRecommendations(tr *Trends) []recommend.Recommendation {
	components := make([]recommend.ComponentTrend, 0, len(snapshot.Components))
	for _, name := range snapshot.Components {
		components = append(components, recommend.ComponentTrend{
			Name:   name,
			Change: tr.Scores[name].ChangeSinceWindowStart,
		})
	}
	return t.engine.Generator().FromTrends(components, tr.Complexity["density"].ChangeSinceWindowStart)
}

func (t *Tracker) degrade(res *Result, id diagram.Identity, op string, err error) {
	res.TrendStatus = TrendUnavailable
	res.TrendError = err.Error()
	slog.Warn("snapshot store unavailable, trends skipped",
		"identity", id.String(), "op", op, "error", err)
}

// History returns up to n of the most recent snapshots for id, oldest first.
func (t *Tracker) History(ctx context.Context, id diagram.Identity, n int) ([]snapshot.Snapshot, error) {
	if n <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", n)
	}
	return t.repo.ReadRecent(ctx, id, n)
}
