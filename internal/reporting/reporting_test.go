package reporting

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/llm"
	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/patterns"
	"github.com/efebarandurmaz/archscore/internal/progress"
	"github.com/efebarandurmaz/archscore/internal/scoring"
	"github.com/efebarandurmaz/archscore/internal/similarity"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
	"github.com/efebarandurmaz/archscore/internal/suggest"
)

type fixture struct {
	svc     *Service
	metrics *observability.ScoringMetrics
	audit   *bytes.Buffer
	index   *similarity.MemoryIndex
}

func newFixture(t *testing.T, repo snapshot.Repository, provider llm.Provider) *fixture {
	t.Helper()
	reg, err := patterns.DefaultRegistry()
	require.NoError(t, err)

	f := &fixture{
		metrics: observability.NewScoringMetrics(),
		audit:   &bytes.Buffer{},
		index:   similarity.NewMemoryIndex(),
	}
	tracker := progress.NewTracker(scoring.NewEngine(reg, nil), Instrument("memory", repo))
	f.svc = New(tracker, Options{
		Index:     f.index,
		Suggester: suggest.New(provider),
		Metrics:   f.metrics,
		Audit:     observability.NewAuditWriter(f.audit),
	})
	return f
}

func webTier(withCache bool) *diagram.Diagram {
	d := &diagram.Diagram{
		Type: diagram.DiagramSystem,
		Nodes: []diagram.Node{
			{ID: "lb", Type: "loadBalancer"},
			{ID: "s1", Type: "service"},
			{ID: "s2", Type: "service"},
			{ID: "db", Type: "database"},
		},
		Edges: []diagram.Edge{
			{Source: "lb", Target: "s1", Type: "sync"},
			{Source: "lb", Target: "s2", Type: "sync"},
			{Source: "s1", Target: "db", Type: "sync"},
			{Source: "s2", Target: "db", Type: "sync"},
		},
	}
	if withCache {
		d.Nodes = append(d.Nodes, diagram.Node{ID: "c", Type: "cache"})
		d.Edges = append(d.Edges, diagram.Edge{Source: "s1", Target: "c", Type: "sync"})
	}
	return d
}

func invalid() *diagram.Diagram {
	return &diagram.Diagram{
		Type:  diagram.DiagramSystem,
		Nodes: []diagram.Node{{ID: "s1", Type: "service"}},
		Edges: []diagram.Edge{{Source: "s1", Target: "ghost", Type: "sync"}},
	}
}

func TestScoreAndTrack(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), nil)
	ctx := context.Background()
	id := diagram.NewIdentity("sess", diagram.DiagramSystem)

	var (
		mu       sync.Mutex
		notified []*progress.Result
	)
	f.svc.Subscribe(func(r *progress.Result) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, r)
	})

	first, err := f.svc.ScoreAndTrack(ctx, id, webTier(false))
	require.NoError(t, err)
	assert.Equal(t, progress.TrendInsufficientHistory, first.TrendStatus)
	assert.NotEmpty(t, first.SnapshotID)

	second, err := f.svc.ScoreAndTrack(ctx, id, webTier(true))
	require.NoError(t, err)
	assert.Equal(t, progress.TrendAvailable, second.TrendStatus)
	require.NotNil(t, second.Progress)
	assert.Contains(t, second.Progress.NewPatterns, "caching")

	assert.Len(t, notified, 2)
	assert.Equal(t, float64(2), f.metrics.TracksTotal.Value())
	assert.Equal(t, float64(2), f.metrics.SnapshotsAppended.Value())
	assert.Equal(t, float64(second.Report.Total), f.metrics.LastTotal.Value())
	assert.Equal(t, 2, strings.Count(f.audit.String(), `"diagram.track"`))

	results, err := f.index.Search(ctx, f.svc.vectorizer.Vector(webTier(true), second.Report), 5)
	require.NoError(t, err)
	require.Len(t, results, 1, "identity is upserted, not duplicated")
	assert.Equal(t, id.String(), results[0].Identity)
}

func TestScoreAndTrackRejectsInvalidDiagram(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), nil)
	id := diagram.NewIdentity("sess", diagram.DiagramSystem)

	_, err := f.svc.ScoreAndTrack(context.Background(), id, invalid())
	var verr *diagram.ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, float64(1), f.metrics.ValidationErrors.Value())
	assert.Equal(t, float64(0), f.metrics.TracksTotal.Value())
	assert.Contains(t, f.audit.String(), `"diagram.rejected"`)

	snaps, err := f.svc.History(context.Background(), id, 5)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

type brokenStore struct{}

func (brokenStore) Append(context.Context, diagram.Identity, *snapshot.Snapshot) error {
	return snapshot.Unavailable("append", errors.New("disk full"))
}

func (brokenStore) ReadRecent(context.Context, diagram.Identity, int) ([]snapshot.Snapshot, error) {
	return nil, snapshot.Unavailable("read", errors.New("disk full"))
}

func (brokenStore) Close() error { return nil }

func TestScoreAndTrackDegradesOnStoreFailure(t *testing.T) {
	f := newFixture(t, brokenStore{}, nil)
	res, err := f.svc.ScoreAndTrack(context.Background(), diagram.NewIdentity("s", diagram.DiagramSystem), webTier(false))
	require.NoError(t, err)
	assert.Equal(t, progress.TrendUnavailable, res.TrendStatus)
	assert.Contains(t, res.TrendError, "disk full")
	assert.Equal(t, float64(1), f.metrics.TrendsUnavailable.Value())
	assert.Equal(t, float64(0), f.metrics.SnapshotsAppended.Value())
	assert.Contains(t, f.audit.String(), `"store.degraded"`)
}

func TestHistory(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), nil)
	ctx := context.Background()
	id := diagram.NewIdentity("sess", diagram.DiagramSystem)
	for i := 0; i < 3; i++ {
		_, err := f.svc.ScoreAndTrack(ctx, id, webTier(i == 2))
		require.NoError(t, err)
	}

	snaps, err := f.svc.History(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[1].HasPattern("caching"))

	_, err = f.svc.History(ctx, id, 0)
	assert.Error(t, err)
}

func TestScoreBatch(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), nil)
	items := []BatchItem{
		{Name: "a", Diagram: webTier(false)},
		{Name: "bad", Diagram: invalid()},
		{Name: "b", Diagram: webTier(true)},
	}
	results, err := f.svc.ScoreBatch(context.Background(), items, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].Name)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Report)
	assert.Equal(t, "b", results[2].Name)
	assert.True(t, results[2].Report.HasPattern("caching"))
}

func TestScoreBatchCancelled(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.ScoreBatch(ctx, []BatchItem{{Name: "a", Diagram: webTier(false)}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimilar(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), nil)
	ctx := context.Background()
	_, err := f.svc.ScoreAndTrack(ctx, diagram.NewIdentity("cached", diagram.DiagramSystem), webTier(true))
	require.NoError(t, err)
	_, err = f.svc.ScoreAndTrack(ctx, diagram.NewIdentity("plain", diagram.DiagramSystem), webTier(false))
	require.NoError(t, err)

	results, err := f.svc.Similar(ctx, webTier(true), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, diagram.NewIdentity("cached", diagram.DiagramSystem).String(), results[0].Identity)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)

	_, err = f.svc.Similar(ctx, webTier(true), 0)
	assert.Error(t, err)
}

func TestSimilarDisabled(t *testing.T) {
	reg, err := patterns.DefaultRegistry()
	require.NoError(t, err)
	svc := New(progress.NewTracker(scoring.NewEngine(reg, nil), snapshot.NewMemoryStore()), Options{Metrics: observability.NewScoringMetrics()})
	_, err = svc.Similar(context.Background(), webTier(false), 3)
	assert.ErrorIs(t, err, ErrSimilarityDisabled)
}

type stubProvider struct {
	content string
	err     error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(context.Context, *llm.Prompt, *llm.RequestOptions) (*llm.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, InputTokens: 10, OutputTokens: 5}, nil
}

func TestSuggest(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), &stubProvider{content: `["Add a CDN"]`})
	out, err := f.svc.Suggest(context.Background(), webTier(false), suggest.Context{Stage: "mvp"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Add a CDN"}, out.AISuggestions)
	assert.NotEmpty(t, out.ProposedChanges)
	assert.Equal(t, float64(1), f.metrics.SuggestionsTotal.Value())
	assert.Equal(t, float64(15), f.metrics.LLMTokensTotal.Value())
	assert.Contains(t, f.audit.String(), `"diagram.suggest"`)
}

func TestSuggestProviderFailure(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), &stubProvider{err: errors.New("quota exceeded")})
	out, err := f.svc.Suggest(context.Background(), webTier(false), suggest.Context{})
	require.NoError(t, err)
	assert.Contains(t, out.AIError, "quota exceeded")
	assert.Equal(t, float64(1), f.metrics.LLMErrorsTotal.Value())
	assert.Contains(t, f.audit.String(), `"llm.error"`)
}

func TestSuggestRejectsInvalidDiagram(t *testing.T) {
	f := newFixture(t, snapshot.NewMemoryStore(), nil)
	_, err := f.svc.Suggest(context.Background(), invalid(), suggest.Context{})
	var verr *diagram.ValidationError
	assert.ErrorAs(t, err, &verr)
}
