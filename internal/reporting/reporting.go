// Package reporting is the single entry point collaborators call to score
// diagrams: it wraps the progress tracker with tracing, metrics, the audit
// trail, similarity indexing and change notifications.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/progress"
	"github.com/efebarandurmaz/archscore/internal/recommend"
	"github.com/efebarandurmaz/archscore/internal/scoring"
	"github.com/efebarandurmaz/archscore/internal/similarity"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
	"github.com/efebarandurmaz/archscore/internal/suggest"
)

// ErrSimilarityDisabled is returned by Similar when no index is configured.
var ErrSimilarityDisabled = errors.New("similarity index not configured")

// Listener is notified after every successful tracked call.
type Listener func(*progress.Result)

// Options carries the optional collaborators of a Service.
type Options struct {
	Index     similarity.Index
	Suggester *suggest.Suggester
	Metrics   *observability.ScoringMetrics
	Audit     *observability.AuditLogger
}

// Service scores and tracks diagrams.
type Service struct {
	tracker    *progress.Tracker
	vectorizer *similarity.Vectorizer
	index      similarity.Index
	suggester  *suggest.Suggester
	metrics    *observability.ScoringMetrics
	audit      *observability.AuditLogger

	mu        sync.RWMutex
	listeners []Listener
}

// New creates a Service around a tracker.
func New(tracker *progress.Tracker, opts Options) *Service {
	s := &Service{
		tracker:    tracker,
		vectorizer: similarity.NewVectorizer(tracker.Engine().Registry().IDs()),
		index:      opts.Index,
		suggester:  opts.Suggester,
		metrics:    opts.Metrics,
		audit:      opts.Audit,
	}
	if s.suggester == nil {
		s.suggester = suggest.New(nil)
	}
	if s.metrics == nil {
		s.metrics = observability.Metrics()
	}
	return s
}

// Engine returns the scoring engine behind the service.
func (s *Service) Engine() *scoring.Engine { return s.tracker.Engine() }

// Subscribe registers a listener for tracked results.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) notify(res *progress.Result) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(res)
	}
}

// Score scores a diagram without touching history.
func (s *Service) Score(ctx context.Context, d *diagram.Diagram) (*scoring.Report, error) {
	if d == nil {
		return nil, fmt.Errorf("score: diagram is required")
	}
	_, span := observability.StartScoreSpan(ctx, len(d.Nodes), len(d.Edges))
	defer span.End()

	start := time.Now()
	report, err := s.Engine().Score(d)
	s.metrics.RecordScore(time.Since(start), totalOf(report), err)
	if err != nil {
		observability.RecordError(span, err)
		s.audit.LogRejected("", err)
		return nil, err
	}
	observability.RecordScoreResult(span, report.Total, len(report.Patterns), len(report.CriticalIssues))
	s.audit.LogScore(report.Fingerprint, report.Total, time.Since(start))
	return report, nil
}

// ScoreAndTrack scores d, records a snapshot for id and returns the report
// with progress, trends and merged recommendations. Validation errors are
// returned; snapshot store failures only degrade the trend status.
func (s *Service) ScoreAndTrack(ctx context.Context, id diagram.Identity, d *diagram.Diagram) (*progress.Result, error) {
	ctx, span := observability.StartTrackSpan(ctx, id.String())
	defer span.End()

	start := time.Now()
	res, err := s.tracker.TrackProgress(ctx, id, d)
	if err != nil {
		s.metrics.RecordScore(time.Since(start), 0, err)
		observability.RecordError(span, err)
		s.audit.LogRejected(id.String(), err)
		return nil, err
	}
	s.metrics.RecordScore(time.Since(start), res.Report.Total, nil)
	s.metrics.RecordTrack(res.SnapshotID != "", res.TrendStatus != progress.TrendUnavailable, countTrend(res.Recommendations))

	delta := 0
	if res.Progress != nil {
		delta = res.Progress.ScoreDelta
	}
	observability.RecordScoreResult(span, res.Report.Total, len(res.Report.Patterns), len(res.Report.CriticalIssues))
	observability.RecordTrackResult(span, string(res.TrendStatus), delta)

	s.audit.LogTrack(res.Identity, res.Report.Fingerprint, res.SnapshotID, res.Report.Total, string(res.TrendStatus))
	if res.TrendStatus == progress.TrendUnavailable {
		s.audit.LogStoreDegraded(res.Identity, res.TrendError)
	}

	s.indexDesign(ctx, res.Identity, d, res.Report)
	s.notify(res)
	return res, nil
}

func (s *Service) indexDesign(ctx context.Context, identity string, d *diagram.Diagram, r *scoring.Report) {
	if s.index == nil {
		return
	}
	entry := similarity.Entry{
		Identity:    identity,
		Fingerprint: r.Fingerprint,
		Total:       r.Total,
		Vector:      s.vectorizer.Vector(d, r),
	}
	if err := s.index.Upsert(ctx, []similarity.Entry{entry}); err != nil {
		slog.Warn("similarity index upsert failed", "identity", identity, "error", err)
	}
}

// History returns up to n recent snapshots for id, oldest first.
func (s *Service) History(ctx context.Context, id diagram.Identity, n int) ([]snapshot.Snapshot, error) {
	return s.tracker.History(ctx, id, n)
}

// Similar returns the k indexed designs closest to d.
func (s *Service) Similar(ctx context.Context, d *diagram.Diagram, k int) ([]similarity.Result, error) {
	if s.index == nil {
		return nil, ErrSimilarityDisabled
	}
	if k <= 0 {
		return nil, fmt.Errorf("similar: k must be positive, got %d", k)
	}
	report, err := s.Score(ctx, d)
	if err != nil {
		return nil, err
	}
	results, err := s.index.Search(ctx, s.vectorizer.Vector(d, report), k)
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}
	return results, nil
}

// Suggest scores d and builds suggestions for it.
func (s *Service) Suggest(ctx context.Context, d *diagram.Diagram, sc suggest.Context) (*suggest.Suggestions, error) {
	report, err := s.Score(ctx, d)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSuggestSpan(ctx, s.suggester.Enabled())
	defer span.End()

	out, err := s.suggester.Suggest(ctx, suggest.Input{Diagram: d, Report: report, Context: sc})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	s.metrics.SuggestionsTotal.Inc()
	if s.suggester.Enabled() {
		var aiErr error
		if out.AIError != "" {
			aiErr = errors.New(out.AIError)
			s.audit.LogLLMError(s.suggester.ProviderName(), out.AIError)
		}
		s.metrics.RecordLLMRequest(out.TokensUsed, aiErr)
	}
	s.audit.LogSuggest(report.Fingerprint, len(out.ImmediateActions), len(out.ProposedChanges), len(out.AISuggestions))
	return out, nil
}

// BatchItem is one named diagram in a batch.
type BatchItem struct {
	Name    string
	Diagram *diagram.Diagram
}

// BatchResult is the outcome for one BatchItem. Err holds a per-item
// failure such as a validation error.
type BatchResult struct {
	Name   string
	Report *scoring.Report
	Err    error
}

// ScoreBatch scores items concurrently, at most parallelism at a time.
// Results keep the order of items. Per-item failures do not stop the batch.
func (s *Service) ScoreBatch(ctx context.Context, items []BatchItem, parallelism int) ([]BatchResult, error) {
	results := make([]BatchResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := s.Score(gctx, item.Diagram)
			results[i] = BatchResult{Name: item.Name, Report: report, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func totalOf(r *scoring.Report) int {
	if r == nil {
		return 0
	}
	return r.Total
}

func countTrend(recs []recommend.Recommendation) int {
	n := 0
	for _, r := range recs {
		if r.Type == recommend.TypeTrend {
			n++
		}
	}
	return n
}
