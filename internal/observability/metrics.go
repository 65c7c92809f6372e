package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics and renders them in the
// Prometheus text format.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter creates and registers a counter.
func (r *MetricsRegistry) NewCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *MetricsRegistry) NewGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	return g
}

// NewHistogram creates and registers a histogram. Nil buckets use
// LatencyBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if buckets == nil {
		buckets = LatencyBuckets()
	}
	h := &Histogram{name: name, help: help, buckets: buckets, counts: make([]uint64, len(buckets))}
	r.histos[name] = h
	return h
}

// LatencyBuckets returns histogram buckets in seconds.
func LatencyBuckets() []float64 {
	return []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
}

// ScoreBuckets returns buckets for the 0..100 total score.
func ScoreBuckets() []float64 {
	return []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() { g.Add(1) }
func (g *Gauge) Dec() { g.Add(-1) }

func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records the seconds elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler serves the registry in Prometheus text format.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WritePrometheus writes every metric, sorted by name within each kind.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, k := range sortedKeys(r.counters) {
		c := r.counters[k]
		writeHeader(w, c.name, "counter", c.help)
		fmt.Fprintf(w, "%s %s\n", c.name, formatFloat(c.Value()))
	}
	for _, k := range sortedKeys(r.gauges) {
		g := r.gauges[k]
		writeHeader(w, g.name, "gauge", g.help)
		fmt.Fprintf(w, "%s %s\n", g.name, formatFloat(g.Value()))
	}
	for _, k := range sortedKeys(r.histos) {
		writeHistogram(w, r.histos[k])
	}
}

func writeHeader(w io.Writer, name, kind, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func writeHistogram(w io.Writer, h *Histogram) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeHeader(w, h.name, "histogram", h.help)
	for i, bound := range h.buckets {
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, formatFloat(bound), h.counts[i])
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(w, "%s_sum %s\n", h.name, formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ScoringMetrics are the archscore application metrics.
type ScoringMetrics struct {
	Registry *MetricsRegistry

	ScoresTotal       *Counter
	ValidationErrors  *Counter
	ScoreDuration     *Histogram
	ScoreDistribution *Histogram
	LastTotal         *Gauge

	TracksTotal       *Counter
	TrendsUnavailable *Counter
	SnapshotsAppended *Counter
	DecliningTrends   *Counter

	SuggestionsTotal *Counter
	LLMRequestsTotal *Counter
	LLMErrorsTotal   *Counter
	LLMTokensTotal   *Counter

	LiveConnections *Gauge
}

// NewScoringMetrics creates the application metrics on a fresh registry.
func NewScoringMetrics() *ScoringMetrics {
	r := NewMetricsRegistry()
	return &ScoringMetrics{
		Registry: r,

		ScoresTotal:       r.NewCounter("archscore_scores_total", "Diagrams scored"),
		ValidationErrors:  r.NewCounter("archscore_validation_errors_total", "Diagrams rejected by validation"),
		ScoreDuration:     r.NewHistogram("archscore_score_duration_seconds", "Scoring duration", nil),
		ScoreDistribution: r.NewHistogram("archscore_score_total", "Distribution of total scores", ScoreBuckets()),
		LastTotal:         r.NewGauge("archscore_last_total", "Total score of the most recent diagram"),

		TracksTotal:       r.NewCounter("archscore_tracks_total", "Tracked scoring calls"),
		TrendsUnavailable: r.NewCounter("archscore_trends_unavailable_total", "Tracked calls with the snapshot store unavailable"),
		SnapshotsAppended: r.NewCounter("archscore_snapshots_appended_total", "Snapshots appended"),
		DecliningTrends:   r.NewCounter("archscore_declining_trends_total", "Trend recommendations emitted"),

		SuggestionsTotal: r.NewCounter("archscore_suggestions_total", "Suggestion requests"),
		LLMRequestsTotal: r.NewCounter("archscore_llm_requests_total", "LLM completion requests"),
		LLMErrorsTotal:   r.NewCounter("archscore_llm_errors_total", "Failed LLM completion requests"),
		LLMTokensTotal:   r.NewCounter("archscore_llm_tokens_total", "LLM tokens used"),

		LiveConnections: r.NewGauge("archscore_live_connections", "Open live-scoring websocket connections"),
	}
}

// Handler returns the metrics endpoint handler.
func (m *ScoringMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordScore records one scoring call. total is ignored when err is set.
func (m *ScoringMetrics) RecordScore(duration time.Duration, total int, err error) {
	m.ScoresTotal.Inc()
	m.ScoreDuration.Observe(duration.Seconds())
	if err != nil {
		m.ValidationErrors.Inc()
		return
	}
	m.ScoreDistribution.Observe(float64(total))
	m.LastTotal.Set(float64(total))
}

// RecordTrack records the outcome of a tracked call.
func (m *ScoringMetrics) RecordTrack(appended, storeAvailable bool, trendRecs int) {
	m.TracksTotal.Inc()
	if appended {
		m.SnapshotsAppended.Inc()
	}
	if !storeAvailable {
		m.TrendsUnavailable.Inc()
	}
	m.DecliningTrends.Add(float64(trendRecs))
}

// RecordLLMRequest records an LLM call.
func (m *ScoringMetrics) RecordLLMRequest(tokens int, err error) {
	m.LLMRequestsTotal.Inc()
	m.LLMTokensTotal.Add(float64(tokens))
	if err != nil {
		m.LLMErrorsTotal.Inc()
	}
}

var (
	globalMetrics *ScoringMetrics
	metricsOnce   sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *ScoringMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewScoringMetrics()
	})
	return globalMetrics
}
