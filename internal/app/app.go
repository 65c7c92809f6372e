// Package app assembles the archscore object graph from configuration. The
// CLI, the HTTP server and the Temporal worker all start from Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/efebarandurmaz/archscore/internal/config"
	"github.com/efebarandurmaz/archscore/internal/llm"
	"github.com/efebarandurmaz/archscore/internal/llmutil"
	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/patterns"
	"github.com/efebarandurmaz/archscore/internal/progress"
	"github.com/efebarandurmaz/archscore/internal/recommend"
	"github.com/efebarandurmaz/archscore/internal/reporting"
	"github.com/efebarandurmaz/archscore/internal/scoring"
	"github.com/efebarandurmaz/archscore/internal/secrets"
	"github.com/efebarandurmaz/archscore/internal/server"
	"github.com/efebarandurmaz/archscore/internal/similarity"
	"github.com/efebarandurmaz/archscore/internal/similarity/qdrant"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
	"github.com/efebarandurmaz/archscore/internal/snapshot/neo4j"
	"github.com/efebarandurmaz/archscore/internal/snapshot/sqlite"
	"github.com/efebarandurmaz/archscore/internal/suggest"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Registry *patterns.Registry
	Engine   *scoring.Engine
	Store    snapshot.Repository
	Tracker  *progress.Tracker
	Index    similarity.Index
	Provider llm.Provider
	Service  *reporting.Service
	Metrics  *observability.ScoringMetrics
	Audit    *observability.AuditLogger
	Tracing  *observability.TracerProvider
	Health   *server.HealthServer

	closers []func(context.Context) error
}

// Build wires every component from cfg. Secrets fill credentials the
// config leaves empty.
func Build(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{Config: cfg, Metrics: observability.Metrics(), Health: server.NewHealthServer(version)}

	sm, err := secrets.NewManager(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	sm.Resolve(ctx, cfg)

	a.Tracing, err = observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, a.Tracing.Shutdown)

	a.Audit, err = observability.NewAuditLogger(observability.AuditConfig{
		Enabled:    cfg.Audit.Enabled,
		OutputPath: cfg.Audit.OutputPath,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("audit: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Audit.Close() })

	if a.Registry, err = LoadRegistry(cfg.Scoring.RegistryPath); err != nil {
		a.Close(ctx)
		return nil, err
	}
	opts, err := EngineOptions(cfg.Scoring)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Engine = scoring.NewEngine(a.Registry, opts)

	store, ping, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Store = reporting.Instrument(storeBackend(cfg.Store), store)
	a.closers = append(a.closers, func(context.Context) error { return a.Store.Close() })
	if ping != nil {
		a.Health.RegisterCheck("snapshot_store", server.SnapshotStoreHealthChecker(storeBackend(cfg.Store), ping))
	}
	a.Tracker = progress.NewTracker(a.Engine, a.Store, progress.WithWindow(cfg.Scoring.TrendWindow))

	a.Index = openIndex(ctx, cfg.Vector, similarity.NewVectorizer(a.Registry.IDs()).Dim())
	if a.Index != nil {
		a.closers = append(a.closers, func(context.Context) error { return a.Index.Close() })
	}

	if a.Provider, err = NewProvider(cfg.LLM); err != nil {
		a.Close(ctx)
		return nil, err
	}
	providerName := ""
	if a.Provider != nil {
		providerName = a.Provider.Name()
	}
	a.Health.RegisterCheck("llm", server.LLMHealthChecker(providerName))

	a.Service = reporting.New(a.Tracker, reporting.Options{
		Index:     a.Index,
		Suggester: suggest.New(a.Provider),
		Metrics:   a.Metrics,
		Audit:     a.Audit,
	})
	return a, nil
}

// Close releases components in reverse build order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LoadRegistry returns the embedded default registry, or the one at path.
func LoadRegistry(path string) (*patterns.Registry, error) {
	if path == "" {
		reg, err := patterns.DefaultRegistry()
		if err != nil {
			return nil, fmt.Errorf("default pattern registry: %w", err)
		}
		return reg, nil
	}
	reg, err := patterns.LoadRegistryFile(path)
	if err != nil {
		return nil, fmt.Errorf("pattern registry %s: %w", path, err)
	}
	return reg, nil
}

// EngineOptions converts the scoring section into engine options. Zero
// values keep engine defaults.
func EngineOptions(sc config.ScoringConfig) (*scoring.Options, error) {
	opts := &scoring.Options{StrictDiagramType: sc.StrictDiagramType}

	if w := sc.Weights; w != nil {
		weights := scoring.Weights{
			Patterns:       w.Patterns,
			Complexity:     w.Complexity,
			BestPractices:  w.BestPractices,
			CriticalIssues: w.CriticalIssues,
		}
		if err := weights.Validate(); err != nil {
			return nil, fmt.Errorf("scoring weights: %w", err)
		}
		opts.Weights = &weights
	}

	if len(sc.CategoryWeights) > 0 {
		cw := make(scoring.CategoryWeights, len(sc.CategoryWeights))
		for name, v := range sc.CategoryWeights {
			cat := patterns.Category(name)
			if !slices.Contains(patterns.Categories, cat) {
				return nil, fmt.Errorf("scoring category weight: unknown category %q", name)
			}
			cw[cat] = v
		}
		opts.CategoryWeights = cw
	}

	if r := sc.Ranges; r != nil {
		ranges := scoring.DefaultRanges()
		ranges.Nodes = rangeOr(r.Nodes, ranges.Nodes)
		ranges.Edges = rangeOr(r.Edges, ranges.Edges)
		ranges.Depth = rangeOr(r.Depth, ranges.Depth)
		opts.Ranges = &ranges
	}

	rc := recommend.DefaultConfig()
	if sc.RecommendationThreshold > 0 {
		rc.Threshold = sc.RecommendationThreshold
	}
	if sc.DensityThreshold > 0 {
		rc.DensityThreshold = sc.DensityThreshold
	}
	opts.Recommend = &rc
	return opts, nil
}

func rangeOr(rc config.RangeConfig, def scoring.Range) scoring.Range {
	if rc.Min == 0 && rc.Max == 0 {
		return def
	}
	return scoring.Range{Min: rc.Min, Max: rc.Max}
}

func storeBackend(sc config.StoreConfig) string {
	switch sc.Backend {
	case "file", "sqlite", "neo4j":
		return sc.Backend
	default:
		return "memory"
	}
}

// OpenStore opens the configured snapshot backend. ping is nil for
// backends without a connection to check.
func OpenStore(ctx context.Context, sc config.StoreConfig) (snapshot.Repository, func(context.Context) error, error) {
	switch storeBackend(sc) {
	case "file":
		fs, err := snapshot.NewFileStore(sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		return fs, nil, nil
	case "sqlite":
		st, err := sqlite.Open(sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		return st, st.Ping, nil
	case "neo4j":
		st, err := neo4j.New(ctx, sc.URI, sc.Username, sc.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("neo4j store: %w", err)
		}
		return st, st.Ping, nil
	default:
		return snapshot.NewMemoryStore(), nil, nil
	}
}

// openIndex connects to Qdrant when enabled. Failures leave similarity
// search disabled.
func openIndex(ctx context.Context, vc config.VectorConfig, dim int) similarity.Index {
	if !vc.Enabled {
		return nil
	}
	idx, err := qdrant.New(ctx, vc.Host, vc.Port, vc.Collection, dim)
	if err != nil {
		slog.Warn("similarity index unavailable", "host", vc.Host, "error", err)
		return nil
	}
	return idx
}

// NewProvider builds the LLM provider for suggestions. A nil provider
// means AI suggestions are off.
func NewProvider(lc config.LLMConfig) (llm.Provider, error) {
	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)

	provider, err := factory.Create(ProviderConfig(lc))
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	return provider, nil
}

// ProviderConfig converts the llm section into a factory config.
func ProviderConfig(lc config.LLMConfig) llm.ProviderConfig {
	pc := llm.DefaultProviderConfig()
	if lc.Provider != "" {
		pc.Provider = lc.Provider
	}
	pc.APIKey = lc.APIKey
	pc.Model = lc.Model
	pc.BaseURL = lc.BaseURL
	if lc.Timeout > 0 {
		pc.Timeout = lc.Timeout
	}
	if lc.MaxRetries > 0 {
		pc.MaxRetries = lc.MaxRetries
	}
	if lc.RequestsPerMinute > 0 {
		pc.RequestsPerMinute = lc.RequestsPerMinute
	}
	return pc
}
