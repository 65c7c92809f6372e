// Package observability provides tracing, metrics, audit logging and log
// setup for archscore.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for archscore spans.
const TracerName = "github.com/efebarandurmaz/archscore"

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g. "localhost:4317").
	// If empty, tracing is disabled.
	OTLPEndpoint string

	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "archscore",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes and stops the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Span kinds recorded on every archscore span.
const (
	SpanKindScore   = "score"
	SpanKindTrack   = "track"
	SpanKindStore   = "store"
	SpanKindLLM     = "llm"
	SpanKindSuggest = "suggest"
)

func start(ctx context.Context, name, kind string, sk trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("archscore.span.kind", kind))
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithSpanKind(sk), trace.WithAttributes(attrs...))
}

// StartScoreSpan starts a span around scoring one diagram.
func StartScoreSpan(ctx context.Context, nodes, edges int) (context.Context, trace.Span) {
	return start(ctx, "archscore.score", SpanKindScore, trace.SpanKindInternal,
		attribute.Int("diagram.nodes", nodes),
		attribute.Int("diagram.edges", edges),
	)
}

// RecordScoreResult records the headline numbers of a score on a span.
func RecordScoreResult(span trace.Span, total, patterns, issues int) {
	span.SetAttributes(
		attribute.Int("score.total", total),
		attribute.Int("score.patterns", patterns),
		attribute.Int("score.critical_issues", issues),
	)
}

// StartTrackSpan starts a span around a tracked scoring call.
func StartTrackSpan(ctx context.Context, identity string) (context.Context, trace.Span) {
	return start(ctx, "archscore.track", SpanKindTrack, trace.SpanKindInternal,
		attribute.String("diagram.identity", identity),
	)
}

// RecordTrackResult records the trend status of a tracked call.
func RecordTrackResult(span trace.Span, trendStatus string, scoreDelta int) {
	span.SetAttributes(
		attribute.String("track.trend_status", trendStatus),
		attribute.Int("track.score_delta", scoreDelta),
	)
}

// StartStoreSpan starts a span for a snapshot store call.
func StartStoreSpan(ctx context.Context, backend, op string) (context.Context, trace.Span) {
	return start(ctx, "archscore.store."+op, SpanKindStore, trace.SpanKindClient,
		attribute.String("store.backend", backend),
	)
}

// StartLLMSpan starts a span for an LLM call.
func StartLLMSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	return start(ctx, "archscore.llm.complete", SpanKindLLM, trace.SpanKindClient,
		attribute.String("llm.provider", provider),
	)
}

// StartSuggestSpan starts a span around building suggestions.
func StartSuggestSpan(ctx context.Context, aiEnabled bool) (context.Context, trace.Span) {
	return start(ctx, "archscore.suggest", SpanKindSuggest, trace.SpanKindInternal,
		attribute.Bool("suggest.ai_enabled", aiEnabled),
	)
}

// RecordLLMTokens records token usage on a span.
func RecordLLMTokens(span trace.Span, inputTokens, outputTokens int) {
	span.SetAttributes(
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
