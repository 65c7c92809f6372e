package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInitTracingWithoutEndpointIsNoop(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ctx, span := StartScoreSpan(context.Background(), 3, 2)
	RecordScoreResult(span, 42, 1, 0)
	RecordError(span, errors.New("x"))
	span.End()
	if ctx == nil {
		t.Fatal("nil context")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSampler(t *testing.T) {
	if s := sampler(1).Description(); s != "AlwaysOnSampler" {
		t.Errorf("rate 1: %s", s)
	}
	if s := sampler(0).Description(); s != "AlwaysOffSampler" {
		t.Errorf("rate 0: %s", s)
	}
}

func TestMetricsExposition(t *testing.T) {
	m := NewScoringMetrics()
	m.RecordScore(2*time.Millisecond, 55, nil)
	m.RecordScore(time.Millisecond, 0, errors.New("invalid"))
	m.RecordTrack(true, false, 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"archscore_scores_total 2",
		"archscore_validation_errors_total 1",
		"archscore_last_total 55",
		`archscore_score_total_bucket{le="60"} 1`,
		`archscore_score_total_bucket{le="50"} 0`,
		"archscore_score_total_count 1",
		"archscore_trends_unavailable_total 1",
		"archscore_declining_trends_total 2",
		"# TYPE archscore_score_duration_seconds histogram",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %s", ct)
	}
}

func TestAuditLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewAuditWriter(&buf)
	l.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	l.LogTrack("s1/system", "abc", "snap-1", 64, "available")
	l.LogRejected("s1/system", errors.New("edge e1 references unknown node"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.EventType != AuditEventTrack || ev.Identity != "s1/system" || !ev.Success {
		t.Errorf("event = %+v", ev)
	}
	if ev.Details["trend_status"] != "available" {
		t.Errorf("details = %v", ev.Details)
	}
	if !ev.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", ev.Timestamp)
	}
}

func TestDisabledAuditLoggerDropsEvents(t *testing.T) {
	l, err := NewAuditLogger(AuditConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	if err := l.Log(&AuditEvent{EventType: AuditEventScore}); err != nil {
		t.Errorf("Log: %v", err)
	}
	var nilLogger *AuditLogger
	nilLogger.LogScore("x", 1, 0)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("output = %s", buf.String())
	}

	if _, err := NewLogger(&buf, "loud", "json"); err == nil {
		t.Error("expected level error")
	}
	if _, err := NewLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected format error")
	}
}
