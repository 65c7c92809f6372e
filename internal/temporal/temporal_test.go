package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/patterns"
	"github.com/efebarandurmaz/archscore/internal/progress"
	"github.com/efebarandurmaz/archscore/internal/reporting"
	"github.com/efebarandurmaz/archscore/internal/scoring"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
	"github.com/efebarandurmaz/archscore/internal/suggest"
)

const cachedTier = `{
  "nodes": [
    {"id": "s1", "type": "service"},
    {"id": "c1", "type": "cache"},
    {"id": "db", "type": "database"}
  ],
  "edges": [
    {"source": "s1", "target": "c1", "type": "sync"},
    {"source": "s1", "target": "db", "type": "sync"}
  ]
}`

func setupDeps(t *testing.T) *reporting.Service {
	t.Helper()
	reg, err := patterns.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	tracker := progress.NewTracker(scoring.NewEngine(reg, nil), snapshot.NewMemoryStore())
	svc := reporting.New(tracker, reporting.Options{Metrics: observability.NewScoringMetrics()})
	SetDependencies(&Dependencies{Service: svc})
	return svc
}

func newEnv() *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ScoreAndTrackWorkflow)
	env.RegisterActivity(ScoreAndTrackActivity)
	env.RegisterActivity(SuggestActivity)
	return env
}

func TestScoreAndTrackWorkflow(t *testing.T) {
	setupDeps(t)
	env := newEnv()

	env.ExecuteWorkflow(ScoreAndTrackWorkflow, ScoreAndTrackInput{
		SessionID:   "wf",
		DiagramType: "system",
		DiagramJSON: cachedTier,
	})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var out ScoreAndTrackOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("result: %v", err)
	}
	if out.Identity != "wf/system" {
		t.Errorf("identity = %q", out.Identity)
	}
	if out.SnapshotID == "" || out.Total <= 0 {
		t.Errorf("unexpected output %+v", out)
	}
	if out.TrendStatus != string(progress.TrendInsufficientHistory) {
		t.Errorf("trend status = %q", out.TrendStatus)
	}
	if out.SuggestionsJSON != "" {
		t.Error("suggestions should be skipped when not requested")
	}

	var res progress.Result
	if err := json.Unmarshal([]byte(out.ResultJSON), &res); err != nil {
		t.Fatalf("result json: %v", err)
	}
	if !res.Report.HasPattern("caching") {
		t.Errorf("expected caching pattern, got %v", res.Report.PatternIDs())
	}
}

func TestScoreAndTrackWorkflow_WithSuggestions(t *testing.T) {
	setupDeps(t)
	env := newEnv()

	env.ExecuteWorkflow(ScoreAndTrackWorkflow, ScoreAndTrackInput{
		SessionID:   "wf",
		DiagramType: "system",
		DiagramJSON: cachedTier,
		Suggest:     true,
		Stage:       "growth",
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var out ScoreAndTrackOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	var s suggest.Suggestions
	if err := json.Unmarshal([]byte(out.SuggestionsJSON), &s); err != nil {
		t.Fatalf("suggestions json: %v", err)
	}
	if len(s.ImmediateActions) == 0 {
		t.Error("expected immediate actions for a diagram without a load balancer")
	}
	if len(out.Errors) != 0 {
		t.Errorf("unexpected errors %v", out.Errors)
	}
}

func TestScoreAndTrackWorkflow_InvalidDiagramNotRetried(t *testing.T) {
	setupDeps(t)
	env := newEnv()

	env.ExecuteWorkflow(ScoreAndTrackWorkflow, ScoreAndTrackInput{
		SessionID:   "wf",
		DiagramType: "system",
		DiagramJSON: `{"nodes": [{"id": "a"}], "edges": [{"source": "a", "target": "missing"}]}`,
	})

	err := env.GetWorkflowError()
	if err == nil {
		t.Fatal("expected workflow error")
	}
	// The workflow wraps the activity failure; the classification lives on
	// the application error under the ActivityError.
	var actErr *temporal.ActivityError
	if !errors.As(err, &actErr) {
		t.Fatalf("expected activity error, got %T: %v", err, err)
	}
	var appErr *temporal.ApplicationError
	if !errors.As(actErr.Unwrap(), &appErr) {
		t.Fatalf("expected application error under the activity error, got %v", actErr.Unwrap())
	}
	if appErr.Type() != ErrTypeInvalidDiagram || !appErr.NonRetryable() {
		t.Errorf("type = %q nonRetryable = %v", appErr.Type(), appErr.NonRetryable())
	}
}

func TestScoreAndTrackWorkflow_SuggestFailureIsReported(t *testing.T) {
	setupDeps(t)
	env := newEnv()
	env.OnActivity(SuggestActivity, mock.Anything, mock.Anything).Return(SuggestResult{}, errors.New("provider down"))

	env.ExecuteWorkflow(ScoreAndTrackWorkflow, ScoreAndTrackInput{
		SessionID:   "wf",
		DiagramType: "system",
		DiagramJSON: cachedTier,
		Suggest:     true,
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("suggest failure must not fail the workflow: %v", err)
	}
	var out ScoreAndTrackOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Errors) != 1 {
		t.Errorf("errors = %v", out.Errors)
	}
}

func TestActivitiesWithoutDependencies(t *testing.T) {
	SetDependencies(nil)
	if _, err := ScoreAndTrackActivity(context.Background(), ScoreAndTrackInput{DiagramJSON: cachedTier}); err == nil {
		t.Error("expected error without dependencies")
	}
}

func TestScoreAndTrackActivity_TypeFromPayload(t *testing.T) {
	setupDeps(t)
	res, err := ScoreAndTrackActivity(context.Background(), ScoreAndTrackInput{
		SessionID:   "direct",
		DiagramJSON: cachedTier,
	})
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if res.Identity != "direct/system" {
		t.Errorf("identity = %q", res.Identity)
	}
}
