package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ErrTypeInvalidDiagram is the application error type for diagrams that fail
// validation. Such failures are never retried.
const ErrTypeInvalidDiagram = "InvalidDiagram"

// ScoreAndTrackInput holds the workflow parameters.
type ScoreAndTrackInput struct {
	SessionID   string
	DiagramType string
	DiagramJSON string

	// Suggest also runs the suggestion activity after scoring.
	Suggest       bool
	Stage         string
	ProblemDomain string
	Requirements  []string
}

// ScoreAndTrackOutput holds the workflow result.
type ScoreAndTrackOutput struct {
	Identity    string
	SnapshotID  string
	Total       int
	TrendStatus string
	ResultJSON  string

	SuggestionsJSON string
	Errors          []string
}

// ScoreAndTrackWorkflow scores a diagram, records its snapshot and
// optionally asks for suggestions. A failed suggestion step is reported in
// Errors and does not fail the workflow.
func ScoreAndTrackWorkflow(ctx workflow.Context, input ScoreAndTrackInput) (*ScoreAndTrackOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidDiagram},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var tracked TrackResult
	if err := workflow.ExecuteActivity(ctx, ScoreAndTrackActivity, input).Get(ctx, &tracked); err != nil {
		return nil, fmt.Errorf("score and track: %w", err)
	}

	output := &ScoreAndTrackOutput{
		Identity:    tracked.Identity,
		SnapshotID:  tracked.SnapshotID,
		Total:       tracked.Total,
		TrendStatus: tracked.TrendStatus,
		ResultJSON:  tracked.ResultJSON,
	}
	if !input.Suggest {
		return output, nil
	}

	suggestCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        2,
			NonRetryableErrorTypes: []string{ErrTypeInvalidDiagram},
		},
	})
	var suggested SuggestResult
	if err := workflow.ExecuteActivity(suggestCtx, SuggestActivity, input).Get(suggestCtx, &suggested); err != nil {
		output.Errors = append(output.Errors, fmt.Sprintf("suggest: %v", err))
		return output, nil
	}
	output.SuggestionsJSON = suggested.SuggestionsJSON
	if suggested.AIError != "" {
		output.Errors = append(output.Errors, "ai suggestions: "+suggested.AIError)
	}
	return output, nil
}
