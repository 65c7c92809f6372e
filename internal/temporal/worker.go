package temporal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/efebarandurmaz/archscore/internal/observability"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(ScoreAndTrackWorkflow)
	w.RegisterActivity(ScoreAndTrackActivity)
	w.RegisterActivity(SuggestActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// Run executes ScoreAndTrackWorkflow and waits for its result. Workflow
// start and end are written to the audit log.
func Run(ctx context.Context, c client.Client, taskQueue string, input ScoreAndTrackInput, audit *observability.AuditLogger) (*ScoreAndTrackOutput, error) {
	identity := input.SessionID + "/" + input.DiagramType
	opts := client.StartWorkflowOptions{
		ID:        "archscore-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}

	run, err := c.ExecuteWorkflow(ctx, opts, ScoreAndTrackWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("start workflow: %w", err)
	}
	audit.LogWorkflowStart(run.GetID(), identity)

	var out ScoreAndTrackOutput
	if err := run.Get(ctx, &out); err != nil {
		audit.LogWorkflowEnd(run.GetID(), identity, false, 0)
		return nil, fmt.Errorf("workflow %s: %w", run.GetID(), err)
	}
	audit.LogWorkflowEnd(run.GetID(), identity, true, out.Total)
	return &out, nil
}
