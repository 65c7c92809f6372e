package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/reporting"
	"github.com/efebarandurmaz/archscore/internal/suggest"
)

// TrackResult is the serializable result of ScoreAndTrackActivity.
type TrackResult struct {
	Identity    string
	SnapshotID  string
	Total       int
	TrendStatus string
	ResultJSON  string
}

// SuggestResult is the serializable result of SuggestActivity.
type SuggestResult struct {
	SuggestionsJSON string
	AIError         string
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Service *reporting.Service
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

func service() (*reporting.Service, error) {
	if deps == nil || deps.Service == nil {
		return nil, errors.New("temporal activities: dependencies not set")
	}
	return deps.Service, nil
}

// decodeInput parses the diagram payload. Decode and validation failures
// are non-retryable.
func decodeInput(input ScoreAndTrackInput) (*diagram.Diagram, diagram.Identity, error) {
	id := diagram.NewIdentity(input.SessionID, diagram.DiagramType(input.DiagramType))
	d, err := diagram.Decode([]byte(input.DiagramJSON), diagram.FormatJSON)
	if err != nil {
		return nil, id, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidDiagram, err)
	}
	if input.DiagramType != "" {
		d.Type = id.DiagramType
	} else {
		id.DiagramType = d.Type
	}
	return d, id, nil
}

func classify(err error) error {
	var (
		verr *diagram.ValidationError
		uerr *diagram.UnsupportedDiagramTypeError
	)
	if errors.As(err, &verr) || errors.As(err, &uerr) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidDiagram, err)
	}
	return err
}

// ScoreAndTrackActivity scores the diagram and appends its snapshot.
func ScoreAndTrackActivity(ctx context.Context, input ScoreAndTrackInput) (TrackResult, error) {
	svc, err := service()
	if err != nil {
		return TrackResult{}, err
	}
	d, id, err := decodeInput(input)
	if err != nil {
		return TrackResult{}, err
	}

	res, err := svc.ScoreAndTrack(ctx, id, d)
	if err != nil {
		return TrackResult{}, classify(err)
	}

	out, err := json.Marshal(res)
	if err != nil {
		return TrackResult{}, fmt.Errorf("marshal result: %w", err)
	}
	return TrackResult{
		Identity:    res.Identity,
		SnapshotID:  res.SnapshotID,
		Total:       res.Report.Total,
		TrendStatus: string(res.TrendStatus),
		ResultJSON:  string(out),
	}, nil
}

// SuggestActivity builds suggestions for the diagram.
func SuggestActivity(ctx context.Context, input ScoreAndTrackInput) (SuggestResult, error) {
	svc, err := service()
	if err != nil {
		return SuggestResult{}, err
	}
	d, _, err := decodeInput(input)
	if err != nil {
		return SuggestResult{}, err
	}

	out, err := svc.Suggest(ctx, d, suggest.Context{
		Stage:         input.Stage,
		ProblemDomain: input.ProblemDomain,
		Requirements:  input.Requirements,
	})
	if err != nil {
		return SuggestResult{}, classify(err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return SuggestResult{}, fmt.Errorf("marshal suggestions: %w", err)
	}
	return SuggestResult{SuggestionsJSON: string(data), AIError: out.AIError}, nil
}
