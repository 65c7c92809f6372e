package api

import (
	"time"

	"github.com/efebarandurmaz/archscore/internal/progress"
)

// Event types published on /api/events.
const (
	EventConnected    = "connected"
	EventScoreTracked = "score.tracked"
)

// Event is a real-time notification.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Identity  string    `json:"identity,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// TrackedSummary is the payload of a score.tracked event.
type TrackedSummary struct {
	SnapshotID      string               `json:"snapshotId,omitempty"`
	Total           int                  `json:"total"`
	ScoreDelta      *int                 `json:"scoreDelta,omitempty"`
	TrendStatus     progress.TrendStatus `json:"trendStatus"`
	NewPatterns     []string             `json:"newPatterns,omitempty"`
	Recommendations int                  `json:"recommendations"`
}

// Emitter turns tracked results into hub broadcasts. Its Tracked method is
// a reporting.Listener.
type Emitter struct {
	hub *Hub
	now func() time.Time
}

// NewEmitter creates an emitter publishing on hub.
func NewEmitter(hub *Hub) *Emitter {
	return &Emitter{hub: hub, now: time.Now}
}

// Tracked broadcasts a score.tracked event for res.
func (e *Emitter) Tracked(res *progress.Result) {
	summary := TrackedSummary{
		SnapshotID:      res.SnapshotID,
		Total:           res.Report.Total,
		TrendStatus:     res.TrendStatus,
		Recommendations: len(res.Recommendations),
	}
	if res.Progress != nil {
		delta := res.Progress.ScoreDelta
		summary.ScoreDelta = &delta
		summary.NewPatterns = res.Progress.NewPatterns
	}

	e.hub.Broadcast(&Event{
		Type:      EventScoreTracked,
		Timestamp: e.now().UTC(),
		Identity:  res.Identity,
		Data:      summary,
	})
}
