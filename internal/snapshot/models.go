// Package snapshot persists scoring snapshots as an append-only history per
// diagram identity. Backends live in this package (memory, file) and in the
// sqlite and neo4j subpackages.
package snapshot

import (
	"time"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/archscore/internal/complexity"
	"github.com/efebarandurmaz/archscore/internal/scoring"
)

// Snapshot is a scoring report trimmed to scores plus pattern and complexity
// summaries, stamped with the time it was taken.
type Snapshot struct {
	ID                   string             `json:"id"`
	Identity             string             `json:"identity"`
	CreatedAt            time.Time          `json:"created_at"`
	Fingerprint          string             `json:"fingerprint"`
	Total                int                `json:"total"`
	PatternScore         float64            `json:"pattern_score"`
	ComplexityScore      float64            `json:"complexity_score"`
	BestPracticesScore   float64            `json:"best_practices_score"`
	CriticalIssuePenalty float64            `json:"critical_issue_penalty"`
	Patterns             []PatternSummary   `json:"patterns"`
	Complexity           complexity.Metrics `json:"complexity"`
	IssueCount           int                `json:"issue_count"`
}

// PatternSummary records one detected pattern.
type PatternSummary struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Quality  float64 `json:"quality"`
}

// Summary is the minimal info for listing snapshots.
type Summary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Total     int       `json:"total"`
}

// FromReport trims a report into a snapshot.
func FromReport(identity string, r *scoring.Report, now time.Time) *Snapshot {
	s := &Snapshot{
		ID:                   uuid.NewString(),
		Identity:             identity,
		CreatedAt:            now.UTC(),
		Fingerprint:          r.Fingerprint,
		Total:                r.Total,
		PatternScore:         r.PatternScore,
		ComplexityScore:      r.ComplexityScore,
		BestPracticesScore:   r.BestPracticesScore,
		CriticalIssuePenalty: r.CriticalIssuePenalty,
		Patterns:             make([]PatternSummary, 0, len(r.Patterns)),
		Complexity:           r.Complexity,
		IssueCount:           len(r.CriticalIssues),
	}
	for _, m := range r.Patterns {
		s.Patterns = append(s.Patterns, PatternSummary{
			ID:       m.PatternID,
			Category: string(m.Category),
			Quality:  m.ImplementationQuality,
		})
	}
	return s
}

// Summary returns the listing entry for the snapshot.
func (s *Snapshot) Summary() Summary {
	return Summary{ID: s.ID, CreatedAt: s.CreatedAt, Total: s.Total}
}

// HasPattern reports whether the pattern was detected in this snapshot.
func (s *Snapshot) HasPattern(id string) bool {
	for _, p := range s.Patterns {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Component returns the value of a named score component: total,
// patternScore, complexityScore, bestPracticesScore or criticalIssuePenalty.
func (s *Snapshot) Component(name string) (float64, bool) {
	switch name {
	case "total":
		return float64(s.Total), true
	case "patternScore":
		return s.PatternScore, true
	case "complexityScore":
		return s.ComplexityScore, true
	case "bestPracticesScore":
		return s.BestPracticesScore, true
	case "criticalIssuePenalty":
		return s.CriticalIssuePenalty, true
	}
	return 0, false
}

// Components lists the score component names in report order.
var Components = []string{"total", "patternScore", "complexityScore", "bestPracticesScore", "criticalIssuePenalty"}
