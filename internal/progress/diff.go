package progress

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/archscore/internal/complexity"
	"github.com/efebarandurmaz/archscore/internal/snapshot"
)

// Progress compares the latest two snapshots of an identity.
type Progress struct {
	PreviousID      string           `json:"previousId"`
	LatestID        string           `json:"latestId"`
	ScoreDelta      int              `json:"scoreDelta"`
	ScoreImproved   bool             `json:"scoreImproved"`
	NewPatterns     []string         `json:"newPatterns"`
	RemovedPatterns []string         `json:"removedPatterns"`
	Complexity      complexity.Delta `json:"complexityChange"`
}

// Diff computes the progress from previous to latest.
func Diff(previous, latest *snapshot.Snapshot) *Progress {
	p := &Progress{
		PreviousID:      previous.ID,
		LatestID:        latest.ID,
		ScoreDelta:      latest.Total - previous.Total,
		NewPatterns:     make([]string, 0),
		RemovedPatterns: make([]string, 0),
		Complexity:      complexity.Diff(previous.Complexity, latest.Complexity),
	}
	p.ScoreImproved = p.ScoreDelta > 0

	for _, pt := range latest.Patterns {
		if !previous.HasPattern(pt.ID) {
			p.NewPatterns = append(p.NewPatterns, pt.ID)
		}
	}
	for _, pt := range previous.Patterns {
		if !latest.HasPattern(pt.ID) {
			p.RemovedPatterns = append(p.RemovedPatterns, pt.ID)
		}
	}
	return p
}

// FormatProgress returns a human-readable summary of a Progress.
func FormatProgress(p *Progress) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Score change: %+d\n", p.ScoreDelta))
	if len(p.NewPatterns) > 0 {
		b.WriteString(fmt.Sprintf("New patterns: %s\n", strings.Join(p.NewPatterns, ", ")))
	}
	if len(p.RemovedPatterns) > 0 {
		b.WriteString(fmt.Sprintf("Lost patterns: %s\n", strings.Join(p.RemovedPatterns, ", ")))
	}
	c := p.Complexity
	b.WriteString(fmt.Sprintf("Complexity: nodes %+d, edges %+d, density %+.2f, avg connections %+.2f, depth %+d\n",
		c.Nodes, c.Edges, c.Density, c.AvgConnections, c.MaxDepth))
	return b.String()
}
