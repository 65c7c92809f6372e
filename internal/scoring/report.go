package scoring

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/archscore/internal/complexity"
	"github.com/efebarandurmaz/archscore/internal/issues"
	"github.com/efebarandurmaz/archscore/internal/patterns"
	"github.com/efebarandurmaz/archscore/internal/recommend"
)

// Report is the scoring output for one diagram state. It is produced fresh
// for every call and never updated in place.
type Report struct {
	PatternScore         float64                    `json:"patternScore"`
	ComplexityScore      float64                    `json:"complexityScore"`
	BestPracticesScore   float64                    `json:"bestPracticesScore"`
	CriticalIssuePenalty float64                    `json:"criticalIssuePenalty"`
	Total                int                        `json:"total"`
	Patterns             []patterns.Match           `json:"patterns"`
	CriticalIssues       []issues.CriticalIssue     `json:"criticalIssues"`
	Complexity           complexity.Metrics         `json:"complexity"`
	Checklist            ChecklistResult            `json:"checklist"`
	Recommendations      []recommend.Recommendation `json:"recommendations"`
	Fingerprint          string                     `json:"fingerprint"`
}

// PatternIDs returns the ids of the detected patterns.
func (r *Report) PatternIDs() []string {
	ids := make([]string, len(r.Patterns))
	for i, m := range r.Patterns {
		ids[i] = m.PatternID
	}
	return ids
}

// HasPattern reports whether the pattern was detected.
func (r *Report) HasPattern(id string) bool {
	for _, m := range r.Patterns {
		if m.PatternID == id {
			return true
		}
	}
	return false
}

// FormatReport returns a human-readable report.
func FormatReport(r *Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Architecture Score: %d/100\n", r.Total))
	b.WriteString("========================\n\n")
	b.WriteString(fmt.Sprintf("Patterns:        %.2f\n", r.PatternScore))
	b.WriteString(fmt.Sprintf("Complexity:      %.2f\n", r.ComplexityScore))
	b.WriteString(fmt.Sprintf("Best practices:  %.2f\n", r.BestPracticesScore))
	b.WriteString(fmt.Sprintf("Issue penalty:   %.2f\n", r.CriticalIssuePenalty))

	c := r.Complexity
	b.WriteString(fmt.Sprintf("\nNodes %d, edges %d, density %.2f, avg connections %.2f, max depth %d\n",
		c.NodeCount, c.EdgeCount, c.Density, c.AvgConnections, c.MaxDepth))

	if len(r.Patterns) > 0 {
		b.WriteString("\nDetected patterns:\n")
		for _, m := range r.Patterns {
			b.WriteString(fmt.Sprintf("  %-22s %-13s quality %.2f\n", m.Name, m.Category, m.ImplementationQuality))
			for _, f := range m.MissingOptimalFeatures {
				b.WriteString(fmt.Sprintf("    - %s\n", f))
			}
		}
	}

	if len(r.CriticalIssues) > 0 {
		b.WriteString("\nCritical issues:\n")
		for _, i := range r.CriticalIssues {
			b.WriteString(fmt.Sprintf("  [%s] %s\n", i.Category, i.Description))
		}
	}

	b.WriteString("\n")
	b.WriteString(FormatChecklist(r.Checklist))

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			b.WriteString(fmt.Sprintf("  (%s) %s\n", rec.Priority, rec.Message))
		}
	}
	return b.String()
}
