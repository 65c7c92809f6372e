// Package recommend turns scoring gaps and negative trends into prioritized,
// structured recommendations.
package recommend

import (
	"fmt"
	"sort"

	"github.com/efebarandurmaz/archscore/internal/patterns"
)

// Type classifies a recommendation.
type Type string

const (
	TypePattern      Type = "pattern"
	TypeComplexity   Type = "complexity"
	TypeBestPractice Type = "bestPractice"
	TypeTrend        Type = "trend"
)

// Priority orders recommendations.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Recommendation is a structured suggestion.
type Recommendation struct {
	Type            Type     `json:"type"`
	Priority        Priority `json:"priority"`
	Message         string   `json:"message"`
	TargetPatternID string   `json:"targetPatternId,omitempty"`
	// Subject names what a non-pattern recommendation is about: a checklist
	// item, a metric or a score component.
	Subject string `json:"subject,omitempty"`
}

// Key identifies a recommendation for deduplication. Recommendations without
// a target pattern fall back to their subject.
func (r Recommendation) Key() string {
	target := r.TargetPatternID
	if target == "" {
		target = r.Subject
	}
	return string(r.Type) + "/" + target
}

// Config controls when recommendations fire.
type Config struct {
	// Threshold is the sub-score below which gaps are reported (default: 0.6).
	Threshold float64
	// DensityThreshold is the density above which complexity is flagged (default: 0.7).
	DensityThreshold float64
	// DensityTrendThreshold is the density increase across the trend window
	// that counts as rapid growth (default: 0.2).
	DensityTrendThreshold float64
	// CriticalPatterns are suggested when undetected and the pattern score is low.
	CriticalPatterns []string
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Threshold:             0.6,
		DensityThreshold:      0.7,
		DensityTrendThreshold: 0.2,
		CriticalPatterns:      []string{"loadBalancing", "caching", "messageQueue"},
	}
}

// Practice is a checklist item the diagram did not satisfy.
type Practice struct {
	Name   string
	Advice string
}

// ScoreInput is what the scoring engine hands over.
type ScoreInput struct {
	PatternScore       float64
	BestPracticesScore float64
	Density            float64
	MissingPractices   []Practice
	Matches            []patterns.Match
}

// Generator builds recommendations.
type Generator struct {
	cfg      Config
	registry *patterns.Registry
}

// NewGenerator creates a generator. The registry is used to name patterns
// and may be nil.
func NewGenerator(cfg Config, registry *patterns.Registry) *Generator {
	return &Generator{cfg: cfg, registry: registry}
}

// Config returns the generator configuration.
func (g *Generator) Config() Config { return g.cfg }

// FromScores compares sub-scores against the threshold.
func (g *Generator) FromScores(in ScoreInput) []Recommendation {
	var recs []Recommendation

	if in.BestPracticesScore < g.cfg.Threshold {
		for _, p := range in.MissingPractices {
			recs = append(recs, Recommendation{
				Type:     TypeBestPractice,
				Priority: PriorityHigh,
				Message:  p.Advice,
				Subject:  p.Name,
			})
		}
	}

	detected := make(map[string]bool, len(in.Matches))
	for _, m := range in.Matches {
		detected[m.PatternID] = true
	}
	if in.PatternScore < g.cfg.Threshold {
		for _, id := range g.cfg.CriticalPatterns {
			if detected[id] {
				continue
			}
			recs = append(recs, Recommendation{
				Type:            TypePattern,
				Priority:        PriorityMedium,
				Message:         fmt.Sprintf("Consider implementing %s pattern", g.patternName(id)),
				TargetPatternID: id,
			})
		}
	}

	for _, m := range in.Matches {
		if m.ImplementationQuality >= 1 || len(m.MissingOptimalFeatures) == 0 {
			continue
		}
		recs = append(recs, Recommendation{
			Type:            TypePattern,
			Priority:        PriorityLow,
			Message:         fmt.Sprintf("Improve %s implementation: %s", m.Name, m.MissingOptimalFeatures[0]),
			TargetPatternID: m.PatternID,
		})
	}

	if in.Density > g.cfg.DensityThreshold {
		recs = append(recs, Recommendation{
			Type:     TypeComplexity,
			Priority: PriorityMedium,
			Message:  "Diagram complexity needs optimization: reduce coupling between components",
			Subject:  "density",
		})
	}

	return Merge(recs)
}

// ComponentTrend is the windowed change of one score component.
type ComponentTrend struct {
	Name   string
	Change float64
}

// FromTrends emits a medium priority trend warning for every declining
// component, plus a complexity warning when density grows quickly.
func (g *Generator) FromTrends(components []ComponentTrend, densityChange float64) []Recommendation {
	var recs []Recommendation
	for _, c := range components {
		if c.Change >= 0 {
			continue
		}
		recs = append(recs, Recommendation{
			Type:     TypeTrend,
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("%s score has been declining. Consider reviewing recent changes.", c.Name),
			Subject:  c.Name,
		})
	}
	if densityChange > g.cfg.DensityTrendThreshold {
		recs = append(recs, Recommendation{
			Type:     TypeComplexity,
			Priority: PriorityMedium,
			Message:  "System complexity is increasing rapidly. Consider simplifying the architecture.",
			Subject:  "density",
		})
	}
	return recs
}

func (g *Generator) patternName(id string) string {
	if g.registry != nil {
		if def, ok := g.registry.Get(id); ok {
			return def.Name
		}
	}
	return id
}

// Merge concatenates the lists, keeps the first recommendation per Key and
// orders the result by priority. Order within a priority is preserved.
func Merge(lists ...[]Recommendation) []Recommendation {
	out := make([]Recommendation, 0)
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, r := range list {
			k := r.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.rank() < out[j].Priority.rank()
	})
	return out
}
