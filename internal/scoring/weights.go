// Package scoring combines pattern coverage, complexity fitness, a best
// practice checklist and critical issue penalties into a 0-100 score.
package scoring

import (
	"fmt"
	"math"

	"github.com/efebarandurmaz/archscore/internal/patterns"
)

// Weights are the bucket weights of the total score. They should sum to 1.
type Weights struct {
	// Patterns weighs the category-weighted pattern quality (default: 0.30)
	Patterns float64 `json:"patterns"`
	// Complexity weighs the range fitness of size and depth (default: 0.20)
	Complexity float64 `json:"complexity"`
	// BestPractices weighs the checklist fraction (default: 0.30)
	BestPractices float64 `json:"bestPractices"`
	// CriticalIssues weighs the issue penalty bucket (default: 0.20)
	CriticalIssues float64 `json:"criticalIssues"`
}

// DefaultWeights returns the standard bucket weights.
func DefaultWeights() Weights {
	return Weights{
		Patterns:       0.30,
		Complexity:     0.20,
		BestPractices:  0.30,
		CriticalIssues: 0.20,
	}
}

// Validate checks that the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"patterns": w.Patterns, "complexity": w.Complexity,
		"best_practices": w.BestPractices, "critical_issues": w.CriticalIssues,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s is negative: %v", name, v)
		}
	}
	sum := w.Patterns + w.Complexity + w.BestPractices + w.CriticalIssues
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights sum to %.3f, want 1.0", sum)
	}
	return nil
}

// CategoryWeights weigh pattern categories inside the pattern bucket.
// Categories without a weight are detected and reported but do not score.
type CategoryWeights map[patterns.Category]float64

// DefaultCategoryWeights returns scalability 0.4, reliability 0.3,
// security 0.2, performance 0.1.
func DefaultCategoryWeights() CategoryWeights {
	return CategoryWeights{
		patterns.CategoryScalability: 0.4,
		patterns.CategoryReliability: 0.3,
		patterns.CategorySecurity:    0.2,
		patterns.CategoryPerformance: 0.1,
	}
}

// Range is an inclusive optimal interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Score is 1 inside the range and decays linearly to 0 outside it.
func (r Range) Score(v float64) float64 {
	switch {
	case v < r.Min:
		if r.Min <= 0 {
			return 0
		}
		return math.Max(0, 1-(r.Min-v)/r.Min)
	case v > r.Max:
		if r.Max <= 0 {
			return 0
		}
		return math.Max(0, 1-(v-r.Max)/r.Max)
	default:
		return 1
	}
}

// Ranges are the optimal intervals for the complexity score.
type Ranges struct {
	Nodes Range `json:"nodes"`
	Edges Range `json:"edges"`
	Depth Range `json:"depth"`
}

// DefaultRanges returns nodes 3-15, edges 2-20, depth 2-4.
func DefaultRanges() Ranges {
	return Ranges{
		Nodes: Range{Min: 3, Max: 15},
		Edges: Range{Min: 2, Max: 20},
		Depth: Range{Min: 2, Max: 4},
	}
}
