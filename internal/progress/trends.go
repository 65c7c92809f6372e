package progress

import (
	"math"

	"github.com/efebarandurmaz/archscore/internal/snapshot"
)

// TrendStatus says whether trend data could be computed.
type TrendStatus string

const (
	TrendAvailable           TrendStatus = "available"
	TrendInsufficientHistory TrendStatus = "insufficientHistory"
	TrendUnavailable         TrendStatus = "unavailable"
)

// Metric is a rolling trend over the analysis window.
type Metric struct {
	Current                float64 `json:"current"`
	ChangeSinceWindowStart float64 `json:"changeSinceWindowStart"`
	// Volatility is the root mean square of consecutive differences.
	Volatility float64 `json:"volatility"`
}

// Adoption tracks a pattern across the window.
type Adoption struct {
	Adopted bool `json:"adopted"`
	// FirstSeen is the window index where the pattern first appeared, -1 if never.
	FirstSeen int `json:"firstSeen"`
}

// Trends are computed over the most recent snapshots, oldest first.
type Trends struct {
	Window     int                 `json:"window"`
	Scores     map[string]Metric   `json:"scores"`
	Complexity map[string]Metric   `json:"complexity"`
	Patterns   map[string]Adoption `json:"patterns"`
}

// ComputeMetric returns the trend of a series ordered oldest first.
func ComputeMetric(values []float64) Metric {
	if len(values) == 0 {
		return Metric{}
	}
	m := Metric{
		Current:                values[len(values)-1],
		ChangeSinceWindowStart: values[len(values)-1] - values[0],
	}
	if len(values) > 1 {
		sum := 0.0
		for i := 1; i < len(values); i++ {
			d := values[i] - values[i-1]
			sum += d * d
		}
		m.Volatility = math.Sqrt(sum / float64(len(values)-1))
	}
	return m
}

var complexityMetrics = []string{"nodes", "edges", "density", "avgConnections", "maxDepth"}

func complexityValue(s *snapshot.Snapshot, name string) float64 {
	c := s.Complexity
	switch name {
	case "nodes":
		return float64(c.NodeCount)
	case "edges":
		return float64(c.EdgeCount)
	case "density":
		return c.Density
	case "avgConnections":
		return c.AvgConnections
	case "maxDepth":
		return float64(c.MaxDepth)
	}
	return 0
}

// ComputeTrends computes score, complexity and pattern adoption trends over
// the window.
func ComputeTrends(window []snapshot.Snapshot) *Trends {
	t := &Trends{
		Window:     len(window),
		Scores:     make(map[string]Metric, len(snapshot.Components)),
		Complexity: make(map[string]Metric, len(complexityMetrics)),
		Patterns:   make(map[string]Adoption),
	}
	if len(window) == 0 {
		return t
	}

	for _, name := range snapshot.Components {
		values := make([]float64, len(window))
		for i := range window {
			values[i], _ = window[i].Component(name)
		}
		t.Scores[name] = ComputeMetric(values)
	}
	for _, name := range complexityMetrics {
		values := make([]float64, len(window))
		for i := range window {
			values[i] = complexityValue(&window[i], name)
		}
		t.Complexity[name] = ComputeMetric(values)
	}

	latest := &window[len(window)-1]
	ids := make(map[string]bool)
	for _, s := range window {
		for _, p := range s.Patterns {
			ids[p.ID] = true
		}
	}
	for id := range ids {
		a := Adoption{Adopted: latest.HasPattern(id), FirstSeen: -1}
		for i := range window {
			if window[i].HasPattern(id) {
				a.FirstSeen = i
				break
			}
		}
		t.Patterns[id] = a
	}
	return t
}
