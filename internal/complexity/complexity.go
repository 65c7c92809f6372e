// Package complexity computes structural size and shape metrics of a diagram.
package complexity

import (
	"math"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

// Metrics are recomputed on every scoring call.
type Metrics struct {
	NodeCount      int     `json:"nodeCount"`
	EdgeCount      int     `json:"edgeCount"`
	Density        float64 `json:"density"`
	AvgConnections float64 `json:"avgConnections"`
	// MaxDepth is the number of edges on the longest simple path starting at
	// a root (a node without incoming edges). A lone root has depth 0, as does
	// a diagram without any root.
	MaxDepth int `json:"maxDepth"`
	// Index is an advisory 0..1 blend of size, density and depth. It is not
	// part of the score.
	Index float64 `json:"complexityIndex"`
}

// Compute returns the complexity metrics of d. It is total over any diagram,
// including empty and cyclic ones.
func Compute(d *diagram.Diagram) Metrics {
	m := Metrics{
		NodeCount: len(d.Nodes),
		EdgeCount: len(d.Edges),
	}
	if m.NodeCount > 1 {
		maxEdges := float64(m.NodeCount*(m.NodeCount-1)) / 2
		m.Density = float64(m.EdgeCount) / maxEdges
	}
	if m.NodeCount > 0 {
		m.AvgConnections = float64(m.EdgeCount) / float64(m.NodeCount)
	}
	m.MaxDepth = MaxDepth(d)
	m.Index = index(m)
	return m
}

// MaxDepth runs a longest-path DFS from every root. Each branch carries its
// own copy of the visited set, so a node can appear on several paths but
// never twice on the same one.
func MaxDepth(d *diagram.Diagram) int {
	adj := diagram.Adjacency(d)
	best := 0
	for _, root := range diagram.Roots(d) {
		if depth := longestFrom(root, adj, map[string]bool{}); depth > best {
			best = depth
		}
	}
	return best
}

func longestFrom(node string, adj map[string][]string, visited map[string]bool) int {
	branch := make(map[string]bool, len(visited)+1)
	for k := range visited {
		branch[k] = true
	}
	branch[node] = true

	best := 0
	for _, next := range adj[node] {
		if branch[next] {
			continue
		}
		if depth := 1 + longestFrom(next, adj, branch); depth > best {
			best = depth
		}
	}
	return best
}

func index(m Metrics) float64 {
	v := 0.3*math.Min(1, float64(m.NodeCount)/20) +
		0.3*math.Min(1, float64(m.EdgeCount)/30) +
		0.2*math.Min(1, m.Density) +
		0.2*math.Min(1, float64(m.MaxDepth)/5)
	return math.Round(v*1000) / 1000
}

// Delta is the per-metric difference between two Metrics values.
type Delta struct {
	Nodes          int     `json:"nodes"`
	Edges          int     `json:"edges"`
	Density        float64 `json:"density"`
	AvgConnections float64 `json:"avgConnections"`
	MaxDepth       int     `json:"maxDepth"`
}

// Diff returns current minus previous.
func Diff(previous, current Metrics) Delta {
	return Delta{
		Nodes:          current.NodeCount - previous.NodeCount,
		Edges:          current.EdgeCount - previous.EdgeCount,
		Density:        current.Density - previous.Density,
		AvgConnections: current.AvgConnections - previous.AvgConnections,
		MaxDepth:       current.MaxDepth - previous.MaxDepth,
	}
}
