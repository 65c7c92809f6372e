// Package similarity indexes scored diagrams as structural feature vectors
// so that designs resembling a given diagram can be found.
package similarity

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/scoring"
)

// Entry is one indexed design.
type Entry struct {
	Identity    string
	Fingerprint string
	Total       int
	Vector      []float32
}

// Result is a single match from a similarity search.
type Result struct {
	Identity    string  `json:"identity"`
	Fingerprint string  `json:"fingerprint"`
	Total       int     `json:"total"`
	Score       float32 `json:"score"`
}

// Index provides vector storage and similarity search.
type Index interface {
	// Upsert inserts or replaces entries keyed by identity.
	Upsert(ctx context.Context, entries []Entry) error
	// Search finds the top-k most similar entries.
	Search(ctx context.Context, vector []float32, topK int) ([]Result, error)
	Close() error
}

// Vectorizer turns a diagram and its report into a fixed-size vector.
type Vectorizer struct {
	patternIDs []string
}

// NewVectorizer creates a vectorizer whose pattern dimensions follow ids.
func NewVectorizer(patternIDs []string) *Vectorizer {
	return &Vectorizer{patternIDs: append([]string(nil), patternIDs...)}
}

// Dim returns the vector length.
func (v *Vectorizer) Dim() int {
	return len(diagram.KnownComponentTypes) + 3 + len(v.patternIDs)
}

// Vector builds the feature vector: the share of each known component type,
// density, average connections and depth squashed into [0,1), then the
// implementation quality of every registry pattern (0 when absent).
func (v *Vectorizer) Vector(d *diagram.Diagram, r *scoring.Report) []float32 {
	out := make([]float32, 0, v.Dim())

	counts := d.TypeCounts()
	for _, t := range diagram.KnownComponentTypes {
		share := 0.0
		if len(d.Nodes) > 0 {
			share = float64(counts[t]) / float64(len(d.Nodes))
		}
		out = append(out, float32(share))
	}

	m := r.Complexity
	out = append(out,
		float32(m.Density),
		float32(squash(m.AvgConnections, 4)),
		float32(squash(float64(m.MaxDepth), 4)),
	)

	quality := make(map[string]float64, len(r.Patterns))
	for _, p := range r.Patterns {
		quality[p.PatternID] = p.ImplementationQuality
	}
	for _, id := range v.patternIDs {
		out = append(out, float32(quality[id]))
	}
	return out
}

func squash(x, scale float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (x + scale)
}

// Cosine returns the cosine similarity of a and b, 0 if either is zero.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// MemoryIndex is an in-process Index using brute-force cosine search.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

func (m *MemoryIndex) Upsert(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		e.Vector = append([]float32(nil), e.Vector...)
		m.entries[e.Identity] = e
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float32, topK int) ([]Result, error) {
	m.mu.RLock()
	results := make([]Result, 0, len(m.entries))
	for _, e := range m.entries {
		results = append(results, Result{
			Identity:    e.Identity,
			Fingerprint: e.Fingerprint,
			Total:       e.Total,
			Score:       Cosine(vector, e.Vector),
		})
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Identity < results[j].Identity
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) Close() error { return nil }

var _ Index = (*MemoryIndex)(nil)
