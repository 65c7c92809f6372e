package scoring

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/issues"
	"github.com/efebarandurmaz/archscore/internal/patterns"
	"github.com/efebarandurmaz/archscore/internal/recommend"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := patterns.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	return NewEngine(reg, nil)
}

func mustScore(t *testing.T, e *Engine, d *diagram.Diagram) *Report {
	t.Helper()
	r, err := e.Score(d)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	return r
}

func serviceAndDatabase() *diagram.Diagram {
	return &diagram.Diagram{
		Type:  diagram.DiagramSystem,
		Nodes: []diagram.Node{{ID: "s1", Type: "service"}, {ID: "db1", Type: "database"}},
		Edges: []diagram.Edge{{Source: "s1", Target: "db1", Type: "sync"}},
	}
}

func TestRangeScore(t *testing.T) {
	r := Range{Min: 3, Max: 15}
	tests := []struct {
		v, want float64
	}{
		{3, 1}, {10, 1}, {15, 1},
		{2, 1 - 1.0/3}, {0, 0},
		{30, 0}, {20, 1 - 5.0/15},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.v), func(t *testing.T) {
			if got := r.Score(tt.v); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
	bad := Weights{Patterns: 0.5, Complexity: 0.5, BestPractices: 0.5}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for weights summing to 1.5")
	}
}

func TestCriticalIssuePenalty(t *testing.T) {
	for n, want := range map[int]float64{0: 1, 1: 0.75, 2: 0.5, 4: 0, 7: 0} {
		if got := CriticalIssuePenalty(n); got != want {
			t.Errorf("penalty(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestScoreServiceAndDatabase(t *testing.T) {
	e := newEngine(t)
	r := mustScore(t, e, serviceAndDatabase())

	if r.HasPattern("loadBalancing") {
		t.Error("loadBalancing should not be detected")
	}
	if r.BestPracticesScore != 0 {
		t.Errorf("bestPracticesScore = %v, want 0", r.BestPracticesScore)
	}
	if len(r.CriticalIssues) != 1 || r.CriticalIssues[0].Category != issues.CategorySinglePointOfFailure || r.CriticalIssues[0].NodeID != "db1" {
		t.Errorf("critical issues = %+v", r.CriticalIssues)
	}
	// nodes 2 of [3,15], edges 1 of [2,20], depth 1 of [2,4]
	wantComplexity := (2.0/3 + 0.5 + 0.5) / 3
	if math.Abs(r.ComplexityScore-wantComplexity) > 1e-9 {
		t.Errorf("complexityScore = %v, want %v", r.ComplexityScore, wantComplexity)
	}
	if r.Complexity.MaxDepth != 1 {
		t.Errorf("maxDepth = %d, want 1", r.Complexity.MaxDepth)
	}
	if r.Total != 26 {
		t.Errorf("total = %d, want 26", r.Total)
	}

	counts := map[recommend.Type]int{}
	for _, rec := range r.Recommendations {
		counts[rec.Type]++
		if rec.Type == recommend.TypeBestPractice && rec.Priority != recommend.PriorityHigh {
			t.Errorf("best practice rec should be high priority: %+v", rec)
		}
	}
	if counts[recommend.TypeBestPractice] != 5 {
		t.Errorf("bestPractice recs = %d, want 5", counts[recommend.TypeBestPractice])
	}
	if counts[recommend.TypePattern] != 3 {
		t.Errorf("pattern recs = %d, want 3", counts[recommend.TypePattern])
	}
	if counts[recommend.TypeComplexity] != 1 {
		t.Errorf("complexity recs = %d, want 1 (density is 1.0)", counts[recommend.TypeComplexity])
	}
}

func TestSecondDatabaseRemovesSPOF(t *testing.T) {
	e := newEngine(t)
	d := serviceAndDatabase()
	d.Nodes = append(d.Nodes, diagram.Node{ID: "db2", Type: "database"})
	r := mustScore(t, e, d)
	for _, i := range r.CriticalIssues {
		if i.Category == issues.CategorySinglePointOfFailure {
			t.Errorf("unexpected SPOF: %+v", i)
		}
	}
	if r.BestPracticesScore != 0.2 {
		t.Errorf("bestPracticesScore = %v, want 0.2 (redundancy)", r.BestPracticesScore)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	e := newEngine(t)
	d := richDiagram()
	a := mustScore(t, e, d)
	b := mustScore(t, e, d)
	if !reflect.DeepEqual(a, b) {
		t.Error("scoring the same diagram twice produced different reports")
	}
}

func TestScoreRejectsDanglingEdge(t *testing.T) {
	e := newEngine(t)
	d := serviceAndDatabase()
	d.Edges = append(d.Edges, diagram.Edge{Source: "s1", Target: "nowhere"})
	_, err := e.Score(d)
	var verr *diagram.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestStrictDiagramType(t *testing.T) {
	reg, _ := patterns.DefaultRegistry()
	d := serviceAndDatabase()
	d.Type = "mindmap"

	if _, err := NewEngine(reg, nil).Score(d); err != nil {
		t.Fatalf("lenient engine should accept any diagram type: %v", err)
	}
	_, err := NewEngine(reg, &Options{StrictDiagramType: true}).Score(d)
	var uerr *diagram.UnsupportedDiagramTypeError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnsupportedDiagramTypeError, got %v", err)
	}
}

func TestEmptyAndCyclicDiagramsScore(t *testing.T) {
	e := newEngine(t)
	empty := mustScore(t, e, &diagram.Diagram{})
	if empty.Total < 0 || empty.Total > 100 {
		t.Errorf("empty total = %d", empty.Total)
	}
	cyclic := mustScore(t, e, &diagram.Diagram{
		Nodes: []diagram.Node{{ID: "a", Type: "service"}, {ID: "b", Type: "service"}},
		Edges: []diagram.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
	})
	if cyclic.Complexity.MaxDepth != 0 {
		t.Errorf("cyclic maxDepth = %d, want 0", cyclic.Complexity.MaxDepth)
	}
}

func TestLoadBalancerNeverDecreasesPatternScore(t *testing.T) {
	e := newEngine(t)
	bases := []*diagram.Diagram{
		{Nodes: []diagram.Node{{ID: "s1", Type: "service"}, {ID: "s2", Type: "service"}}},
		richDiagram(),
		{
			Nodes: []diagram.Node{
				{ID: "lb0", Type: "loadBalancer"}, {ID: "s1", Type: "service"}, {ID: "s2", Type: "service"},
				{ID: "c", Type: "cache"},
			},
			Edges: []diagram.Edge{{Source: "lb0", Target: "s1"}, {Source: "lb0", Target: "s2"}, {Source: "s1", Target: "c"}},
		},
	}
	for i, base := range bases {
		before := mustScore(t, e, base)
		extended := &diagram.Diagram{
			Type:  base.Type,
			Nodes: append(append([]diagram.Node(nil), base.Nodes...), diagram.Node{ID: "lb-new", Type: "loadBalancer"}),
			Edges: append(append([]diagram.Edge(nil), base.Edges...),
				diagram.Edge{Source: "lb-new", Target: "s1"},
				diagram.Edge{Source: "lb-new", Target: "s2"}),
		}
		after := mustScore(t, e, extended)
		if after.PatternScore < before.PatternScore {
			t.Errorf("case %d: patternScore dropped from %v to %v", i, before.PatternScore, after.PatternScore)
		}
	}
}

func TestTotalAlwaysBounded(t *testing.T) {
	e := newEngine(t)
	rng := rand.New(rand.NewSource(42))
	types := append([]diagram.ComponentType{"mystery"}, diagram.KnownComponentTypes...)
	for i := 0; i < 200; i++ {
		d := &diagram.Diagram{}
		n := rng.Intn(25)
		for j := 0; j < n; j++ {
			d.Nodes = append(d.Nodes, diagram.Node{ID: fmt.Sprintf("n%d", j), Type: types[rng.Intn(len(types))]})
		}
		if n > 0 {
			for j := rng.Intn(3 * n); j > 0; j-- {
				d.Edges = append(d.Edges, diagram.Edge{
					Source: fmt.Sprintf("n%d", rng.Intn(n)),
					Target: fmt.Sprintf("n%d", rng.Intn(n)),
				})
			}
		}
		r := mustScore(t, e, d)
		if r.Total < 0 || r.Total > 100 {
			t.Fatalf("total out of range: %d", r.Total)
		}
		if n <= 1 && r.Complexity.Density != 0 {
			t.Fatalf("density = %v for %d nodes", r.Complexity.Density, n)
		}
	}
}

func TestWellDesignedDiagramScoresHigh(t *testing.T) {
	e := newEngine(t)
	r := mustScore(t, e, richDiagram())
	if r.Total < 60 {
		t.Errorf("total = %d, expected a well designed diagram to score at least 60\n%s", r.Total, FormatReport(r))
	}
	for _, rec := range r.Recommendations {
		if rec.Type == recommend.TypeBestPractice {
			t.Errorf("unexpected best practice rec: %+v", rec)
		}
	}
}

func richDiagram() *diagram.Diagram {
	return &diagram.Diagram{
		Type: diagram.DiagramSystem,
		Nodes: []diagram.Node{
			{ID: "gw", Type: "gateway", Properties: []string{"auth", "rateLimit"}},
			{ID: "lb1", Type: "loadBalancer"},
			{ID: "lb2", Type: "loadBalancer"},
			{ID: "s1", Type: "service", Properties: []string{"circuitBreaker"}},
			{ID: "s2", Type: "service", Properties: []string{"circuitBreaker"}},
			{ID: "s3", Type: "service"},
			{ID: "c1", Type: "cache"},
			{ID: "c2", Type: "cache"},
			{ID: "db1", Type: "database"},
			{ID: "db2", Type: "database"},
			{ID: "q", Type: "queue", Properties: []string{"deadLetter"}},
		},
		Edges: []diagram.Edge{
			{Source: "gw", Target: "lb1", Type: "sync"},
			{Source: "gw", Target: "lb2", Type: "sync"},
			{Source: "lb1", Target: "s1", Type: "sync"},
			{Source: "lb1", Target: "s2", Type: "sync"},
			{Source: "lb2", Target: "s3", Type: "sync"},
			{Source: "s1", Target: "s2", Type: "sync"},
			{Source: "s1", Target: "c1", Type: "sync"},
			{Source: "s2", Target: "c2", Type: "sync"},
			{Source: "s3", Target: "db1", Type: "sync"},
			{Source: "db1", Target: "db2", Type: "async"},
			{Source: "s2", Target: "q", Type: "publish"},
			{Source: "q", Target: "s3", Type: "subscribe"},
		},
	}
}
