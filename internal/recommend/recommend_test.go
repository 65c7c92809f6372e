package recommend

import (
	"strings"
	"testing"

	"github.com/efebarandurmaz/archscore/internal/patterns"
)

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	reg, err := patterns.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	return NewGenerator(DefaultConfig(), reg)
}

func countType(recs []Recommendation, typ Type) int {
	n := 0
	for _, r := range recs {
		if r.Type == typ {
			n++
		}
	}
	return n
}

func TestFromScoresBelowThreshold(t *testing.T) {
	g := newGenerator(t)
	recs := g.FromScores(ScoreInput{
		PatternScore:       0.1,
		BestPracticesScore: 0.2,
		Density:            0.9,
		MissingPractices: []Practice{
			{Name: "hasLoadBalancer", Advice: "Add a load balancer"},
			{Name: "hasCaching", Advice: "Add a cache"},
		},
		Matches: []patterns.Match{{PatternID: "caching", Name: "Caching", ImplementationQuality: 1}},
	})

	if n := countType(recs, TypeBestPractice); n != 2 {
		t.Errorf("bestPractice recs = %d, want 2", n)
	}
	if n := countType(recs, TypePattern); n != 2 {
		t.Errorf("pattern recs = %d, want 2 (caching is detected)", n)
	}
	if n := countType(recs, TypeComplexity); n != 1 {
		t.Errorf("complexity recs = %d, want 1", n)
	}
	if recs[0].Priority != PriorityHigh {
		t.Errorf("first rec priority = %s, want high", recs[0].Priority)
	}
	for _, r := range recs {
		if r.Type == TypePattern && r.TargetPatternID == "loadBalancing" && !strings.Contains(r.Message, "Load Balancing") {
			t.Errorf("pattern message should use the registry name: %q", r.Message)
		}
	}
}

func TestFromScoresAboveThreshold(t *testing.T) {
	g := newGenerator(t)
	recs := g.FromScores(ScoreInput{
		PatternScore:       0.8,
		BestPracticesScore: 0.8,
		Density:            0.3,
		MissingPractices:   []Practice{{Name: "hasAuthentication", Advice: "Add auth"}},
	})
	if len(recs) != 0 {
		t.Errorf("expected no recommendations, got %+v", recs)
	}
}

func TestFromScoresLowPriorityImprovement(t *testing.T) {
	g := newGenerator(t)
	recs := g.FromScores(ScoreInput{
		PatternScore:       0.9,
		BestPracticesScore: 1,
		Matches: []patterns.Match{{
			PatternID:              "loadBalancing",
			Name:                   "Load Balancing",
			ImplementationQuality:  0.5,
			MissingOptimalFeatures: []string{"need at least 2 loadBalancer nodes, found 1"},
		}},
	})
	if len(recs) != 1 || recs[0].Priority != PriorityLow || recs[0].TargetPatternID != "loadBalancing" {
		t.Fatalf("recs = %+v", recs)
	}
}

func TestFromTrends(t *testing.T) {
	g := newGenerator(t)
	recs := g.FromTrends([]ComponentTrend{
		{Name: "total", Change: -5},
		{Name: "patternScore", Change: 0},
		{Name: "complexityScore", Change: 0.1},
	}, 0.3)
	if len(recs) != 2 {
		t.Fatalf("recs = %+v, want 2", recs)
	}
	if recs[0].Type != TypeTrend || recs[0].Priority != PriorityMedium || recs[0].Subject != "total" {
		t.Errorf("trend rec = %+v", recs[0])
	}
	if recs[1].Type != TypeComplexity {
		t.Errorf("second rec = %+v, want complexity", recs[1])
	}
}

func TestMergeDeduplicates(t *testing.T) {
	a := []Recommendation{
		{Type: TypePattern, Priority: PriorityMedium, TargetPatternID: "caching", Message: "first"},
		{Type: TypeComplexity, Priority: PriorityMedium, Subject: "density", Message: "dense"},
	}
	b := []Recommendation{
		{Type: TypePattern, Priority: PriorityHigh, TargetPatternID: "caching", Message: "second"},
		{Type: TypeComplexity, Priority: PriorityMedium, Subject: "density", Message: "rapid"},
		{Type: TypeTrend, Priority: PriorityMedium, Subject: "total"},
		{Type: TypeBestPractice, Priority: PriorityHigh, Subject: "hasCaching"},
	}
	merged := Merge(a, b)
	if len(merged) != 4 {
		t.Fatalf("merged = %+v, want 4", merged)
	}
	if merged[0].Type != TypeBestPractice {
		t.Errorf("high priority should sort first, got %+v", merged[0])
	}
	for _, r := range merged {
		if r.TargetPatternID == "caching" && r.Message != "first" {
			t.Errorf("first occurrence should win, got %q", r.Message)
		}
	}
}
