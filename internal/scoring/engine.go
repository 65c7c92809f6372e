package scoring

import (
	"math"

	"github.com/efebarandurmaz/archscore/internal/complexity"
	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/issues"
	"github.com/efebarandurmaz/archscore/internal/patterns"
	"github.com/efebarandurmaz/archscore/internal/recommend"
)

// Options configure an Engine. Zero values fall back to the defaults.
type Options struct {
	Weights         *Weights
	CategoryWeights CategoryWeights
	Ranges          *Ranges
	Checklist       *Checklist
	Recommend       *recommend.Config
	// StrictDiagramType rejects diagrams that are neither system nor sequence.
	StrictDiagramType bool
}

// Engine scores diagrams. It holds only immutable configuration, so a single
// Engine can score any number of diagrams concurrently.
type Engine struct {
	matcher         *patterns.Matcher
	weights         Weights
	categoryWeights CategoryWeights
	ranges          Ranges
	checklist       *Checklist
	generator       *recommend.Generator
	strict          bool
}

// NewEngine creates an engine over the registry. A nil opts uses defaults.
func NewEngine(registry *patterns.Registry, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}
	e := &Engine{
		matcher:         patterns.NewMatcher(registry),
		weights:         DefaultWeights(),
		categoryWeights: DefaultCategoryWeights(),
		ranges:          DefaultRanges(),
		checklist:       DefaultChecklist(),
		strict:          opts.StrictDiagramType,
	}
	if opts.Weights != nil {
		e.weights = *opts.Weights
	}
	if opts.CategoryWeights != nil {
		e.categoryWeights = make(CategoryWeights, len(opts.CategoryWeights))
		for k, v := range opts.CategoryWeights {
			e.categoryWeights[k] = v
		}
	}
	if opts.Ranges != nil {
		e.ranges = *opts.Ranges
	}
	if opts.Checklist != nil {
		e.checklist = opts.Checklist
	}
	rc := recommend.DefaultConfig()
	if opts.Recommend != nil {
		rc = *opts.Recommend
	}
	e.generator = recommend.NewGenerator(rc, registry)
	return e
}

// Registry returns the pattern registry the engine scores against.
func (e *Engine) Registry() *patterns.Registry { return e.matcher.Registry() }

// Generator returns the recommendation generator used by the engine.
func (e *Engine) Generator() *recommend.Generator { return e.generator }

// Score validates the diagram and returns a fresh report. The result depends
// only on the diagram's nodes and edges.
func (e *Engine) Score(d *diagram.Diagram) (*Report, error) {
	if err := diagram.Validate(d); err != nil {
		return nil, err
	}
	if e.strict {
		if err := diagram.RequireSupportedType(d); err != nil {
			return nil, err
		}
	}

	matches := e.matcher.Detect(d)
	metrics := complexity.Compute(d)
	found := issues.Find(d)
	checklist := e.checklist.Run(d)

	r := &Report{
		PatternScore:         e.patternScore(matches),
		ComplexityScore:      e.complexityScore(metrics),
		BestPracticesScore:   checklist.Score,
		CriticalIssuePenalty: CriticalIssuePenalty(len(found)),
		Patterns:             matches,
		CriticalIssues:       found,
		Complexity:           metrics,
		Checklist:            checklist,
		Fingerprint:          diagram.Fingerprint(d),
	}
	r.Total = e.total(r)

	missing := make([]recommend.Practice, 0, checklist.FailedCount)
	for _, c := range checklist.Failed() {
		missing = append(missing, recommend.Practice{Name: c.Name, Advice: c.Advice})
	}
	r.Recommendations = e.generator.FromScores(recommend.ScoreInput{
		PatternScore:       r.PatternScore,
		BestPracticesScore: r.BestPracticesScore,
		Density:            metrics.Density,
		MissingPractices:   missing,
		Matches:            matches,
	})
	return r, nil
}

// patternScore sums, over weighted categories, the category weight times the
// mean quality of the detected patterns in that category.
func (e *Engine) patternScore(matches []patterns.Match) float64 {
	sums := make(map[patterns.Category]float64)
	counts := make(map[patterns.Category]int)
	for _, m := range matches {
		sums[m.Category] += m.ImplementationQuality
		counts[m.Category]++
	}
	score := 0.0
	for _, c := range patterns.Categories {
		w := e.categoryWeights[c]
		if w == 0 || counts[c] == 0 {
			continue
		}
		score += w * sums[c] / float64(counts[c])
	}
	return clamp01(score)
}

func (e *Engine) complexityScore(m complexity.Metrics) float64 {
	n := e.ranges.Nodes.Score(float64(m.NodeCount))
	ed := e.ranges.Edges.Score(float64(m.EdgeCount))
	dp := e.ranges.Depth.Score(float64(m.MaxDepth))
	return (n + ed + dp) / 3
}

func (e *Engine) total(r *Report) int {
	sum := e.weights.Patterns*r.PatternScore +
		e.weights.Complexity*r.ComplexityScore +
		e.weights.BestPractices*r.BestPracticesScore +
		e.weights.CriticalIssues*r.CriticalIssuePenalty
	t := int(math.Round(100 * sum))
	if t < 0 {
		return 0
	}
	if t > 100 {
		return 100
	}
	return t
}

// CriticalIssuePenalty returns max(0, 1 - 0.25 * count).
func CriticalIssuePenalty(count int) float64 {
	return math.Max(0, 1-0.25*float64(count))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
