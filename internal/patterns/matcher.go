package patterns

import (
	"fmt"
	"math"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

// Match describes one detected pattern.
type Match struct {
	PatternID              string   `json:"patternId"`
	Name                   string   `json:"name"`
	Category               Category `json:"category"`
	NodeIDs                []string `json:"nodeIds"`
	EdgeRefs               []string `json:"edgeRefs"`
	ImplementationQuality  float64  `json:"implementationQuality"`
	MissingOptimalFeatures []string `json:"missingOptimalFeatures"`
	BestPractices          []string `json:"bestPractices,omitempty"`
}

// Matcher evaluates diagrams against a registry. It holds no mutable state
// and is safe for concurrent use.
type Matcher struct {
	registry *Registry
}

// NewMatcher creates a matcher over the given registry.
func NewMatcher(registry *Registry) *Matcher {
	return &Matcher{registry: registry}
}

// Registry returns the registry the matcher evaluates against.
func (m *Matcher) Registry() *Registry { return m.registry }

// Detect returns one Match per pattern whose required criteria all hold, in
// registry order. Disjoint subsets satisfying the same pattern count as a
// single detection. The diagram type is ignored.
func (m *Matcher) Detect(d *diagram.Diagram) []Match {
	ix := newIndex(d)
	matches := make([]Match, 0)
	for _, def := range m.registry.defs {
		if match, ok := ix.evaluate(def); ok {
			matches = append(matches, match)
		}
	}
	return matches
}

// index caches node lookups for one Detect call.
type index struct {
	d     *diagram.Diagram
	nodes map[string]diagram.Node
}

func newIndex(d *diagram.Diagram) *index {
	ix := &index{d: d, nodes: make(map[string]diagram.Node, len(d.Nodes))}
	for _, n := range d.Nodes {
		ix.nodes[n.ID] = n
	}
	return ix
}

func (ix *index) count(sel Selector) int {
	c := 0
	for _, n := range ix.d.Nodes {
		if sel.Matches(n) {
			c++
		}
	}
	return c
}

// edgesMatching returns refs of every edge satisfying the rule.
func (ix *index) edgesMatching(rule AdjacencyRule) []string {
	var refs []string
	for i, e := range ix.d.Edges {
		src, ok := ix.nodes[e.Source]
		if !ok {
			continue
		}
		dst, ok := ix.nodes[e.Target]
		if !ok {
			continue
		}
		if rule.Matches(src, dst, e) {
			refs = append(refs, edgeRef(i, e))
		}
	}
	return refs
}

func (ix *index) evaluate(def Definition) (Match, bool) {
	for _, c := range def.Required.Nodes {
		if !c.Satisfied(ix.count(c.Selector)) {
			return Match{}, false
		}
	}
	var edgeRefs []string
	seenEdge := make(map[string]bool)
	for _, rule := range def.Required.Connections {
		refs := ix.edgesMatching(rule)
		if len(refs) == 0 {
			return Match{}, false
		}
		for _, r := range refs {
			if !seenEdge[r] {
				seenEdge[r] = true
				edgeRefs = append(edgeRefs, r)
			}
		}
	}

	match := Match{
		PatternID:              def.ID,
		Name:                   def.Name,
		Category:               def.Category,
		NodeIDs:                ix.nodesFor(def.Required.Nodes),
		EdgeRefs:               edgeRefs,
		MissingOptimalFeatures: make([]string, 0),
		BestPractices:          append([]string(nil), def.BestPractices...),
	}
	if match.EdgeRefs == nil {
		match.EdgeRefs = make([]string, 0)
	}

	total := def.Optimal.Size()
	unmet := 0
	for _, c := range def.Optimal.Nodes {
		found := ix.count(c.Selector)
		if !c.Satisfied(found) {
			unmet++
			match.MissingOptimalFeatures = append(match.MissingOptimalFeatures, c.Describe(found))
		}
	}
	for _, rule := range def.Optimal.Connections {
		if len(ix.edgesMatching(rule)) == 0 {
			unmet++
			match.MissingOptimalFeatures = append(match.MissingOptimalFeatures, rule.Describe())
		}
	}
	match.ImplementationQuality = quality(unmet, total)
	return match, true
}

func (ix *index) nodesFor(constraints []NodeConstraint) []string {
	ids := make([]string, 0)
	for _, n := range ix.d.Nodes {
		for _, c := range constraints {
			if c.Matches(n) {
				ids = append(ids, n.ID)
				break
			}
		}
	}
	return ids
}

func quality(unmet, total int) float64 {
	if total == 0 {
		return 1
	}
	q := 1 - float64(unmet)/float64(total)
	return math.Max(0, math.Min(1, q))
}

func edgeRef(i int, e diagram.Edge) string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("%s->%s#%d", e.Source, e.Target, i)
}
