// Package patterns holds the registry of known architectural patterns and
// the matcher that evaluates a diagram against it.
package patterns

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

// Category groups patterns for scoring.
type Category string

const (
	CategoryScalability  Category = "scalability"
	CategoryPerformance  Category = "performance"
	CategoryArchitecture Category = "architecture"
	CategoryMessaging    Category = "messaging"
	CategoryReliability  Category = "reliability"
	CategorySecurity     Category = "security"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryScalability,
	CategoryPerformance,
	CategoryArchitecture,
	CategoryMessaging,
	CategoryReliability,
	CategorySecurity,
}

func (c Category) valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// CountMode says how a node constraint compares its count.
type CountMode string

const (
	CountExact CountMode = "exact"
	CountMin   CountMode = "min"
)

// Selector matches nodes by type and an optional property tag.
type Selector struct {
	Type     diagram.ComponentType `json:"type"`
	Property string                `json:"property,omitempty"`
}

// Matches reports whether the node satisfies the selector.
func (s Selector) Matches(n diagram.Node) bool {
	if n.Kind() != s.Type {
		return false
	}
	return s.Property == "" || n.HasProperty(s.Property)
}

func (s Selector) String() string {
	if s.Property == "" {
		return string(s.Type)
	}
	return fmt.Sprintf("%s[%s]", s.Type, s.Property)
}

// NodeConstraint requires a number of nodes matching a selector.
type NodeConstraint struct {
	Selector
	Mode  CountMode `json:"mode"`
	Count int       `json:"count"`
}

// Satisfied reports whether found meets the constraint.
func (c NodeConstraint) Satisfied(found int) bool {
	if c.Mode == CountExact {
		return found == c.Count
	}
	return found >= c.Count
}

// Describe renders the unmet constraint for missingOptimalFeatures.
func (c NodeConstraint) Describe(found int) string {
	noun := "nodes"
	if c.Count == 1 {
		noun = "node"
	}
	if c.Mode == CountExact {
		return fmt.Sprintf("need exactly %d %s %s, found %d", c.Count, c.Selector, noun, found)
	}
	return fmt.Sprintf("need at least %d %s %s, found %d", c.Count, c.Selector, noun, found)
}

// AdjacencyRule requires at least one directed edge from a From node to a
// To node, optionally of a given connection type.
type AdjacencyRule struct {
	From       Selector               `json:"from"`
	To         Selector               `json:"to"`
	Connection diagram.ConnectionType `json:"connection,omitempty"`
}

// Matches reports whether the edge between src and dst satisfies the rule.
func (r AdjacencyRule) Matches(src, dst diagram.Node, e diagram.Edge) bool {
	if !r.From.Matches(src) || !r.To.Matches(dst) {
		return false
	}
	return r.Connection == "" || e.Kind() == r.Connection
}

func (r AdjacencyRule) String() string {
	s := r.From.String() + "-" + r.To.String()
	if r.Connection != "" {
		s += "-" + string(r.Connection)
	}
	return s
}

// Describe renders the unmet rule for missingOptimalFeatures.
func (r AdjacencyRule) Describe() string {
	if r.Connection != "" {
		return fmt.Sprintf("need a %s connection from %s to %s", r.Connection, r.From, r.To)
	}
	return fmt.Sprintf("need a connection from %s to %s", r.From, r.To)
}

// Criteria is a set of node constraints and adjacency rules that must all hold.
type Criteria struct {
	Nodes       []NodeConstraint `json:"nodes,omitempty"`
	Connections []AdjacencyRule  `json:"connections,omitempty"`
}

// Size is the number of individual constraints in the criteria.
func (c Criteria) Size() int {
	return len(c.Nodes) + len(c.Connections)
}

// Definition is a named structural template.
type Definition struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Category      Category `json:"category"`
	Description   string   `json:"description,omitempty"`
	Required      Criteria `json:"required"`
	Optimal       Criteria `json:"optimal"`
	BestPractices []string `json:"bestPractices,omitempty"`
}

// DefinitionError reports an invalid pattern definition.
type DefinitionError struct {
	PatternID string
	Reason    string
}

func (e *DefinitionError) Error() string {
	if e.PatternID == "" {
		return "pattern definition: " + e.Reason
	}
	return fmt.Sprintf("pattern %q: %s", e.PatternID, e.Reason)
}

// ParseSelector parses "type" or "type[property]".
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	var sel Selector
	if open := strings.IndexByte(s, '['); open >= 0 {
		if !strings.HasSuffix(s, "]") || open == len(s)-2 {
			return Selector{}, fmt.Errorf("malformed selector %q", s)
		}
		sel.Property = s[open+1 : len(s)-1]
		s = s[:open]
	}
	t := diagram.ComponentType(s).Normalize()
	if t == diagram.ComponentUnrecognized {
		return Selector{}, fmt.Errorf("unknown component type %q", s)
	}
	sel.Type = t
	return sel, nil
}

// ParseAdjacencyRule parses "typeA-typeB" or "typeA-typeB-connectionType".
func ParseAdjacencyRule(s string) (AdjacencyRule, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 2 || len(parts) > 3 {
		return AdjacencyRule{}, fmt.Errorf("malformed connection rule %q", s)
	}
	from, err := ParseSelector(parts[0])
	if err != nil {
		return AdjacencyRule{}, fmt.Errorf("connection rule %q: %w", s, err)
	}
	to, err := ParseSelector(parts[1])
	if err != nil {
		return AdjacencyRule{}, fmt.Errorf("connection rule %q: %w", s, err)
	}
	rule := AdjacencyRule{From: from, To: to}
	if len(parts) == 3 {
		ct := diagram.ConnectionType(parts[2]).Normalize()
		if ct == diagram.ConnectionUnrecognized {
			return AdjacencyRule{}, fmt.Errorf("connection rule %q: unknown connection type %q", s, parts[2])
		}
		rule.Connection = ct
	}
	return rule, nil
}
