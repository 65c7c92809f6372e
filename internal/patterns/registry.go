package patterns

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultDefinitions []byte

// Registry is an immutable, ordered set of pattern definitions. Build one at
// startup and pass it to the Matcher.
type Registry struct {
	defs []Definition
	byID map[string]int
}

// NewRegistry validates the definitions and returns a registry holding
// copies of them.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		defs: make([]Definition, 0, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, &DefinitionError{Reason: "missing id"}
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, &DefinitionError{PatternID: d.ID, Reason: "duplicate id"}
		}
		if !d.Category.valid() {
			return nil, &DefinitionError{PatternID: d.ID, Reason: fmt.Sprintf("unknown category %q", d.Category)}
		}
		if d.Required.Size() == 0 {
			return nil, &DefinitionError{PatternID: d.ID, Reason: "required criteria are empty"}
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		r.byID[d.ID] = len(r.defs)
		r.defs = append(r.defs, cloneDefinition(d))
	}
	return r, nil
}

// DefaultRegistry returns a registry built from the embedded definitions.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(defaultDefinitions)
}

// LoadRegistryFile reads pattern definitions from a YAML file.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern registry: %w", err)
	}
	return LoadRegistry(data)
}

// LoadRegistry parses YAML pattern definitions.
func LoadRegistry(data []byte) (*Registry, error) {
	var doc registryFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pattern registry: %w", err)
	}
	defs := make([]Definition, 0, len(doc.Patterns))
	for _, p := range doc.Patterns {
		d, err := p.compile()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return NewRegistry(defs)
}

// Definitions returns the definitions in registry order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	for i, d := range r.defs {
		out[i] = cloneDefinition(d)
	}
	return out
}

// Get returns a definition by id.
func (r *Registry) Get(id string) (Definition, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Definition{}, false
	}
	return cloneDefinition(r.defs[i]), true
}

// Len returns the number of definitions.
func (r *Registry) Len() int { return len(r.defs) }

// IDs returns the pattern ids in registry order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.defs))
	for i, d := range r.defs {
		ids[i] = d.ID
	}
	return ids
}

func cloneDefinition(d Definition) Definition {
	d.Required = cloneCriteria(d.Required)
	d.Optimal = cloneCriteria(d.Optimal)
	d.BestPractices = append([]string(nil), d.BestPractices...)
	return d
}

func cloneCriteria(c Criteria) Criteria {
	return Criteria{
		Nodes:       append([]NodeConstraint(nil), c.Nodes...),
		Connections: append([]AdjacencyRule(nil), c.Connections...),
	}
}

// YAML shapes

type registryFile struct {
	Patterns []patternDoc `yaml:"patterns"`
}

type patternDoc struct {
	ID            string      `yaml:"id"`
	Name          string      `yaml:"name"`
	Category      string      `yaml:"category"`
	Description   string      `yaml:"description"`
	Required      criteriaDoc `yaml:"required"`
	Optimal       criteriaDoc `yaml:"optimal"`
	BestPractices []string    `yaml:"bestPractices"`
}

type criteriaDoc struct {
	Nodes       []nodeDoc `yaml:"nodes"`
	Connections []string  `yaml:"connections"`
}

type nodeDoc struct {
	Type     string `yaml:"type"`
	Property string `yaml:"property"`
	Count    *int   `yaml:"count"`
	Min      *int   `yaml:"min"`
}

func (p patternDoc) compile() (Definition, error) {
	d := Definition{
		ID:            p.ID,
		Name:          p.Name,
		Category:      Category(p.Category),
		Description:   p.Description,
		BestPractices: p.BestPractices,
	}
	var err error
	if d.Required, err = p.Required.compile(p.ID); err != nil {
		return Definition{}, err
	}
	if d.Optimal, err = p.Optimal.compile(p.ID); err != nil {
		return Definition{}, err
	}
	return d, nil
}

func (c criteriaDoc) compile(id string) (Criteria, error) {
	var out Criteria
	for _, n := range c.Nodes {
		sel, err := ParseSelector(n.Type)
		if err != nil {
			return Criteria{}, &DefinitionError{PatternID: id, Reason: err.Error()}
		}
		if n.Property != "" {
			sel.Property = n.Property
		}
		nc := NodeConstraint{Selector: sel}
		switch {
		case n.Count != nil && n.Min != nil:
			return Criteria{}, &DefinitionError{PatternID: id, Reason: fmt.Sprintf("%s: count and min are exclusive", sel)}
		case n.Count != nil:
			nc.Mode, nc.Count = CountExact, *n.Count
		case n.Min != nil:
			nc.Mode, nc.Count = CountMin, *n.Min
		default:
			nc.Mode, nc.Count = CountMin, 1
		}
		if nc.Count < 0 {
			return Criteria{}, &DefinitionError{PatternID: id, Reason: fmt.Sprintf("%s: negative count", sel)}
		}
		out.Nodes = append(out.Nodes, nc)
	}
	for _, s := range c.Connections {
		rule, err := ParseAdjacencyRule(s)
		if err != nil {
			return Criteria{}, &DefinitionError{PatternID: id, Reason: err.Error()}
		}
		out.Connections = append(out.Connections, rule)
	}
	return out, nil
}
