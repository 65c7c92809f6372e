package diagram

import (
	"fmt"
	"strings"
)

// ValidationError reports structural invariant violations found at the
// boundary, before any analysis runs.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid diagram: %s", strings.Join(e.Problems, "; "))
}

// UnsupportedDiagramTypeError is returned by RequireSupportedType for callers
// that want type-specific validation on top of the structural checks.
type UnsupportedDiagramTypeError struct {
	Type DiagramType
}

func (e *UnsupportedDiagramTypeError) Error() string {
	return fmt.Sprintf("unsupported diagram type %q", string(e.Type))
}

// Validate checks the structural invariants: unique, non-empty node ids,
// unique edge ids and edges whose endpoints reference existing nodes.
// Unknown component or connection types are not errors.
func Validate(d *Diagram) error {
	if d == nil {
		return &ValidationError{Problems: []string{"diagram is nil"}}
	}

	var problems []string
	ids := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		if n.ID == "" {
			problems = append(problems, fmt.Sprintf("node at index %d has an empty id", i))
			continue
		}
		if ids[n.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		ids[n.ID] = true
	}

	edgeIDs := make(map[string]bool, len(d.Edges))
	for i, e := range d.Edges {
		name := e.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		} else if edgeIDs[e.ID] {
			problems = append(problems, fmt.Sprintf("duplicate edge id %q", e.ID))
		} else {
			edgeIDs[e.ID] = true
		}
		if !ids[e.Source] {
			problems = append(problems, fmt.Sprintf("edge %s references unknown source node %q", name, e.Source))
		}
		if !ids[e.Target] {
			problems = append(problems, fmt.Sprintf("edge %s references unknown target node %q", name, e.Target))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// RequireSupportedType returns an UnsupportedDiagramTypeError unless the
// diagram is a system or sequence diagram.
func RequireSupportedType(d *Diagram) error {
	if !d.Type.IsSupported() {
		return &UnsupportedDiagramTypeError{Type: d.Type}
	}
	return nil
}
