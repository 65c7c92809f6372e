// Package diagram holds the value types for a system-design diagram: typed
// nodes connected by typed edges. The scoring packages only ever read these
// values; nothing in this module mutates a Diagram after it is decoded.
package diagram

import (
	"fmt"
	"strings"
)

// Position is the editor canvas location of a node.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node represents a component in the diagram.
type Node struct {
	ID         string        `json:"id" yaml:"id"`
	Type       ComponentType `json:"type" yaml:"type"`
	Label      string        `json:"label,omitempty" yaml:"label,omitempty"`
	Properties []string      `json:"properties,omitempty" yaml:"properties,omitempty"`
	Position   *Position     `json:"position,omitempty" yaml:"position,omitempty"`
}

// Kind returns the normalised component type of the node.
func (n Node) Kind() ComponentType {
	return n.Type.Normalize()
}

// HasProperty reports whether the node carries the given tag (case-insensitive).
func (n Node) HasProperty(tag string) bool {
	return hasTag(n.Properties, tag)
}

// Edge represents a directed connection between two nodes.
type Edge struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty"`
	Source     string         `json:"source" yaml:"source"`
	Target     string         `json:"target" yaml:"target"`
	Type       ConnectionType `json:"type,omitempty" yaml:"type,omitempty"`
	Properties []string       `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Kind returns the normalised connection type of the edge.
func (e Edge) Kind() ConnectionType {
	return e.Type.Normalize()
}

// HasProperty reports whether the edge carries the given tag (case-insensitive).
func (e Edge) HasProperty(tag string) bool {
	return hasTag(e.Properties, tag)
}

// Diagram is the structural payload handed over by the editor.
type Diagram struct {
	Type  DiagramType `json:"type" yaml:"type"`
	Nodes []Node      `json:"nodes" yaml:"nodes"`
	Edges []Edge      `json:"edges" yaml:"edges"`
}

// NodeByID returns the node with the given id.
func (d *Diagram) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// TypeCounts returns how many nodes of each recognised component type exist.
// Unrecognised nodes are not counted.
func (d *Diagram) TypeCounts() map[ComponentType]int {
	counts := make(map[ComponentType]int)
	for _, n := range d.Nodes {
		k := n.Kind()
		if k == ComponentUnrecognized {
			continue
		}
		counts[k]++
	}
	return counts
}

// NodesOfKind returns the ids of all nodes with the given normalised type.
func (d *Diagram) NodesOfKind(kind ComponentType) []string {
	var ids []string
	for _, n := range d.Nodes {
		if n.Kind() == kind {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Identity correlates snapshots of the same diagram across edits.
type Identity struct {
	SessionID   string      `json:"session_id"`
	DiagramType DiagramType `json:"diagram_type"`
}

// NewIdentity builds an identity from a session id and a diagram type.
func NewIdentity(sessionID string, diagramType DiagramType) Identity {
	return Identity{SessionID: sessionID, DiagramType: diagramType}
}

// String returns the storage key of the identity, e.g. "sess-42/system".
func (i Identity) String() string {
	return fmt.Sprintf("%s/%s", i.SessionID, i.DiagramType)
}

// ParseIdentity parses the output of Identity.String.
func ParseIdentity(key string) (Identity, error) {
	idx := strings.LastIndex(key, "/")
	if idx <= 0 || idx == len(key)-1 {
		return Identity{}, fmt.Errorf("invalid diagram identity %q", key)
	}
	return Identity{SessionID: key[:idx], DiagramType: DiagramType(key[idx+1:])}, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
