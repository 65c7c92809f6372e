package diagram

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"lukechampine.com/blake3"
)

// Fingerprint returns a content hash of the diagram that is independent of
// node, edge and property ordering. Two diagrams with the same fingerprint
// always produce the same score.
func Fingerprint(d *Diagram) string {
	c := canonical(d)
	data, _ := json.Marshal(c)
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func canonical(d *Diagram) Diagram {
	out := Diagram{
		Type:  d.Type,
		Nodes: make([]Node, len(d.Nodes)),
		Edges: make([]Edge, len(d.Edges)),
	}
	for i, n := range d.Nodes {
		n.Type = n.Kind()
		n.Properties = sortedCopy(n.Properties)
		n.Position = nil
		out.Nodes[i] = n
	}
	for i, e := range d.Edges {
		e.Type = e.Kind()
		e.Properties = sortedCopy(e.Properties)
		e.ID = ""
		out.Edges[i] = e
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	sort.Slice(out.Edges, func(i, j int) bool {
		a, b := out.Edges[i], out.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Type < b.Type
	})
	return out
}

func sortedCopy(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	c := append([]string(nil), s...)
	sort.Strings(c)
	return c
}
