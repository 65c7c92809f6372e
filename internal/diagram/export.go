package diagram

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ExportDOT generates a Graphviz DOT representation of the diagram, with one
// cluster per component category.
func ExportDOT(d *Diagram) string {
	var b strings.Builder
	b.WriteString("digraph architecture {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	groups, order := groupByCategory(d)
	for _, cat := range order {
		b.WriteString(fmt.Sprintf("  subgraph cluster_%s {\n", sanitizeID(string(cat))))
		b.WriteString(fmt.Sprintf("    label=\"%s\";\n", cat))
		b.WriteString("    style=dashed;\n")
		b.WriteString("    color=\"#58a6ff\";\n")
		for _, n := range groups[cat] {
			b.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\" shape=%s style=filled fillcolor=\"%s\"];\n",
				n.ID, escapeLabel(displayName(n)), dotShape(n.Kind()), dotColor(n.Kind())))
		}
		b.WriteString("  }\n\n")
	}

	for _, e := range d.Edges {
		label := ""
		if e.Type != "" {
			label = fmt.Sprintf(" label=\"%s\"", e.Kind())
		}
		b.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [style=%s color=\"%s\"%s];\n",
			e.Source, e.Target, dotEdgeStyle(e.Kind()), dotEdgeColor(e.Kind()), label))
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid flowchart of the diagram.
func ExportMermaid(d *Diagram) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	groups, order := groupByCategory(d)
	for _, cat := range order {
		b.WriteString(fmt.Sprintf("  subgraph %s\n", sanitizeID(string(cat))))
		for _, n := range groups[cat] {
			b.WriteString(fmt.Sprintf("    %s%s\n", sanitizeID(n.ID), mermaidShape(n)))
		}
		b.WriteString("  end\n")
	}

	for _, e := range d.Edges {
		label := ""
		if e.Type != "" {
			label = "|" + string(e.Kind()) + "|"
		}
		b.WriteString(fmt.Sprintf("  %s %s%s %s\n",
			sanitizeID(e.Source), mermaidArrow(e.Kind()), label, sanitizeID(e.Target)))
	}
	return b.String()
}

// ExportJSON serializes the diagram to indented JSON.
func ExportJSON(d *Diagram) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// FormatStats returns a human-readable summary of the diagram structure.
func FormatStats(s Stats) string {
	var b strings.Builder
	b.WriteString("Diagram Structure\n")
	b.WriteString("=================\n\n")
	b.WriteString(fmt.Sprintf("Nodes:       %d total\n", s.TotalNodes))

	types := make([]string, 0, len(s.TypeCounts))
	for t := range s.TypeCounts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", t+":", s.TypeCounts[ComponentType(t)]))
	}
	if s.Unrecognized > 0 {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", "unrecognized:", s.Unrecognized))
	}
	b.WriteString(fmt.Sprintf("Edges:       %d total\n", s.TotalEdges))
	b.WriteString(fmt.Sprintf("Max Fan-Out: %d (%s)\n", s.MaxFanOut, s.HotspotNode))
	b.WriteString(fmt.Sprintf("Max Fan-In:  %d\n", s.MaxFanIn))
	b.WriteString(fmt.Sprintf("Components:  %d\n", s.ConnectedComponents))

	if len(s.Cycles) > 0 {
		b.WriteString(fmt.Sprintf("\nCycles: %d\n", len(s.Cycles)))
		for i, cycle := range s.Cycles {
			b.WriteString(fmt.Sprintf("  %d: %s\n", i+1, strings.Join(cycle, " -> ")))
		}
	}
	return b.String()
}

var categoryOrder = []ComponentCategory{
	CategoryNetworking,
	CategoryCompute,
	CategoryMessaging,
	CategoryStorage,
	CategorySecurity,
	CategoryOther,
}

func groupByCategory(d *Diagram) (map[ComponentCategory][]Node, []ComponentCategory) {
	groups := make(map[ComponentCategory][]Node)
	for _, n := range d.Nodes {
		cat := n.Type.Category()
		groups[cat] = append(groups[cat], n)
	}
	var order []ComponentCategory
	for _, cat := range categoryOrder {
		if len(groups[cat]) > 0 {
			order = append(order, cat)
		}
	}
	return groups, order
}

func displayName(n Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func dotShape(t ComponentType) string {
	switch t {
	case ComponentService:
		return "box"
	case ComponentDatabase, ComponentStorage:
		return "cylinder"
	case ComponentCache:
		return "box3d"
	case ComponentQueue:
		return "cds"
	case ComponentGateway:
		return "hexagon"
	case ComponentLoadBalancer:
		return "diamond"
	case ComponentClient:
		return "ellipse"
	default:
		return "box"
	}
}

func dotColor(t ComponentType) string {
	switch t.Category() {
	case CategoryCompute:
		return "#238636"
	case CategoryNetworking:
		return "#1f6feb"
	case CategoryStorage:
		return "#8957e5"
	case CategoryMessaging:
		return "#d29922"
	case CategorySecurity:
		return "#f85149"
	default:
		return "#30363d"
	}
}

func dotEdgeStyle(t ConnectionType) string {
	switch t {
	case ConnectionSync:
		return "solid"
	case ConnectionAsync, ConnectionPublish, ConnectionSubscribe:
		return "dashed"
	case ConnectionDepends:
		return "dotted"
	default:
		return "solid"
	}
}

func dotEdgeColor(t ConnectionType) string {
	switch t {
	case ConnectionSync:
		return "#3fb950"
	case ConnectionAsync:
		return "#d29922"
	case ConnectionPublish, ConnectionSubscribe:
		return "#8957e5"
	case ConnectionDepends:
		return "#8b949e"
	default:
		return "#c9d1d9"
	}
}

func mermaidShape(n Node) string {
	name := strings.ReplaceAll(displayName(n), `"`, "'")
	switch n.Kind() {
	case ComponentDatabase, ComponentStorage:
		return fmt.Sprintf("[(\"%s\")]", name)
	case ComponentCache:
		return fmt.Sprintf("[[\"%s\"]]", name)
	case ComponentQueue:
		return fmt.Sprintf(">\"%s\"]", name)
	case ComponentGateway:
		return fmt.Sprintf("{{\"%s\"}}", name)
	case ComponentLoadBalancer:
		return fmt.Sprintf("{\"%s\"}", name)
	case ComponentClient:
		return fmt.Sprintf("([\"%s\"])", name)
	default:
		return fmt.Sprintf("[\"%s\"]", name)
	}
}

func mermaidArrow(t ConnectionType) string {
	switch t {
	case ConnectionAsync, ConnectionPublish, ConnectionSubscribe:
		return "-.->"
	case ConnectionDepends:
		return "==>"
	default:
		return "-->"
	}
}
