package diagram

import "sort"

// Stats holds structural metrics used by the export and CLI summaries.
type Stats struct {
	TotalNodes          int                   `json:"total_nodes"`
	TotalEdges          int                   `json:"total_edges"`
	TypeCounts          map[ComponentType]int `json:"type_counts"`
	Unrecognized        int                   `json:"unrecognized"`
	MaxFanOut           int                   `json:"max_fan_out"`
	MaxFanIn            int                   `json:"max_fan_in"`
	HotspotNode         string                `json:"hotspot_node"`
	ConnectedComponents int                   `json:"connected_components"`
	Cycles              [][]string            `json:"cycles,omitempty"`
}

// ComputeStats computes fan-in/out, weakly connected components and cycles.
func ComputeStats(d *Diagram) Stats {
	s := Stats{
		TotalNodes: len(d.Nodes),
		TotalEdges: len(d.Edges),
		TypeCounts: d.TypeCounts(),
	}
	for _, n := range d.Nodes {
		if n.Kind() == ComponentUnrecognized {
			s.Unrecognized++
		}
	}

	fanOut := make(map[string]int)
	fanIn := make(map[string]int)
	for _, e := range d.Edges {
		fanOut[e.Source]++
		fanIn[e.Target]++
	}
	// iterate in node order so the hotspot is deterministic
	for _, n := range d.Nodes {
		if fanOut[n.ID] > s.MaxFanOut {
			s.MaxFanOut = fanOut[n.ID]
			s.HotspotNode = n.ID
		}
		if fanIn[n.ID] > s.MaxFanIn {
			s.MaxFanIn = fanIn[n.ID]
		}
	}

	s.ConnectedComponents = countComponents(d)
	s.Cycles = FindCycles(d)
	return s
}

// Roots returns the ids of nodes without incoming edges, in node order.
func Roots(d *Diagram) []string {
	incoming := make(map[string]bool, len(d.Nodes))
	for _, e := range d.Edges {
		incoming[e.Target] = true
	}
	var roots []string
	for _, n := range d.Nodes {
		if !incoming[n.ID] {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Adjacency returns the outgoing neighbour ids per node, in edge order.
func Adjacency(d *Diagram) map[string][]string {
	adj := make(map[string][]string, len(d.Nodes))
	for _, e := range d.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	return adj
}

// countComponents counts weakly connected components via union-find.
func countComponents(d *Diagram) int {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		fa, fb := find(a), find(b)
		if fa != fb {
			parent[fa] = fb
		}
	}

	for _, n := range d.Nodes {
		find(n.ID)
	}
	for _, e := range d.Edges {
		union(e.Source, e.Target)
	}

	roots := make(map[string]bool)
	for _, n := range d.Nodes {
		roots[find(n.ID)] = true
	}
	return len(roots)
}

// FindCycles returns the directed cycles reachable by a DFS over the diagram,
// each listed from its first visited node.
func FindCycles(d *Diagram) [][]string {
	adj := Adjacency(d)

	var cycles [][]string
	state := make(map[string]int) // 0=unvisited, 1=on path, 2=done
	path := make([]string, 0)

	var dfs func(node string)
	dfs = func(node string) {
		if state[node] == 2 {
			return
		}
		if state[node] == 1 {
			cycle := make([]string, 0)
			for i := len(path) - 1; i >= 0; i-- {
				cycle = append(cycle, path[i])
				if path[i] == node {
					break
				}
			}
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			cycles = append(cycles, cycle)
			return
		}
		state[node] = 1
		path = append(path, node)
		for _, next := range adj[node] {
			dfs(next)
		}
		path = path[:len(path)-1]
		state[node] = 2
	}

	ids := make([]string, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == 0 {
			dfs(id)
		}
	}
	return cycles
}
