package issues

import (
	"testing"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

func countCategory(found []CriticalIssue, c Category) int {
	n := 0
	for _, i := range found {
		if i.Category == c {
			n++
		}
	}
	return n
}

func TestSinglePointOfFailure(t *testing.T) {
	d := &diagram.Diagram{
		Nodes: []diagram.Node{{ID: "s1", Type: "service"}, {ID: "db1", Type: "database"}},
		Edges: []diagram.Edge{{Source: "s1", Target: "db1", Type: "sync"}},
	}
	found := Find(d)
	if len(found) != 1 {
		t.Fatalf("issues = %+v, want one", found)
	}
	if found[0].Category != CategorySinglePointOfFailure || found[0].NodeID != "db1" {
		t.Errorf("issue = %+v", found[0])
	}
}

func TestRedundancyByTypeCountAlone(t *testing.T) {
	d := &diagram.Diagram{
		Nodes: []diagram.Node{{ID: "s1", Type: "service"}, {ID: "db1", Type: "database"}, {ID: "db2", Type: "database"}},
		Edges: []diagram.Edge{{Source: "s1", Target: "db1", Type: "sync"}},
	}
	if n := countCategory(Find(d), CategorySinglePointOfFailure); n != 0 {
		t.Errorf("got %d SPOF issues, want 0", n)
	}
}

func TestSingleCacheAndDatabase(t *testing.T) {
	d := &diagram.Diagram{
		Nodes: []diagram.Node{{ID: "c", Type: "cache"}, {ID: "db", Type: "database"}, {ID: "s", Type: "service"}},
	}
	if n := countCategory(Find(d), CategorySinglePointOfFailure); n != 2 {
		t.Errorf("got %d SPOF issues, want 2", n)
	}
}

func TestSecurityBoundary(t *testing.T) {
	tests := []struct {
		name  string
		nodes []diagram.Node
		want  int
	}{
		{"one service", []diagram.Node{{ID: "a", Type: "service"}}, 0},
		{"two services", []diagram.Node{{ID: "a", Type: "service"}, {ID: "b", Type: "service"}}, 1},
		{"gateway present", []diagram.Node{{ID: "g", Type: "apiGateway"}, {ID: "a", Type: "service"}, {ID: "b", Type: "service"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := countCategory(Find(&diagram.Diagram{Nodes: tt.nodes}), CategorySecurity)
			if got != tt.want {
				t.Errorf("security issues = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNoEntryPoint(t *testing.T) {
	d := &diagram.Diagram{
		Nodes: []diagram.Node{{ID: "a", Type: "service"}, {ID: "b", Type: "client"}},
		Edges: []diagram.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
	}
	if n := countCategory(Find(d), CategoryOther); n != 1 {
		t.Errorf("got %d entry point issues, want 1", n)
	}
	if n := len(Find(&diagram.Diagram{})); n != 0 {
		t.Errorf("empty diagram produced %d issues", n)
	}
}
