package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/patterns"
	"github.com/efebarandurmaz/archscore/internal/scoring"
)

func scored(t *testing.T, e *scoring.Engine, d *diagram.Diagram) *scoring.Report {
	t.Helper()
	r, err := e.Score(d)
	require.NoError(t, err)
	return r
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, float32(0), Cosine([]float32{1}, []float32{1, 1}))
}

func TestVectorDimension(t *testing.T) {
	reg, err := patterns.DefaultRegistry()
	require.NoError(t, err)
	e := scoring.NewEngine(reg, nil)
	v := NewVectorizer(reg.IDs())

	d := &diagram.Diagram{Type: diagram.DiagramSystem}
	assert.Len(t, v.Vector(d, scored(t, e, d)), v.Dim())
}

func TestMemoryIndexRanksClosestFirst(t *testing.T) {
	reg, err := patterns.DefaultRegistry()
	require.NoError(t, err)
	e := scoring.NewEngine(reg, nil)
	v := NewVectorizer(reg.IDs())
	ctx := context.Background()

	small := &diagram.Diagram{
		Type:  diagram.DiagramSystem,
		Nodes: []diagram.Node{{ID: "s", Type: "service"}, {ID: "db", Type: "database"}},
		Edges: []diagram.Edge{{Source: "s", Target: "db"}},
	}
	cached := &diagram.Diagram{
		Type: diagram.DiagramSystem,
		Nodes: []diagram.Node{
			{ID: "lb", Type: "loadBalancer"},
			{ID: "a", Type: "service"}, {ID: "b", Type: "service"},
			{ID: "c", Type: "cache"}, {ID: "c2", Type: "cache"},
		},
		Edges: []diagram.Edge{
			{Source: "lb", Target: "a"}, {Source: "lb", Target: "b"},
			{Source: "a", Target: "c"}, {Source: "b", Target: "c2"},
		},
	}

	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, []Entry{
		{Identity: "x/system", Vector: v.Vector(small, scored(t, e, small))},
		{Identity: "y/system", Vector: v.Vector(cached, scored(t, e, cached))},
	}))

	res, err := idx.Search(ctx, v.Vector(small, scored(t, e, small)), 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "x/system", res[0].Identity)
	assert.InDelta(t, 1.0, res[0].Score, 1e-5)

	// re-upserting the same identity replaces the entry
	require.NoError(t, idx.Upsert(ctx, []Entry{{Identity: "x/system", Vector: v.Vector(cached, scored(t, e, cached))}}))
	res, err = idx.Search(ctx, v.Vector(cached, scored(t, e, cached)), 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}
