package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObambaCaree/petridish/internal/world"
)

func newWorld() *world.World {
	return world.New(world.Config{Width: 1000, Height: 1000, Seed: "spatial"}, world.Deps{})
}

func TestQueryOnEmptyIndex(t *testing.T) {
	idx := New()
	assert.Empty(t, idx.QueryCircle(10, 10, 100, KindAll))

	idx.Rebuild(newWorld())
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Query(Region{MaxX: 1000, MaxY: 1000}, KindAll))
}

func TestQueryFiltersByKind(t *testing.T) {
	w := newWorld()
	food := w.AddFood(100, 100)
	virus := w.AddVirus(110, 110, 100)
	p := w.SpawnPlayer("a", world.KindPlayer)
	p.Cells[0].X, p.Cells[0].Y = 120, 120
	require.NoError(t, w.AddPlayer(p))

	idx := New()
	idx.Rebuild(w)
	require.Equal(t, 3, idx.Len())

	foods := idx.QueryCircle(100, 100, 5, KindFood)
	require.Len(t, foods, 1)
	assert.Same(t, food, foods[0].Food)

	viruses := idx.QueryCircle(100, 100, 5, KindVirus)
	require.Len(t, viruses, 1)
	assert.Same(t, virus, viruses[0].Virus)

	cells := idx.QueryCircle(100, 100, 5, KindCell)
	require.Len(t, cells, 1)
	assert.Same(t, p, cells[0].Player)
	assert.Same(t, p.Cells[0], cells[0].Cell)
}

func TestRebuildSkipsConsumed(t *testing.T) {
	w := newWorld()
	f := w.AddFood(50, 50)
	w.AddFood(60, 60)
	w.ConsumeFood(f)

	idx := New()
	idx.Rebuild(w)
	assert.Equal(t, 1, idx.Len())
	for _, e := range idx.QueryCircle(50, 50, 30, KindFood) {
		assert.NotSame(t, f, e.Food)
	}
}

// Every entity whose bounding box intersects the query must be returned.
func TestQueryHasNoFalseNegatives(t *testing.T) {
	w := newWorld()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		w.AddFood(rng.Float64()*1000, rng.Float64()*1000)
	}
	for i := 0; i < 20; i++ {
		w.AddVirus(rng.Float64()*1000, rng.Float64()*1000, 100+rng.Float64()*50)
	}
	idx := New()
	idx.Rebuild(w)

	for q := 0; q < 50; q++ {
		region := CircleRegion(rng.Float64()*1000, rng.Float64()*1000, 10+rng.Float64()*150)
		got := make(map[uint64]bool)
		for _, e := range idx.Query(region, KindAll) {
			switch e.Kind {
			case KindFood:
				got[e.Food.ID] = true
			case KindVirus:
				got[e.Virus.ID] = true
			}
		}
		for _, f := range w.Food() {
			if region.Intersects(f.X, f.Y, f.Radius) && strictlyOverlaps(region, f.X, f.Y, f.Radius) {
				assert.True(t, got[f.ID], "missing food %d", f.ID)
			}
		}
		for _, v := range w.Viruses() {
			if region.Intersects(v.X, v.Y, v.Radius) && strictlyOverlaps(region, v.X, v.Y, v.Radius) {
				assert.True(t, got[v.ID], "missing virus %d", v.ID)
			}
		}
	}
}

func TestQueryPreservesInsertionOrder(t *testing.T) {
	w := newWorld()
	for i := 0; i < 100; i++ {
		w.AddFood(float64(500+i%10), float64(500+i/10))
	}
	idx := New()
	idx.Rebuild(w)
	hits := idx.QueryCircle(505, 505, 50, KindFood)
	require.Len(t, hits, 100)
	for i := 1; i < len(hits); i++ {
		assert.Less(t, hits[i-1].Food.ID, hits[i].Food.ID)
	}
}

func strictlyOverlaps(r Region, x, y, radius float64) bool {
	return math.Min(x+radius, r.MaxX) > math.Max(x-radius, r.MinX) &&
		math.Min(y+radius, r.MaxY) > math.Max(y-radius, r.MinY)
}
