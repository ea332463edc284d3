// Package spatial provides the broad-phase index rebuilt once per physics
// tick over every collidable entity.
package spatial

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/ObambaCaree/petridish/internal/world"
)

// minExtent keeps degenerate (zero radius) entities representable; the
// R-tree rejects rectangles with a zero-length side.
const minExtent = 0.01

// Kind tags the entity an Entry refers to.
type Kind uint8

const (
	KindCell Kind = 1 << iota
	KindFood
	KindPellet
	KindVirus

	KindAll = KindCell | KindFood | KindPellet | KindVirus
)

// Entry is one indexed bounding circle. Exactly one of the entity pointers
// matching Kind is set; Player accompanies KindCell.
type Entry struct {
	Kind   Kind
	X      float64
	Y      float64
	Radius float64

	Player *world.Player
	Cell   *world.Cell
	Food   *world.Food
	Pellet *world.MassPellet
	Virus  *world.Virus

	order int
	rect  rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *Entry) Bounds() rtreego.Rect {
	return e.rect
}

// Region is an axis-aligned query rectangle.
type Region struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// CircleRegion returns the box enclosing a circle.
func CircleRegion(x, y, radius float64) Region {
	return Region{MinX: x - radius, MinY: y - radius, MaxX: x + radius, MaxY: y + radius}
}

// Intersects reports whether the entry's bounding box overlaps r.
func (r Region) Intersects(x, y, radius float64) bool {
	return x+radius >= r.MinX && x-radius <= r.MaxX && y+radius >= r.MinY && y-radius <= r.MaxY
}

// Index is a 2D R-tree over entity bounding boxes.
type Index struct {
	tree    *rtreego.Rtree
	entries []*Entry
}

func New() *Index {
	return &Index{tree: rtreego.NewTree(2, 25, 50)}
}

// Rebuild discards the previous tree and bulk-loads every live entity of w.
// Consumed entities are skipped.
func (idx *Index) Rebuild(w *world.World) {
	idx.entries = idx.entries[:0]
	for _, p := range w.Players() {
		for _, c := range p.Cells {
			idx.entries = append(idx.entries, newEntry(KindCell, c.X, c.Y, c.Radius, func(e *Entry) {
				e.Player = p
				e.Cell = c
			}))
		}
	}
	for _, f := range w.Food() {
		if f.Consumed() {
			continue
		}
		idx.entries = append(idx.entries, newEntry(KindFood, f.X, f.Y, f.Radius, func(e *Entry) { e.Food = f }))
	}
	for _, m := range w.Pellets() {
		if m.Consumed() {
			continue
		}
		idx.entries = append(idx.entries, newEntry(KindPellet, m.X, m.Y, m.Radius, func(e *Entry) { e.Pellet = m }))
	}
	for _, v := range w.Viruses() {
		if v.Consumed() {
			continue
		}
		idx.entries = append(idx.entries, newEntry(KindVirus, v.X, v.Y, v.Radius, func(e *Entry) { e.Virus = v }))
	}

	spatials := make([]rtreego.Spatial, len(idx.entries))
	for i, e := range idx.entries {
		e.order = i
		spatials[i] = e
	}
	idx.tree = rtreego.NewTree(2, 25, 50, spatials...)
}

func newEntry(kind Kind, x, y, radius float64, bind func(*Entry)) *Entry {
	e := &Entry{Kind: kind, X: x, Y: y, Radius: radius}
	bind(e)
	e.rect = boxRect(x-radius, y-radius, x+radius, y+radius)
	return e
}

func boxRect(minX, minY, maxX, maxY float64) rtreego.Rect {
	w := math.Max(maxX-minX, minExtent)
	h := math.Max(maxY-minY, minExtent)
	rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{w, h})
	if err != nil {
		// Only reachable with NaN coordinates; fall back to a point box.
		rect, _ = rtreego.NewRect(rtreego.Point{0, 0}, []float64{minExtent, minExtent})
	}
	return rect
}

// Len reports how many entries the last rebuild indexed.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Query returns every entry of the requested kinds whose bounding box
// intersects region. Results may contain false positives but never miss an
// intersecting entity. Order follows insertion order so callers get a stable
// iteration independent of the tree's internal layout.
func (idx *Index) Query(region Region, kinds Kind) []*Entry {
	if len(idx.entries) == 0 || kinds == 0 {
		return nil
	}
	hits := idx.tree.SearchIntersect(boxRect(region.MinX, region.MinY, region.MaxX, region.MaxY), func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
		e := obj.(*Entry)
		return e.Kind&kinds == 0, false
	})
	if len(hits) == 0 {
		return nil
	}
	out := make([]*Entry, len(hits))
	for i, h := range hits {
		out[i] = h.(*Entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// QueryCircle is Query over the box enclosing a circle.
func (idx *Index) QueryCircle(x, y, radius float64, kinds Kind) []*Entry {
	return idx.Query(CircleRegion(x, y, radius), kinds)
}
