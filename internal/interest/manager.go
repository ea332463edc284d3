// Package interest filters the world per viewer and assembles the snapshot
// each connection receives on a broadcast tick.
package interest

import (
	"github.com/ObambaCaree/petridish/internal/leaderboard"
	"github.com/ObambaCaree/petridish/internal/world"
)

// DefaultMargin pads the viewport on every side.
const DefaultMargin = 20.0

type CellView struct {
	ID     uint64  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Mass   float64 `json:"mass"`
	Radius float64 `json:"radius"`
}

// PlayerView describes one visible player. Identity fields are only filled
// when the view is of somebody other than the viewer.
type PlayerView struct {
	IsSelf    bool       `json:"isSelf"`
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name,omitempty"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Hue       int        `json:"hue"`
	MassTotal float64    `json:"massTotal"`
	Cells     []CellView `json:"cells"`
}

type FoodView struct {
	ID     uint64  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Hue    int     `json:"hue"`
}

type PelletView struct {
	ID     uint64  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Mass   float64 `json:"mass"`
	Radius float64 `json:"radius"`
	Hue    int     `json:"hue"`
}

type VirusView struct {
	ID     uint64  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Mass   float64 `json:"mass"`
	Radius float64 `json:"radius"`
}

// Snapshot is the per-viewer payload of one broadcast tick.
type Snapshot struct {
	Tick        uint64               `json:"tick"`
	Self        *PlayerView          `json:"self,omitempty"`
	Players     []PlayerView         `json:"players"`
	Food        []FoodView           `json:"food"`
	Pellets     []PelletView         `json:"mass"`
	Viruses     []VirusView          `json:"viruses"`
	Leaderboard *leaderboard.Payload `json:"leaderboard,omitempty"`
}

// EntityCount is the number of entities carried, used for bandwidth metrics.
func (s Snapshot) EntityCount() int {
	n := len(s.Food) + len(s.Pellets) + len(s.Viruses)
	for _, p := range s.Players {
		n += len(p.Cells)
	}
	return n
}

// Rect is an axis-aligned visibility window.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Contains reports whether a point lies inside r.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Pad grows r by d on every side.
func (r Rect) Pad(d float64) Rect {
	return Rect{MinX: r.MinX - d, MinY: r.MinY - d, MaxX: r.MaxX + d, MaxY: r.MaxY + d}
}

// TouchesCircle reports whether the circle's bounding box overlaps r.
func (r Rect) TouchesCircle(x, y, radius float64) bool {
	return x+radius >= r.MinX && x-radius <= r.MaxX && y+radius >= r.MinY && y-radius <= r.MaxY
}

type Manager struct {
	margin float64
}

func NewManager(margin float64) *Manager {
	if margin < 0 {
		margin = DefaultMargin
	}
	return &Manager{margin: margin}
}

// ViewRect is centred on the player with half the reported viewport plus the
// margin on each side.
func (m *Manager) ViewRect(p *world.Player) Rect {
	halfW, halfH := p.ScreenWidth/2, p.ScreenHeight/2
	return Rect{
		MinX: p.X - halfW - m.margin,
		MinY: p.Y - halfH - m.margin,
		MaxX: p.X + halfW + m.margin,
		MaxY: p.Y + halfH + m.margin,
	}
}

// Build filters w for viewer. The viewer's own cells are always included.
// Viruses use the bare viewport padded by their own radius rather than the
// margin.
func (m *Manager) Build(w *world.World, viewer *world.Player) Snapshot {
	view := m.ViewRect(viewer)
	bare := view.Pad(-m.margin)
	snap := Snapshot{
		Players: []PlayerView{},
		Food:    []FoodView{},
		Pellets: []PelletView{},
		Viruses: []VirusView{},
	}

	self := playerView(viewer, true, viewer.Cells)
	snap.Self = &self

	for _, f := range w.Food() {
		if !f.Consumed() && view.Contains(f.X, f.Y) {
			snap.Food = append(snap.Food, foodView(f))
		}
	}
	for _, pm := range w.Pellets() {
		if !pm.Consumed() && view.TouchesCircle(pm.X, pm.Y, pm.Radius) {
			snap.Pellets = append(snap.Pellets, pelletView(pm))
		}
	}
	for _, v := range w.Viruses() {
		if !v.Consumed() && bare.Pad(v.Radius).Contains(v.X, v.Y) {
			snap.Viruses = append(snap.Viruses, virusView(v))
		}
	}
	for _, p := range w.Players() {
		if p.ID == viewer.ID {
			snap.Players = append(snap.Players, self)
			continue
		}
		var visible []*world.Cell
		for _, c := range p.Cells {
			if view.TouchesCircle(c.X, c.Y, c.Radius) {
				visible = append(visible, c)
			}
		}
		if len(visible) > 0 {
			snap.Players = append(snap.Players, playerView(p, false, visible))
		}
	}
	return snap
}

// BuildSpectator returns the unfiltered world.
func (m *Manager) BuildSpectator(w *world.World) Snapshot {
	snap := Snapshot{
		Players: make([]PlayerView, 0, w.NumPlayers()),
		Food:    make([]FoodView, 0, len(w.Food())),
		Pellets: make([]PelletView, 0, len(w.Pellets())),
		Viruses: make([]VirusView, 0, len(w.Viruses())),
	}
	for _, p := range w.Players() {
		snap.Players = append(snap.Players, playerView(p, false, p.Cells))
	}
	for _, f := range w.Food() {
		if !f.Consumed() {
			snap.Food = append(snap.Food, foodView(f))
		}
	}
	for _, pm := range w.Pellets() {
		if !pm.Consumed() {
			snap.Pellets = append(snap.Pellets, pelletView(pm))
		}
	}
	for _, v := range w.Viruses() {
		if !v.Consumed() {
			snap.Viruses = append(snap.Viruses, virusView(v))
		}
	}
	return snap
}

// SelfView renders a player as seen by itself.
func SelfView(p *world.Player) PlayerView {
	return playerView(p, true, p.Cells)
}

func playerView(p *world.Player, self bool, cells []*world.Cell) PlayerView {
	v := PlayerView{
		IsSelf:    self,
		X:         p.X,
		Y:         p.Y,
		Hue:       p.Hue,
		MassTotal: p.MassTotal,
		Cells:     make([]CellView, len(cells)),
	}
	if !self {
		v.ID = p.ID
		v.Name = p.Name
	}
	for i, c := range cells {
		v.Cells[i] = CellView{ID: c.ID, X: c.X, Y: c.Y, Mass: c.Mass, Radius: c.Radius}
	}
	return v
}

func foodView(f *world.Food) FoodView {
	return FoodView{ID: f.ID, X: f.X, Y: f.Y, Radius: f.Radius, Hue: f.Hue}
}

func pelletView(m *world.MassPellet) PelletView {
	return PelletView{ID: m.ID, X: m.X, Y: m.Y, Mass: m.Mass, Radius: m.Radius, Hue: m.Hue}
}

func virusView(v *world.Virus) VirusView {
	return VirusView{ID: v.ID, X: v.X, Y: v.Y, Mass: v.Mass, Radius: v.Radius}
}
