package world

import "time"

// PlayerKind separates controllable players from spectators.
type PlayerKind string

const (
	KindPlayer    PlayerKind = "player"
	KindSpectator PlayerKind = "spectator"
)

// Point is a world-space coordinate. Targets are stored relative to the
// player's centre.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Cell struct {
	ID     uint64
	X      float64
	Y      float64
	Mass   float64
	Radius float64
	// Speed is the residual launch speed after a split; it decays toward
	// the base speed.
	Speed float64
	// EjectSeq identifies the most recent pellet this cell fired.
	EjectSeq uint64
}

type Player struct {
	ID    string
	Name  string
	Hue   int
	Kind  PlayerKind
	Admin bool

	X float64
	Y float64

	Cells     []*Cell
	MassTotal float64
	Target    Point

	ScreenWidth  float64
	ScreenHeight float64

	LastHeartbeat time.Time
	LastSplit     time.Time

	ejectSeq uint64
}

// NextEjectSeq allocates a per-player sequence for fired pellets.
func (p *Player) NextEjectSeq() uint64 {
	p.ejectSeq++
	return p.ejectSeq
}

// RecomputeCentre places the player centre at the mean of its cell positions.
func (p *Player) RecomputeCentre() {
	if len(p.Cells) == 0 {
		return
	}
	var x, y float64
	for _, c := range p.Cells {
		x += c.X
		y += c.Y
	}
	p.X = x / float64(len(p.Cells))
	p.Y = y / float64(len(p.Cells))
}

// RecalculateMass sums cell masses into MassTotal.
func (p *Player) RecalculateMass() float64 {
	total := 0.0
	for _, c := range p.Cells {
		total += c.Mass
	}
	p.MassTotal = total
	return total
}

// CellIndex returns the slice position of the cell with the given id or -1.
func (p *Player) CellIndex(id uint64) int {
	for i, c := range p.Cells {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// RemoveCell drops the cell with id while preserving the order of the rest.
func (p *Player) RemoveCell(id uint64) (*Cell, bool) {
	idx := p.CellIndex(id)
	if idx < 0 {
		return nil, false
	}
	cell := p.Cells[idx]
	p.Cells = append(p.Cells[:idx], p.Cells[idx+1:]...)
	return cell, true
}

func (p *Player) IsSpectator() bool {
	return p.Kind == KindSpectator
}

type Food struct {
	ID       uint64
	X        float64
	Y        float64
	Mass     float64
	Radius   float64
	Hue      int
	consumed bool
}

func (f *Food) Consumed() bool { return f.consumed }

// MassPellet is ejected mass travelling away from its owner.
type MassPellet struct {
	ID       uint64
	Owner    string
	Seq      uint64
	X        float64
	Y        float64
	Mass     float64
	Radius   float64
	Hue      int
	Speed    float64
	Dir      Point
	consumed bool
}

func (m *MassPellet) Consumed() bool { return m.consumed }

type Virus struct {
	ID       uint64
	X        float64
	Y        float64
	Mass     float64
	Radius   float64
	consumed bool
}

func (v *Virus) Consumed() bool { return v.consumed }
