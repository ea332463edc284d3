package game

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ObambaCaree/petridish/internal/world"
)

// SplitAll asks Split to divide every eligible cell.
const SplitAll = -1

// Eject fires a pellet from every cell heavy enough to spare the eject mass.
// It returns the pellets added to the world.
func Eject(w *world.World, p *world.Player) []*world.MassPellet {
	cfg := w.Config()
	amount := cfg.FireFood
	var fired []*world.MassPellet
	for _, cell := range p.Cells {
		if cell.Mass < cfg.DefaultPlayerMass+amount {
			continue
		}
		cell.Mass -= amount
		cell.Radius = w.Radius(cell.Mass)
		p.MassTotal -= amount

		seq := p.NextEjectSeq()
		cell.EjectSeq = seq
		dir := mgl64.Vec2{p.X - cell.X + p.Target.X, p.Y - cell.Y + p.Target.Y}
		fired = append(fired, w.AddPellet(&world.MassPellet{
			Owner: p.ID,
			Seq:   seq,
			X:     cell.X,
			Y:     cell.Y,
			Mass:  amount,
			Hue:   p.Hue,
			Speed: cfg.PelletSpeed,
			Dir:   world.Point{X: dir.X(), Y: dir.Y()},
		}))
	}
	return fired
}

// CanSplit reports whether p may split at all.
func CanSplit(cfg world.Config, p *world.Player) bool {
	return len(p.Cells) < cfg.LimitSplit && p.MassTotal >= cfg.DefaultPlayerMass*2
}

// Split divides the cell at index, or every current cell for SplitAll. Each
// cell needs at least twice the default mass; halves keep the parent's
// position and the new half launches at split speed. An out-of-range index is
// ignored. It returns how many cells were created.
func Split(w *world.World, p *world.Player, index int, now time.Time) int {
	cfg := w.Config()
	if !CanSplit(cfg, p) {
		return 0
	}
	created := 0
	if index == SplitAll {
		count := len(p.Cells)
		for i := 0; i < count; i++ {
			if splitCell(w, p, p.Cells[i]) {
				created++
			}
		}
	} else if index >= 0 && index < len(p.Cells) {
		if splitCell(w, p, p.Cells[index]) {
			created++
		}
	} else {
		return 0
	}
	p.LastSplit = now
	return created
}

func splitCell(w *world.World, p *world.Player, cell *world.Cell) bool {
	cfg := w.Config()
	if len(p.Cells) >= cfg.LimitSplit || cell.Mass < cfg.DefaultPlayerMass*2 {
		return false
	}
	cell.Mass /= 2
	cell.Radius = w.Radius(cell.Mass)
	half := w.NewCell(cell.X, cell.Y, cell.Mass)
	half.Speed = cfg.SplitSpeed
	p.Cells = append(p.Cells, half)
	return true
}
