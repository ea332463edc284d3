// Package game holds the default gameplay rules the simulation delegates to:
// steering, pellet drift, split and eject actions, food balancing, and the
// join-time name and admin checks.
package game

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ObambaCaree/petridish/internal/world"
)

const (
	// BaseSpeed is the cruising speed of a cell with no residual launch speed.
	BaseSpeed = 6.25
	// SpeedDecay is subtracted from residual cell and pellet speed each tick.
	SpeedDecay = 0.5
	// SlowRadius is added to a cell's radius to get the distance inside which
	// it eases toward the target.
	SlowRadius = 50.0
	// MergeRatio scales the summed radii two own cells must be within to merge.
	MergeRatio = 1.75
	// pelletBorder pads pellet clamping beyond their radius.
	pelletBorder = 5.0
)

func logBase(x, base float64) float64 {
	return math.Log(x) / math.Log(base)
}

// MovePlayer steers every cell toward the player's target, resolves own-cell
// separation or merging, clamps cells to the arena, and recomputes the
// centre. Merging preserves mass.
func MovePlayer(w *world.World, p *world.Player, now time.Time) {
	if len(p.Cells) == 0 {
		return
	}
	cfg := w.Config()
	initMassLog := logBase(cfg.DefaultPlayerMass, cfg.SlowBase)
	merging := !now.Before(p.LastSplit.Add(cfg.MergeTimer))

	for i := 0; i < len(p.Cells); i++ {
		cell := p.Cells[i]
		heading := mgl64.Vec2{p.X - cell.X + p.Target.X, p.Y - cell.Y + p.Target.Y}
		dist := heading.Len()

		speed := cell.Speed
		if speed <= 0 {
			speed = BaseSpeed
		}
		slowDown := 1.0
		if speed <= BaseSpeed {
			slowDown = logBase(cell.Mass, cfg.SlowBase) - initMassLog + 1
		}
		if speed > BaseSpeed {
			cell.Speed = math.Max(speed-SpeedDecay, BaseSpeed)
		}

		if dist > 0 && slowDown > 0 {
			delta := heading.Mul(speed / (dist * slowDown))
			if ease := SlowRadius + cell.Radius; dist < ease {
				delta = delta.Mul(dist / ease)
			}
			cell.X += delta.X()
			cell.Y += delta.Y()
		}

		for j := 0; j < len(p.Cells); j++ {
			if j == i {
				continue
			}
			other := p.Cells[j]
			gap := mgl64.Vec2{other.X - cell.X, other.Y - cell.Y}.Len()
			radiusTotal := cell.Radius + other.Radius
			if gap >= radiusTotal {
				continue
			}
			if !merging {
				cell.X -= sign(other.X - cell.X)
				cell.Y -= sign(other.Y - cell.Y)
				continue
			}
			if gap < radiusTotal/MergeRatio {
				cell.Mass += other.Mass
				cell.Radius = w.Radius(cell.Mass)
				p.Cells = append(p.Cells[:j], p.Cells[j+1:]...)
				if j < i {
					i--
				}
				j--
			}
		}
		w.ClampCell(cell)
	}
	p.RecomputeCentre()
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// MovePellet advances a pellet along its heading and bleeds off speed.
func MovePellet(w *world.World, m *world.MassPellet) {
	if m.Speed > 0 {
		step := mgl64.Vec2{m.Dir.X, m.Dir.Y}
		if l := step.Len(); l > 0 {
			step = step.Mul(m.Speed / l)
			m.X += step.X()
			m.Y += step.Y()
		}
	}
	m.Speed = math.Max(m.Speed-SpeedDecay, 0)

	border := m.Radius + pelletBorder
	m.X = math.Min(math.Max(m.X, border), w.Width()-border)
	m.Y = math.Min(math.Max(m.Y, border), w.Height()-border)
}
