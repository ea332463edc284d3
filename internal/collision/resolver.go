// Package collision resolves consumption between cells and every other
// collidable entity once per physics tick.
//
// Resolution is sequential and greedy: players are visited in join order and
// cells in slice order, so an earlier cell can take an entity a later cell
// would also have reached, and a player eliminated mid-tick is absent for the
// remainder of that tick.
package collision

import (
	"context"
	"fmt"
	"math"

	"github.com/ObambaCaree/petridish/internal/spatial"
	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/internal/world"
	"github.com/ObambaCaree/petridish/logging"
	collisionlog "github.com/ObambaCaree/petridish/logging/collision"
)

const (
	// MassRatio is the factor by which an eater must outweigh its prey.
	MassRatio = 1.1
	// CoverRatio scales the centre distance the attacker radius must exceed.
	CoverRatio = 1.75
)

// Burst is a forced split requested by a virus collision.
type Burst struct {
	PlayerID  string
	CellID    uint64
	CellIndex int
	VirusID   uint64
}

// Engulfment records one successful player-vs-player consumption.
type Engulfment struct {
	AttackerID   string
	AttackerCell uint64
	VictimID     string
	VictimCell   uint64
	Mass         float64
	Distance     float64
	Eliminated   bool
}

// Elimination is emitted when a player's last cell is consumed. The player
// has already been removed from the world.
type Elimination struct {
	Player  *world.Player
	EatenBy string
}

// Result summarises one resolution pass.
type Result struct {
	Bursts       []Burst
	Engulfments  []Engulfment
	Eliminations []Elimination

	FoodEaten    int
	PelletsEaten int
	MassGained   float64
	Faults       int
}

// Penetration is the narrow-phase output of a circle-circle test.
type Penetration struct {
	Distance float64
	Overlap  float64
	NormalX  float64
	NormalY  float64
}

// Overlap runs the circle-circle narrow phase. ok is false when the circles
// are disjoint or only touch.
func Overlap(ax, ay, ar, bx, by, br float64) (Penetration, bool) {
	dx, dy := bx-ax, by-ay
	dist := math.Hypot(dx, dy)
	overlap := ar + br - dist
	if overlap <= 0 {
		return Penetration{Distance: dist}, false
	}
	p := Penetration{Distance: dist, Overlap: overlap}
	if dist > 0 {
		p.NormalX, p.NormalY = dx/dist, dy/dist
	}
	return p, true
}

// PointInCircle reports whether (px,py) lies inside or on the circle.
func PointInCircle(px, py, cx, cy, r float64) bool {
	dx, dy := px-cx, py-cy
	return dx*dx+dy*dy <= r*r
}

// CanEngulf applies the strict mass and coverage thresholds.
func CanEngulf(attackerMass, attackerRadius, victimMass, distance float64) bool {
	return attackerMass > victimMass*MassRatio && attackerRadius > distance*CoverRatio
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithPublisher(pub logging.Publisher) Option {
	return func(r *Resolver) {
		if pub != nil {
			r.publisher = pub
		}
	}
}

func WithLogger(logger telemetry.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDebug attaches dumps of the narrow-phase data to engulf events.
func WithDebug(debug bool) Option {
	return func(r *Resolver) { r.debug = debug }
}

type Resolver struct {
	publisher logging.Publisher
	logger    telemetry.Logger
	debug     bool
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		publisher: logging.NopPublisher(),
		logger:    telemetry.LoggerFunc(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs one pass over w using idx, which must have been rebuilt from
// w after movement this tick. Consumed food, pellets, and viruses are
// compacted out of w before returning.
func (r *Resolver) Resolve(ctx context.Context, w *world.World, idx *spatial.Index, tick uint64) Result {
	var res Result
	order := append([]*world.Player(nil), w.Players()...)
	for _, p := range order {
		if _, alive := w.Player(p.ID); !alive || p.IsSpectator() {
			continue
		}
		r.resolvePlayer(ctx, w, idx, tick, p, &res)
	}
	w.Compact()
	return res
}

func (r *Resolver) resolvePlayer(ctx context.Context, w *world.World, idx *spatial.Index, tick uint64, p *world.Player, res *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res.Faults++
			r.logger.Printf("collision: player %s fault isolated: %v", p.ID, rec)
			collisionlog.EntityFault(ctx, r.publisher, tick, logging.PlayerRef(p.ID), collisionlog.EntityFaultPayload{Fault: fmt.Sprint(rec)})
		}
	}()
	for i := 0; i < len(p.Cells); i++ {
		r.resolveCell(ctx, w, idx, tick, p, i, res)
	}
}

func (r *Resolver) resolveCell(ctx context.Context, w *world.World, idx *spatial.Index, tick uint64, p *world.Player, index int, res *Result) {
	cell := p.Cells[index]
	cx, cy, radius := cell.X, cell.Y, cell.Radius
	gained := 0.0

	for _, e := range idx.QueryCircle(cx, cy, radius, spatial.KindFood|spatial.KindPellet) {
		switch e.Kind {
		case spatial.KindFood:
			f := e.Food
			if f.Consumed() || !PointInCircle(f.X, f.Y, cx, cy, radius) {
				continue
			}
			if w.ConsumeFood(f) {
				gained += f.Mass
				res.FoodEaten++
			}
		case spatial.KindPellet:
			m := e.Pellet
			if m.Consumed() || !PointInCircle(m.X, m.Y, cx, cy, radius) {
				continue
			}
			if m.Owner == p.ID && m.Speed > 0 && m.Seq == cell.EjectSeq {
				continue
			}
			if cell.Mass > m.Mass*MassRatio && w.ConsumePellet(m) {
				gained += m.Mass
				res.PelletsEaten++
			}
		}
	}

	for _, e := range idx.QueryCircle(cx, cy, radius, spatial.KindVirus) {
		v := e.Virus
		if v.Consumed() {
			continue
		}
		if _, hit := Overlap(cx, cy, radius, v.X, v.Y, v.Radius); !hit || cell.Mass <= v.Mass {
			continue
		}
		w.ConsumeVirus(v)
		res.Bursts = append(res.Bursts, Burst{PlayerID: p.ID, CellID: cell.ID, CellIndex: index, VirusID: v.ID})
		collisionlog.VirusBurst(ctx, r.publisher, tick, logging.PlayerRef(p.ID),
			logging.VirusRef(v.ID),
			collisionlog.VirusBurstPayload{CellIndex: index, CellMass: cell.Mass, VirusMass: v.Mass})
		break
	}

	if gained > 0 {
		cell.Mass += gained
		p.MassTotal += gained
		cell.Radius = w.Radius(cell.Mass)
		res.MassGained += gained
	}

	for _, e := range idx.QueryCircle(cx, cy, cell.Radius, spatial.KindCell) {
		victim, victimCell := e.Player, e.Cell
		if victim.ID == p.ID || victimCell.Mass < w.Config().MinEngulfMass {
			continue
		}
		if _, alive := w.Player(victim.ID); !alive || victim.CellIndex(victimCell.ID) < 0 {
			continue
		}
		pen, hit := Overlap(cell.X, cell.Y, cell.Radius, victimCell.X, victimCell.Y, victimCell.Radius)
		if !hit || !CanEngulf(cell.Mass, cell.Radius, victimCell.Mass, pen.Distance) {
			continue
		}
		r.engulf(ctx, w, tick, p, cell, victim, victimCell, pen, res)
	}
}

func (r *Resolver) engulf(ctx context.Context, w *world.World, tick uint64, attacker *world.Player, cell *world.Cell, victim *world.Player, victimCell *world.Cell, pen Penetration, res *Result) {
	mass := victimCell.Mass
	victim.RemoveCell(victimCell.ID)
	victim.MassTotal -= mass
	eliminated := len(victim.Cells) == 0
	if eliminated {
		w.RemovePlayer(victim.ID)
		res.Eliminations = append(res.Eliminations, Elimination{Player: victim, EatenBy: attacker.ID})
	}

	cell.Mass += mass
	attacker.MassTotal += mass
	cell.Radius = w.Radius(cell.Mass)
	res.MassGained += mass

	res.Engulfments = append(res.Engulfments, Engulfment{
		AttackerID:   attacker.ID,
		AttackerCell: cell.ID,
		VictimID:     victim.ID,
		VictimCell:   victimCell.ID,
		Mass:         mass,
		Distance:     pen.Distance,
		Eliminated:   eliminated,
	})
	collisionlog.CellEngulfed(ctx, r.publisher, tick, logging.PlayerRef(attacker.ID), logging.CellRef(victim.ID, victimCell.ID),
		collisionlog.CellEngulfedPayload{
			AttackerCell: cell.ID,
			VictimCell:   victimCell.ID,
			AttackerMass: cell.Mass,
			VictimMass:   mass,
			Distance:     pen.Distance,
			Eliminated:   eliminated,
		}, pen, r.debug)
}
