package world

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

var (
	ErrDuplicatePlayer = errors.New("player already registered")
	ErrUnknownPlayer   = errors.New("unknown player")
)

// RadiusFunc converts mass to a collision radius.
type RadiusFunc func(mass float64) float64

// MassToRadius is the stock mass to radius curve.
func MassToRadius(mass float64) float64 {
	return 4 + math.Sqrt(mass)*6
}

// Deps bundles optional collaborators. Missing entries fall back to defaults.
type Deps struct {
	RNG    RNGFactory
	Radius RadiusFunc
	IDs    func() string
	Now    func() time.Time
}

// World owns every entity in the arena. It is not safe for concurrent use;
// the scheduler goroutine is its only mutator.
type World struct {
	config Config
	rng    *rand.Rand
	radius RadiusFunc
	ids    func() string
	now    func() time.Time

	players     []*Player
	playersByID map[string]*Player

	food    []*Food
	pellets []*MassPellet
	viruses []*Virus

	nextEntity uint64
	dirty      bool
}

func New(cfg Config, deps Deps) *World {
	normalized := cfg.Normalized()
	factory := deps.RNG
	if factory == nil {
		factory = NewDeterministicRNG
	}
	radius := deps.Radius
	if radius == nil {
		radius = MassToRadius
	}
	ids := deps.IDs
	if ids == nil {
		ids = func() string { return uuid.NewV4().String() }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &World{
		config:      normalized,
		rng:         factory(normalized.Seed, "world"),
		radius:      radius,
		ids:         ids,
		now:         now,
		playersByID: make(map[string]*Player),
	}
}

func (w *World) Config() Config           { return w.config }
func (w *World) Width() float64           { return w.config.Width }
func (w *World) Height() float64          { return w.config.Height }
func (w *World) RNG() *rand.Rand          { return w.rng }
func (w *World) Now() time.Time           { return w.now() }
func (w *World) Radius(m float64) float64 { return w.radius(m) }

// NextID hands out the next entity identifier.
func (w *World) NextID() uint64 {
	w.nextEntity++
	return w.nextEntity
}

// NewCell builds a cell with its radius derived from mass.
func (w *World) NewCell(x, y, mass float64) *Cell {
	return &Cell{ID: w.NextID(), X: x, Y: y, Mass: mass, Radius: w.radius(mass)}
}

// SpawnPlayer creates a player of the given kind without registering it.
// Players get a single cell at a spawn point chosen by the spawn policy;
// spectators sit at the arena centre with no cells.
func (w *World) SpawnPlayer(name string, kind PlayerKind) *Player {
	now := w.now()
	p := &Player{
		ID:            w.ids(),
		Name:          name,
		Kind:          kind,
		Hue:           w.rng.Intn(360),
		LastHeartbeat: now,
		LastSplit:     now,
		ScreenWidth:   1920,
		ScreenHeight:  1080,
	}
	if kind == KindSpectator {
		p.X, p.Y = w.config.Width/2, w.config.Height/2
		return p
	}
	mass := w.config.DefaultPlayerMass
	x, y := w.SpawnPosition(w.radius(mass))
	p.X, p.Y = x, y
	p.Cells = []*Cell{w.NewCell(x, y, mass)}
	p.MassTotal = mass
	return p
}

// AddPlayer appends p in join order.
func (w *World) AddPlayer(p *Player) error {
	if p == nil {
		return errors.New("nil player")
	}
	if _, exists := w.playersByID[p.ID]; exists {
		return errors.Wrapf(ErrDuplicatePlayer, "id %s", p.ID)
	}
	w.players = append(w.players, p)
	w.playersByID[p.ID] = p
	return nil
}

// RemovePlayer removes the player by identity. Removing an unknown id is a
// no-op so concurrent eviction and elimination never disturb each other.
func (w *World) RemovePlayer(id string) (*Player, bool) {
	p, ok := w.playersByID[id]
	if !ok {
		return nil, false
	}
	delete(w.playersByID, id)
	for i, candidate := range w.players {
		if candidate.ID == id {
			w.players = append(w.players[:i], w.players[i+1:]...)
			break
		}
	}
	return p, true
}

func (w *World) Player(id string) (*Player, bool) {
	p, ok := w.playersByID[id]
	return p, ok
}

// PlayerByName finds a non-spectator player by exact name.
func (w *World) PlayerByName(name string) (*Player, bool) {
	for _, p := range w.players {
		if p.Kind == KindPlayer && p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Players returns the live join-ordered slice. Callers must not retain or
// mutate it across ticks.
func (w *World) Players() []*Player { return w.players }

func (w *World) NumPlayers() int { return len(w.players) }

func (w *World) Food() []*Food          { return w.food }
func (w *World) Pellets() []*MassPellet { return w.pellets }
func (w *World) Viruses() []*Virus      { return w.viruses }

func (w *World) AddFood(x, y float64) *Food {
	mass := w.config.FoodMass
	f := &Food{
		ID:     w.NextID(),
		X:      x,
		Y:      y,
		Mass:   mass,
		Radius: w.radius(mass),
		Hue:    w.rng.Intn(360),
	}
	w.food = append(w.food, f)
	return f
}

// SpawnFood scatters n food items uniformly.
func (w *World) SpawnFood(n int) {
	radius := w.radius(w.config.FoodMass)
	for i := 0; i < n; i++ {
		x, y := w.RandomPosition(radius)
		w.AddFood(x, y)
	}
}

// RemoveFood trims n items from the oldest end.
func (w *World) RemoveFood(n int) {
	if n <= 0 {
		return
	}
	if n > len(w.food) {
		n = len(w.food)
	}
	w.food = append(w.food[:0], w.food[n:]...)
}

func (w *World) AddVirus(x, y, mass float64) *Virus {
	v := &Virus{ID: w.NextID(), X: x, Y: y, Mass: mass, Radius: w.radius(mass)}
	w.viruses = append(w.viruses, v)
	return v
}

// SpawnViruses adds n viruses with a random mass in the configured range.
func (w *World) SpawnViruses(n int) {
	for i := 0; i < n; i++ {
		mass := randomBetween(w.rng, w.config.VirusMassMin, w.config.VirusMassMax)
		x, y := w.RandomPosition(w.radius(mass))
		w.AddVirus(x, y, mass)
	}
}

func (w *World) AddPellet(m *MassPellet) *MassPellet {
	if m.ID == 0 {
		m.ID = w.NextID()
	}
	if m.Radius == 0 {
		m.Radius = w.radius(m.Mass)
	}
	w.pellets = append(w.pellets, m)
	return m
}

// ConsumeFood marks f as eaten. It reports false when f was already taken
// earlier in the tick.
func (w *World) ConsumeFood(f *Food) bool {
	if f.consumed {
		return false
	}
	f.consumed = true
	w.dirty = true
	return true
}

func (w *World) ConsumePellet(m *MassPellet) bool {
	if m.consumed {
		return false
	}
	m.consumed = true
	w.dirty = true
	return true
}

func (w *World) ConsumeVirus(v *Virus) bool {
	if v.consumed {
		return false
	}
	v.consumed = true
	w.dirty = true
	return true
}

// Compact drops every consumed food, pellet, and virus.
func (w *World) Compact() {
	if !w.dirty {
		return
	}
	w.dirty = false

	food := w.food[:0]
	for _, f := range w.food {
		if !f.consumed {
			food = append(food, f)
		}
	}
	clearTail(w.food, len(food))
	w.food = food

	pellets := w.pellets[:0]
	for _, m := range w.pellets {
		if !m.consumed {
			pellets = append(pellets, m)
		}
	}
	clearTail(w.pellets, len(pellets))
	w.pellets = pellets

	viruses := w.viruses[:0]
	for _, v := range w.viruses {
		if !v.consumed {
			viruses = append(viruses, v)
		}
	}
	clearTail(w.viruses, len(viruses))
	w.viruses = viruses
}

func clearTail[T any](s []*T, keep int) {
	for i := keep; i < len(s); i++ {
		s[i] = nil
	}
}

// TotalMass sums the mass of every player and food item. Pellets and viruses
// are excluded, matching how the arena budget is tracked.
func (w *World) TotalMass() float64 {
	total := 0.0
	for _, f := range w.food {
		total += f.Mass
	}
	for _, p := range w.players {
		total += p.MassTotal
	}
	return total
}

// ClampCell keeps a cell inside the arena with a third of its radius as slack.
func (w *World) ClampCell(c *Cell) {
	border := c.Radius / 3
	c.X = clamp(c.X, border, w.config.Width-border)
	c.Y = clamp(c.Y, border, w.config.Height-border)
}

// ClampPoint keeps a free-floating entity inside the arena.
func (w *World) ClampPoint(x, y, radius float64) (float64, float64) {
	border := radius / 3
	return clamp(x, border, w.config.Width-border), clamp(y, border, w.config.Height-border)
}

func clamp(v, min, max float64) float64 {
	if max < min {
		return (min + max) / 2
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
