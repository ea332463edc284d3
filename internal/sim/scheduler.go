package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ObambaCaree/petridish/internal/collision"
	"github.com/ObambaCaree/petridish/internal/game"
	"github.com/ObambaCaree/petridish/internal/interest"
	"github.com/ObambaCaree/petridish/internal/leaderboard"
	"github.com/ObambaCaree/petridish/internal/spatial"
	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/internal/world"
	"github.com/ObambaCaree/petridish/logging"
	"github.com/ObambaCaree/petridish/logging/simulation"
)

const (
	DefaultPhysicsInterval = time.Second / 60
	DefaultMacroInterval   = time.Second
	DefaultCommandCapacity = 4096
	DefaultPerActorLimit   = 32

	schedulePhysics   = "physics"
	scheduleMacro     = "macro"
	scheduleBroadcast = "broadcast"
)

// Config tunes the three schedules and the inbound queue.
type Config struct {
	World             world.Config
	PhysicsInterval   time.Duration
	MacroInterval     time.Duration
	BroadcastInterval time.Duration
	CommandCapacity   int
	PerActorLimit     int
	// DebugCollisions attaches narrow-phase dumps to engulf events.
	DebugCollisions bool
}

func (cfg Config) normalized() Config {
	n := cfg
	n.World = cfg.World.Normalized()
	if n.PhysicsInterval <= 0 {
		n.PhysicsInterval = DefaultPhysicsInterval
	}
	if n.MacroInterval <= 0 {
		n.MacroInterval = DefaultMacroInterval
	}
	if n.BroadcastInterval <= 0 {
		n.BroadcastInterval = n.World.BroadcastInterval()
	}
	if n.CommandCapacity <= 0 {
		n.CommandCapacity = DefaultCommandCapacity
	}
	if n.PerActorLimit < 0 {
		n.PerActorLimit = 0
	} else if n.PerActorLimit == 0 {
		n.PerActorLimit = DefaultPerActorLimit
	}
	return n
}

// Deps bundles the collaborators the scheduler drives. Nil entries fall back
// to no-op implementations.
type Deps struct {
	Registry  Registry
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	World     world.Deps
}

// Scheduler owns the world and runs the physics, macro, and broadcast
// schedules on a single goroutine. Everything except Enqueue, Attach,
// Detach, Leaderboard, and Diagnostics must be called from that goroutine.
type Scheduler struct {
	cfg       Config
	world     *world.World
	index     *spatial.Index
	resolver  *collision.Resolver
	board     *leaderboard.Tracker
	interest  *interest.Manager
	buffer    *CommandBuffer
	lifecycle lifecycleQueue

	registry  Registry
	publisher logging.Publisher
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	clock     logging.Clock

	viewers  viewerSet
	tick     uint64
	observed atomic.Uint64
	streaks  map[string]uint64

	diag diagnosticsStore
}

func New(cfg Config, deps Deps) *Scheduler {
	normalized := cfg.normalized()
	if deps.Registry == nil {
		deps.Registry = nopRegistry{}
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.LoggerFunc(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	worldDeps := deps.World
	if worldDeps.Now == nil {
		worldDeps.Now = deps.Clock.Now
	}

	return &Scheduler{
		cfg:   normalized,
		world: world.New(normalized.World, worldDeps),
		index: spatial.New(),
		resolver: collision.NewResolver(
			collision.WithPublisher(deps.Publisher),
			collision.WithLogger(deps.Logger),
			collision.WithDebug(normalized.DebugCollisions),
		),
		board:     leaderboard.NewTracker(leaderboard.DefaultSize),
		interest:  interest.NewManager(normalized.World.ViewMargin),
		buffer:    NewCommandBuffer(normalized.CommandCapacity, normalized.PerActorLimit, deps.Metrics),
		registry:  deps.Registry,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		viewers:   newViewerSet(),
		streaks:   make(map[string]uint64),
	}
}

// Config returns the normalized configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Tick reports the number of physics ticks run so far; safe from any
// goroutine.
func (s *Scheduler) Tick() uint64 { return s.observed.Load() }

// Seed populates the arena with its initial food and viruses.
func (s *Scheduler) Seed() {
	game.BalanceMass(s.world)
	s.board.Refresh(s.world.Players())
	s.refreshDiagnostics(s.clock.Now())
}

// Run drives all three schedules until ctx is cancelled. Overrunning ticks
// delay the next one of their kind; nothing is skipped or cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	physics := time.NewTicker(s.cfg.PhysicsInterval)
	defer physics.Stop()
	macro := time.NewTicker(s.cfg.MacroInterval)
	defer macro.Stop()
	broadcast := time.NewTicker(s.cfg.BroadcastInterval)
	defer broadcast.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-physics.C:
			s.timed(ctx, schedulePhysics, s.cfg.PhysicsInterval, s.StepPhysics)
		case <-macro.C:
			s.timed(ctx, scheduleMacro, s.cfg.MacroInterval, s.StepMacro)
		case <-broadcast.C:
			s.timed(ctx, scheduleBroadcast, s.cfg.BroadcastInterval, s.StepBroadcast)
		}
	}
}

func (s *Scheduler) timed(ctx context.Context, schedule string, budget time.Duration, step func(context.Context, time.Time)) {
	start := s.clock.Now()
	step(ctx, start)
	s.observe(ctx, schedule, budget, s.clock.Now().Sub(start))
}

func (s *Scheduler) observe(ctx context.Context, schedule string, budget, duration time.Duration) {
	switch schedule {
	case schedulePhysics:
		s.metrics.Store(telemetry.KeyTickPhysicsMicros, uint64(duration.Microseconds()))
	case scheduleMacro:
		s.metrics.Store(telemetry.KeyTickMacroMicros, uint64(duration.Microseconds()))
	case scheduleBroadcast:
		s.metrics.Store(telemetry.KeyTickBroadcastMicros, uint64(duration.Microseconds()))
	}
	if duration <= budget {
		s.streaks[schedule] = 0
		return
	}
	s.streaks[schedule]++
	s.metrics.Add(telemetry.KeyTickOverruns, 1)
	simulation.TickBudgetOverrun(ctx, s.publisher, s.tick, simulation.TickBudgetOverrunPayload{
		Schedule:       schedule,
		DurationMillis: duration.Milliseconds(),
		BudgetMillis:   budget.Milliseconds(),
		Ratio:          float64(duration) / float64(budget),
		Streak:         s.streaks[schedule],
	}, nil)
}

// StepPhysics applies staged commands, evicts stale players, moves every
// cell, resolves collisions, applies virus bursts, and drifts pellets.
func (s *Scheduler) StepPhysics(ctx context.Context, now time.Time) {
	s.tick++
	s.observed.Store(s.tick)
	s.applyCommands(ctx, now)
	s.evictStale(ctx, now)

	for _, p := range s.world.Players() {
		game.MovePlayer(s.world, p, now)
	}

	s.index.Rebuild(s.world)
	res := s.resolver.Resolve(ctx, s.world, s.index, s.tick)
	s.applyCollisions(ctx, now, res)

	for _, m := range s.world.Pellets() {
		game.MovePellet(s.world, m)
	}
}

func (s *Scheduler) applyCollisions(ctx context.Context, now time.Time, res collision.Result) {
	for _, burst := range res.Bursts {
		p, ok := s.world.Player(burst.PlayerID)
		if !ok {
			continue
		}
		index := p.CellIndex(burst.CellID)
		if index < 0 {
			continue
		}
		if game.Split(s.world, p, index, now) > 0 {
			if v, ok := s.viewers.byPlayer(p.ID); ok {
				s.registry.SendEvent(v.sessionID, Event{Type: EventVirusSplit, Payload: VirusSplitPayload{Cell: index}})
			}
		}
	}

	if n := len(res.Engulfments); n > 0 {
		s.metrics.Add(telemetry.KeyEngulfments, uint64(n))
	}
	if res.Faults > 0 {
		s.metrics.Add(telemetry.KeyEntityFaults, uint64(res.Faults))
	}
	for _, e := range res.Eliminations {
		s.metrics.Add(telemetry.KeyEliminations, 1)
		s.eliminated(ctx, e)
	}
}

// StepMacro decays mass, refreshes the leaderboard, and rebalances food and
// viruses.
func (s *Scheduler) StepMacro(ctx context.Context, now time.Time) {
	for _, p := range s.world.Players() {
		game.DecayMass(s.world, p)
	}
	s.board.Refresh(s.world.Players())
	game.BalanceMass(s.world)
	s.refreshDiagnostics(now)
}

// StepBroadcast sends one snapshot to every admitted viewer. The leaderboard
// is attached to every snapshot of this pass while it is dirty and the flag
// is cleared once the pass completes.
func (s *Scheduler) StepBroadcast(ctx context.Context, now time.Time) {
	var board *leaderboard.Payload
	dirty := s.board.Dirty()
	if dirty {
		payload := s.board.Payload()
		board = &payload
	}

	sent, entities := 0, 0
	for _, v := range s.viewers.ordered() {
		var snap interest.Snapshot
		switch {
		case v.kind == world.KindSpectator:
			snap = s.interest.BuildSpectator(s.world)
		case v.playerID != "":
			p, ok := s.world.Player(v.playerID)
			if !ok {
				continue
			}
			snap = s.interest.Build(s.world, p)
		default:
			continue
		}
		snap.Tick = s.tick
		snap.Leaderboard = board
		s.registry.SendSnapshot(v.sessionID, snap)
		sent++
		entities += snap.EntityCount()
	}
	if dirty {
		s.board.ClearDirty()
	}
	s.metrics.Add(telemetry.KeySnapshotsSent, uint64(sent))
	s.metrics.Add(telemetry.KeyEntitiesSent, uint64(entities))
}

// Leaderboard returns the current ranking; safe from any goroutine.
func (s *Scheduler) Leaderboard() []leaderboard.Entry {
	return s.board.Entries()
}

func (s *Scheduler) broadcast(event Event) {
	for _, v := range s.viewers.ordered() {
		s.registry.SendEvent(v.sessionID, event)
	}
}
