package sim

import (
	"sync"
	"time"

	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/internal/world"
)

// viewer is one connected session. playerID is empty for spectators and for
// players that have not joined yet or were eliminated.
type viewer struct {
	sessionID string
	kind      world.PlayerKind
	playerID  string
	joined    bool
	screenW   float64
	screenH   float64
	rtt       time.Duration
	lastSeen  time.Time
}

// viewerSet keeps viewers in attach order.
type viewerSet struct {
	order   []*viewer
	session map[string]*viewer
	player  map[string]*viewer
}

func newViewerSet() viewerSet {
	return viewerSet{
		session: make(map[string]*viewer),
		player:  make(map[string]*viewer),
	}
}

func (vs *viewerSet) add(v *viewer) bool {
	if _, exists := vs.session[v.sessionID]; exists {
		return false
	}
	vs.order = append(vs.order, v)
	vs.session[v.sessionID] = v
	return true
}

func (vs *viewerSet) remove(sessionID string) (*viewer, bool) {
	v, ok := vs.session[sessionID]
	if !ok {
		return nil, false
	}
	delete(vs.session, sessionID)
	if v.playerID != "" {
		delete(vs.player, v.playerID)
	}
	for i, candidate := range vs.order {
		if candidate == v {
			vs.order = append(vs.order[:i], vs.order[i+1:]...)
			break
		}
	}
	return v, true
}

func (vs *viewerSet) get(sessionID string) (*viewer, bool) {
	v, ok := vs.session[sessionID]
	return v, ok
}

func (vs *viewerSet) byPlayer(playerID string) (*viewer, bool) {
	v, ok := vs.player[playerID]
	return v, ok
}

func (vs *viewerSet) bind(v *viewer, playerID string) {
	if v.playerID != "" {
		delete(vs.player, v.playerID)
	}
	v.playerID = playerID
	if playerID != "" {
		vs.player[playerID] = v
	}
}

// ordered returns a copy so callers may add or remove viewers while
// iterating.
func (vs *viewerSet) ordered() []*viewer {
	return append([]*viewer(nil), vs.order...)
}

func (vs *viewerSet) len() int { return len(vs.order) }

// lifecycleQueue carries attach and detach notifications. They bypass the
// bounded command ring so a connection is never lost to backpressure.
type lifecycleQueue struct {
	mu      sync.Mutex
	pending []Command
}

func (q *lifecycleQueue) push(cmd Command) {
	q.mu.Lock()
	q.pending = append(q.pending, cmd)
	q.mu.Unlock()
}

func (q *lifecycleQueue) drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// ViewerDiagnostics is a read-only view of one connected session.
type ViewerDiagnostics struct {
	SessionID     string  `json:"sessionId"`
	PlayerID      string  `json:"playerId,omitempty"`
	Name          string  `json:"name,omitempty"`
	Kind          string  `json:"kind"`
	Mass          float64 `json:"mass"`
	Cells         int     `json:"cells"`
	LastHeartbeat int64   `json:"lastHeartbeat"`
	RTTMillis     int64   `json:"rttMillis"`
}

// Diagnostics is published by the simulation goroutine for HTTP readers.
type Diagnostics struct {
	Tick                uint64              `json:"tick"`
	UpdatedAt           int64               `json:"updatedAt"`
	PhysicsIntervalMs   float64             `json:"physicsIntervalMs"`
	MacroIntervalMs     float64             `json:"macroIntervalMs"`
	BroadcastIntervalMs float64             `json:"broadcastIntervalMs"`
	Players             int                 `json:"players"`
	Food                int                 `json:"food"`
	Pellets             int                 `json:"pellets"`
	Viruses             int                 `json:"viruses"`
	Viewers             []ViewerDiagnostics `json:"viewers"`
}

type diagnosticsStore struct {
	mu    sync.RWMutex
	value Diagnostics
}

// Diagnostics returns the snapshot taken at the end of the last macro tick
// or roster change; safe from any goroutine.
func (s *Scheduler) Diagnostics() Diagnostics {
	s.diag.mu.RLock()
	defer s.diag.mu.RUnlock()
	d := s.diag.value
	d.Viewers = append([]ViewerDiagnostics(nil), d.Viewers...)
	return d
}

func (s *Scheduler) refreshDiagnostics(now time.Time) {
	d := Diagnostics{
		Tick:                s.tick,
		UpdatedAt:           now.UnixMilli(),
		PhysicsIntervalMs:   millis(s.cfg.PhysicsInterval),
		MacroIntervalMs:     millis(s.cfg.MacroInterval),
		BroadcastIntervalMs: millis(s.cfg.BroadcastInterval),
		Players:             s.world.NumPlayers(),
		Food:                len(s.world.Food()),
		Pellets:             len(s.world.Pellets()),
		Viruses:             len(s.world.Viruses()),
		Viewers:             make([]ViewerDiagnostics, 0, s.viewers.len()),
	}
	spectators := 0
	for _, v := range s.viewers.order {
		entry := ViewerDiagnostics{
			SessionID:     v.sessionID,
			Kind:          string(v.kind),
			LastHeartbeat: v.lastSeen.UnixMilli(),
			RTTMillis:     v.rtt.Milliseconds(),
		}
		if v.kind == world.KindSpectator {
			spectators++
		}
		if p, ok := s.world.Player(v.playerID); ok {
			entry.PlayerID = p.ID
			entry.Name = p.Name
			entry.Mass = p.MassTotal
			entry.Cells = len(p.Cells)
			entry.LastHeartbeat = p.LastHeartbeat.UnixMilli()
		}
		d.Viewers = append(d.Viewers, entry)
	}

	s.metrics.Store(telemetry.KeyPlayers, uint64(d.Players))
	s.metrics.Store(telemetry.KeySpectators, uint64(spectators))
	s.metrics.Store(telemetry.KeyFood, uint64(d.Food))
	s.metrics.Store(telemetry.KeyPellets, uint64(d.Pellets))
	s.metrics.Store(telemetry.KeyViruses, uint64(d.Viruses))

	s.diag.mu.Lock()
	s.diag.value = d
	s.diag.mu.Unlock()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
