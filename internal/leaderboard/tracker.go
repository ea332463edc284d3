package leaderboard

import (
	"sort"
	"sync"

	"github.com/ObambaCaree/petridish/internal/world"
)

// DefaultSize is the number of ranked slots.
const DefaultSize = 10

type Entry struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Mass float64 `json:"mass"`
}

// Tracker keeps the ranked top-N and a dirty flag raised whenever the ordered
// id sequence changes. Refresh and ClearDirty are called from the simulation
// goroutine; Entries may be read from anywhere.
type Tracker struct {
	mu      sync.RWMutex
	size    int
	entries []Entry
	players int
	dirty   bool
}

func NewTracker(size int) *Tracker {
	if size <= 0 {
		size = DefaultSize
	}
	return &Tracker{size: size}
}

// Refresh ranks players by total mass, descending, and reports whether the
// ranked id sequence differs from the previous refresh. The input slice is
// not reordered.
func (t *Tracker) Refresh(players []*world.Player) bool {
	ranked := append([]*world.Player(nil), players...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MassTotal > ranked[j].MassTotal
	})
	if len(ranked) > t.size {
		ranked = ranked[:t.size]
	}
	top := make([]Entry, 0, len(ranked))
	for _, p := range ranked {
		if p.Kind != world.KindPlayer {
			continue
		}
		top = append(top, Entry{ID: p.ID, Name: p.Name, Mass: p.MassTotal})
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	changed := !sameOrder(t.entries, top)
	t.entries = top
	t.players = countPlayers(players)
	if changed {
		t.dirty = true
	}
	return changed
}

func sameOrder(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func countPlayers(players []*world.Player) int {
	n := 0
	for _, p := range players {
		if p.Kind == world.KindPlayer {
			n++
		}
	}
	return n
}

func (t *Tracker) Dirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dirty
}

// ClearDirty is called once per broadcast pass after every viewer has been
// served.
func (t *Tracker) ClearDirty() {
	t.mu.Lock()
	t.dirty = false
	t.mu.Unlock()
}

// Entries returns a copy of the current ranking.
func (t *Tracker) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.entries...)
}

// Players reports the competitor count seen by the last refresh.
func (t *Tracker) Players() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.players
}

// Payload is the wire shape attached to snapshots while the board is dirty.
type Payload struct {
	Players     int     `json:"players"`
	Leaderboard []Entry `json:"leaderboard"`
}

func (t *Tracker) Payload() Payload {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Payload{Players: t.players, Leaderboard: append([]Entry(nil), t.entries...)}
}
