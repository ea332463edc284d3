package telemetry

import (
	"sort"
	"sync"
)

// Well-known metric keys.
const (
	KeyTickPhysicsMicros   = "tick_physics_us"
	KeyTickMacroMicros     = "tick_macro_us"
	KeyTickBroadcastMicros = "tick_broadcast_us"
	KeyTickOverruns        = "tick_overruns"
	KeyPlayers             = "players"
	KeySpectators          = "spectators"
	KeyFood                = "food"
	KeyViruses             = "viruses"
	KeyPellets             = "pellets"
	KeySnapshotsSent       = "snapshots_sent"
	KeySnapshotsDropped    = "snapshots_dropped"
	KeyBytesSent           = "bytes_sent"
	KeyEntitiesSent        = "entities_sent"
	KeyCommandsDropped     = "commands_dropped"
	KeyEngulfments         = "engulfments"
	KeyEliminations        = "eliminations"
	KeyEntityFaults        = "entity_faults"
)

// Counters is a concurrency-safe Metrics implementation backed by a map.
type Counters struct {
	mu     sync.Mutex
	values map[string]uint64
}

func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64)}
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.values == nil {
		c.values = make(map[string]uint64)
	}
	c.values[key] += delta
	c.mu.Unlock()
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.values == nil {
		c.values = make(map[string]uint64)
	}
	c.values[key] = value
	c.mu.Unlock()
}

// Snapshot copies the current values.
func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return map[string]uint64{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Keys returns the metric names in sorted order.
func (c *Counters) Keys() []string {
	snapshot := c.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
