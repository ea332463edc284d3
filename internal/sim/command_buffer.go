package sim

import (
	"sync"

	"github.com/ObambaCaree/petridish/internal/telemetry"
)

const (
	// CommandRejectQueueLimit indicates a session exceeded its per-tick quota.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the shared ring is saturated.
	CommandRejectQueueFull = "queue_full"

	commandBufferOccupancyMetricKey = "command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "command_buffer_overflow_total"
)

// CommandBuffer stores staged commands in a fixed-size ring with an optional
// per-actor quota that resets on every drain. It is safe for concurrent
// producers and a single consumer.
type CommandBuffer struct {
	mu       sync.Mutex
	data     []Command
	head     int
	tail     int
	count    int
	perActor int
	staged   map[string]int
	drops    map[string]uint64
	metrics  telemetry.Metrics
}

// NewCommandBuffer constructs a ring buffer with the provided capacity. A
// perActor of zero disables the quota.
func NewCommandBuffer(capacity, perActor int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &CommandBuffer{
		data:     make([]Command, capacity),
		perActor: perActor,
		staged:   make(map[string]int),
		drops:    make(map[string]uint64),
		metrics:  metrics,
	}
}

func (b *CommandBuffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Push stages cmd. On rejection it returns the reason and how many commands
// the actor has had dropped so far.
func (b *CommandBuffer) Push(cmd Command) (bool, string, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.perActor > 0 && cmd.ActorID != "" && b.staged[cmd.ActorID] >= b.perActor {
		return false, CommandRejectQueueLimit, b.dropLocked(cmd.ActorID)
	}
	if b.count == len(b.data) {
		b.metrics.Add(commandBufferOverflowMetricKey, 1)
		return false, CommandRejectQueueFull, b.dropLocked(cmd.ActorID)
	}
	b.data[b.tail] = cmd
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	if cmd.ActorID != "" {
		b.staged[cmd.ActorID]++
	}
	b.metrics.Store(commandBufferOccupancyMetricKey, uint64(b.count))
	return true, "", 0
}

func (b *CommandBuffer) dropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	b.drops[actorID]++
	return b.drops[actorID]
}

// Drain returns all staged commands in FIFO order, clears the buffer, and
// resets per-actor quotas.
func (b *CommandBuffer) Drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.staged) > 0 {
		b.staged = make(map[string]int)
	}
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % len(b.data)
		commands[i] = b.data[idx]
		b.data[idx] = Command{}
	}
	b.head, b.tail, b.count = 0, 0, 0
	b.metrics.Store(commandBufferOccupancyMetricKey, 0)
	return commands
}

// Forget discards drop accounting for an actor that has gone away.
func (b *CommandBuffer) Forget(actorID string) {
	b.mu.Lock()
	delete(b.drops, actorID)
	b.mu.Unlock()
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
