package ws

import (
	"sync"

	"github.com/ObambaCaree/petridish/internal/interest"
	"github.com/ObambaCaree/petridish/internal/net/proto"
	"github.com/ObambaCaree/petridish/internal/sim"
	"github.com/ObambaCaree/petridish/internal/telemetry"
)

// Registry maps session ids to live websocket sessions and implements the
// scheduler's outbound side. Every method is safe for concurrent use and
// never blocks on network I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

var _ sim.Registry = (*Registry)(nil)

func NewRegistry(logger telemetry.Logger, metrics telemetry.Metrics) *Registry {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
		metrics:  metrics,
	}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SendSnapshot encodes and queues a snapshot. Snapshots are superseded by
// the next broadcast, so a full buffer simply drops this one.
func (r *Registry) SendSnapshot(sessionID string, snapshot interest.Snapshot) {
	s, ok := r.get(sessionID)
	if !ok {
		return
	}
	data, err := proto.EncodeSnapshot(snapshot)
	if err != nil {
		r.logger.Printf("failed to marshal snapshot for %s: %v", sessionID, err)
		return
	}
	if !s.enqueue(data) {
		r.metrics.Add(telemetry.KeySnapshotsDropped, 1)
		return
	}
	r.metrics.Add(telemetry.KeyBytesSent, uint64(len(data)))
}

func (r *Registry) SendEvent(sessionID string, event sim.Event) {
	s, ok := r.get(sessionID)
	if !ok {
		return
	}
	data, err := proto.EncodeEvent(event)
	if err != nil {
		r.logger.Printf("failed to marshal %s event for %s: %v", event.Type, sessionID, err)
		return
	}
	r.write(s, data)
}

// Disconnect flushes queued frames and closes the connection with reason.
// The read loop observes the close and detaches the session.
func (r *Registry) Disconnect(sessionID string, reason string) {
	if s, ok := r.get(sessionID); ok {
		s.close(reason)
	}
}

func (r *Registry) write(s *Session, data []byte) bool {
	if !s.enqueue(data) {
		r.logger.Printf("dropping frame for slow session %s", s.id)
		return false
	}
	r.metrics.Add(telemetry.KeyBytesSent, uint64(len(data)))
	return true
}

// CloseAll disconnects every session, used on shutdown.
func (r *Registry) CloseAll(reason string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		s.close(reason)
	}
}
