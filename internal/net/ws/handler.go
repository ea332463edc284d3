package ws

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"

	"github.com/ObambaCaree/petridish/internal/net/intake"
	"github.com/ObambaCaree/petridish/internal/net/proto"
	"github.com/ObambaCaree/petridish/internal/sim"
	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/internal/world"
	"github.com/ObambaCaree/petridish/logging"
)

const (
	connectionTypePlayer    = "player"
	connectionTypeSpectator = "spectator"
)

// Scheduler is the part of the simulation the transport feeds.
type Scheduler interface {
	Attach(sessionID string, kind world.PlayerKind)
	Detach(sessionID string)
	Enqueue(cmd sim.Command) (bool, string)
	Tick() uint64
}

type HandlerConfig struct {
	Logger       telemetry.Logger
	Clock        logging.Clock
	SendBuffer   int
	WriteTimeout time.Duration
	// IDs generates session identifiers; defaults to random UUIDs.
	IDs func() string
}

type Handler struct {
	sched    Scheduler
	registry *Registry
	logger   telemetry.Logger
	clock    logging.Clock
	ids      func() string
	buffer   int
	timeout  time.Duration
	upgrader websocket.Upgrader
}

func NewHandler(sched Scheduler, registry *Registry, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	ids := cfg.IDs
	if ids == nil {
		ids = func() string { return uuid.NewV4().String() }
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		sched:    sched,
		registry: registry,
		logger:   logger,
		clock:    clock,
		ids:      ids,
		buffer:   cfg.SendBuffer,
		timeout:  cfg.WriteTimeout,
		upgrader: upgrader,
	}
}

func parseKind(value string) (world.PlayerKind, bool) {
	switch value {
	case connectionTypePlayer:
		return world.KindPlayer, true
	case connectionTypeSpectator:
		return world.KindSpectator, true
	default:
		return "", false
	}
}

// Handle upgrades the request and runs the session's read loop until the
// connection closes.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	connType := r.URL.Query().Get("type")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	kind, ok := parseKind(connType)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown connection type")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		conn.Close()
		return
	}

	session := newSession(h.ids(), kind, conn, h.buffer, h.timeout)
	h.registry.add(session)
	go session.writePump()
	h.sched.Attach(session.id, kind)
	h.logger.Printf("[%s] %s connected as %s", session.id, r.RemoteAddr, kind)

	defer func() {
		h.sched.Detach(session.id)
		h.registry.remove(session.id)
		session.close("")
	}()

	staging := intake.CommandContext{
		Scheduler: h.sched,
		Tick:      h.sched.Tick,
		Now:       h.clock.Now,
	}
	conn.SetReadLimit(maxMessageSize)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Printf("[%s] read failed: %v", session.id, err)
			}
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", session.id, err)
			continue
		}
		cmd, accepted, reason := intake.StageClientCommand(staging, session.id, msg)
		if reason == intake.CommandRejectInvalid {
			h.logger.Printf("invalid %q message from %s", msg.Type, session.id)
		}

		seq := msg.Seq()
		if seq == 0 {
			continue
		}
		var data []byte
		if accepted {
			data, err = proto.EncodeCommandAck(proto.CommandAck{Seq: seq, Tick: cmd.OriginTick})
		} else {
			data, err = proto.EncodeCommandReject(proto.CommandReject{
				Seq:    seq,
				Reason: reason,
				Retry:  reason == sim.CommandRejectQueueLimit,
			})
		}
		if err != nil {
			h.logger.Printf("failed to marshal response for %s: %v", session.id, err)
			continue
		}
		h.registry.write(session, data)
	}
}
