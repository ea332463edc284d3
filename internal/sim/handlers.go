package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/ObambaCaree/petridish/internal/collision"
	"github.com/ObambaCaree/petridish/internal/game"
	"github.com/ObambaCaree/petridish/internal/interest"
	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/internal/world"
	"github.com/ObambaCaree/petridish/logging"
	"github.com/ObambaCaree/petridish/logging/lifecycle"
	"github.com/ObambaCaree/petridish/logging/simulation"
)

const (
	reasonConnectionClosed = "connection closed"
	maxScreenDimension     = 8192
)

// Attach registers a connection. It takes effect at the next physics tick.
func (s *Scheduler) Attach(sessionID string, kind world.PlayerKind) {
	s.lifecycle.push(Command{
		ActorID:  sessionID,
		Type:     CommandAttach,
		IssuedAt: s.clock.Now(),
		Attach:   &AttachCommand{Kind: kind},
	})
}

// Detach reports a closed connection. Detaching an unknown or already
// evicted session is a no-op.
func (s *Scheduler) Detach(sessionID string) {
	s.lifecycle.push(Command{ActorID: sessionID, Type: CommandDetach, IssuedAt: s.clock.Now()})
}

// Enqueue stages a gameplay command for the next physics tick, enforcing the
// per-session quota and ring capacity.
func (s *Scheduler) Enqueue(cmd Command) (bool, string) {
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = s.clock.Now()
	}
	ok, reason, drops := s.buffer.Push(cmd)
	if ok {
		return true, ""
	}
	s.metrics.Add(telemetry.KeyCommandsDropped, 1)
	simulation.CommandDropped(context.Background(), s.publisher, cmd.OriginTick, logging.PlayerRef(cmd.ActorID),
		simulation.CommandDroppedPayload{Command: string(cmd.Type), Reason: reason})
	if drops > 0 && drops&(drops-1) == 0 {
		s.logger.Printf("[backpressure] dropping command session=%s type=%s count=%d reason=%s", cmd.ActorID, cmd.Type, drops, reason)
	}
	return false, reason
}

// Pending reports how many gameplay commands are staged.
func (s *Scheduler) Pending() int {
	return s.buffer.Len()
}

// applyCommands reads the command ring before the lifecycle queue. A session
// is attached before its first command is staged, so every drained command
// finds its viewer even when the attach lands while the ring is being read.
func (s *Scheduler) applyCommands(ctx context.Context, now time.Time) {
	roster := false
	staged := s.buffer.Drain()
	for _, cmd := range s.lifecycle.drain() {
		switch cmd.Type {
		case CommandAttach:
			s.attach(ctx, cmd, now)
		case CommandDetach:
			s.detach(ctx, cmd.ActorID, reasonConnectionClosed)
			s.buffer.Forget(cmd.ActorID)
		}
		roster = true
	}
	for _, cmd := range staged {
		v, ok := s.viewers.get(cmd.ActorID)
		if !ok {
			continue
		}
		if cmd.Type == CommandJoin {
			roster = true
		}
		s.apply(ctx, v, cmd, now)
	}
	if roster {
		s.refreshDiagnostics(now)
	}
}

func (s *Scheduler) apply(ctx context.Context, v *viewer, cmd Command, now time.Time) {
	received := cmd.IssuedAt
	if received.IsZero() {
		received = now
	}
	v.lastSeen = received
	p, alive := s.world.Player(v.playerID)

	switch cmd.Type {
	case CommandJoin:
		if cmd.Join != nil {
			s.join(ctx, v, cmd.Join.Name, now)
		}
	case CommandTarget:
		if !alive || cmd.Target == nil || !finite(cmd.Target.X) || !finite(cmd.Target.Y) {
			return
		}
		p.Target = world.Point{X: cmd.Target.X, Y: cmd.Target.Y}
		p.LastHeartbeat = received
	case CommandHeartbeat:
		s.heartbeat(v, p, alive, cmd, received)
	case CommandEject:
		if alive {
			game.Eject(s.world, p)
		}
	case CommandSplit:
		if !alive {
			return
		}
		index := game.SplitAll
		if cmd.Split != nil && cmd.Split.Cell != nil {
			index = *cmd.Split.Cell
			if index < 0 {
				return
			}
		}
		game.Split(s.world, p, index, now)
	case CommandResize:
		if cmd.Resize == nil || !validScreen(cmd.Resize.Width) || !validScreen(cmd.Resize.Height) {
			return
		}
		v.screenW, v.screenH = cmd.Resize.Width, cmd.Resize.Height
		if alive {
			p.ScreenWidth, p.ScreenHeight = v.screenW, v.screenH
		}
	case CommandAdmin:
		if alive && cmd.Admin != nil {
			s.adminLogin(ctx, v, p, cmd.Admin.Password)
		}
	case CommandKick:
		if alive && cmd.Kick != nil {
			s.adminKick(ctx, v, p, cmd.Kick.Name, cmd.Kick.Reason)
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validScreen(v float64) bool {
	return finite(v) && v > 0 && v <= maxScreenDimension
}

func (s *Scheduler) attach(ctx context.Context, cmd Command, now time.Time) {
	kind := world.KindPlayer
	if cmd.Attach != nil && cmd.Attach.Kind == world.KindSpectator {
		kind = world.KindSpectator
	}
	v := &viewer{sessionID: cmd.ActorID, kind: kind, lastSeen: now, screenW: 1920, screenH: 1080}
	if !s.viewers.add(v) {
		return
	}
	if kind == world.KindSpectator {
		s.registry.SendEvent(v.sessionID, Event{Type: EventWelcome, Payload: WelcomePayload{World: s.bounds()}})
	}
}

func (s *Scheduler) bounds() Bounds {
	return Bounds{Width: s.world.Width(), Height: s.world.Height()}
}

func (s *Scheduler) join(ctx context.Context, v *viewer, requested string, now time.Time) {
	if v.kind == world.KindSpectator {
		if v.joined {
			return
		}
		v.joined = true
		s.broadcast(Event{Type: EventPlayerJoin, Payload: NamePayload{}})
		lifecycle.SpectatorJoined(ctx, s.publisher, s.tick, logging.SpectatorRef(v.sessionID))
		return
	}

	if _, alive := s.world.Player(v.playerID); alive {
		s.reject(ctx, v, requested, errors.Wrapf(game.ErrAlreadyJoined, "session %s", v.sessionID))
		return
	}
	name, err := game.ResolveName(s.world, requested)
	if err != nil {
		s.reject(ctx, v, requested, err)
		return
	}

	p := s.world.SpawnPlayer(name, world.KindPlayer)
	p.ScreenWidth, p.ScreenHeight = v.screenW, v.screenH
	p.LastHeartbeat = now
	if err := s.world.AddPlayer(p); err != nil {
		s.reject(ctx, v, requested, err)
		return
	}
	v.joined = true
	s.viewers.bind(v, p.ID)

	s.registry.SendEvent(v.sessionID, Event{Type: EventWelcome, Payload: WelcomePayload{Player: interest.SelfView(p), World: s.bounds()}})
	s.broadcast(Event{Type: EventPlayerJoin, Payload: NamePayload{Name: name}})
	lifecycle.PlayerJoined(ctx, s.publisher, s.tick, logging.PlayerRef(p.ID), lifecycle.PlayerJoinedPayload{
		Name:   name,
		SpawnX: p.X,
		SpawnY: p.Y,
	}, map[string]any{"session": v.sessionID})
}

// reject notifies the viewer, closes its connection, and forgets it.
func (s *Scheduler) reject(ctx context.Context, v *viewer, requested string, err error) {
	reason := errors.Cause(err).Error()
	s.logger.Printf("join rejected for session %s: %v", v.sessionID, err)
	s.registry.SendEvent(v.sessionID, Event{Type: EventKick, Payload: KickPayload{Reason: reason}})
	s.registry.Disconnect(v.sessionID, reason)
	s.viewers.remove(v.sessionID)
	lifecycle.JoinRejected(ctx, s.publisher, s.tick, logging.PlayerRef(v.sessionID),
		lifecycle.JoinRejectedPayload{Name: requested, Reason: reason})
}

// detach removes the session and its player, if any. Unknown sessions are
// ignored.
func (s *Scheduler) detach(ctx context.Context, sessionID, reason string) {
	v, ok := s.viewers.remove(sessionID)
	if !ok {
		return
	}
	p, alive := s.world.RemovePlayer(v.playerID)
	if !alive {
		return
	}
	s.broadcast(Event{Type: EventPlayerDisconnect, Payload: NamePayload{Name: p.Name}})
	lifecycle.PlayerDisconnected(ctx, s.publisher, s.tick, logging.PlayerRef(p.ID), lifecycle.PlayerDisconnectedPayload{
		Name:   p.Name,
		Reason: reason,
	}, map[string]any{"session": sessionID})
}

func (s *Scheduler) heartbeat(v *viewer, p *world.Player, alive bool, cmd Command, received time.Time) {
	if alive {
		p.LastHeartbeat = received
	}
	var clientSent int64
	if cmd.Heartbeat != nil {
		clientSent = cmd.Heartbeat.ClientSent
	}
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(received.Add(5 * time.Second)) {
			rtt := received.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			v.rtt = rtt
		}
	}
	s.registry.SendEvent(v.sessionID, Event{Type: EventHeartbeat, Payload: HeartbeatPayload{
		ServerTime: received.UnixMilli(),
		ClientTime: clientSent,
		RTTMillis:  v.rtt.Milliseconds(),
	}})
}

// evictStale force-disconnects every player whose last heartbeat is older
// than the configured maximum interval.
func (s *Scheduler) evictStale(ctx context.Context, now time.Time) {
	limit := s.cfg.World.MaxHeartbeatInterval
	var stale []*world.Player
	for _, p := range s.world.Players() {
		if now.Sub(p.LastHeartbeat) > limit {
			stale = append(stale, p)
		}
	}
	for _, p := range stale {
		reason := fmt.Sprintf("Last heartbeat received over %s ago.", limit)
		s.logger.Printf("disconnecting %s due to heartbeat timeout", p.ID)
		v, ok := s.viewers.byPlayer(p.ID)
		if !ok {
			s.world.RemovePlayer(p.ID)
			continue
		}
		s.registry.SendEvent(v.sessionID, Event{Type: EventKick, Payload: KickPayload{Reason: reason}})
		s.registry.Disconnect(v.sessionID, reason)
		s.detach(ctx, v.sessionID, "heartbeat timeout")
	}
	if len(stale) > 0 {
		s.refreshDiagnostics(now)
	}
}

// eliminated handles a player whose last cell was eaten. The session stays
// open so the client can join again.
func (s *Scheduler) eliminated(ctx context.Context, e collision.Elimination) {
	if v, ok := s.viewers.byPlayer(e.Player.ID); ok {
		s.viewers.bind(v, "")
		v.joined = false
		s.registry.SendEvent(v.sessionID, Event{Type: EventRIP})
	}
	s.broadcast(Event{Type: EventPlayerDied, Payload: NamePayload{Name: e.Player.Name}})
	eater := ""
	if attacker, ok := s.world.Player(e.EatenBy); ok {
		eater = attacker.Name
	}
	lifecycle.PlayerEliminated(ctx, s.publisher, s.tick, logging.PlayerRef(e.Player.ID), logging.PlayerRef(e.EatenBy), lifecycle.PlayerEliminatedPayload{
		Name:      e.Player.Name,
		EatenBy:   eater,
		FinalMass: e.Player.MassTotal,
	})
}

func (s *Scheduler) adminLogin(ctx context.Context, v *viewer, p *world.Player, password string) {
	if !game.Authenticate(s.cfg.World, password) {
		s.logger.Printf("[ADMIN] %s attempted to log in with incorrect password", p.Name)
		s.registry.SendEvent(v.sessionID, serverMessage("Password incorrect, attempt logged."))
		return
	}
	p.Admin = true
	s.logger.Printf("[ADMIN] %s just logged in as admin", p.Name)
	s.registry.SendEvent(v.sessionID, serverMessage("Welcome back "+p.Name))
	for _, other := range s.viewers.ordered() {
		if other != v {
			s.registry.SendEvent(other.sessionID, serverMessage(p.Name+" just logged in as admin!"))
		}
	}
}

func (s *Scheduler) adminKick(ctx context.Context, v *viewer, admin *world.Player, name, reason string) {
	if !admin.Admin {
		s.logger.Printf("[ADMIN] %s is trying to use kick but isn't an admin", admin.Name)
		s.registry.SendEvent(v.sessionID, serverMessage("You are not permitted to use this command."))
		return
	}
	target, ok := s.world.PlayerByName(name)
	if !ok || target.Admin {
		s.registry.SendEvent(v.sessionID, serverMessage("Could not locate user or user is an admin."))
		return
	}
	message := "You were kicked"
	if reason != "" {
		message += " for " + reason
	}
	if tv, ok := s.viewers.byPlayer(target.ID); ok {
		s.registry.SendEvent(tv.sessionID, Event{Type: EventKick, Payload: KickPayload{Reason: message}})
		s.registry.Disconnect(tv.sessionID, message)
		s.viewers.remove(tv.sessionID)
	}
	s.world.RemovePlayer(target.ID)
	s.broadcast(serverMessage(fmt.Sprintf("User %s was kicked by %s", target.Name, admin.Name)))
	lifecycle.PlayerKicked(ctx, s.publisher, s.tick, logging.PlayerRef(target.ID), lifecycle.PlayerKickedPayload{
		Name:   target.Name,
		Reason: reason,
		By:     admin.Name,
	})
	s.refreshDiagnostics(s.clock.Now())
}

func serverMessage(msg string) Event {
	return Event{Type: EventServerMessage, Payload: ServerMessagePayload{Message: msg}}
}
