package lifecycle

import (
	"context"

	"github.com/ObambaCaree/petridish/logging"
)

const (
	// EventPlayerJoined is emitted when a player enters the arena.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a player leaves the arena.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventPlayerEliminated is emitted when a player's last cell is eaten.
	EventPlayerEliminated logging.EventType = "lifecycle.player_eliminated"
	// EventPlayerKicked is emitted when the server forcibly removes a player.
	EventPlayerKicked logging.EventType = "lifecycle.player_kicked"
	// EventJoinRejected is emitted when a join handshake fails validation.
	EventJoinRejected logging.EventType = "lifecycle.join_rejected"
	// EventSpectatorJoined is emitted when a spectator starts watching.
	EventSpectatorJoined logging.EventType = "lifecycle.spectator_joined"
)

// PlayerJoinedPayload captures spawn metadata for a new player.
type PlayerJoinedPayload struct {
	Name   string  `json:"name"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type PlayerEliminatedPayload struct {
	Name      string  `json:"name"`
	EatenBy   string  `json:"eatenBy"`
	FinalMass float64 `json:"finalMass"`
}

type PlayerKickedPayload struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	By     string `json:"by,omitempty"`
}

type JoinRejectedPayload struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event)
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// PlayerEliminated publishes an elimination; the eater is recorded as a target.
func PlayerEliminated(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, eater logging.EntityRef, payload PlayerEliminatedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerEliminated,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{eater},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// PlayerKicked publishes a warning when a player is forcibly disconnected.
func PlayerKicked(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerKickedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPlayerKicked,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

func JoinRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload JoinRejectedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventJoinRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

func SpectatorJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventSpectatorJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})
}
