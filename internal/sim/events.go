package sim

import (
	"github.com/ObambaCaree/petridish/internal/interest"
)

// EventType names an outbound notification.
type EventType string

const (
	EventWelcome          EventType = "welcome"
	EventPlayerJoin       EventType = "playerJoin"
	EventPlayerDisconnect EventType = "playerDisconnect"
	EventPlayerDied       EventType = "playerDied"
	EventKick             EventType = "kick"
	EventRIP              EventType = "RIP"
	EventVirusSplit       EventType = "virusSplit"
	EventServerMessage    EventType = "serverMSG"
	EventHeartbeat        EventType = "heartbeat"
)

// Event is a lifecycle or control notification for one viewer.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// WelcomePayload is sent once a viewer is admitted. Player is empty for
// spectators.
type WelcomePayload struct {
	Player interest.PlayerView `json:"player"`
	World  Bounds              `json:"world"`
}

type NamePayload struct {
	Name string `json:"name"`
}

type KickPayload struct {
	Reason string `json:"reason"`
}

type VirusSplitPayload struct {
	Cell int `json:"cell"`
}

type ServerMessagePayload struct {
	Message string `json:"message"`
}

type HeartbeatPayload struct {
	ServerTime int64 `json:"serverTime"`
	ClientTime int64 `json:"clientTime"`
	RTTMillis  int64 `json:"rtt"`
}

// Registry is the connection side of the simulation. Implementations must
// not block the caller; delivery is best effort.
type Registry interface {
	SendSnapshot(sessionID string, snapshot interest.Snapshot)
	SendEvent(sessionID string, event Event)
	Disconnect(sessionID string, reason string)
}

type nopRegistry struct{}

func (nopRegistry) SendSnapshot(string, interest.Snapshot) {}
func (nopRegistry) SendEvent(string, Event)                {}
func (nopRegistry) Disconnect(string, string)              {}
