package sim

import (
	"time"

	"github.com/ObambaCaree/petridish/internal/world"
)

// CommandType enumerates the inbound intents staged for the physics tick.
type CommandType string

const (
	CommandAttach    CommandType = "Attach"
	CommandDetach    CommandType = "Detach"
	CommandJoin      CommandType = "Join"
	CommandTarget    CommandType = "Target"
	CommandEject     CommandType = "Eject"
	CommandSplit     CommandType = "Split"
	CommandResize    CommandType = "Resize"
	CommandHeartbeat CommandType = "Heartbeat"
	CommandAdmin     CommandType = "Admin"
	CommandKick      CommandType = "Kick"
)

// AttachCommand registers a new connection as a viewer.
type AttachCommand struct {
	Kind world.PlayerKind `json:"kind"`
}

// JoinCommand requests a spawn under the given display name.
type JoinCommand struct {
	Name string `json:"name"`
}

// TargetCommand carries the steering target relative to the player centre.
type TargetCommand struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SplitCommand optionally names one cell by index; nil splits every cell.
type SplitCommand struct {
	Cell *int `json:"cell,omitempty"`
}

type ResizeCommand struct {
	Width  float64 `json:"screenWidth"`
	Height float64 `json:"screenHeight"`
}

// HeartbeatCommand updates connectivity metadata for a viewer.
type HeartbeatCommand struct {
	ReceivedAt time.Time `json:"receivedAt"`
	ClientSent int64     `json:"clientSent"`
}

type AdminCommand struct {
	Password string `json:"password"`
}

type KickCommand struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Command represents an intent captured for processing on the next tick.
// ActorID is the session identifier, not a player id.
type Command struct {
	OriginTick uint64            `json:"originTick"`
	ActorID    string            `json:"actorId"`
	Type       CommandType       `json:"type"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Attach     *AttachCommand    `json:"attach,omitempty"`
	Join       *JoinCommand      `json:"join,omitempty"`
	Target     *TargetCommand    `json:"target,omitempty"`
	Split      *SplitCommand     `json:"split,omitempty"`
	Resize     *ResizeCommand    `json:"resize,omitempty"`
	Heartbeat  *HeartbeatCommand `json:"heartbeat,omitempty"`
	Admin      *AdminCommand     `json:"admin,omitempty"`
	Kick       *KickCommand      `json:"kick,omitempty"`
}
