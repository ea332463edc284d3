package proto

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ObambaCaree/petridish/internal/interest"
	"github.com/ObambaCaree/petridish/internal/sim"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeState         = "state"
)

// Client message type identifiers.
const (
	TypeJoin      = "join"
	TypeTarget    = "target"
	TypeEject     = "eject"
	TypeSplit     = "split"
	TypeResize    = "resize"
	TypeHeartbeat = "heartbeat"
	TypeAdmin     = "admin"
	TypeKick      = "kick"
)

// TypeState identifies snapshot frames.
const TypeState = typeState

// ClientMessage captures an inbound websocket message from the client.
type ClientMessage struct {
	Ver          int     `json:"ver,omitempty"`
	Type         string  `json:"type"`
	Name         string  `json:"name"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Cell         *int    `json:"cell,omitempty"`
	ScreenWidth  float64 `json:"screenWidth"`
	ScreenHeight float64 `json:"screenHeight"`
	SentAt       int64   `json:"sentAt"`
	Password     string  `json:"password"`
	Reason       string  `json:"reason"`
	CommandSeq   *uint64 `json:"seq,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// Seq returns the client-assigned command sequence, or zero when absent.
func (m ClientMessage) Seq() uint64 {
	if m.CommandSeq == nil {
		return 0
	}
	return *m.CommandSeq
}

// ClientCommand maps a websocket message onto the simulation command it
// carries. Session and timing metadata are filled in by the transport.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeJoin:
		return sim.Command{Type: sim.CommandJoin, Join: &sim.JoinCommand{Name: strings.TrimSpace(msg.Name)}}, true
	case TypeTarget:
		return sim.Command{Type: sim.CommandTarget, Target: &sim.TargetCommand{X: msg.X, Y: msg.Y}}, true
	case TypeEject:
		return sim.Command{Type: sim.CommandEject}, true
	case TypeSplit:
		return sim.Command{Type: sim.CommandSplit, Split: &sim.SplitCommand{Cell: msg.Cell}}, true
	case TypeResize:
		return sim.Command{
			Type:   sim.CommandResize,
			Resize: &sim.ResizeCommand{Width: msg.ScreenWidth, Height: msg.ScreenHeight},
		}, true
	case TypeHeartbeat:
		return sim.Command{Type: sim.CommandHeartbeat, Heartbeat: &sim.HeartbeatCommand{ClientSent: msg.SentAt}}, true
	case TypeAdmin:
		return sim.Command{Type: sim.CommandAdmin, Admin: &sim.AdminCommand{Password: msg.Password}}, true
	case TypeKick:
		if msg.Name == "" {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandKick, Kick: &sim.KickCommand{Name: msg.Name, Reason: msg.Reason}}, true
	default:
		return sim.Command{}, false
	}
}

// EncodeSnapshot renders a per-viewer snapshot as a state frame.
func EncodeSnapshot(snap interest.Snapshot) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		interest.Snapshot
	}{
		Ver:      Version,
		Type:     typeState,
		Snapshot: snap,
	}
	return json.Marshal(frame)
}

// EncodeEvent renders a lifecycle or control event. Heartbeat acks keep
// their timing fields at the top level; every other event nests its payload
// under data.
func EncodeEvent(event sim.Event) ([]byte, error) {
	if hb, ok := event.Payload.(sim.HeartbeatPayload); ok && event.Type == sim.EventHeartbeat {
		frame := struct {
			Ver  int    `json:"ver"`
			Type string `json:"type"`
			sim.HeartbeatPayload
		}{
			Ver:              Version,
			Type:             string(event.Type),
			HeartbeatPayload: hb,
		}
		return json.Marshal(frame)
	}
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{
		Ver:  Version,
		Type: string(event.Type),
		Data: event.Payload,
	}
	return json.Marshal(frame)
}

// CommandAck describes an acknowledgement of an accepted command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: typeCommandAck,
		Seq:  msg.Seq,
		Tick: msg.Tick,
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
		Retry  bool   `json:"retry,omitempty"`
	}{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
		Retry:  msg.Retry,
	}
	return json.Marshal(frame)
}
