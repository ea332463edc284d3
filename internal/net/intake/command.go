package intake

import (
	"math"
	"time"

	"github.com/ObambaCaree/petridish/internal/net/proto"
	"github.com/ObambaCaree/petridish/internal/sim"
)

// CommandRejectInvalid marks a message that maps to no well-formed command.
const CommandRejectInvalid = "invalid_command"

// Enqueuer accepts commands for the next physics tick.
type Enqueuer interface {
	Enqueue(cmd sim.Command) (bool, string)
}

type CommandContext struct {
	Scheduler Enqueuer
	Tick      func() uint64
	Now       func() time.Time
}

// StageClientCommand validates a decoded client message, stamps it with the
// session and timing metadata and hands it to the scheduler.
func StageClientCommand(ctx CommandContext, sessionID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, CommandRejectInvalid
	}

	switch command.Type {
	case sim.CommandTarget:
		if command.Target == nil || !finite(command.Target.X) || !finite(command.Target.Y) {
			return zero, false, CommandRejectInvalid
		}
	case sim.CommandSplit:
		if command.Split != nil && command.Split.Cell != nil && *command.Split.Cell < 0 {
			return zero, false, CommandRejectInvalid
		}
	case sim.CommandResize:
		if command.Resize == nil || command.Resize.Width <= 0 || command.Resize.Height <= 0 {
			return zero, false, CommandRejectInvalid
		}
	}

	command.ActorID = sessionID
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}
	if command.Heartbeat != nil {
		command.Heartbeat.ReceivedAt = command.IssuedAt
	}

	if ctx.Scheduler == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Scheduler.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
