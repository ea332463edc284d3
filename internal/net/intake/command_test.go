package intake

import (
	"testing"
	"time"

	"github.com/ObambaCaree/petridish/internal/net/proto"
	"github.com/ObambaCaree/petridish/internal/sim"
)

type fakeScheduler struct {
	enqueueOK     bool
	enqueueReason string
	commands      []sim.Command
}

func (f *fakeScheduler) Enqueue(cmd sim.Command) (bool, string) {
	f.commands = append(f.commands, cmd)
	if f.enqueueOK {
		return true, ""
	}
	if f.enqueueReason == "" {
		f.enqueueReason = sim.CommandRejectQueueLimit
	}
	return false, f.enqueueReason
}

func TestStageClientCommandAcceptsTarget(t *testing.T) {
	sched := &fakeScheduler{enqueueOK: true}
	issuedAt := time.Unix(100, 0)
	ctx := CommandContext{
		Scheduler: sched,
		Tick:      func() uint64 { return 42 },
		Now:       func() time.Time { return issuedAt },
	}

	msg := proto.ClientMessage{Type: proto.TypeTarget, X: 1, Y: 0}
	cmd, ok, reason := StageClientCommand(ctx, "session-1", msg)
	if !ok {
		t.Fatalf("expected command to be accepted, got reason %q", reason)
	}
	if cmd.ActorID != "session-1" {
		t.Fatalf("expected ActorID to be set, got %q", cmd.ActorID)
	}
	if cmd.OriginTick != 42 {
		t.Fatalf("expected OriginTick to be 42, got %d", cmd.OriginTick)
	}
	if !cmd.IssuedAt.Equal(issuedAt) {
		t.Fatalf("expected IssuedAt %v, got %v", issuedAt, cmd.IssuedAt)
	}
	if len(sched.commands) != 1 {
		t.Fatalf("expected scheduler to record command, got %d", len(sched.commands))
	}
}

func TestStageClientCommandStampsHeartbeat(t *testing.T) {
	sched := &fakeScheduler{enqueueOK: true}
	issuedAt := time.Unix(200, 0)
	cmd, ok, _ := StageClientCommand(CommandContext{Scheduler: sched, Now: func() time.Time { return issuedAt }},
		"session-1", proto.ClientMessage{Type: proto.TypeHeartbeat, SentAt: 199_000})
	if !ok {
		t.Fatalf("expected heartbeat to be accepted")
	}
	if cmd.Heartbeat == nil || !cmd.Heartbeat.ReceivedAt.Equal(issuedAt) || cmd.Heartbeat.ClientSent != 199_000 {
		t.Fatalf("unexpected heartbeat payload %+v", cmd.Heartbeat)
	}
}

func TestStageClientCommandRejectsMalformedInput(t *testing.T) {
	negative := -1
	cases := map[string]proto.ClientMessage{
		"unknown type":      {Type: "dance"},
		"negative cell":     {Type: proto.TypeSplit, Cell: &negative},
		"empty resize":      {Type: proto.TypeResize},
		"kick without name": {Type: proto.TypeKick},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			sched := &fakeScheduler{enqueueOK: true}
			_, ok, reason := StageClientCommand(CommandContext{Scheduler: sched}, "session-1", msg)
			if ok || reason != CommandRejectInvalid {
				t.Fatalf("expected invalid rejection, got ok=%v reason=%q", ok, reason)
			}
			if len(sched.commands) != 0 {
				t.Fatalf("rejected command must not reach the scheduler")
			}
		})
	}
}

func TestStageClientCommandPropagatesQueueRejection(t *testing.T) {
	sched := &fakeScheduler{}
	_, ok, reason := StageClientCommand(CommandContext{Scheduler: sched}, "session-1", proto.ClientMessage{Type: proto.TypeEject})
	if ok {
		t.Fatalf("expected enqueue failure to reject")
	}
	if reason != sim.CommandRejectQueueLimit {
		t.Fatalf("expected queue limit reason, got %q", reason)
	}
}

func TestStageClientCommandWithoutScheduler(t *testing.T) {
	_, ok, reason := StageClientCommand(CommandContext{}, "session-1", proto.ClientMessage{Type: proto.TypeEject})
	if ok || reason != sim.CommandRejectQueueFull {
		t.Fatalf("expected queue full without a scheduler, got ok=%v reason=%q", ok, reason)
	}
}
