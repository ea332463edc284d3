package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ObambaCaree/petridish/internal/interest"
	"github.com/ObambaCaree/petridish/internal/sim"
	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/internal/world"
)

type testServer struct {
	sched    *sim.Scheduler
	registry *Registry
	srv      *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	registry := NewRegistry(nil, nil)
	sched := sim.New(sim.Config{World: world.Config{Width: 2000, Height: 2000}}, sim.Deps{Registry: registry})
	handler := NewHandler(sched, registry, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return &testServer{sched: sched, registry: registry, srv: srv}
}

// stepUntil drives physics ticks from the test goroutine, which plays the
// role of the simulation loop.
func (ts *testServer) stepUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ts.sched.StepPhysics(context.Background(), time.Now())
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (ts *testServer) dial(t *testing.T, connType string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, ts.srv.URL, connType), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func websocketURL(t *testing.T, baseURL, connType string) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/"
	query := parsed.Query()
	query.Set("type", connType)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		t.Fatalf("failed to decode frame %s: %v", payload, err)
	}
	return f
}

func readUntil(t *testing.T, conn *websocket.Conn, frameType string) frame {
	t.Helper()
	for i := 0; i < 32; i++ {
		if f := readFrame(t, conn); f.Type == frameType {
			return f
		}
	}
	t.Fatalf("no %s frame received", frameType)
	return frame{}
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("failed to send %s: %v", payload, err)
	}
}

func TestPlayerJoinReceivesWelcome(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "player")
	send(t, conn, `{"type":"join","name":"blob"}`)

	ts.stepUntil(t, "player to join", func() bool { return ts.sched.Diagnostics().Players == 1 })

	welcome := readFrame(t, conn)
	if welcome.Type != string(sim.EventWelcome) {
		t.Fatalf("expected welcome first, got %s", welcome.Type)
	}
	var payload sim.WelcomePayload
	if err := json.Unmarshal(welcome.Data, &payload); err != nil {
		t.Fatalf("failed to decode welcome: %v", err)
	}
	if !payload.Player.IsSelf || payload.World.Width != 2000 {
		t.Fatalf("unexpected welcome payload %+v", payload)
	}
	join := readFrame(t, conn)
	if join.Type != string(sim.EventPlayerJoin) {
		t.Fatalf("expected playerJoin, got %s", join.Type)
	}

	ts.sched.StepBroadcast(context.Background(), time.Now())
	state := readUntil(t, conn, "state")
	if state.Type != "state" {
		t.Fatalf("expected state frame")
	}
}

func TestCommandAckCarriesSequence(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "player")
	send(t, conn, `{"type":"heartbeat","sentAt":1,"seq":3}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read ack: %v", err)
	}
	var ack struct {
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
	}
	if err := json.Unmarshal(payload, &ack); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if ack.Type != "commandAck" || ack.Seq != 3 {
		t.Fatalf("unexpected ack %s", payload)
	}
}

func TestInvalidCommandIsRejected(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "player")
	send(t, conn, `{"type":"split","cell":-1,"seq":4}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read reject: %v", err)
	}
	var reject struct {
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(payload, &reject); err != nil {
		t.Fatalf("failed to decode reject: %v", err)
	}
	if reject.Type != "commandReject" || reject.Seq != 4 || reject.Reason != "invalid_command" {
		t.Fatalf("unexpected reject %s", payload)
	}
}

func TestDuplicateNameClosesConnection(t *testing.T) {
	ts := newTestServer(t)
	first := ts.dial(t, "player")
	send(t, first, `{"type":"join","name":"blob"}`)
	ts.stepUntil(t, "first player", func() bool { return ts.sched.Diagnostics().Players == 1 })

	second := ts.dial(t, "player")
	send(t, second, `{"type":"join","name":"blob"}`)
	ts.stepUntil(t, "rejection", func() bool { return ts.registry.Len() == 1 })

	kick := readFrame(t, second)
	if kick.Type != string(sim.EventKick) {
		t.Fatalf("expected kick frame, got %s", kick.Type)
	}
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close frame, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation || closeErr.Text != "username already in use" {
		t.Fatalf("unexpected close %d %q", closeErr.Code, closeErr.Text)
	}
}

func TestUnknownConnectionTypeIsClosed(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "robot")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy close, got %v", err)
	}
	if ts.registry.Len() != 0 {
		t.Fatalf("unknown connection must not be registered")
	}
}

func TestClientCloseDetachesPlayer(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "player")
	send(t, conn, `{"type":"join","name":"blob"}`)
	ts.stepUntil(t, "player to join", func() bool { return ts.sched.Diagnostics().Players == 1 })

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	ts.stepUntil(t, "player to leave", func() bool {
		return ts.sched.Diagnostics().Players == 0 && ts.registry.Len() == 0
	})
}

func TestSpectatorWelcomedOnConnect(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "spectator")
	ts.stepUntil(t, "spectator attach", func() bool { return len(ts.sched.Diagnostics().Viewers) == 1 })

	welcome := readFrame(t, conn)
	if welcome.Type != string(sim.EventWelcome) {
		t.Fatalf("expected welcome, got %s", welcome.Type)
	}
}

func TestRegistryDropsSnapshotsForSlowSessions(t *testing.T) {
	counters := telemetry.NewCounters()
	registry := NewRegistry(nil, counters)
	session := newSession("slow", world.KindPlayer, nil, 1, 0)
	registry.add(session)

	registry.SendSnapshot("slow", interest.Snapshot{Tick: 1})
	registry.SendSnapshot("slow", interest.Snapshot{Tick: 2})
	registry.SendSnapshot("missing", interest.Snapshot{Tick: 3})

	snap := counters.Snapshot()
	if snap[telemetry.KeySnapshotsDropped] != 1 {
		t.Fatalf("expected one dropped snapshot, got %d", snap[telemetry.KeySnapshotsDropped])
	}
	if snap[telemetry.KeyBytesSent] == 0 {
		t.Fatalf("expected bytes to be counted for the queued snapshot")
	}

	registry.Disconnect("slow", "bye")
	if session.enqueue([]byte("late")) {
		t.Fatalf("closed session must refuse frames")
	}
}
