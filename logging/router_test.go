package logging_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/ObambaCaree/petridish/logging"
	"github.com/ObambaCaree/petridish/logging/sinks"
)

func TestRouterFansOutAndStampsEvents(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"arena": "main"}
	first := sinks.NewMemorySink()
	second := sinks.NewMemorySink()

	router, err := logging.NewRouter(logging.ClockFunc(func() time.Time { return fixed }), cfg, nil, []logging.NamedSink{
		{Name: "first", Sink: first},
		{Name: "second", Sink: second},
		{Name: "nil"},
	})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "test.info", Tick: 3, Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "test.debug", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	for name, sink := range map[string]*sinks.MemorySink{"first": first, "second": second} {
		events := sink.Events()
		if len(events) != 1 {
			t.Fatalf("%s: expected 1 event above the severity floor, got %d", name, len(events))
		}
		if !events[0].Time.Equal(fixed) {
			t.Fatalf("%s: expected event stamped with router clock, got %v", name, events[0].Time)
		}
		if events[0].Extra["arena"] != "main" {
			t.Fatalf("%s: expected router fields merged, got %v", name, events[0].Extra)
		}
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected one forwarded event, got %+v", stats)
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	memory := sinks.NewMemorySink()
	router, err := logging.NewRouter(nil, logging.DefaultConfig(), nil, []logging.NamedSink{{Name: "memory", Sink: memory}})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityError})
	if len(memory.Events()) != 0 {
		t.Fatalf("expected no events after close")
	}
}

func TestWithFieldsAddsExtras(t *testing.T) {
	memory := sinks.NewMemorySink()
	pub := logging.WithFields(memory, map[string]any{"session": "s1"})
	pub.Publish(context.Background(), logging.Event{Type: "x", Extra: map[string]any{"session": "override"}})
	pub.Publish(context.Background(), logging.Event{Type: "y"})

	events := memory.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Extra["session"] != "s1" {
		t.Fatalf("expected field on event without extras, got %v", events[1].Extra)
	}
	if events[0].Extra["session"] != "override" {
		t.Fatalf("expected event extras to win over stamped fields, got %v", events[0].Extra)
	}
}

func TestWithFieldsLeavesCallerEventUntouched(t *testing.T) {
	memory := sinks.NewMemorySink()
	pub := logging.WithFields(memory, map[string]any{"arena": "main"})
	extra := map[string]any{"mass": 12.5}
	targets := []logging.EntityRef{logging.VirusRef(7)}

	pub.Publish(context.Background(), logging.Event{Type: "burst", Targets: targets, Extra: extra})
	targets[0] = logging.WorldRef()

	if _, leaked := extra["arena"]; leaked {
		t.Fatalf("expected caller extras to stay unstamped, got %v", extra)
	}
	got := memory.Events()[0]
	if got.Targets[0] != logging.VirusRef(7) {
		t.Fatalf("expected published targets detached from caller slice, got %v", got.Targets)
	}
	if got.Extra["mass"] != 12.5 || got.Extra["arena"] != "main" {
		t.Fatalf("expected merged extras, got %v", got.Extra)
	}
}

func TestEntityRefString(t *testing.T) {
	cases := map[string]logging.EntityRef{
		"player:p1":    logging.PlayerRef("p1"),
		"spectator:s9": logging.SpectatorRef("s9"),
		"cell:p1/4":    logging.CellRef("p1", 4),
		"virus:12":     logging.VirusRef(12),
		"world":        logging.WorldRef(),
		"bare":         {ID: "bare"},
	}
	for want, ref := range cases {
		if got := ref.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestSeverityString(t *testing.T) {
	if logging.SeverityWarn.String() != "warn" {
		t.Fatalf("expected warn, got %s", logging.SeverityWarn)
	}
	if logging.Severity(42).String() != "unknown" {
		t.Fatalf("expected out-of-range severity to read unknown")
	}
}

func TestRouterDropsWhenQueueIsFull(t *testing.T) {
	var fallback bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.BufferSize = 1
	blocking := &blockingSink{release: make(chan struct{})}
	router, err := logging.NewRouter(nil, cfg, log.New(&fallback, "", 0), []logging.NamedSink{{Name: "slow", Sink: blocking}})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	for i := 0; i < 200; i++ {
		router.Publish(context.Background(), logging.Event{Type: "flood", Severity: logging.SeverityInfo})
	}
	close(blocking.release)
	router.Close(context.Background())

	if router.Stats().DroppedTotal == 0 && fallback.Len() == 0 {
		t.Fatalf("expected flooding a blocked router to drop events")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Write(logging.Event) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
	written  []logging.Event
}

func (s *flakySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("disk full")
	}
	s.written = append(s.written, event)
	return nil
}

func (s *flakySink) Close(context.Context) error { return nil }

func waitForSinkStats(t *testing.T, router *logging.Router, name string, done func(logging.SinkStats) bool) logging.SinkStats {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		stats := router.Stats().Sinks[name]
		if done(stats) {
			return stats
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for sink %s, last stats %+v", name, stats)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRouterRetriesFailingSink(t *testing.T) {
	var fallback bytes.Buffer
	flaky := &flakySink{failures: 2}
	router, err := logging.NewRouter(nil, logging.DefaultConfig(), log.New(&fallback, "", 0), []logging.NamedSink{{Name: "flaky", Sink: flaky}})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{Type: "player.joined", Severity: logging.SeverityInfo})
	stats := waitForSinkStats(t, router, "flaky", func(s logging.SinkStats) bool { return s.Written == 1 })
	if stats.Failures != 0 {
		t.Fatalf("expected the event to survive transient failures, got %+v", stats)
	}
	flaky.mu.Lock()
	calls := flaky.calls
	flaky.mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected two retries before success, got %d calls", calls)
	}
	if fallback.Len() == 0 {
		t.Fatalf("expected retries to be reported on the fallback logger")
	}
}

func TestRouterAbandonsEventAfterRetries(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.SinkRetries = 1
	broken := &flakySink{failures: 1 << 30}
	healthy := sinks.NewMemorySink()
	router, err := logging.NewRouter(nil, cfg, log.New(&bytes.Buffer{}, "", 0), []logging.NamedSink{
		{Name: "broken", Sink: broken},
		{Name: "memory", Sink: healthy},
	})
	if err != nil {
		t.Fatalf("failed to construct router: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "cell.engulfed", Severity: logging.SeverityInfo})
	waitForSinkStats(t, router, "broken", func(s logging.SinkStats) bool { return s.Failures == 1 })
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if len(healthy.Events()) != 1 {
		t.Fatalf("a failing sink must not starve the others")
	}
	if stats := router.Stats().Sinks["memory"]; stats.Written != 1 {
		t.Fatalf("unexpected healthy sink stats %+v", stats)
	}
}
