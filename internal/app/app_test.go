package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ObambaCaree/petridish/internal/world"
)

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestFromEnvOverlaysDefaults(t *testing.T) {
	cfg, err := FromEnv(DefaultConfig(), mapLookup(map[string]string{
		"LISTEN_ADDR":      ":9000",
		"LOG_SINKS":        "console, json",
		"LOG_JSON_PATH":    "/tmp/events.jsonl",
		"INFLUX_ADDR":      "http://influx:8086",
		"INFLUX_INTERVAL":  "10s",
		"WORLD_WIDTH":      "3000",
		"ADMIN_PASS":       "hunter2",
		"SPAWN_POLICY":     "random",
		"DEBUG_COLLISIONS": "true",
		"ENABLE_PPROF":     "1",
		"CLIENT_DIR":       "   ",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.LogJSONPath != "/tmp/events.jsonl" {
		t.Fatalf("unexpected process settings %+v", cfg)
	}
	if len(cfg.LogSinks) != 2 || cfg.LogSinks[1] != "json" {
		t.Fatalf("unexpected sinks %v", cfg.LogSinks)
	}
	if cfg.Influx.Addr != "http://influx:8086" || cfg.Influx.Interval != 10*time.Second {
		t.Fatalf("unexpected influx settings %+v", cfg.Influx)
	}
	if cfg.World.Width != 3000 || cfg.World.Height != world.DefaultHeight {
		t.Fatalf("unexpected world size %vx%v", cfg.World.Width, cfg.World.Height)
	}
	if cfg.World.AdminPass != "hunter2" || cfg.World.SpawnPolicy != world.SpawnRandom || !cfg.DebugCollisions || !cfg.EnablePprof {
		t.Fatalf("unexpected game settings %+v", cfg.World)
	}
	if cfg.ClientDir != "" {
		t.Fatalf("blank values must not override, got %q", cfg.ClientDir)
	}
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	if _, err := FromEnv(DefaultConfig(), mapLookup(map[string]string{"WORLD_WIDTH": "wide"})); err == nil {
		t.Fatalf("expected malformed float to fail")
	}
	if _, err := FromEnv(DefaultConfig(), mapLookup(map[string]string{"INFLUX_INTERVAL": "soon"})); err == nil {
		t.Fatalf("expected malformed duration to fail")
	}
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PETRIDISH_TEST_FROM_FILE=file\nPETRIDISH_TEST_PRESET=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("PETRIDISH_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("PETRIDISH_TEST_FROM_FILE") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := os.Getenv("PETRIDISH_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("expected file value, got %q", got)
	}
	if got := os.Getenv("PETRIDISH_TEST_PRESET"); got != "env" {
		t.Fatalf("environment must win over .env, got %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file must be ignored: %v", err)
	}
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogSinks = []string{"carrier-pigeon"}
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected unknown sink to fail")
	}
	cfg.LogSinks = []string{"json"}
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected json sink without a path to fail")
	}
}

func TestServeAndShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogSinks = []string{"json"}
	cfg.LogJSONPath = filepath.Join(t.TempDir(), "events.jsonl")
	cfg.World.Width, cfg.World.Height = 1000, 1000
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })

	if len(a.Scheduler().Diagnostics().Viewers) != 0 || a.Scheduler().Diagnostics().Food == 0 {
		t.Fatalf("expected a seeded arena with no viewers")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		cancel()
		t.Fatalf("health request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected health body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected serve error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
