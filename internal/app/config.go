package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/internal/world"
)

const (
	DefaultAddr            = ":3000"
	DefaultShutdownTimeout = 5 * time.Second
)

// Config holds process-level settings. Game constants live in World.
type Config struct {
	Addr            string
	ClientDir       string
	AccessLog       bool
	ShutdownTimeout time.Duration

	LogSinks    []string
	LogLevel    string
	LogJSONPath string
	LogColor    bool

	Influx telemetry.InfluxConfig

	World           world.Config
	DebugCollisions bool
	EnablePprof     bool

	Logger telemetry.Logger
}

func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogSinks:        []string{"console"},
		LogLevel:        "info",
		Influx: telemetry.InfluxConfig{
			Database: telemetry.DefaultInfluxDatabase,
			Interval: telemetry.DefaultInfluxInterval,
		},
		World: world.DefaultConfig(),
	}
}

// LoadDotEnv loads variables from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// FromEnv overlays environment variables onto cfg. lookup is usually
// os.LookupEnv.
func FromEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	env := envReader{lookup: lookup}

	env.str("LISTEN_ADDR", &cfg.Addr)
	env.str("CLIENT_DIR", &cfg.ClientDir)
	env.boolean("ACCESS_LOG", &cfg.AccessLog)
	env.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if raw, ok := env.lookup("LOG_SINKS"); ok {
		cfg.LogSinks = splitList(raw)
	}
	env.str("LOG_LEVEL", &cfg.LogLevel)
	env.str("LOG_JSON_PATH", &cfg.LogJSONPath)
	env.boolean("LOG_COLOR", &cfg.LogColor)

	env.str("INFLUX_ADDR", &cfg.Influx.Addr)
	env.str("INFLUX_DATABASE", &cfg.Influx.Database)
	env.str("INFLUX_USERNAME", &cfg.Influx.Username)
	env.str("INFLUX_PASSWORD", &cfg.Influx.Password)
	env.duration("INFLUX_INTERVAL", &cfg.Influx.Interval)

	env.str("WORLD_SEED", &cfg.World.Seed)
	env.float("WORLD_WIDTH", &cfg.World.Width)
	env.float("WORLD_HEIGHT", &cfg.World.Height)
	env.str("ADMIN_PASS", &cfg.World.AdminPass)
	env.str("SPAWN_POLICY", &cfg.World.SpawnPolicy)
	env.integer("NETWORK_UPDATE_FACTOR", &cfg.World.NetworkUpdateFactor)
	env.boolean("DEBUG_COLLISIONS", &cfg.DebugCollisions)
	env.boolean("ENABLE_PPROF", &cfg.EnablePprof)

	return cfg, env.err
}

type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) raw(key string) (string, bool) {
	if e.err != nil || e.lookup == nil {
		return "", false
	}
	value, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (e *envReader) str(key string, dst *string) {
	if value, ok := e.raw(key); ok {
		*dst = value
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	value, ok := e.raw(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.err = errors.Wrapf(err, "invalid %s=%q", key, value)
		return
	}
	*dst = parsed
}

func (e *envReader) float(key string, dst *float64) {
	value, ok := e.raw(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.err = errors.Wrapf(err, "invalid %s=%q", key, value)
		return
	}
	*dst = parsed
}

func (e *envReader) integer(key string, dst *int) {
	value, ok := e.raw(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		e.err = errors.Wrapf(err, "invalid %s=%q", key, value)
		return
	}
	*dst = parsed
}

func (e *envReader) duration(key string, dst *time.Duration) {
	value, ok := e.raw(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.err = errors.Wrapf(err, "invalid %s=%q", key, value)
		return
	}
	*dst = parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
