package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/ObambaCaree/petridish/internal/app"
)

func main() {
	cliApp := makeapp(func(ctx context.Context, cfg app.Config) error {
		return app.Run(ctx, cfg)
	})
	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

type runFunc func(ctx context.Context, cfg app.Config) error

func makeapp(run runFunc) *cli.App {
	cliApp := cli.NewApp()
	cliApp.Name = "petridish"
	cliApp.Usage = "multiplayer cell arena server"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional dotenv file loaded before reading the environment"},
		cli.StringFlag{Name: "addr", Usage: "HTTP listen address (LISTEN_ADDR)"},
		cli.StringFlag{Name: "client-dir", Usage: "static client directory served at / (CLIENT_DIR)"},
		cli.BoolFlag{Name: "access-log", Usage: "write combined-format access logs to stdout (ACCESS_LOG)"},
		cli.StringSliceFlag{Name: "log-sink", Usage: "structured event sink: console or json; repeatable (LOG_SINKS)"},
		cli.StringFlag{Name: "log-level", Usage: "minimum event severity: debug, info, warn, error (LOG_LEVEL)"},
		cli.StringFlag{Name: "log-json", Usage: "file receiving json sink output (LOG_JSON_PATH)"},
		cli.BoolFlag{Name: "log-color", Usage: "colour console severities (LOG_COLOR)"},
		cli.StringFlag{Name: "influx-addr", Usage: "InfluxDB HTTP address; empty disables metrics export (INFLUX_ADDR)"},
		cli.StringFlag{Name: "influx-db", Usage: "InfluxDB database (INFLUX_DATABASE)"},
		cli.StringFlag{Name: "seed", Usage: "world RNG seed (WORLD_SEED)"},
		cli.Float64Flag{Name: "width", Usage: "world width (WORLD_WIDTH)"},
		cli.Float64Flag{Name: "height", Usage: "world height (WORLD_HEIGHT)"},
		cli.StringFlag{Name: "admin-pass", Usage: "admin password (ADMIN_PASS)"},
		cli.StringFlag{Name: "spawn", Usage: "spawn policy: farthest or random (SPAWN_POLICY)"},
		cli.BoolFlag{Name: "debug-collisions", Usage: "attach collision dumps to engulf events (DEBUG_COLLISIONS)"},
		cli.BoolFlag{Name: "pprof", Usage: "expose runtime profiling under /debug/pprof (ENABLE_PPROF)"},
	}
	cliApp.Action = func(c *cli.Context) error {
		if err := app.LoadDotEnv(c.String("env-file")); err != nil {
			return err
		}
		cfg, err := app.FromEnv(app.DefaultConfig(), os.LookupEnv)
		if err != nil {
			return err
		}
		cfg = applyFlags(cfg, c)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	}
	return cliApp
}

// applyFlags overrides cfg with every flag given on the command line.
func applyFlags(cfg app.Config, c *cli.Context) app.Config {
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("client-dir") {
		cfg.ClientDir = c.String("client-dir")
	}
	if c.IsSet("access-log") {
		cfg.AccessLog = c.Bool("access-log")
	}
	if c.IsSet("log-sink") {
		cfg.LogSinks = c.StringSlice("log-sink")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-json") {
		cfg.LogJSONPath = c.String("log-json")
	}
	if c.IsSet("log-color") {
		cfg.LogColor = c.Bool("log-color")
	}
	if c.IsSet("influx-addr") {
		cfg.Influx.Addr = c.String("influx-addr")
	}
	if c.IsSet("influx-db") {
		cfg.Influx.Database = c.String("influx-db")
	}
	if c.IsSet("seed") {
		cfg.World.Seed = c.String("seed")
	}
	if c.IsSet("width") {
		cfg.World.Width = c.Float64("width")
	}
	if c.IsSet("height") {
		cfg.World.Height = c.Float64("height")
	}
	if c.IsSet("admin-pass") {
		cfg.World.AdminPass = c.String("admin-pass")
	}
	if c.IsSet("spawn") {
		cfg.World.SpawnPolicy = c.String("spawn")
	}
	if c.IsSet("debug-collisions") {
		cfg.DebugCollisions = c.Bool("debug-collisions")
	}
	if c.IsSet("pprof") {
		cfg.EnablePprof = c.Bool("pprof")
	}
	return cfg
}
