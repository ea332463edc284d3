package app

import (
	"context"
	"log"
	gonet "net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	servernet "github.com/ObambaCaree/petridish/internal/net"
	"github.com/ObambaCaree/petridish/internal/net/ws"
	"github.com/ObambaCaree/petridish/internal/sim"
	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/logging"
	loggingSinks "github.com/ObambaCaree/petridish/logging/sinks"
)

const shutdownReason = "server shutting down"

// App is a fully wired arena server.
type App struct {
	cfg      Config
	logger   telemetry.Logger
	router   *logging.Router
	counters *telemetry.Counters
	registry *ws.Registry
	sched    *sim.Scheduler
	reporter *telemetry.InfluxReporter
	handler  http.Handler
}

func New(cfg Config) (*App, error) {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = cfg.LogSinks
	logConfig.MinimumSeverity = logging.ParseSeverity(cfg.LogLevel)
	logConfig.Console.UseColor = cfg.LogColor
	logConfig.JSON.FilePath = cfg.LogJSONPath

	sinks, err := buildSinks(logConfig)
	if err != nil {
		return nil, err
	}
	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, log.Default(), sinks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct logging router")
	}

	counters := telemetry.NewCounters()
	reporter, err := telemetry.NewInfluxReporter(cfg.Influx, counters, telemetryLogger)
	if err != nil {
		router.Close(context.Background())
		return nil, err
	}

	registry := ws.NewRegistry(telemetryLogger, counters)
	sched := sim.New(sim.Config{
		World:           cfg.World,
		DebugCollisions: cfg.DebugCollisions,
	}, sim.Deps{
		Registry:  registry,
		Publisher: router,
		Logger:    telemetryLogger,
		Metrics:   counters,
	})
	sched.Seed()

	socket := ws.NewHandler(sched, registry, ws.HandlerConfig{Logger: telemetryLogger})
	httpCfg := servernet.HTTPHandlerConfig{
		ClientDir:   cfg.ClientDir,
		Counters:    counters,
		Logger:      telemetryLogger,
		LogStats:    router.Stats,
		EnablePprof: cfg.EnablePprof,
	}
	if cfg.AccessLog {
		httpCfg.AccessLog = os.Stdout
	}

	return &App{
		cfg:      cfg,
		logger:   telemetryLogger,
		router:   router,
		counters: counters,
		registry: registry,
		sched:    sched,
		reporter: reporter,
		handler:  servernet.NewHTTPHandler(sched, http.HandlerFunc(socket.Handle), httpCfg),
	}, nil
}

func buildSinks(cfg logging.Config) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Console)})
		case "json":
			if cfg.JSON.FilePath == "" {
				closeSinks(sinks)
				return nil, errors.New("json sink requires a file path")
			}
			sink, err := loggingSinks.OpenJSONFile(cfg.JSON.FilePath, cfg.JSON.FlushInterval)
			if err != nil {
				closeSinks(sinks)
				return nil, err
			}
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: sink})
		default:
			closeSinks(sinks)
			return nil, errors.Errorf("unknown log sink %q", name)
		}
	}
	return sinks, nil
}

func closeSinks(sinks []logging.NamedSink) {
	for _, named := range sinks {
		named.Sink.Close(context.Background())
	}
}

// Handler serves the HTTP and websocket endpoints.
func (a *App) Handler() http.Handler { return a.handler }

func (a *App) Scheduler() *sim.Scheduler { return a.sched }

func (a *App) Counters() *telemetry.Counters { return a.counters }

// Serve runs the simulation and serves ln until ctx is cancelled or the
// listener fails, then shuts both down.
func (a *App) Serve(ctx context.Context, ln gonet.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	simDone := make(chan error, 1)
	go func() { simDone <- a.sched.Run(ctx) }()
	if a.reporter != nil {
		go a.reporter.Run(ctx)
	}

	srv := &http.Server{Handler: a.handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	a.logger.Printf("server listening on %s", ln.Addr())

	var err error
	select {
	case <-ctx.Done():
	case serr := <-serveErr:
		if serr != http.ErrServerClosed {
			err = errors.Wrap(serr, "server failed")
		}
	}

	a.registry.CloseAll(shutdownReason)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = errors.Wrap(serr, "shutdown")
	}
	cancel()
	if simErr := <-simDone; simErr != nil && err == nil {
		err = simErr
	}
	return err
}

// Close flushes the logging router.
func (a *App) Close(ctx context.Context) error {
	return a.router.Close(ctx)
}

// Run builds the app and serves cfg.Addr until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if cerr := a.Close(closeCtx); cerr != nil {
			a.logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	ln, err := gonet.Listen("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Addr)
	}
	return a.Serve(ctx, ln)
}
