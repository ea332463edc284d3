package net

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/ObambaCaree/petridish/internal/leaderboard"
	"github.com/ObambaCaree/petridish/internal/sim"
	"github.com/ObambaCaree/petridish/internal/telemetry"
	"github.com/ObambaCaree/petridish/logging"
)

// Arena is the read-only view of the running simulation exposed over HTTP.
type Arena interface {
	Diagnostics() sim.Diagnostics
	Leaderboard() []leaderboard.Entry
}

type HTTPHandlerConfig struct {
	// ClientDir, when set, is served as static files under /.
	ClientDir string
	// AccessLog receives Apache combined-format request lines.
	AccessLog io.Writer
	Counters  *telemetry.Counters
	Logger    telemetry.Logger
	Clock     func() time.Time
	// LogStats, when set, reports the event router's delivery counters.
	LogStats func() logging.RouterStats
	// EnablePprof mounts the runtime profiling endpoints under /debug/pprof.
	EnablePprof bool
}

func NewHTTPHandler(arena Arena, socket nethttp.Handler, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	router := mux.NewRouter()

	router.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}).Methods(nethttp.MethodGet)

	router.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		diag := arena.Diagnostics()
		payload := struct {
			Status     string               `json:"status"`
			ServerTime int64                `json:"serverTime"`
			Arena      sim.Diagnostics      `json:"arena"`
			Telemetry  map[string]uint64    `json:"telemetry"`
			Logging    *logging.RouterStats `json:"logging,omitempty"`
		}{
			Status:     "ok",
			ServerTime: now().UnixMilli(),
			Arena:      diag,
			Telemetry:  cfg.Counters.Snapshot(),
		}
		if cfg.LogStats != nil {
			stats := cfg.LogStats()
			payload.Logging = &stats
		}
		writeJSON(w, logger, payload)
	}).Methods(nethttp.MethodGet)

	router.HandleFunc("/leaderboard", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		entries := arena.Leaderboard()
		if entries == nil {
			entries = []leaderboard.Entry{}
		}
		writeJSON(w, logger, struct {
			Leaderboard []leaderboard.Entry `json:"leaderboard"`
		}{Leaderboard: entries})
	}).Methods(nethttp.MethodGet)

	if socket != nil {
		router.Handle("/ws", socket).Methods(nethttp.MethodGet)
	}
	if cfg.EnablePprof {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}
	if cfg.ClientDir != "" {
		router.PathPrefix("/").Handler(nethttp.FileServer(nethttp.Dir(cfg.ClientDir)))
	}

	var handler nethttp.Handler = router
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler)
	if cfg.AccessLog != nil {
		handler = handlers.CombinedLoggingHandler(cfg.AccessLog, handler)
	}
	return handler
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
