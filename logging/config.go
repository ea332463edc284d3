package logging

import "time"

// Config controls the router queue and the sinks enabled at startup.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
	// SinkRetries bounds how often a failing sink write is retried before the
	// event is abandoned.
	SinkRetries int
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		SinkRetries:      3,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}

// ParseSeverity maps a textual level onto a Severity, defaulting to info.
func ParseSeverity(level string) Severity {
	switch level {
	case "debug":
		return SeverityDebug
	case "warn", "warning":
		return SeverityWarn
	case "error":
		return SeverityError
	default:
		return SeverityInfo
	}
}
