package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ttacon/chalk"

	"github.com/ObambaCaree/petridish/logging"
)

type ConsoleSink struct {
	logger   *log.Logger
	useColor bool
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	return &ConsoleSink{logger: log.New(w, "", log.LstdFlags), useColor: cfg.UseColor}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	payload := formatPayload(event.Payload)
	targets := formatTargets(event.Targets)
	severity := event.Severity.String()
	if s.useColor {
		severity = colorFor(event.Severity).Color(severity)
	}
	s.logger.Printf("[%s] tick=%d actor=%s severity=%s%s%s", event.Type, event.Tick, event.Actor, severity, targets, payload)
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func colorFor(sev logging.Severity) chalk.Color {
	switch sev {
	case logging.SeverityDebug:
		return chalk.Cyan
	case logging.SeverityWarn:
		return chalk.Yellow
	case logging.SeverityError:
		return chalk.Red
	default:
		return chalk.Green
	}
}

func formatTargets(targets []logging.EntityRef) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, target.String())
	}
	return fmt.Sprintf(" targets=%s", strings.Join(parts, ","))
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(" payload=%v", payload)
	}
	return fmt.Sprintf(" payload=%s", data)
}
