package simulation

import (
	"context"

	"github.com/ObambaCaree/petridish/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a scheduled tick runs longer than its interval.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCommandDropped is emitted when the inbound command buffer rejects a command.
	EventCommandDropped logging.EventType = "simulation.command_dropped"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	Schedule       string  `json:"schedule"`
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// TickBudgetOverrun publishes a warning when a tick exceeds the configured budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

type CommandDroppedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandDroppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}
