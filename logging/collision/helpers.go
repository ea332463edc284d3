package collision

import (
	"context"

	"github.com/davecgh/go-spew/spew"

	"github.com/ObambaCaree/petridish/logging"
)

const (
	// EventCellEngulfed is emitted when one player's cell consumes another's.
	EventCellEngulfed logging.EventType = "collision.cell_engulfed"
	// EventVirusBurst is emitted when a cell pops a virus.
	EventVirusBurst logging.EventType = "collision.virus_burst"
	// EventEntityFault is emitted when a player's resolution pass panics and is skipped.
	EventEntityFault logging.EventType = "collision.entity_fault"
)

type CellEngulfedPayload struct {
	AttackerCell uint64  `json:"attackerCell"`
	VictimCell   uint64  `json:"victimCell"`
	AttackerMass float64 `json:"attackerMass"`
	VictimMass   float64 `json:"victimMass"`
	Distance     float64 `json:"distance"`
	Eliminated   bool    `json:"eliminated"`
}

type VirusBurstPayload struct {
	CellIndex int     `json:"cellIndex"`
	CellMass  float64 `json:"cellMass"`
	VirusMass float64 `json:"virusMass"`
}

type EntityFaultPayload struct {
	Fault string `json:"fault"`
}

// CellEngulfed publishes an engulfment. The raw collision data is dumped into
// the event extras when debug output is requested.
func CellEngulfed(ctx context.Context, pub logging.Publisher, tick uint64, attacker, victim logging.EntityRef, payload CellEngulfedPayload, detail any, debug bool) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCellEngulfed,
		Tick:     tick,
		Actor:    attacker,
		Targets:  []logging.EntityRef{victim},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCollision,
		Payload:  payload,
	}
	if debug && detail != nil {
		event = event.WithExtra("collision", spew.Sdump(detail))
	}
	pub.Publish(ctx, event)
}

func VirusBurst(ctx context.Context, pub logging.Publisher, tick uint64, actor, virus logging.EntityRef, payload VirusBurstPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventVirusBurst,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{virus},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCollision,
		Payload:  payload,
	})
}

func EntityFault(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EntityFaultPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEntityFault,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategoryCollision,
		Payload:  payload,
	})
}
