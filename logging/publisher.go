package logging

import (
	"context"
	"strconv"
	"time"
)

// EventType names a single kind of arena event, e.g. "lifecycle.player_joined".
type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

var severityNames = [...]string{"debug", "info", "warn", "error"}

func (s Severity) String() string {
	if s < SeverityDebug || s > SeverityError {
		return "unknown"
	}
	return severityNames[s]
}

// Category groups event types by the subsystem that raises them.
type Category string

const (
	CategoryLifecycle  Category = "lifecycle"
	CategoryCollision  Category = "collision"
	CategorySimulation Category = "simulation"
)

type EntityKind string

const (
	EntityKindUnknown   EntityKind = "unknown"
	EntityKindPlayer    EntityKind = "player"
	EntityKindSpectator EntityKind = "spectator"
	EntityKindCell      EntityKind = "cell"
	EntityKindFood      EntityKind = "food"
	EntityKindPellet    EntityKind = "pellet"
	EntityKindVirus     EntityKind = "virus"
	EntityKindWorld     EntityKind = "world"
)

// EntityRef identifies the arena object an event is about. Cells are
// addressed as "<player>/<cell id>"; food, pellets and viruses by numeric id.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

func PlayerRef(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindPlayer}
}

func SpectatorRef(session string) EntityRef {
	return EntityRef{ID: session, Kind: EntityKindSpectator}
}

func CellRef(playerID string, cellID uint64) EntityRef {
	return EntityRef{ID: playerID + "/" + strconv.FormatUint(cellID, 10), Kind: EntityKindCell}
}

func VirusRef(id uint64) EntityRef {
	return EntityRef{ID: strconv.FormatUint(id, 10), Kind: EntityKindVirus}
}

// WorldRef stands in for events that have no single owning entity.
func WorldRef() EntityRef {
	return EntityRef{Kind: EntityKindWorld}
}

func (r EntityRef) String() string {
	switch {
	case r.ID == "":
		return string(r.Kind)
	case r.Kind == "":
		return r.ID
	default:
		return string(r.Kind) + ":" + r.ID
	}
}

type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category Category       `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

func (e Event) WithExtra(key string, value any) Event {
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
	return e
}

// detach returns a copy of e that shares no slices or maps with the caller,
// with every key of defaults the event does not already set filled in.
func (e Event) detach(defaults map[string]any) Event {
	if len(e.Targets) > 0 {
		e.Targets = append([]EntityRef(nil), e.Targets...)
	}
	if e.Extra == nil && len(defaults) == 0 {
		return e
	}
	extra := make(map[string]any, len(e.Extra)+len(defaults))
	for k, v := range defaults {
		extra[k] = v
	}
	for k, v := range e.Extra {
		extra[k] = v
	}
	e.Extra = extra
	return e
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f != nil {
		f(ctx, event)
	}
}

// NopPublisher discards everything. Schedulers built without a router use it.
func NopPublisher() Publisher {
	return PublisherFunc(nil)
}

// WithFields decorates p so every event carries fields in its extras unless
// the event already sets the same key.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	stamped := make(map[string]any, len(fields))
	for k, v := range fields {
		stamped[k] = v
	}
	return PublisherFunc(func(ctx context.Context, event Event) {
		p.Publish(ctx, event.detach(stamped))
	})
}
