package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultQueueSize   = 512
	minSinkBacklog     = 32
	maxSinkBacklog     = 1024
	defaultSinkRetries = 3
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads wall time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans published events out to every configured sink. Publish never
// blocks the simulation goroutine: a saturated queue drops the event, and
// each sink drains its own backlog on a dedicated goroutine.
type Router struct {
	cfg      Config
	queue    chan Event
	sinks    []*sinkWorker
	clock    Clock
	fallback *log.Logger
	fields   map[string]any

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup

	forwarded   atomic.Uint64
	dropped     atomic.Uint64
	nextDropLog atomic.Int64
}

// SinkStats counts what happened to events after they left the router queue.
type SinkStats struct {
	Written  uint64 `json:"written"`
	Dropped  uint64 `json:"dropped"`
	Failures uint64 `json:"failures"`
}

type RouterStats struct {
	EventsTotal  uint64               `json:"eventsTotal"`
	DroppedTotal uint64               `json:"droppedTotal"`
	Sinks        map[string]SinkStats `json:"sinks,omitempty"`
}

func NewRouter(clock Clock, cfg Config, fallback *log.Logger, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultQueueSize
	}
	backlog := min(max(size, minSinkBacklog), maxSinkBacklog)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, size),
		clock:    clock,
		fallback: fallback,
		fields:   cfg.CloneFields(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.sinks = append(r.sinks, newSinkWorker(ctx, named, backlog, cfg.SinkRetries, fallback))
	}

	r.wg.Add(1 + len(r.sinks))
	go r.dispatch()
	for _, worker := range r.sinks {
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(worker)
	}
	return r, nil
}

// dispatch moves events from the shared queue to the sink backlogs until the
// router is closed, then flushes whatever is still queued.
func (r *Router) dispatch() {
	defer func() {
		for _, worker := range r.sinks {
			close(worker.events)
		}
		r.wg.Done()
	}()
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		case <-r.ctx.Done():
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = event.detach(r.fields)
	r.forwarded.Add(1)
	for _, worker := range r.sinks {
		worker.offer(event)
	}
}

func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.warnDrop(event)
	}
}

// warnDrop logs at most one drop per DropWarnInterval.
func (r *Router) warnDrop(event Event) {
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now < next || !r.nextDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
		return
	}
	r.fallback.Printf("queue full, dropping event type=%s tick=%d (%d dropped so far)", event.Type, event.Tick, r.dropped.Load())
}

// Close stops dispatch, flushes queued events to the sinks and closes them.
// Sink retries still in flight are abandoned.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, worker := range r.sinks {
		if err := worker.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.forwarded.Load(),
		DroppedTotal: r.dropped.Load(),
	}
	if len(r.sinks) > 0 {
		stats.Sinks = make(map[string]SinkStats, len(r.sinks))
		for _, worker := range r.sinks {
			stats.Sinks[worker.name] = worker.stats()
		}
	}
	return stats
}

type sinkWorker struct {
	ctx      context.Context
	name     string
	sink     Sink
	events   chan Event
	retries  uint64
	fallback *log.Logger

	written  atomic.Uint64
	dropped  atomic.Uint64
	failures atomic.Uint64
}

func newSinkWorker(ctx context.Context, named NamedSink, backlog, retries int, fallback *log.Logger) *sinkWorker {
	if retries <= 0 {
		retries = defaultSinkRetries
	}
	return &sinkWorker{
		ctx:      ctx,
		name:     named.Name,
		sink:     named.Sink,
		events:   make(chan Event, backlog),
		retries:  uint64(retries),
		fallback: fallback,
	}
}

func (w *sinkWorker) offer(event Event) {
	select {
	case w.events <- event:
	default:
		if w.dropped.Add(1) == 1 {
			w.fallback.Printf("sink %s backlog full, dropping event type=%s", w.name, event.Type)
		}
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if err := w.write(event); err != nil {
			w.failures.Add(1)
			w.fallback.Printf("sink %s gave up on event type=%s: %v", w.name, event.Type, err)
			continue
		}
		w.written.Add(1)
	}
}

// write retries a failing sink with exponential backoff. Once the router is
// closing the retry stops early so Close is never held up by a dead sink.
func (w *sinkWorker) write(event Event) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 0

	var retry backoff.BackOff = backoff.WithMaxRetries(policy, w.retries)
	retry = backoff.WithContext(retry, w.ctx)
	return backoff.RetryNotify(func() error {
		return w.sink.Write(event)
	}, retry, func(err error, wait time.Duration) {
		w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, wait)
	})
}

func (w *sinkWorker) stats() SinkStats {
	return SinkStats{
		Written:  w.written.Load(),
		Dropped:  w.dropped.Load(),
		Failures: w.failures.Load(),
	}
}
