package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/procurement-hub/internal/domain/event"
)

// ErrClosed is returned by Dispatch once Close has been called
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher fans purchase order events out to subscribers.
// Type-specific handlers run before AllEvents handlers, each group in
// subscription order.
type Dispatcher interface {
	Subscribe(eventType event.Type, handler Handler)
	SubscribeNamed(eventType event.Type, name string, handler Handler)
	SubscribeAll(name string, handler Handler)

	// SubscribeOrdered registers a handler for every event type that runs on
	// a single goroutine, receiving asynchronous events in the order
	// DispatchAsync was called.
	SubscribeOrdered(name string, handler Handler)

	Unsubscribe(eventType event.Type, name string)

	// Dispatch runs the handlers inline and stops at the first failure
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs each handler on its own goroutine under a context
	// that ignores the caller's cancellation, bounded by the async timeout.
	// Failures are logged only.
	DispatchAsync(ctx context.Context, evt *event.Event)

	ListHandlers(eventType event.Type) []HandlerInfo

	// Close rejects further dispatches and waits for in-flight async handlers
	Close() error
}

// Logger is the logging surface the dispatcher needs
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Stats counts handler outcomes since the dispatcher was created
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Panicked  int64 `json:"panicked"`
	InFlight  int64 `json:"in_flight"`
}

// orderedQueueSize bounds the backlog of an ordered handler before
// DispatchAsync blocks
const orderedQueueSize = 256

type eventDispatcher struct {
	logger       Logger
	asyncTimeout time.Duration

	// lifecycle is held shared while events are handed to handlers and
	// exclusively while queues are closed, so no Add races the final Wait
	lifecycle sync.RWMutex
	workers   sync.WaitGroup

	mu     sync.Mutex
	subs   atomic.Pointer[[]HandlerInfo]
	serial map[event.Type]int

	inflight  sync.WaitGroup
	closed    atomic.Bool
	delivered atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
	running   atomic.Int64
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets the dispatcher's logger
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithAsyncTimeout bounds each asynchronous handler invocation. Zero leaves
// handlers unbounded.
func WithAsyncTimeout(timeout time.Duration) Option {
	return func(d *eventDispatcher) {
		d.asyncTimeout = timeout
	}
}

// NewDispatcher creates an event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		logger:       nopLogger{},
		asyncTimeout: 30 * time.Second,
		serial:       make(map[event.Type]int),
	}
	d.subs.Store(&[]HandlerInfo{})

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StatsOf reports handler outcome counters for dispatchers built by
// NewDispatcher. Other implementations yield a zero Stats.
func StatsOf(d Dispatcher) Stats {
	ed, ok := d.(*eventDispatcher)
	if !ok {
		return Stats{}
	}
	return Stats{
		Delivered: ed.delivered.Load(),
		Failed:    ed.failed.Load(),
		Panicked:  ed.panicked.Load(),
		InFlight:  ed.running.Load(),
	}
}

func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(eventType, fmt.Sprintf("handler-%d", d.serial[eventType]), handler)
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(eventType, name, handler)
}

// add registers an unordered handler; callers hold d.mu
func (d *eventDispatcher) add(eventType event.Type, name string, handler Handler) {
	d.store(HandlerInfo{Name: name, EventType: eventType, Handler: handler})
}

// store publishes a new snapshot with h appended; callers hold d.mu
func (d *eventDispatcher) store(h HandlerInfo) {
	current := *d.subs.Load()
	next := make([]HandlerInfo, len(current), len(current)+1)
	copy(next, current)
	next = append(next, h)
	d.subs.Store(&next)
	d.serial[h.EventType]++

	d.logger.Info("Handler registered",
		"event_type", h.EventType,
		"handler_name", h.Name,
		"ordered", h.Ordered,
	)
}

// SubscribeAll registers a handler that receives every dispatched event
func (d *eventDispatcher) SubscribeAll(name string, handler Handler) {
	d.SubscribeNamed(AllEvents, name, handler)
}

func (d *eventDispatcher) SubscribeOrdered(name string, handler Handler) {
	d.lifecycle.RLock()
	defer d.lifecycle.RUnlock()
	if d.closed.Load() {
		d.logger.Error("Ignoring subscription, dispatcher is closed", "handler_name", name)
		return
	}

	info := HandlerInfo{
		Name:      name,
		EventType: AllEvents,
		Handler:   handler,
		Ordered:   true,
		queue:     make(chan queuedEvent, orderedQueueSize),
	}
	d.workers.Add(1)
	go d.drain(info)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.store(info)
}

// drain delivers queued events to an ordered handler until its queue closes
func (d *eventDispatcher) drain(h HandlerInfo) {
	defer d.workers.Done()
	for q := range h.queue {
		d.runDetached(q.ctx, q.evt, h)
	}
}

func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	current := *d.subs.Load()
	next := make([]HandlerInfo, 0, len(current))
	removed := 0
	for _, h := range current {
		if h.EventType == eventType && h.Name == name {
			if h.queue != nil {
				close(h.queue)
			}
			removed++
			continue
		}
		next = append(next, h)
	}
	d.subs.Store(&next)

	d.logger.Info("Handler unregistered",
		"event_type", eventType,
		"handler_name", name,
		"removed", removed,
	)
}

// route picks the handlers for an event type from the current snapshot
func (d *eventDispatcher) route(eventType event.Type) []HandlerInfo {
	all := *d.subs.Load()
	var specific, wildcard []HandlerInfo
	for _, h := range all {
		switch {
		case h.EventType == eventType:
			specific = append(specific, h)
		case h.EventType == AllEvents:
			wildcard = append(wildcard, h)
		}
	}
	if eventType == AllEvents {
		return specific
	}
	return append(specific, wildcard...)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if !evt.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", evt.Type)
	}

	handlers := d.route(evt.Type)
	d.logger.Info("Dispatching event",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"purchase_order_id", evt.PurchaseOrderID,
		"handler_count", len(handlers),
	)

	for _, h := range handlers {
		if err := d.invoke(ctx, evt, h); err != nil {
			return fmt.Errorf("handler %s failed: %w", h.Name, err)
		}
	}
	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.lifecycle.RLock()
	defer d.lifecycle.RUnlock()

	if d.closed.Load() {
		d.logger.Error("Dropping event, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return
	}
	if !evt.Type.IsValid() {
		d.logger.Error("Dropping event of unknown type",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return
	}

	handlers := d.route(evt.Type)
	d.logger.Info("Dispatching event asynchronously",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"purchase_order_id", evt.PurchaseOrderID,
		"handler_count", len(handlers),
	)

	base := context.WithoutCancel(ctx)
	d.inflight.Add(len(handlers))
	for _, h := range handlers {
		if h.Ordered {
			h.queue <- queuedEvent{ctx: base, evt: evt}
			continue
		}
		go d.runDetached(base, evt, h)
	}
}

func (d *eventDispatcher) runDetached(base context.Context, evt *event.Event, h HandlerInfo) {
	defer d.inflight.Done()

	ctx := base
	if d.asyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, d.asyncTimeout)
		defer cancel()
	}
	_ = d.invoke(ctx, evt, h)
}

// invoke runs one handler, converting a panic into an error and keeping
// the outcome counters
func (d *eventDispatcher) invoke(ctx context.Context, evt *event.Event, h HandlerInfo) (err error) {
	d.running.Add(1)
	defer d.running.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			d.failed.Add(1)
			d.logger.Error("Event handler failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", h.Name,
				"error", err,
			)
			return
		}
		d.delivered.Add(1)
	}()

	return h.Handler(ctx, evt)
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	var out []HandlerInfo
	for _, h := range *d.subs.Load() {
		if h.EventType != eventType {
			continue
		}
		out = append(out, HandlerInfo{
			Name:        h.Name,
			EventType:   h.EventType,
			Description: h.Description,
			Ordered:     h.Ordered,
		})
	}
	if out == nil {
		out = []HandlerInfo{}
	}
	return out
}

func (d *eventDispatcher) Close() error {
	d.lifecycle.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.lifecycle.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.lifecycle.Unlock()

	d.logger.Info("Closing dispatcher, draining async handlers", "in_flight", d.running.Load())
	d.inflight.Wait()

	d.lifecycle.Lock()
	for _, h := range *d.subs.Load() {
		if h.queue != nil {
			close(h.queue)
		}
	}
	d.lifecycle.Unlock()
	d.workers.Wait()

	d.logger.Info("Dispatcher closed",
		"delivered", d.delivered.Load(),
		"failed", d.failed.Load(),
	)
	return nil
}
