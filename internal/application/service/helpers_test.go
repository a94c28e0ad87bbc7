package service

import (
	"context"
	"sync"

	"github.com/garyjia/procurement-hub/internal/application/dispatcher"
	"github.com/garyjia/procurement-hub/internal/application/port/porttest"
	"github.com/garyjia/procurement-hub/internal/application/workflow"
	"github.com/garyjia/procurement-hub/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

// recordingDispatcher captures events synchronously
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(event.Type, dispatcher.Handler)              {}
func (d *recordingDispatcher) SubscribeNamed(event.Type, string, dispatcher.Handler) {}
func (d *recordingDispatcher) SubscribeAll(string, dispatcher.Handler)               {}
func (d *recordingDispatcher) SubscribeOrdered(string, dispatcher.Handler)           {}
func (d *recordingDispatcher) Unsubscribe(event.Type, string)                        {}
func (d *recordingDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo      { return nil }
func (d *recordingDispatcher) Close() error                                          { return nil }

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.DispatchAsync(ctx, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) Types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Type, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

type serviceFixture struct {
	store      *porttest.Store
	dispatcher *recordingDispatcher
	logger     *mockLogger
	svc        PurchaseOrderService
}

func newServiceFixture() *serviceFixture {
	store := porttest.NewStore()
	d := &recordingDispatcher{}
	logger := &mockLogger{}
	engine := workflow.NewEngine(
		store.PurchaseOrders(),
		store.LineItems(),
		store.StatusEvents(),
		store,
		workflow.WithDispatcher(d),
		workflow.WithLogger(logger),
	)
	return &serviceFixture{
		store:      store,
		dispatcher: d,
		logger:     logger,
		svc: NewPurchaseOrderService(
			store.PurchaseOrders(),
			store.LineItems(),
			store.ApprovalRecords(),
			store.StatusEvents(),
			store,
			engine,
			d,
			logger,
		),
	}
}
