package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/procurement-hub/internal/domain/event"
)

type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func statusChanged(id int64) *event.Event {
	return event.NewEvent(event.TypeStatusChanged, id, "PO-1", map[string]interface{}{
		event.KeyPreviousStatus: "draft",
		event.KeyNewStatus:      "pending_approval",
	})
}

func record(calls *[]string, mu *sync.Mutex, name string) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		*calls = append(*calls, name)
		return nil
	}
}

func TestDispatch_OrderSpecificThenWildcard(t *testing.T) {
	d := NewDispatcher()
	var mu sync.Mutex
	var calls []string

	d.SubscribeAll("kafka", record(&calls, &mu, "kafka"))
	d.SubscribeNamed(event.TypeStatusChanged, "lark", record(&calls, &mu, "lark"))
	d.SubscribeNamed(event.TypeStatusChanged, "archive", record(&calls, &mu, "archive"))
	d.SubscribeNamed(event.TypeLinesChanged, "lines", record(&calls, &mu, "lines"))

	require.NoError(t, d.Dispatch(context.Background(), statusChanged(1)))
	assert.Equal(t, []string{"lark", "archive", "kafka"}, calls)

	calls = nil
	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeLinesChanged, 1, "", nil)))
	assert.Equal(t, []string{"lines", "kafka"}, calls)
}

func TestDispatch_StopsAtFirstFailure(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDispatcher(WithLogger(logger))
	var mu sync.Mutex
	var calls []string

	d.SubscribeNamed(event.TypeStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
		return errors.New("broker down")
	})
	d.SubscribeNamed(event.TypeStatusChanged, "second", record(&calls, &mu, "second"))

	err := d.Dispatch(context.Background(), statusChanged(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler first failed")
	assert.Contains(t, err.Error(), "broker down")
	assert.Empty(t, calls)
	assert.Equal(t, 1, logger.errorCount())

	stats := StatsOf(d)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(0), stats.Delivered)
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeNamed(event.TypeStatusChanged, "boom", func(ctx context.Context, evt *event.Event) error {
		panic("nil map")
	})

	err := d.Dispatch(context.Background(), statusChanged(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: nil map")
	assert.Equal(t, int64(1), StatsOf(d).Panicked)
}

func TestDispatch_RejectsUnknownType(t *testing.T) {
	d := NewDispatcher()
	called := false
	d.SubscribeAll("all", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.Type("po.shipped"), 1, "", nil))
	assert.Error(t, err)
	assert.False(t, called)
}

func TestDispatch_NoHandlers(t *testing.T) {
	d := NewDispatcher()
	assert.NoError(t, d.Dispatch(context.Background(), statusChanged(1)))
}

func TestSubscribe_GeneratesNames(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.Subscribe(event.TypeStatusChanged, noop)
	d.Subscribe(event.TypeStatusChanged, noop)
	d.Subscribe(event.TypeApprovalRecorded, noop)

	listed := d.ListHandlers(event.TypeStatusChanged)
	require.Len(t, listed, 2)
	assert.Equal(t, "handler-0", listed[0].Name)
	assert.Equal(t, "handler-1", listed[1].Name)
	assert.Nil(t, listed[0].Handler, "listing does not leak handler funcs")

	assert.Equal(t, "handler-0", d.ListHandlers(event.TypeApprovalRecorded)[0].Name)
	assert.Empty(t, d.ListHandlers(event.TypeReceiptRecorded))
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var mu sync.Mutex
	var calls []string

	d.SubscribeNamed(event.TypeStatusChanged, "lark", record(&calls, &mu, "lark"))
	d.SubscribeNamed(event.TypeStatusChanged, "archive", record(&calls, &mu, "archive"))
	d.SubscribeNamed(event.TypeApprovalRecorded, "lark", record(&calls, &mu, "approval-lark"))

	d.Unsubscribe(event.TypeStatusChanged, "lark")
	d.Unsubscribe(event.TypeStatusChanged, "missing")

	require.NoError(t, d.Dispatch(context.Background(), statusChanged(1)))
	assert.Equal(t, []string{"archive"}, calls)
	assert.Len(t, d.ListHandlers(event.TypeApprovalRecorded), 1)
}

func TestSubscribeAll_ListedUnderWildcard(t *testing.T) {
	d := NewDispatcher()
	d.SubscribeAll("kafka", func(ctx context.Context, evt *event.Event) error { return nil })

	assert.Len(t, d.ListHandlers(AllEvents), 1)
	assert.Empty(t, d.ListHandlers(event.TypeStatusChanged))
}

func TestDispatchAsync_RunsAllHandlers(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		d.SubscribeNamed(event.TypeStatusChanged, name, func(ctx context.Context, evt *event.Event) error {
			count.Add(1)
			return nil
		})
	}
	d.SubscribeAll("all", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return errors.New("ignored")
	})

	d.DispatchAsync(context.Background(), statusChanged(1))
	require.NoError(t, d.Close())

	assert.Equal(t, int32(4), count.Load())
	stats := StatsOf(d)
	assert.Equal(t, int64(3), stats.Delivered)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(0), stats.InFlight)
}

func TestDispatchAsync_HandlerOutlivesCaller(t *testing.T) {
	d := NewDispatcher()
	release := make(chan struct{})
	var ctxErr atomic.Value

	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		<-release
		if err := ctx.Err(); err != nil {
			ctxErr.Store(err)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, statusChanged(1))
	cancel()
	close(release)

	require.NoError(t, d.Close())
	assert.Nil(t, ctxErr.Load())
}

func TestDispatchAsync_Timeout(t *testing.T) {
	d := NewDispatcher(WithAsyncTimeout(20 * time.Millisecond))
	var hit atomic.Bool

	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		select {
		case <-ctx.Done():
			hit.Store(true)
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	d.DispatchAsync(context.Background(), statusChanged(1))
	require.NoError(t, d.Close())
	assert.True(t, hit.Load())
}

func TestClose(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDispatcher(WithLogger(logger))
	var finished atomic.Bool

	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	d.DispatchAsync(context.Background(), statusChanged(1))

	require.NoError(t, d.Close())
	assert.True(t, finished.Load(), "close waits for in-flight handlers")

	assert.Error(t, d.Close())
	assert.ErrorIs(t, d.Dispatch(context.Background(), statusChanged(2)), ErrClosed)

	before := logger.errorCount()
	d.DispatchAsync(context.Background(), statusChanged(3))
	assert.Equal(t, before+1, logger.errorCount())
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var delivered atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
				delivered.Add(1)
				return nil
			})
		}()
		go func(id int64) {
			defer wg.Done()
			d.DispatchAsync(context.Background(), statusChanged(id))
		}(int64(i))
	}
	wg.Wait()
	require.NoError(t, d.Close())

	assert.Len(t, d.ListHandlers(event.TypeStatusChanged), 20)
	assert.Equal(t, StatsOf(d).Delivered, delivered.Load())
}

func TestStatsOf_ForeignDispatcher(t *testing.T) {
	var d Dispatcher
	assert.Equal(t, Stats{}, StatsOf(d))
}

func TestSubscribeOrdered_DeliversInDispatchOrder(t *testing.T) {
	d := NewDispatcher()
	var mu sync.Mutex
	var got []event.Type
	first := true

	d.SubscribeOrdered("kafka", func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		stall := first
		first = false
		mu.Unlock()
		if stall {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.Type)
		return nil
	})

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypePurchaseOrderCreated, 1, "PO-1", nil))
	d.DispatchAsync(context.Background(), statusChanged(1))
	require.NoError(t, d.Close())

	assert.Equal(t, []event.Type{event.TypePurchaseOrderCreated, event.TypeStatusChanged}, got)
	assert.Equal(t, int64(2), StatsOf(d).Delivered)
}

func TestSubscribeOrdered_ManyEventsKeepOrder(t *testing.T) {
	d := NewDispatcher()
	var got []int64

	d.SubscribeOrdered("kafka", func(ctx context.Context, evt *event.Event) error {
		got = append(got, evt.PurchaseOrderID)
		return nil
	})

	want := make([]int64, 0, 500)
	for i := int64(1); i <= 500; i++ {
		d.DispatchAsync(context.Background(), statusChanged(i))
		want = append(want, i)
	}
	require.NoError(t, d.Close())

	assert.Equal(t, want, got)
}

func TestSubscribeOrdered_ListedAndRemovable(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	d.SubscribeOrdered("kafka", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	listed := d.ListHandlers(AllEvents)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Ordered)

	require.NoError(t, d.Dispatch(context.Background(), statusChanged(1)))
	assert.Equal(t, int32(1), count.Load(), "synchronous dispatch runs ordered handlers inline")

	d.Unsubscribe(AllEvents, "kafka")
	assert.Empty(t, d.ListHandlers(AllEvents))

	d.DispatchAsync(context.Background(), statusChanged(2))
	require.NoError(t, d.Close())
	assert.Equal(t, int32(1), count.Load())
}

func TestSubscribeOrdered_AfterCloseIgnored(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDispatcher(WithLogger(logger))
	require.NoError(t, d.Close())

	d.SubscribeOrdered("kafka", func(ctx context.Context, evt *event.Event) error { return nil })
	assert.Empty(t, d.ListHandlers(AllEvents))
	assert.Equal(t, 1, logger.errorCount())
}

func TestDispatchAsync_ConcurrentWithClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		d := NewDispatcher()
		var handled atomic.Int64
		d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
			handled.Add(1)
			return nil
		})
		d.SubscribeOrdered("kafka", func(ctx context.Context, evt *event.Event) error {
			handled.Add(1)
			return nil
		})

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				d.DispatchAsync(context.Background(), statusChanged(id))
			}(int64(i))
		}
		require.NoError(t, d.Close())
		settled := handled.Load()
		wg.Wait()

		stats := StatsOf(d)
		assert.Equal(t, settled, handled.Load(), "nothing runs after close returns")
		assert.Equal(t, stats.Delivered, handled.Load())
		assert.Equal(t, int64(0), stats.InFlight)
	}
}
