package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitSyncRunsAllHandlers(t *testing.T) {
	bus := NewEventBus()
	var calls atomic.Int32

	bus.Subscribe(EventReportSubmitted, "one", func(ctx context.Context, e Event) error {
		calls.Add(1)
		assert.False(t, e.Time.IsZero())
		return nil
	})
	bus.Subscribe(EventReportSubmitted, "two", func(ctx context.Context, e Event) error {
		calls.Add(1)
		return errors.New("boom")
	})
	bus.Subscribe(EventReportSubmitted, "panics", func(ctx context.Context, e Event) error {
		calls.Add(1)
		panic("handler bug")
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventReportSubmitted})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, bus.HandlerCount(EventReportSubmitted))
}

func TestEmitAfterStop(t *testing.T) {
	bus := NewEventBus()
	var calls atomic.Int32
	bus.Subscribe(EventPoolLow, "counter", func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventPoolLow})
	bus.Stop()
	assert.Equal(t, int32(1), calls.Load())

	bus.Emit(context.Background(), Event{Type: EventPoolLow})
	assert.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventPoolLow}))
	assert.Equal(t, int32(1), calls.Load())

	select {
	case <-bus.Done():
	default:
		t.Fatal("done channel not closed")
	}
	bus.Stop()
}

func TestNilBusDropsEvents(t *testing.T) {
	var bus *EventBus
	bus.Emit(context.Background(), Event{Type: EventShutdown})
	assert.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventShutdown}))
}
