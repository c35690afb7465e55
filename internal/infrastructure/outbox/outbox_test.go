package outbox

import (
	"context"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBusFansOutToEverySubscriber(t *testing.T) {
	bus := NewBus(nil, WithConcurrency(2))
	got := make(chan string, 2)
	bus.Subscribe("order.placed", func(_ context.Context, e domoutbox.Event) error {
		got <- "a:" + e.EventName()
		return nil
	})
	bus.Subscribe("order.placed", func(_ context.Context, e domoutbox.Event) error {
		got <- "b:" + e.EventName()
		return nil
	})
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.placed"}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			seen[s] = true
		case <-time.After(time.Second):
			t.Fatal("handler not invoked")
		}
	}
	assert.True(t, seen["a:order.placed"])
	assert.True(t, seen["b:order.placed"])
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(nil)
	got := make(chan struct{}, 1)
	bus.Subscribe("boom", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("ok", func(context.Context, domoutbox.Event) error {
		got <- struct{}{}
		return nil
	})
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "boom"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "ok"}))

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("bus stopped dispatching after panic")
	}
}

func TestPublishAfterStopFails(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	bus.Stop(context.Background())

	assert.ErrorIs(t, bus.Publish(context.Background(), testEvent{name: "x"}), ErrBusStopped)
}

func TestPublishHonoursContextWhenQueueFull(t *testing.T) {
	bus := NewBus(nil, WithQueueSize(1))
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "x"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(ctx, testEvent{name: "x"}), context.DeadlineExceeded)
}
