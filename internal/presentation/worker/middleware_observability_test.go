package workerpresentation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/worker"
)

type namedEvent string

func (e namedEvent) EventName() string { return string(e) }

type directSubscriber map[string]domoutbox.Handler

func (d directSubscriber) Subscribe(name string, h domoutbox.Handler) { d[name] = h }

func TestSubscriberInjectsEventLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	inner := directSubscriber{}
	sub := workerpresentation.NewSubscriber(inner, zaplogger.Wrap(zap.New(core)))

	sub.Subscribe("order.cancellation_requested", func(ctx context.Context, _ domoutbox.Event) error {
		logctx.From(ctx).Info("handled")
		return nil
	})
	require.Contains(t, inner, "order.cancellation_requested")
	require.NoError(t, inner["order.cancellation_requested"](context.Background(), namedEvent("order.cancellation_requested")))

	entries := logs.FilterMessage("handled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "order.cancellation_requested", fields["event"])
	assert.NotEmpty(t, fields["event_id"])
}
