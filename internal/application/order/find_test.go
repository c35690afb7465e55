package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
)

func TestFindOrder(t *testing.T) {
	f := newFixture(t)
	placed, err := f.uc.Execute(context.Background(), app.PlaceOrderInput{CustomerID: "c-1", Items: items("p-1", 1)})
	require.NoError(t, err)

	find := app.NewFindOrderUseCase(f.orders, nil)
	got, err := find.Execute(context.Background(), placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.Order.Items, got.Items)
}

func TestFindOrderErrors(t *testing.T) {
	find := app.NewFindOrderUseCase(memory.NewOrderRepository(), nil)

	_, err := find.Execute(context.Background(), "missing")
	assert.ErrorIs(t, err, app.ErrNotFound)

	_, err = find.Execute(context.Background(), "")
	assert.ErrorIs(t, err, app.ErrInvalidInput)
}
