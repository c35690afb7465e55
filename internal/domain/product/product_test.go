package product

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name     string
		pName    string
		price    decimal.Decimal
		quantity int
		want     error
	}{
		{name: "blank name", pName: " ", price: decimal.NewFromInt(1), want: ErrNameRequired},
		{name: "negative price", pName: "Mug", price: decimal.NewFromInt(-1), want: ErrInvalidPrice},
		{name: "negative quantity", pName: "Mug", price: decimal.Zero, quantity: -1, want: ErrInvalidQuantity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("p-1", tc.pName, tc.price, tc.quantity)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	p, err := New("p-1", "Mug", decimal.RequireFromString("10.00"), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)
}

func TestInsufficientStockErrorUnwraps(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: "p-1", Requested: 3, Available: 1}

	assert.ErrorIs(t, err, ErrInsufficientStock)
	var target *InsufficientStockError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, 1, target.Available)
	assert.Contains(t, err.Error(), "p-1")
}

func TestMergeChangesSumsPerProduct(t *testing.T) {
	got := MergeChanges([]StockChange{
		{ProductID: "b", Quantity: 1},
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 3},
	})

	assert.Equal(t, []StockChange{{ProductID: "b", Quantity: 4}, {ProductID: "a", Quantity: 2}}, got)
}

func TestValidateChanges(t *testing.T) {
	assert.NoError(t, ValidateChanges([]StockChange{{ProductID: "a", Quantity: 1}}))
	assert.ErrorIs(t, ValidateChanges([]StockChange{{ProductID: "a", Quantity: 0}}), ErrInvalidChange)
	assert.ErrorIs(t, ValidateChanges([]StockChange{{Quantity: 1}}), ErrInvalidChange)
}
