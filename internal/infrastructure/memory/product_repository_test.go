package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, r *ProductRepository, id, name string, qty int) {
	t.Helper()
	p, err := domain.New(id, name, decimal.RequireFromString("10.00"), qty)
	require.NoError(t, err)
	require.NoError(t, r.Insert(context.Background(), p))
}

func TestProductInsertRejectsDuplicateName(t *testing.T) {
	r := NewProductRepository()
	seedProduct(t, r, "p-1", "Mug", 1)

	p, _ := domain.New("p-2", "Mug", decimal.Zero, 1)
	assert.ErrorIs(t, r.Insert(context.Background(), p), domain.ErrNameTaken)
}

func TestFindAllByIDOmitsMissing(t *testing.T) {
	r := NewProductRepository()
	seedProduct(t, r, "p-1", "Mug", 1)
	seedProduct(t, r, "p-2", "Cup", 1)

	got, err := r.FindAllByID(context.Background(), []string{"p-2", "missing", "p-2", "p-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p-2", got[0].ID)
	assert.Equal(t, "p-1", got[1].ID)

	got[0].Quantity = 99
	qty, _ := r.Quantity("p-2")
	assert.Equal(t, 1, qty)
}

func TestReserveStockIsAllOrNothing(t *testing.T) {
	r := NewProductRepository()
	seedProduct(t, r, "p-1", "Mug", 5)
	seedProduct(t, r, "p-2", "Cup", 1)

	err := r.ReserveStock(context.Background(), []domain.StockChange{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", Quantity: 2},
	})

	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "p-2", stockErr.ProductID)
	assert.Equal(t, 1, stockErr.Available)

	qty, _ := r.Quantity("p-1")
	assert.Equal(t, 5, qty)
}

func TestReserveStockMergesDuplicates(t *testing.T) {
	r := NewProductRepository()
	seedProduct(t, r, "p-1", "Mug", 3)

	err := r.ReserveStock(context.Background(), []domain.StockChange{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-1", Quantity: 2},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.NoError(t, r.ReserveStock(context.Background(), []domain.StockChange{
		{ProductID: "p-1", Quantity: 1},
		{ProductID: "p-1", Quantity: 2},
	}))
	qty, _ := r.Quantity("p-1")
	assert.Equal(t, 0, qty)
}

func TestReserveStockUnknownProduct(t *testing.T) {
	r := NewProductRepository()
	err := r.ReserveStock(context.Background(), []domain.StockChange{{ProductID: "nope", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReserveStockConcurrentNeverOversells(t *testing.T) {
	r := NewProductRepository()
	seedProduct(t, r, "p-1", "Mug", 10)

	const workers = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.ReserveStock(context.Background(), []domain.StockChange{{ProductID: "p-1", Quantity: 1}}); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	qty, _ := r.Quantity("p-1")
	assert.Equal(t, 10, reserved)
	assert.Equal(t, 0, qty)
}

func TestReserveStockHonoursContext(t *testing.T) {
	r := NewProductRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.ReserveStock(ctx, nil), context.Canceled)
}
