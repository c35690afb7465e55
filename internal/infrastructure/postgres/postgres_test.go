package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
)

// openTestPool connects to MINISHOP_TEST_DATABASE_URL; tests skip when it is unset.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("MINISHOP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MINISHOP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func seed(t *testing.T, pool *pgxpool.Pool, stock int) (*customer.Customer, *product.Product) {
	t.Helper()
	ctx := context.Background()

	c, err := customer.New(uuid.NewString(), "Ada", uuid.NewString()+"@example.com")
	require.NoError(t, err)
	require.NoError(t, NewCustomerRepository(pool).Insert(ctx, c))

	p, err := product.New(uuid.NewString(), "Mug "+uuid.NewString(), decimal.RequireFromString("12.50"), stock)
	require.NoError(t, err)
	require.NoError(t, NewProductRepository(pool).Insert(ctx, p))
	return c, p
}

func TestCustomerRoundTrip(t *testing.T) {
	pool := openTestPool(t)
	repo := NewCustomerRepository(pool)
	c, _ := seed(t, pool, 1)

	got, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Email, got.Email)

	dup, err := customer.New(uuid.NewString(), "Other", c.Email)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Insert(context.Background(), dup), customer.ErrEmailTaken)

	_, err = repo.FindByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, customer.ErrNotFound)
}

func TestReserveStockGuardsQuantity(t *testing.T) {
	pool := openTestPool(t)
	repo := NewProductRepository(pool)
	_, p := seed(t, pool, 3)
	ctx := context.Background()

	require.NoError(t, repo.ReserveStock(ctx, []product.StockChange{{ProductID: p.ID, Quantity: 2}}))

	err := repo.ReserveStock(ctx, []product.StockChange{{ProductID: p.ID, Quantity: 2}})
	var stockErr *product.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 1, stockErr.Available)

	got, err := repo.FindAllByID(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Quantity)
	assert.True(t, p.Price.Equal(got[0].Price))
}

func TestReserveStockConcurrent(t *testing.T) {
	pool := openTestPool(t)
	repo := NewProductRepository(pool)
	_, p := seed(t, pool, 5)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.ReserveStock(context.Background(), []product.StockChange{{ProductID: p.ID, Quantity: 1}}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	got, err := repo.FindAllByID(context.Background(), []string{p.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, got[0].Quantity)
}

func TestOrderCreateFindUpdate(t *testing.T) {
	pool := openTestPool(t)
	repo := NewOrderRepository(pool)
	c, p := seed(t, pool, 5)
	ctx := context.Background()

	o, err := order.New(uuid.NewString(), c.ID, []order.LineItem{
		{ProductID: p.ID, Quantity: 2, UnitPrice: p.Price},
		{ProductID: p.ID, Quantity: 1, UnitPrice: p.Price},
	})
	require.NoError(t, err)

	stored, err := repo.Create(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, o.Items, stored.Items)

	_, err = repo.Create(ctx, o)
	assert.ErrorIs(t, err, order.ErrConflict)

	require.NoError(t, stored.Cancel("insufficient_stock"))
	require.NoError(t, repo.Update(ctx, stored))

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, "insufficient_stock", got.FailureReason)
	require.Len(t, got.Items, 2)
	assert.True(t, decimal.RequireFromString("37.5").Equal(got.Total()))
}
