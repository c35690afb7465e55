package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "minishop:idempotency:c-1:k-1"

func TestAcquireClaimsFreshKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)

	mock.ExpectSetNX(testKey, pendingValue, time.Hour).SetVal(true)

	orderID, acquired, err := store.Acquire(context.Background(), "c-1", "k-1")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Empty(t, orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireReturnsBoundOrder(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)

	mock.ExpectSetNX(testKey, pendingValue, time.Hour).SetVal(false)
	mock.ExpectGet(testKey).SetVal("order-7")

	orderID, acquired, err := store.Acquire(context.Background(), "c-1", "k-1")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, "order-7", orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireReportsInFlight(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)

	mock.ExpectSetNX(testKey, pendingValue, time.Hour).SetVal(false)
	mock.ExpectGet(testKey).SetVal(pendingValue)

	orderID, acquired, err := store.Acquire(context.Background(), "c-1", "k-1")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Empty(t, orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireRetriesWhenKeyExpires(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)

	mock.ExpectSetNX(testKey, pendingValue, time.Hour).SetVal(false)
	mock.ExpectGet(testKey).RedisNil()
	mock.ExpectSetNX(testKey, pendingValue, time.Hour).SetVal(true)

	_, acquired, err := store.Acquire(context.Background(), "c-1", "k-1")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireWrapsRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)
	boom := errors.New("connection refused")

	mock.ExpectSetNX(testKey, pendingValue, time.Hour).SetErr(boom)

	_, _, err := store.Acquire(context.Background(), "c-1", "k-1")
	assert.ErrorIs(t, err, boom)
}

func TestBindAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(db, time.Hour)

	mock.ExpectSet(testKey, "order-7", time.Hour).SetVal("OK")
	mock.ExpectDel(testKey).SetVal(1)

	require.NoError(t, store.Bind(context.Background(), "c-1", "k-1", "order-7"))
	require.NoError(t, store.Release(context.Background(), "c-1", "k-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
