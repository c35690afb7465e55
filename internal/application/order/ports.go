package order

import "context"

type IDGenerator interface {
	NewID() string
}

// IdempotencyStore remembers which order a (customer, key) pair produced.
type IdempotencyStore interface {
	// Acquire claims key for customerID. When the key is already claimed, acquired is
	// false and orderID holds the bound order id, or "" while the first request is in flight.
	Acquire(ctx context.Context, customerID, key string) (orderID string, acquired bool, err error)
	Bind(ctx context.Context, customerID, key, orderID string) error
	Release(ctx context.Context, customerID, key string) error
}
