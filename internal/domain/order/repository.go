package order

import "context"

type Repository interface {
	// Create stores a new order with its line items and returns the stored copy.
	Create(ctx context.Context, o *Order) (*Order, error)
	FindByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
}
