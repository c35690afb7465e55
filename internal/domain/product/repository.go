package product

import "context"

type Repository interface {
	// Insert fails with ErrNameTaken when the name is already used.
	Insert(ctx context.Context, p *Product) error
	// FindAllByID returns the products that exist; missing ids are omitted, not reported.
	FindAllByID(ctx context.Context, ids []string) ([]*Product, error)
	// ReserveStock decrements every change atomically and only if each product still
	// holds at least the requested quantity. On rejection nothing is written and the
	// error is an *InsufficientStockError (or wraps ErrNotFound for unknown ids).
	ReserveStock(ctx context.Context, changes []StockChange) error
}
