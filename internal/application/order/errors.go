package order

import (
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
)

var (
	ErrInvalidInput      = errors.New("order: invalid input")
	ErrCustomerNotFound  = errors.New("order: could not find any customer with the given id")
	ErrNoProductsFound   = errors.New("order: could not find any products with the given ids")
	ErrProductNotFound   = errors.New("order: product not found")
	ErrInsufficientStock = product.ErrInsufficientStock
	ErrDuplicateRequest  = errors.New("order: a request with this idempotency key is already in progress")
	ErrNotFound          = domain.ErrNotFound
)

// ProductNotFoundError names the first requested product missing from the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("order: could not find product %s", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// InsufficientStockError names the first product whose stock cannot cover the request.
type InsufficientStockError = product.InsufficientStockError

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
