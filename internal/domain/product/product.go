package product

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrNameTaken         = errors.New("product: name already in use")
	ErrNameRequired      = errors.New("product: name is required")
	ErrInvalidPrice      = errors.New("product: price must be zero or greater")
	ErrInvalidQuantity   = errors.New("product: quantity must be zero or greater")
	ErrInvalidChange     = errors.New("product: stock change quantity must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
)

// Product is a catalog entry. Quantity is the number of sellable units.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id, name string, price decimal.Decimal, quantity int) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	now := time.Now().UTC()
	return &Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StockChange is a relative adjustment of one product's quantity.
type StockChange struct {
	ProductID string
	Quantity  int
}

// InsufficientStockError reports the product that could not cover a request.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product: quantity %d is not available for %s (available %d)", e.Requested, e.ProductID, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// MergeChanges sums changes per product, keeping first-seen order.
func MergeChanges(changes []StockChange) []StockChange {
	index := make(map[string]int, len(changes))
	out := make([]StockChange, 0, len(changes))
	for _, c := range changes {
		if i, ok := index[c.ProductID]; ok {
			out[i].Quantity += c.Quantity
			continue
		}
		index[c.ProductID] = len(out)
		out = append(out, c)
	}
	return out
}

// ValidateChanges rejects empty product ids and non-positive quantities.
func ValidateChanges(changes []StockChange) error {
	for _, c := range changes {
		if c.ProductID == "" {
			return fmt.Errorf("%w: product id is required", ErrInvalidChange)
		}
		if c.Quantity <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidChange, c.ProductID)
		}
	}
	return nil
}
