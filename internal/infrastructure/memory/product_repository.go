package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
)

// ProductRepository keeps the catalog in memory. Stock reservations are
// serialised by the write lock so a batch is checked and applied as one step.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	byName   map[string]string
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*domain.Product),
		byName:   make(map[string]string),
	}
}

func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name]; exists {
		return domain.ErrNameTaken
	}
	r.products[p.ID] = cloneProduct(p)
	r.byName[p.Name] = p.ID
	return nil
}

func (r *ProductRepository) FindAllByID(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	out := make([]*domain.Product, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := r.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (r *ProductRepository) ReserveStock(ctx context.Context, changes []domain.StockChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateChanges(changes); err != nil {
		return err
	}
	merged := domain.MergeChanges(changes)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range merged {
		p, ok := r.products[c.ProductID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, c.ProductID)
		}
		if p.Quantity < c.Quantity {
			return &domain.InsufficientStockError{ProductID: c.ProductID, Requested: c.Quantity, Available: p.Quantity}
		}
	}

	now := time.Now().UTC()
	for _, c := range merged {
		p := r.products[c.ProductID]
		p.Quantity -= c.Quantity
		p.UpdatedAt = now
	}
	return nil
}

// Quantity reports the current stock of a product; ok is false for unknown ids.
func (r *ProductRepository) Quantity(id string) (qty int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return 0, false
	}
	return p.Quantity, true
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
