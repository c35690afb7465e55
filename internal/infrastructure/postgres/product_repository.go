package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/product"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	const query = `
		INSERT INTO products (id, name, price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.Price.String(), p.Quantity, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isCode(err, codeUniqueViolation) {
			return domain.ErrNameTaken
		}
		return fmt.Errorf("postgres: insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) FindAllByID(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `
		SELECT id, name, price::text, quantity, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: find products: %w", err)
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: parse price of %s: %w", p.ID, err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find products: %w", err)
	}
	return out, nil
}

// ReserveStock applies guarded decrements inside one transaction. Rows are
// locked in id order so concurrent reservations cannot deadlock.
func (r *ProductRepository) ReserveStock(ctx context.Context, changes []domain.StockChange) (err error) {
	if err := domain.ValidateChanges(changes); err != nil {
		return err
	}
	merged := domain.MergeChanges(changes)
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin reservation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	const decrement = `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`
	for _, c := range merged {
		tag, execErr := tx.Exec(ctx, decrement, c.ProductID, c.Quantity)
		if execErr != nil {
			return fmt.Errorf("postgres: reserve %s: %w", c.ProductID, execErr)
		}
		if tag.RowsAffected() == 1 {
			continue
		}

		var available int
		scanErr := tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, c.ProductID).Scan(&available)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, c.ProductID)
		}
		if scanErr != nil {
			return fmt.Errorf("postgres: read stock of %s: %w", c.ProductID, scanErr)
		}
		return &domain.InsufficientStockError{ProductID: c.ProductID, Requested: c.Quantity, Available: available}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit reservation: %w", err)
	}
	return nil
}
