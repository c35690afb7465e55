package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create writes the order and its line items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (_ *domain.Order, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin order: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	const insertOrder = `
		INSERT INTO orders (id, customer_id, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, insertOrder, o.ID, o.CustomerID, string(o.Status), o.FailureReason, o.CreatedAt, o.UpdatedAt); err != nil {
		if isCode(err, codeUniqueViolation) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("postgres: insert order: %w", err)
	}

	const insertItem = `
		INSERT INTO order_products (order_id, position, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5::numeric)
	`
	batch := &pgx.Batch{}
	for i, li := range o.Items {
		batch.Queue(insertItem, o.ID, i, li.ProductID, li.Quantity, li.UnitPrice.String())
	}
	results := tx.SendBatch(ctx, batch)
	for range o.Items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			if isCode(err, codeForeignKeyViolation) {
				return nil, fmt.Errorf("postgres: line item references unknown product: %w", err)
			}
			return nil, fmt.Errorf("postgres: insert line item: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("postgres: insert line items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit order: %w", err)
	}
	return o.Clone(), nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	const selectOrder = `
		SELECT id, customer_id, status, failure_reason, created_at, updated_at
		FROM orders WHERE id = $1
	`
	var (
		o      domain.Order
		status string
	)
	err := r.pool.QueryRow(ctx, selectOrder, id).Scan(&o.ID, &o.CustomerID, &status, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find order: %w", err)
	}
	o.Status = domain.Status(status)

	const selectItems = `
		SELECT product_id, quantity, unit_price::text
		FROM order_products WHERE order_id = $1
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, selectItems, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: find line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			li    domain.LineItem
			price string
		)
		if err := rows.Scan(&li.ProductID, &li.Quantity, &price); err != nil {
			return nil, fmt.Errorf("postgres: scan line item: %w", err)
		}
		if li.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: parse unit price: %w", err)
		}
		o.Items = append(o.Items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find line items: %w", err)
	}
	return &o, nil
}

// Update persists status changes. Line items are immutable and never rewritten.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	const query = `
		UPDATE orders SET status = $2, failure_reason = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, o.ID, string(o.Status), o.FailureReason, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
