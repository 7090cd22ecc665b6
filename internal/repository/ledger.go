package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/inventory-system/internal/model"
)

// Tx описывает операции, выполняемые внутри одной транзакции заказа.
type Tx interface {
	NextOrderNumber(ctx context.Context) (string, error)
	InsertOrder(ctx context.Context, order *model.Order) error
	Reserve(ctx context.Context, productID uuid.UUID, quantity int) error
	Release(ctx context.Context, productID uuid.UUID, quantity int) error
	LockOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type txRepo struct {
	q querier
}

// Reserve списывает quantity единиц товара одним условным UPDATE.
// Строка товара блокируется до конца транзакции, поэтому параллельные резервы
// одного товара выполняются строго по очереди и видят уже уменьшенный остаток.
func (r *txRepo) Reserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return classify(err, "reserve stock")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var (
		name  string
		stock int
	)
	err = r.q.QueryRow(ctx,
		`SELECT name, stock FROM products WHERE id = $1`,
		productID,
	).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %s: %w", productID, model.ErrCustomerOrProductNotFound)
		}
		return fmt.Errorf("select product stock: %w", err)
	}

	return &model.InsufficientStockError{ProductName: name, Available: stock}
}

// Release возвращает quantity единиц товара на склад.
func (r *txRepo) Release(ctx context.Context, productID uuid.UUID, quantity int) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		productID, quantity,
	)
	if err != nil {
		return classify(err, "release stock")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("release stock: product %s: %w", productID, model.ErrNotFound)
	}
	return nil
}
