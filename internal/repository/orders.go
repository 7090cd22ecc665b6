package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/inventory-system/internal/model"
	"github.com/mmeshcher/inventory-system/internal/validation"
)

const orderColumns = `
	SELECT o.id, o.order_number, o.customer_id, o.user_id, o.total, o.status, o.notes, o.created_at,
	       c.name, c.email, c.phone, c.address,
	       u.name, u.email, u.role
	FROM orders o
	JOIN customers c ON c.id = o.customer_id
	JOIN users u ON u.id = o.user_id`

// NextOrderNumber выделяет номер заказа вида ГГГГММДД + шестизначный счётчик + контрольная цифра.
func (r *txRepo) NextOrderNumber(ctx context.Context) (string, error) {
	var (
		day string
		seq int64
	)
	err := r.q.QueryRow(ctx,
		`SELECT to_char(now() AT TIME ZONE 'UTC', 'YYYYMMDD'), nextval('order_number_seq')`,
	).Scan(&day, &seq)
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}

	number, err := validation.AppendCheckDigit(fmt.Sprintf("%s%06d", day, seq%1_000_000))
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return number, nil
}

// InsertOrder сохраняет заказ и его строки, заполняя идентификаторы и дату создания.
func (r *txRepo) InsertOrder(ctx context.Context, order *model.Order) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO orders (order_number, customer_id, user_id, total, status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		order.OrderNumber, order.CustomerID, order.UserID, order.Total, string(order.Status), order.Notes,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return classify(err, "insert order")
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := r.q.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, position, quantity, price, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			order.ID, item.ProductID, i+1, item.Quantity, item.Price, item.Subtotal,
		).Scan(&item.ID)
		if err != nil {
			return classify(err, "insert order item")
		}
	}

	return nil
}

// LockOrder блокирует строку заказа до конца транзакции и возвращает его статус и строки.
func (r *txRepo) LockOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := r.q.QueryRow(ctx,
		`SELECT id, order_number, customer_id, user_id, total, status, notes, created_at
		 FROM orders WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.UserID, &o.Total, &status, &o.Notes, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	o.Status = model.OrderStatus(status)

	items, err := loadItems(ctx, r.q, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]

	return &o, nil
}

// UpdateOrderStatus записывает новый статус заказа.
func (r *txRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return classify(err, "update order status")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// DeleteOrder удаляет заказ вместе со строками. Остатки товаров не изменяются.
func (r *txRepo) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete order")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// GetOrder возвращает заказ с покупателем, сотрудником и строками.
func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	orders, err := loadOrders(ctx, r.pool, orderColumns+` WHERE o.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	return &orders[0], nil
}

// GetOrderByNumber возвращает заказ по его номеру.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	orders, err := loadOrders(ctx, r.pool, orderColumns+` WHERE o.order_number = $1`, number)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("order %s: %w", number, model.ErrNotFound)
	}
	return &orders[0], nil
}

// ListOrders возвращает заказы от новых к старым, при необходимости с фильтром по статусу.
func (r *PostgresRepository) ListOrders(ctx context.Context, status *model.OrderStatus) ([]model.Order, error) {
	if status != nil {
		return loadOrders(ctx, r.pool,
			orderColumns+` WHERE o.status = $1 ORDER BY o.created_at DESC, o.id`,
			string(*status),
		)
	}
	return loadOrders(ctx, r.pool, orderColumns+` ORDER BY o.created_at DESC, o.id`)
}

func loadOrders(ctx context.Context, q querier, query string, args ...any) ([]model.Order, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []model.Order
		ids    []uuid.UUID
	)
	for rows.Next() {
		var (
			o        model.Order
			c        model.Customer
			u        model.User
			status   string
			userRole string
		)
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.CustomerID, &o.UserID, &o.Total, &status, &o.Notes, &o.CreatedAt,
			&c.Name, &c.Email, &c.Phone, &c.Address,
			&u.Name, &u.Email, &userRole,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		o.Status = model.OrderStatus(status)
		c.ID = o.CustomerID
		u.ID = o.UserID
		u.Role = model.Role(userRole)
		o.Customer = &c
		o.User = &u

		orders = append(orders, o)
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.subtotal, p.name, p.sku
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.order_id, oi.position`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item model.OrderItem
			p    model.ProductSummary
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.Subtotal, &p.Name, &p.SKU); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		p.ID = item.ProductID
		item.Product = &p
		res[item.OrderID] = append(res[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
