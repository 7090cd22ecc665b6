package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/inventory-system/internal/model"
)

// CountProducts возвращает число товаров.
func (r *PostgresRepository) CountProducts(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM products`)
}

// CountCustomers возвращает число покупателей.
func (r *PostgresRepository) CountCustomers(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM customers`)
}

// CountOrders возвращает число заказов.
func (r *PostgresRepository) CountOrders(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM orders`)
}

func (r *PostgresRepository) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Revenue возвращает сумму заказов в указанных статусах.
func (r *PostgresRepository) Revenue(ctx context.Context, statuses []model.OrderStatus) (decimal.Decimal, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	var total decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = ANY($1)`,
		values,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}

// LowStockProducts возвращает товары, остаток которых не превышает минимальный.
func (r *PostgresRepository) LowStockProducts(ctx context.Context, limit int) ([]model.LowStockProduct, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, sku, stock, min_stock
		 FROM products
		 WHERE stock <= min_stock
		 ORDER BY stock, name
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select low stock products: %w", err)
	}
	defer rows.Close()

	res := make([]model.LowStockProduct, 0, limit)
	for rows.Next() {
		var p model.LowStockProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Stock, &p.MinStock); err != nil {
			return nil, fmt.Errorf("scan low stock product: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// RecentOrders возвращает последние заказы с именами покупателя и сотрудника.
func (r *PostgresRepository) RecentOrders(ctx context.Context, limit int) ([]model.RecentOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.order_number, o.total, o.status, o.created_at, c.name, u.name
		 FROM orders o
		 JOIN customers c ON c.id = o.customer_id
		 JOIN users u ON u.id = o.user_id
		 ORDER BY o.created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select recent orders: %w", err)
	}
	defer rows.Close()

	res := make([]model.RecentOrder, 0, limit)
	for rows.Next() {
		var (
			o      model.RecentOrder
			status string
		)
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Total, &status, &o.CreatedAt, &o.CustomerName, &o.UserName); err != nil {
			return nil, fmt.Errorf("scan recent order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// TopProducts возвращает товары с наибольшим числом проданных единиц по всем заказам.
func (r *PostgresRepository) TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.sku, SUM(oi.quantity) AS total_sold
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 GROUP BY p.id, p.name, p.sku
		 ORDER BY total_sold DESC, p.name
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select top products: %w", err)
	}
	defer rows.Close()

	res := make([]model.TopProduct, 0, limit)
	for rows.Next() {
		var p model.TopProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.TotalSold); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// SalesByDay возвращает число заказов и их сумму по дням начиная с since, от новых к старым.
func (r *PostgresRepository) SalesByDay(ctx context.Context, since time.Time) ([]model.DailySales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT (created_at AT TIME ZONE 'UTC')::date AS day, COUNT(*), COALESCE(SUM(total), 0)
		 FROM orders
		 WHERE created_at >= $1
		 GROUP BY day
		 ORDER BY day DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("select sales by day: %w", err)
	}
	defer rows.Close()

	var res []model.DailySales
	for rows.Next() {
		var d model.DailySales
		if err := rows.Scan(&d.Date, &d.Orders, &d.Total); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		res = append(res, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}
