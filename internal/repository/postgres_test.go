package repository_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/inventory-system/internal/model"
	"github.com/mmeshcher/inventory-system/internal/repository"
	"github.com/mmeshcher/inventory-system/internal/service"
	"github.com/mmeshcher/inventory-system/internal/validation"
)

// Интеграционные тесты запускаются только при заданной TEST_DATABASE_URI
// и очищают таблицы перед каждым тестом.
func setup(t *testing.T) (*repository.PostgresRepository, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	ctx := context.Background()
	repo, err := repository.NewPostgresRepository(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE order_items, orders, products, categories, customers, users CASCADE`)
	require.NoError(t, err)

	return repo, pool
}

type seed struct {
	seller   model.Caller
	admin    model.Caller
	customer uuid.UUID
	category uuid.UUID
}

func seedData(t *testing.T, pool *pgxpool.Pool) seed {
	t.Helper()
	ctx := context.Background()

	var s seed
	s.seller = model.Caller{Role: model.RoleSeller}
	s.admin = model.Caller{Role: model.RoleAdmin}

	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (email, name, role) VALUES ('seller@example.com', 'Seller', 'SELLER') RETURNING id`,
	).Scan(&s.seller.UserID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (email, name, role) VALUES ('admin@example.com', 'Admin', 'ADMIN') RETURNING id`,
	).Scan(&s.admin.UserID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO customers (name, email) VALUES ('Acme', 'acme@example.com') RETURNING id`,
	).Scan(&s.customer))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO categories (name) VALUES ('Tools') RETURNING id`,
	).Scan(&s.category))

	return s
}

func addProduct(t *testing.T, pool *pgxpool.Pool, categoryID uuid.UUID, sku, name, price string, stock, minStock int) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, pool.QueryRow(context.Background(),
		`INSERT INTO products (sku, name, price, stock, min_stock, category_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		sku, name, decimal.RequireFromString(price), stock, minStock, categoryID,
	).Scan(&id))
	return id
}

func stockOf(t *testing.T, pool *pgxpool.Pool, id uuid.UUID) int {
	t.Helper()
	var stock int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock))
	return stock
}

func TestOrderLifecycle(t *testing.T) {
	repo, pool := setup(t)
	s := seedData(t, pool)
	ctx := context.Background()
	svc := service.NewService(repo, nil, nil, time.Minute)

	p := addProduct(t, pool, s.category, "P-1", "Widget", "20.00", 10, 2)

	order, err := svc.CreateOrder(ctx, s.seller, model.CreateOrderInput{
		CustomerID: s.customer,
		Items:      []model.LineRequest{{ProductID: p, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("60.00")))
	assert.True(t, validation.IsValidOrderNumber(order.OrderNumber))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Widget", order.Items[0].Product.Name)
	assert.Equal(t, "Acme", order.Customer.Name)
	assert.Equal(t, 7, stockOf(t, pool, p))

	_, err = pool.Exec(ctx, `UPDATE products SET price = 25 WHERE id = $1`, p)
	require.NoError(t, err)

	byNumber, err := repo.GetOrderByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNumber.ID)

	cancelled, err := svc.UpdateStatus(ctx, order.ID, "CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.Total.Equal(decimal.RequireFromString("60.00")))
	assert.Equal(t, 10, stockOf(t, pool, p))

	_, err = svc.UpdateStatus(ctx, order.ID, "CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, pool, p))

	list, err := repo.ListOrders(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteOrder(ctx, s.admin, order.ID))
	_, err = repo.GetOrder(ctx, order.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	repo, pool := setup(t)
	s := seedData(t, pool)
	svc := service.NewService(repo, nil, nil, time.Minute)

	p := addProduct(t, pool, s.category, "P-2", "Gadget", "5.00", 5, 0)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.CreateOrder(context.Background(), s.seller, model.CreateOrderInput{
				CustomerID: s.customer,
				Items:      []model.LineRequest{{ProductID: p, Quantity: 4}},
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, stockOf(t, pool, p))
}

func TestReserveRollsBackWholeOrder(t *testing.T) {
	repo, pool := setup(t)
	s := seedData(t, pool)
	ctx := context.Background()

	a := addProduct(t, pool, s.category, "A", "Alpha", "1.00", 10, 0)
	b := addProduct(t, pool, s.category, "B", "Beta", "1.00", 1, 0)

	err := repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Reserve(ctx, a, 5); err != nil {
			return err
		}
		return tx.Reserve(ctx, b, 2)
	})

	var stockErr *model.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Beta", stockErr.ProductName)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 10, stockOf(t, pool, a))

	err = repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Reserve(ctx, uuid.New(), 1)
	})
	require.ErrorIs(t, err, model.ErrCustomerOrProductNotFound)
}

func TestDashboardQueries(t *testing.T) {
	repo, pool := setup(t)
	s := seedData(t, pool)
	ctx := context.Background()
	svc := service.NewService(repo, nil, nil, time.Minute)

	a := addProduct(t, pool, s.category, "A", "Alpha", "20.00", 10, 8)
	b := addProduct(t, pool, s.category, "B", "Beta", "5.00", 50, 1)

	first, err := svc.CreateOrder(ctx, s.seller, model.CreateOrderInput{
		CustomerID: s.customer,
		Items:      []model.LineRequest{{ProductID: a, Quantity: 3}},
	})
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, s.seller, model.CreateOrderInput{
		CustomerID: s.customer,
		Items:      []model.LineRequest{{ProductID: b, Quantity: 5}},
	})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, first.ID, "COMPLETED")
	require.NoError(t, err)

	stats, err := svc.GetDashboardStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalProducts)
	assert.Equal(t, int64(1), stats.TotalCustomers)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.True(t, stats.TotalRevenue.Equal(decimal.RequireFromString("60")))
	require.Len(t, stats.LowStockProducts, 1)
	assert.Equal(t, "Alpha", stats.LowStockProducts[0].Name)
	require.Len(t, stats.TopProducts, 2)
	assert.Equal(t, "Beta", stats.TopProducts[0].Name)
	assert.Equal(t, int64(5), stats.TopProducts[0].TotalSold)
	require.Len(t, stats.RecentOrders, 2)
	assert.Equal(t, "Seller", stats.RecentOrders[0].UserName)
	require.Len(t, stats.SalesByDay, 1)
	assert.Equal(t, int64(2), stats.SalesByDay[0].Orders)
	assert.True(t, stats.SalesByDay[0].Total.Equal(decimal.RequireFromString("85")))
}
