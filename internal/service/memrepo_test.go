package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/inventory-system/internal/model"
	"github.com/mmeshcher/inventory-system/internal/repository"
	"github.com/mmeshcher/inventory-system/internal/validation"
)

// memRepo хранит данные в памяти. Транзакции выполняются строго по очереди,
// а при ошибке состояние восстанавливается из снимка.
type memRepo struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*model.Product
	customers map[uuid.UUID]model.Customer
	users     map[uuid.UUID]model.User
	orders    map[uuid.UUID]*model.Order
	seq       int64

	beforeTx   func(r *memRepo)
	statsCalls atomic.Int32
	statsErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		products:  make(map[uuid.UUID]*model.Product),
		customers: make(map[uuid.UUID]model.Customer),
		users:     make(map[uuid.UUID]model.User),
		orders:    make(map[uuid.UUID]*model.Order),
	}
}

func (r *memRepo) addProduct(name string, price string, stock, minStock int) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &model.Product{
		ID:         uuid.New(),
		SKU:        "SKU-" + name,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		MinStock:   minStock,
		CategoryID: uuid.New(),
	}
	r.products[p.ID] = p
	return p.ID
}

func (r *memRepo) addCustomer(name string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := model.Customer{ID: uuid.New(), Name: name}
	r.customers[c.ID] = c
	return c.ID
}

func (r *memRepo) addUser(name string, role model.Role) model.Caller {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := model.User{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: role}
	r.users[u.ID] = u
	return model.Caller{UserID: u.ID, Role: role}
}

func (r *memRepo) stock(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

func (r *memRepo) setPrice(id uuid.UUID, price string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id].Price = decimal.RequireFromString(price)
}

func (r *memRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.beforeTx != nil {
		r.beforeTx(r)
	}

	products := make(map[uuid.UUID]*model.Product, len(r.products))
	for id, p := range r.products {
		cp := *p
		products[id] = &cp
	}
	orders := make(map[uuid.UUID]*model.Order, len(r.orders))
	for id, o := range r.orders {
		orders[id] = cloneOrder(o)
	}
	seq := r.seq

	if err := fn(ctx, &memTx{r: r}); err != nil {
		r.products, r.orders, r.seq = products, orders, seq
		return err
	}
	return nil
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp
}

func (r *memRepo) GetCustomer(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &c, nil
}

func (r *memRepo) GetProductsByIDs(_ context.Context, ids []uuid.UUID) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			res = append(res, *p)
		}
	}
	return res, nil
}

func (r *memRepo) GetOrder(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	return r.detail(o), nil
}

func (r *memRepo) GetOrderByNumber(_ context.Context, number string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == number {
			return r.detail(o), nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", number, model.ErrNotFound)
}

func (r *memRepo) ListOrders(_ context.Context, status *model.OrderStatus) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Order
	for _, o := range r.sortedOrders() {
		if status != nil && o.Status != *status {
			continue
		}
		res = append(res, *r.detail(o))
	}
	return res, nil
}

func (r *memRepo) sortedOrders() []*model.Order {
	res := make([]*model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].OrderNumber > res[j].OrderNumber
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res
}

func (r *memRepo) detail(o *model.Order) *model.Order {
	cp := cloneOrder(o)
	c := r.customers[o.CustomerID]
	u := r.users[o.UserID]
	cp.Customer = &c
	cp.User = &u
	for i := range cp.Items {
		if p, ok := r.products[cp.Items[i].ProductID]; ok {
			cp.Items[i].Product = &model.ProductSummary{ID: p.ID, Name: p.Name, SKU: p.SKU}
		}
	}
	return cp
}

func (r *memRepo) CountProducts(context.Context) (int64, error) {
	r.statsCalls.Add(1)
	if r.statsErr != nil {
		return 0, r.statsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.products)), nil
}

func (r *memRepo) CountCustomers(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.customers)), nil
}

func (r *memRepo) CountOrders(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.orders)), nil
}

func (r *memRepo) Revenue(_ context.Context, statuses []model.OrderStatus) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, o := range r.orders {
		if slices.Contains(statuses, o.Status) {
			total = total.Add(o.Total)
		}
	}
	return total, nil
}

func (r *memRepo) LowStockProducts(_ context.Context, limit int) ([]model.LowStockProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.LowStockProduct
	for _, p := range r.products {
		if p.Stock <= p.MinStock {
			res = append(res, model.LowStockProduct{ID: p.ID, Name: p.Name, SKU: p.SKU, Stock: p.Stock, MinStock: p.MinStock})
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Stock == res[j].Stock {
			return res[i].Name < res[j].Name
		}
		return res[i].Stock < res[j].Stock
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *memRepo) RecentOrders(_ context.Context, limit int) ([]model.RecentOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.RecentOrder
	for _, o := range r.sortedOrders() {
		if len(res) == limit {
			break
		}
		res = append(res, model.RecentOrder{
			ID:           o.ID,
			OrderNumber:  o.OrderNumber,
			Total:        o.Total,
			Status:       o.Status,
			CreatedAt:    o.CreatedAt,
			CustomerName: r.customers[o.CustomerID].Name,
			UserName:     r.users[o.UserID].Name,
		})
	}
	return res, nil
}

func (r *memRepo) TopProducts(_ context.Context, limit int) ([]model.TopProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sold := make(map[uuid.UUID]int64)
	for _, o := range r.orders {
		for _, item := range o.Items {
			sold[item.ProductID] += int64(item.Quantity)
		}
	}
	var res []model.TopProduct
	for id, n := range sold {
		p := r.products[id]
		res = append(res, model.TopProduct{ID: id, Name: p.Name, SKU: p.SKU, TotalSold: n})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].TotalSold == res[j].TotalSold {
			return res[i].Name < res[j].Name
		}
		return res[i].TotalSold > res[j].TotalSold
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *memRepo) SalesByDay(_ context.Context, since time.Time) ([]model.DailySales, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byDay := make(map[time.Time]*model.DailySales)
	for _, o := range r.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		t := o.CreatedAt.UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		d, ok := byDay[day]
		if !ok {
			d = &model.DailySales{Date: day, Total: decimal.Zero}
			byDay[day] = d
		}
		d.Orders++
		d.Total = d.Total.Add(o.Total)
	}
	var res []model.DailySales
	for _, d := range byDay {
		res = append(res, *d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.After(res[j].Date) })
	return res, nil
}

// memTx выполняет операции транзакции под блокировкой memRepo.
type memTx struct {
	r *memRepo
}

func (t *memTx) NextOrderNumber(context.Context) (string, error) {
	t.r.seq++
	return validation.AppendCheckDigit(fmt.Sprintf("20261015%06d", t.r.seq))
}

func (t *memTx) InsertOrder(_ context.Context, order *model.Order) error {
	if _, ok := t.r.customers[order.CustomerID]; !ok {
		return fmt.Errorf("insert order: %w", model.ErrCustomerOrProductNotFound)
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	t.r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *memTx) Reserve(_ context.Context, productID uuid.UUID, quantity int) error {
	p, ok := t.r.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, model.ErrCustomerOrProductNotFound)
	}
	if p.Stock < quantity {
		return &model.InsufficientStockError{ProductName: p.Name, Available: p.Stock}
	}
	p.Stock -= quantity
	return nil
}

func (t *memTx) Release(_ context.Context, productID uuid.UUID, quantity int) error {
	p, ok := t.r.products[productID]
	if !ok {
		return fmt.Errorf("release stock: %w", model.ErrNotFound)
	}
	p.Stock += quantity
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id uuid.UUID) (*model.Order, error) {
	o, ok := t.r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, id uuid.UUID, status model.OrderStatus) error {
	o, ok := t.r.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	o.Status = status
	return nil
}

func (t *memTx) DeleteOrder(_ context.Context, id uuid.UUID) error {
	if _, ok := t.r.orders[id]; !ok {
		return fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	delete(t.r.orders, id)
	return nil
}
