package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DashboardStats содержит сводные показатели для главной страницы.
type DashboardStats struct {
	TotalProducts    int64             `json:"totalProducts"`
	TotalCustomers   int64             `json:"totalCustomers"`
	TotalOrders      int64             `json:"totalOrders"`
	TotalRevenue     decimal.Decimal   `json:"totalRevenue"`
	LowStockProducts []LowStockProduct `json:"lowStockProducts"`
	RecentOrders     []RecentOrder     `json:"recentOrders"`
	TopProducts      []TopProduct      `json:"topProducts"`
	SalesByDay       []DailySales      `json:"salesByDay"`
}

// LowStockProduct описывает товар, остаток которого не превышает минимальный.
type LowStockProduct struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	SKU      string    `json:"sku"`
	Stock    int       `json:"stock"`
	MinStock int       `json:"minStock"`
}

// RecentOrder описывает недавний заказ с именами покупателя и сотрудника.
type RecentOrder struct {
	ID           uuid.UUID       `json:"id"`
	OrderNumber  string          `json:"orderNumber"`
	Total        decimal.Decimal `json:"total"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	CustomerName string          `json:"customerName"`
	UserName     string          `json:"userName"`
}

// TopProduct описывает товар с суммарным количеством проданных единиц.
type TopProduct struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	TotalSold int64     `json:"totalSold"`
}

// DailySales содержит число заказов и их сумму за один день.
type DailySales struct {
	Date   time.Time       `json:"date"`
	Orders int64           `json:"orders"`
	Total  decimal.Decimal `json:"total"`
}
