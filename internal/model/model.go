// Package model содержит доменные сущности сервиса учёта товаров и заказов.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role описывает уровень привилегий пользователя.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleSeller Role = "SELLER"
)

// Caller описывает аутентифицированного пользователя, выполняющего операцию.
type Caller struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin сообщает, обладает ли пользователь повышенными привилегиями.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Product представляет товар каталога с текущим остатком на складе.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	MinStock   int             `json:"min_stock"`
	CategoryID uuid.UUID       `json:"category_id"`
}

// Customer представляет покупателя.
type Customer struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Email   *string   `json:"email,omitempty"`
	Phone   *string   `json:"phone,omitempty"`
	Address *string   `json:"address,omitempty"`
}

// User представляет сотрудника, оформляющего заказы.
type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// ParseOrderStatus проверяет, что строка является известным статусом заказа.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return st, nil
	default:
		return "", &InvalidStatusError{Status: s}
	}
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransition сообщает, допустим ли переход заказа из статуса from в статус to.
// COMPLETED и CANCELLED являются конечными статусами.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem описывает строку заказа. Цена фиксируется в момент создания заказа
// и не зависит от последующих изменений цены товара.
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`

	Product *ProductSummary `json:"product,omitempty"`
}

// ProductSummary содержит краткие сведения о товаре для отображения в заказе.
type ProductSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	SKU  string    `json:"sku"`
}

// Order описывает заказ покупателя.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Status      OrderStatus     `json:"status"`
	Notes       *string         `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	Items    []OrderItem `json:"items"`
	Customer *Customer   `json:"customer,omitempty"`
	User     *User       `json:"user,omitempty"`
}

// LineRequest описывает запрошенную позицию заказа.
type LineRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput содержит данные для оформления заказа.
type CreateOrderInput struct {
	CustomerID uuid.UUID
	Items      []LineRequest
	Notes      *string
}
