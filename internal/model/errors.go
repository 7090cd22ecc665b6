package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation возвращается при некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound возвращается, если сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrCustomerOrProductNotFound возвращается, если покупатель или один из товаров заказа не существует.
	ErrCustomerOrProductNotFound = errors.New("customer or product not found")
	// ErrConflict возвращается при нарушении уникальности.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock возвращается, если остатка товара недостаточно.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStatus возвращается для неизвестного статуса или недопустимого перехода.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrForbidden возвращается, если у пользователя недостаточно прав.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable возвращается недоступной внешней зависимостью.
	ErrUnavailable = errors.New("unavailable")
)

// InsufficientStockError содержит сведения о товаре, остатка которого не хватило.
type InsufficientStockError struct {
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d", e.ProductName, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InvalidStatusError описывает неизвестный статус или запрещённый переход.
type InvalidStatusError struct {
	Status string
	From   OrderStatus
}

func (e *InvalidStatusError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.Status)
	}
	return fmt.Sprintf("invalid status %q", e.Status)
}

func (e *InvalidStatusError) Unwrap() error {
	return ErrInvalidStatus
}

// ValidationError перечисляет ошибки входных данных.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d invalid field(s)", len(e.Fields))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
