package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/inventory-system/internal/model"
)

const maxNotesLength = 1000

// BuildOrder проверяет запрос и собирает несохранённый заказ в статусе PENDING.
// Цены позиций фиксируются по текущему каталогу. Остатки проверяются с учётом
// суммарного спроса по каждому товару, но не изменяются.
func (s *Service) BuildOrder(ctx context.Context, in model.CreateOrderInput, userID uuid.UUID) (*model.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetCustomer(ctx, in.CustomerID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("customer %s: %w", in.CustomerID, model.ErrCustomerOrProductNotFound)
		}
		return nil, err
	}

	ids := distinctProductIDs(in.Items)
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(products) != len(ids) {
		return nil, fmt.Errorf("resolve products: %w", model.ErrCustomerOrProductNotFound)
	}

	catalog := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	order := &model.Order{
		CustomerID: in.CustomerID,
		UserID:     userID,
		Status:     model.OrderStatusPending,
		Notes:      in.Notes,
		Total:      decimal.Zero,
		Items:      make([]model.OrderItem, 0, len(in.Items)),
	}

	demand := make(map[uuid.UUID]int, len(ids))
	for _, line := range in.Items {
		p, ok := catalog[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, model.ErrCustomerOrProductNotFound)
		}

		demand[p.ID] += line.Quantity
		if demand[p.ID] > p.Stock {
			return nil, &model.InsufficientStockError{ProductName: p.Name, Available: p.Stock}
		}

		subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		order.Items = append(order.Items, model.OrderItem{
			ProductID: p.ID,
			Quantity:  line.Quantity,
			Price:     p.Price,
			Subtotal:  subtotal,
			Product:   &model.ProductSummary{ID: p.ID, Name: p.Name, SKU: p.SKU},
		})
		order.Total = order.Total.Add(subtotal)
	}

	return order, nil
}

func validateInput(in model.CreateOrderInput) error {
	fields := make(map[string]string)

	if in.CustomerID == uuid.Nil {
		fields["customer_id"] = "required"
	}
	if len(in.Items) == 0 {
		fields["items"] = "min"
	}
	for i, line := range in.Items {
		if line.ProductID == uuid.Nil {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "required"
		}
		if line.Quantity <= 0 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "gt"
		}
	}
	if in.Notes != nil && utf8.RuneCountInString(*in.Notes) > maxNotesLength {
		fields["notes"] = "max"
	}

	if len(fields) > 0 {
		return &model.ValidationError{Fields: fields}
	}
	return nil
}

func distinctProductIDs(lines []model.LineRequest) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}
