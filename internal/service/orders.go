package service

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/inventory-system/internal/model"
	"github.com/mmeshcher/inventory-system/internal/repository"
)

// dashboardPattern охватывает все ключи кэша, зависящие от заказов и остатков.
const dashboardPattern = "dashboard:*"

type stockMove struct {
	productID uuid.UUID
	quantity  int
}

// CreateOrder оформляет заказ: в одной транзакции выделяет номер, сохраняет заказ
// со строками и резервирует остатки. При любой ошибке изменения не сохраняются.
func (s *Service) CreateOrder(ctx context.Context, caller model.Caller, in model.CreateOrderInput) (*model.Order, error) {
	order, err := s.BuildOrder(ctx, in, caller.UserID)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		number, err := tx.NextOrderNumber(ctx)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		for _, m := range stockMoves(order.Items) {
			if err := tx.Reserve(ctx, m.productID, m.quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)),
	)
	s.cache.Invalidate(ctx, dashboardPattern)

	detail, err := s.repo.GetOrder(ctx, order.ID)
	if err != nil {
		s.logger.Warn("failed to reload created order", zap.String("order_id", order.ID.String()), zap.Error(err))
		return order, nil
	}
	return detail, nil
}

// UpdateStatus переводит заказ в новый статус. Отмена возвращает на склад все
// позиции заказа в той же транзакции. Повторная установка текущего статуса
// ничего не меняет, поэтому одновременные отмены возвращают остатки один раз.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error) {
	next, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	changed := false
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}

		if current.Status == next {
			return nil
		}
		if !model.CanTransition(current.Status, next) {
			return &model.InvalidStatusError{Status: string(next), From: current.Status}
		}

		if err := tx.UpdateOrderStatus(ctx, id, next); err != nil {
			return err
		}

		if next == model.OrderStatusCancelled {
			for _, m := range stockMoves(current.Items) {
				if err := tx.Release(ctx, m.productID, m.quantity); err != nil {
					return err
				}
			}
		}

		changed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if changed {
		s.logger.Info("order status updated",
			zap.String("order_id", id.String()),
			zap.String("status", string(next)),
		)
		s.cache.Invalidate(ctx, dashboardPattern)
	}

	return s.repo.GetOrder(ctx, id)
}

// DeleteOrder удаляет заказ. Операция доступна только администратору.
// Остатки товаров при удалении не восстанавливаются.
func (s *Service) DeleteOrder(ctx context.Context, caller model.Caller, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return fmt.Errorf("delete order: %w", model.ErrForbidden)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.logger.Info("order deleted",
		zap.String("order_id", id.String()),
		zap.String("user_id", caller.UserID.String()),
	)
	s.cache.Invalidate(ctx, dashboardPattern)
	return nil
}

// GetOrder возвращает заказ с покупателем, сотрудником и строками.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// GetOrderByNumber возвращает заказ по номеру.
func (s *Service) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	return s.repo.GetOrderByNumber(ctx, number)
}

// ListOrders возвращает заказы от новых к старым. Пустой status отключает фильтр.
func (s *Service) ListOrders(ctx context.Context, status string) ([]model.Order, error) {
	if status == "" {
		return s.repo.ListOrders(ctx, nil)
	}

	st, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, &st)
}

// stockMoves суммирует количество по товарам и упорядочивает их по идентификатору,
// чтобы параллельные транзакции блокировали строки товаров в одном порядке.
func stockMoves(items []model.OrderItem) []stockMove {
	totals := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		totals[item.ProductID] += item.Quantity
	}

	moves := make([]stockMove, 0, len(totals))
	for id, qty := range totals {
		moves = append(moves, stockMove{productID: id, quantity: qty})
	}
	slices.SortFunc(moves, func(a, b stockMove) int {
		return bytes.Compare(a.productID[:], b.productID[:])
	})
	return moves
}
