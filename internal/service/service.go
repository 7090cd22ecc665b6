// Package service реализует бизнес-логику учёта заказов и складских остатков.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/inventory-system/internal/cache"
	"github.com/mmeshcher/inventory-system/internal/model"
	"github.com/mmeshcher/inventory-system/internal/repository"
)

// DefaultDashboardTTL задаёт время жизни сводки в кэше по умолчанию.
const DefaultDashboardTTL = 5 * time.Minute

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	StatsReader

	Close() error
	WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrders(ctx context.Context, status *model.OrderStatus) ([]model.Order, error)
}

// StatsReader описывает независимые выборки, из которых собирается сводка.
type StatsReader interface {
	CountProducts(ctx context.Context) (int64, error)
	CountCustomers(ctx context.Context) (int64, error)
	CountOrders(ctx context.Context) (int64, error)
	Revenue(ctx context.Context, statuses []model.OrderStatus) (decimal.Decimal, error)
	LowStockProducts(ctx context.Context, limit int) ([]model.LowStockProduct, error)
	RecentOrders(ctx context.Context, limit int) ([]model.RecentOrder, error)
	TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error)
	SalesByDay(ctx context.Context, since time.Time) ([]model.DailySales, error)
}

// Service содержит бизнес-логику сервиса.
type Service struct {
	repo         Repository
	cache        *cache.Cache
	logger       *zap.Logger
	dashboardTTL time.Duration
	now          func() time.Time
}

// NewService создаёт сервис. Nil-кэш означает, что сводка всегда вычисляется заново.
func NewService(repo Repository, c *cache.Cache, logger *zap.Logger, dashboardTTL time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dashboardTTL <= 0 {
		dashboardTTL = DefaultDashboardTTL
	}

	return &Service{
		repo:         repo,
		cache:        c,
		logger:       logger,
		dashboardTTL: dashboardTTL,
		now:          time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
