package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/inventory-system/internal/cache"
	"github.com/mmeshcher/inventory-system/internal/model"
)

// DashboardCacheKey задаёт ключ, под которым сводка хранится в кэше.
const DashboardCacheKey = "dashboard:stats"

const (
	dashboardListLimit = 5
	salesWindowDays    = 7
)

var revenueStatuses = []model.OrderStatus{model.OrderStatusCompleted, model.OrderStatusProcessing}

// GetDashboardStats возвращает сводку из кэша, а при промахе вычисляет её заново.
// Сводка может отставать от базы не более чем на время жизни записи в кэше.
func (s *Service) GetDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	stats, err := cache.Fetch(ctx, s.cache, DashboardCacheKey, s.dashboardTTL, s.computeDashboard)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// computeDashboard выполняет все выборки сводки параллельно. Выборки не образуют
// согласованного снимка: каждая видит данные на момент своего выполнения.
func (s *Service) computeDashboard(ctx context.Context) (model.DashboardStats, error) {
	var stats model.DashboardStats

	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(salesWindowDays - 1))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TotalProducts, err = s.repo.CountProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalCustomers, err = s.repo.CountCustomers(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalOrders, err = s.repo.CountOrders(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalRevenue, err = s.repo.Revenue(gctx, revenueStatuses)
		return err
	})
	g.Go(func() (err error) {
		stats.LowStockProducts, err = s.repo.LowStockProducts(gctx, dashboardListLimit)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentOrders, err = s.repo.RecentOrders(gctx, dashboardListLimit)
		return err
	})
	g.Go(func() (err error) {
		stats.TopProducts, err = s.repo.TopProducts(gctx, dashboardListLimit)
		return err
	})
	g.Go(func() (err error) {
		stats.SalesByDay, err = s.repo.SalesByDay(gctx, since)
		return err
	})

	if err := g.Wait(); err != nil {
		return model.DashboardStats{}, err
	}

	normalizeStats(&stats)
	return stats, nil
}

func normalizeStats(stats *model.DashboardStats) {
	if stats.LowStockProducts == nil {
		stats.LowStockProducts = []model.LowStockProduct{}
	}
	if stats.RecentOrders == nil {
		stats.RecentOrders = []model.RecentOrder{}
	}
	if stats.TopProducts == nil {
		stats.TopProducts = []model.TopProduct{}
	}
	if stats.SalesByDay == nil {
		stats.SalesByDay = []model.DailySales{}
	}
}

// StartDashboardWarmup запускает фоновое обновление сводки в кэше с заданным интервалом.
// Нулевой интервал отключает обновление.
func (s *Service) StartDashboardWarmup(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.cache == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.warmDashboard(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.warmDashboard(ctx)
			}
		}
	}()
}

func (s *Service) warmDashboard(ctx context.Context) {
	if _, err := cache.Refresh(ctx, s.cache, DashboardCacheKey, s.dashboardTTL, s.computeDashboard); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("dashboard warmup failed", zap.Error(err))
	}
}
