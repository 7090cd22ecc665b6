// Package main запускает HTTP-сервер сервиса учёта заказов и складских остатков.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/inventory-system/internal/cache"
	"github.com/mmeshcher/inventory-system/internal/config"
	"github.com/mmeshcher/inventory-system/internal/handler"
	"github.com/mmeshcher/inventory-system/internal/middleware"
	"github.com/mmeshcher/inventory-system/internal/observability"
	"github.com/mmeshcher/inventory-system/internal/repository"
	"github.com/mmeshcher/inventory-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	metrics := observability.NewMetrics()

	var store cache.Store = cache.NopStore{}
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil && client == nil {
			sugar.Fatalw("redis configuration error", "error", err.Error())
		}
		if err != nil {
			sugar.Warnw("redis is unreachable, dashboard will be computed directly until it recovers", "error", err.Error())
		}
		defer client.Close()
		store = cache.NewRedisStore(client)
	} else {
		sugar.Info("REDIS_URL is empty, dashboard cache disabled")
	}

	c := cache.New(store, logger.Named("cache"), cache.WithRecorder(metrics))

	svc := service.NewService(repo, c, logger.Named("service"), cfg.CacheTTL)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, metrics, cfg.RateLimit)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Фоновое обновление сводки в кэше
	g.Go(func() error {
		svc.StartDashboardWarmup(ctx, cfg.CacheWarmupInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting inventory server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
