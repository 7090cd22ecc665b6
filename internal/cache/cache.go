// Package cache реализует кэширование по схеме cache-aside поверх необязательного
// внешнего хранилища.
//
// Кэш никогда не влияет на корректность: любая ошибка хранилища логируется, после
// чего значение вычисляется напрямую. Данные в кэше могут отставать от базы не более
// чем на TTL записи; пишущие операции, которым это отставание недопустимо, вызывают
// Invalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/inventory-system/internal/model"
)

// ErrMiss возвращается хранилищем, если ключ отсутствует или истёк.
var ErrMiss = errors.New("cache miss")

const (
	defaultCallTimeout    = 500 * time.Millisecond
	defaultComputeTimeout = 30 * time.Second
)

// Store описывает хранилище ключ-значение с ограниченным временем жизни записей.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// Recorder принимает результаты обращений к кэшу для метрик.
type Recorder interface {
	ObserveCache(op, result string)
}

// Cache выполняет выборку значений по схеме cache-aside.
type Cache struct {
	store          Store
	logger         *zap.Logger
	recorder       Recorder
	timeout        time.Duration
	computeTimeout time.Duration
	group          singleflight.Group
}

// Option настраивает Cache.
type Option func(*Cache)

// WithCallTimeout ограничивает длительность одного обращения к хранилищу.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithComputeTimeout ограничивает длительность общего вычисления при промахе.
func WithComputeTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.computeTimeout = d
		}
	}
}

// WithRecorder подключает учёт попаданий и промахов.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) {
		c.recorder = r
	}
}

// New создаёт кэш поверх хранилища. Nil-хранилище означает отсутствие кэша.
func New(store Store, logger *zap.Logger, opts ...Option) *Cache {
	if store == nil {
		store = NopStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		store:          store,
		logger:         logger,
		timeout:        defaultCallTimeout,
		computeTimeout: defaultComputeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch возвращает значение из кэша по ключу, а при промахе или недоступности
// хранилища вычисляет его через compute и сохраняет с заданным TTL.
// Ошибки хранилища вызывающему не возвращаются, ошибки compute возвращаются как есть.
// Одновременные промахи по одному ключу приводят к одному вычислению; оно выполняется
// в контексте, отвязанном от отмены первого вызывающего, поэтому отключение одного
// клиента не прерывает ожидание остальных.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return compute(ctx)
	}

	if value, ok := lookup[T](ctx, c, key); ok {
		return value, nil
	}

	resultCh := c.group.DoChan(key, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()

		value, err := compute(sharedCtx)
		if err != nil {
			return value, err
		}
		c.put(sharedCtx, key, value, ttl)
		return value, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Refresh вычисляет значение и безусловно перезаписывает им запись в кэше.
func Refresh[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	value, err := compute(ctx)
	if err != nil || c == nil {
		return value, err
	}
	c.put(ctx, key, value, ttl)
	return value, nil
}

// Invalidate удаляет все ключи, соответствующие шаблону (синтаксис glob, как в Redis).
func (c *Cache) Invalidate(ctx context.Context, pattern string) {
	if c == nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.store.DeletePattern(callCtx, pattern)
	if err != nil {
		c.fail("invalidate", pattern, err)
		return
	}
	c.observe("invalidate", "ok")
	c.logger.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("keys", n))
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var value T

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := c.store.Get(callCtx, key)
	switch {
	case errors.Is(err, ErrMiss):
		c.observe("get", "miss")
		return value, false
	case err != nil:
		c.fail("get", key, err)
		return value, false
	}

	if err := json.Unmarshal(payload, &value); err != nil {
		c.fail("decode", key, err)
		return value, false
	}

	c.observe("get", "hit")
	return value, true
}

func (c *Cache) put(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.fail("encode", key, err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.Set(callCtx, key, payload, ttl); err != nil {
		c.fail("set", key, err)
		return
	}
	c.observe("set", "ok")
}

func (c *Cache) fail(op, key string, err error) {
	c.observe(op, "error")
	c.logger.Warn("cache unavailable, falling back to direct computation",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(fmt.Errorf("%w: %w", model.ErrUnavailable, err)),
	)
}

func (c *Cache) observe(op, result string) {
	if c.recorder != nil {
		c.recorder.ObserveCache(op, result)
	}
}

// NopStore представляет отсутствующий кэш: каждое чтение является промахом.
type NopStore struct{}

// Get всегда возвращает ErrMiss.
func (NopStore) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

// Set ничего не сохраняет.
func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

// DeletePattern ничего не удаляет.
func (NopStore) DeletePattern(context.Context, string) (int, error) { return 0, nil }
