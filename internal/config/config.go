// Package config содержит логику чтения конфигурации сервиса учёта заказов.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultCacheTTL   = 5 * time.Minute
	defaultRateLimit  = 100
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress          string        `env:"RUN_ADDRESS"`
	DatabaseURI         string        `env:"DATABASE_URI"`
	RedisURL            string        `env:"REDIS_URL"`
	AuthSecret          string        `env:"AUTH_SECRET"`
	CacheTTL            time.Duration `env:"CACHE_TTL"`
	CacheWarmupInterval time.Duration `env:"CACHE_WARMUP_INTERVAL"`
	RateLimit           int           `env:"RATE_LIMIT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := Config{}
	envSet := make(map[string]bool)
	opts := env.Options{
		OnSet: func(tag string, value any, _ bool) {
			if value != "" {
				envSet[tag] = true
			}
		},
	}
	if err := env.ParseWithOptions(&envCfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL, empty disables the cache")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret used to verify bearer tokens")
	flag.DurationVar(&cfg.CacheTTL, "t", defaultCacheTTL, "dashboard cache TTL")
	flag.DurationVar(&cfg.CacheWarmupInterval, "w", 0, "dashboard cache warmup interval, 0 disables warmup")
	flag.IntVar(&cfg.RateLimit, "l", defaultRateLimit, "API requests per minute per IP, 0 disables the limit")

	flag.Parse()

	// Заданная переменная окружения перекрывает флаг, в том числе нулевым значением.
	if envSet["RUN_ADDRESS"] {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envSet["DATABASE_URI"] {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envSet["REDIS_URL"] {
		cfg.RedisURL = envCfg.RedisURL
	}
	if envSet["AUTH_SECRET"] {
		cfg.AuthSecret = envCfg.AuthSecret
	}
	if envSet["CACHE_TTL"] {
		cfg.CacheTTL = envCfg.CacheTTL
	}
	if envSet["CACHE_WARMUP_INTERVAL"] {
		cfg.CacheWarmupInterval = envCfg.CacheWarmupInterval
	}
	if envSet["RATE_LIMIT"] {
		cfg.RateLimit = envCfg.RateLimit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %s", cfg.CacheTTL)
	}
	if cfg.CacheWarmupInterval < 0 {
		return nil, fmt.Errorf("cache warmup interval must not be negative, got %s", cfg.CacheWarmupInterval)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative, got %d", cfg.RateLimit)
	}

	return cfg, nil
}
