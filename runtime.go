package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Zhima-Mochi/minishop-storefront/internal/bootstrap"
	"github.com/Zhima-Mochi/minishop-storefront/internal/config"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/lock"
	infralock "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/lock"
	infraobs "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
)

// telemetry owns the process-wide logger and metrics registry.
type telemetry struct {
	obs      observability.Observability
	logger   *zaplogger.Logger
	registry prometrics.Registry
}

func newTelemetry(cfg config.Config) (*telemetry, error) {
	logger, err := zaplogger.New(zaplogger.Options{
		Level:   cfg.Service.LogLevel,
		LogFile: cfg.Service.LogFile,
		Fixed: []observability.Field{
			observability.F("service", cfg.Service.Name),
			observability.F("env", cfg.Service.Env),
			observability.F("version", Version),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	registry := prometrics.New("", "")
	counters, histograms := prometrics.Standard(registry)
	obs := infraobs.New(infraobs.Options{
		Tracer:     oteltrace.New(cfg.Service.Name),
		Logger:     logger,
		Counters:   counters,
		Histograms: histograms,
	})
	return &telemetry{obs: obs, logger: logger, registry: registry}, nil
}

func (t *telemetry) close() {
	_ = t.logger.Sync()
}

// openStores returns the configured stores plus the pool when the driver is postgres.
func openStores(ctx context.Context, cfg config.Config) (bootstrap.Stores, *pgxpool.Pool, error) {
	if cfg.Store.Driver != config.DriverPostgres {
		return bootstrap.MemoryStores(), nil, nil
	}
	pool, err := postgres.Connect(ctx, postgres.Options{DSN: cfg.Store.DSN, MaxConns: cfg.Store.MaxConns})
	if err != nil {
		return bootstrap.Stores{}, nil, err
	}
	return bootstrap.PostgresStores(pool), pool, nil
}

func openLocker(ctx context.Context, cfg config.Config) (lock.Locker, func(), error) {
	if cfg.Lock.Driver != config.DriverRedis {
		return infralock.NewMemoryLocker(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Lock.RedisAddr,
		Password: cfg.Lock.RedisPassword,
		DB:       cfg.Lock.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis: ping %s: %w", cfg.Lock.RedisAddr, err)
	}
	return infralock.NewRedisLocker(client, cfg.Lock.Prefix), func() { _ = client.Close() }, nil
}
