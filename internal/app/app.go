// Package app wires configuration, storage and the HTTP server together.
package app

import (
	"context"
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/suteetoe/thing-service/internal/assets"
	"github.com/suteetoe/thing-service/internal/repository"
	"github.com/suteetoe/thing-service/internal/server"
	"github.com/suteetoe/thing-service/pkg/cache"
	"github.com/suteetoe/thing-service/pkg/config"
	"github.com/suteetoe/thing-service/pkg/database"
	"github.com/suteetoe/thing-service/pkg/jwtutil"
	"github.com/suteetoe/thing-service/pkg/logger"
	"github.com/suteetoe/thing-service/prometheus"
	"go.uber.org/zap"
)

// Run connects to the database, builds the server and serves until ctx is done
func Run(ctx context.Context, cfg *config.Config) error {
	log := logger.GetLogger()

	settings, err := cfg.DatabaseSettings()
	if err != nil {
		return err
	}

	// Initialize database
	db, err := database.Open(settings, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Initialize Prometheus metrics
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prometheus.NewMetrics(cfg.Metrics.Prefix, registry)
	log.Info("Prometheus metrics initialized", zap.String("metrics_prefix", cfg.Metrics.Prefix))

	thingCache, closeCache := openCache(ctx, cfg)
	defer closeCache()

	things := repository.NewCachedThingRepository(
		repository.NewGormThingRepository(db, metrics),
		thingCache,
		cfg.Cache.TTL,
	)

	pipeline, err := assets.NewPipeline()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Deps{
		Config:   cfg,
		DB:       db,
		Things:   things,
		Users:    repository.NewGormUserRepository(db, metrics),
		JWT:      NewJWT(cfg),
		Assets:   pipeline,
		Metrics:  metrics,
		Registry: registry,
	})
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	return srv.Run(ctx)
}

// NewJWT creates the token utility from cfg
func NewJWT(cfg *config.Config) *jwtutil.JWTUtil {
	return jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
		Issuer:          cfg.ServiceName,
	})
}

// openCache connects to Redis when configured. An unreachable Redis disables
// caching instead of failing startup.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, func()) {
	log := logger.GetLogger()
	if cfg.Cache.RedisAddr == "" {
		return cache.NoopCache{}, func() {}
	}

	redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Prefix:   cfg.ServiceName + ":",
	})
	if err != nil {
		log.Warn("Redis unavailable, caching disabled",
			zap.String("addr", cfg.Cache.RedisAddr),
			zap.Error(err))
		return cache.NoopCache{}, func() {}
	}

	log.Info("Redis cache connected", zap.String("addr", cfg.Cache.RedisAddr))
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			log.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
}
