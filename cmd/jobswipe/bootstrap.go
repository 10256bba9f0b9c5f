package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/oggyb/jobswipe/internal/app"
	"github.com/oggyb/jobswipe/internal/cache"
	"github.com/oggyb/jobswipe/internal/config"
	"github.com/oggyb/jobswipe/internal/db"
	"github.com/oggyb/jobswipe/internal/logger"
	"github.com/oggyb/jobswipe/internal/metrics"
)

// bootstrap loads config and wires the shared dependencies.
func bootstrap(ctx context.Context) (*app.AppContext, *prometheus.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init db: %w", err)
	}

	// Redis is optional; without it the badge is not mirrored
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache = cache.NewRedisCache(cfg)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, running without mirror", "addr", cfg.Redis.Addr, "err", err)
			_ = redisCache.Close()
			redisCache = nil
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return app.New(cfg, database, redisCache, log, metrics.New(reg)), reg, nil
}
