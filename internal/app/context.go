package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/jobswipe/internal/api"
	"github.com/oggyb/jobswipe/internal/auth"
	"github.com/oggyb/jobswipe/internal/cache"
	"github.com/oggyb/jobswipe/internal/config"
	"github.com/oggyb/jobswipe/internal/metrics"
	"github.com/oggyb/jobswipe/internal/realtime"
	"github.com/oggyb/jobswipe/internal/repository"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisCache  *cache.RedisCache // nil when no Redis is configured
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Credentials auth.CredentialSource
	API         *api.Client
	Realtime    *realtime.Manager
	Outbox      *repository.OutboxRepository
}

// New creates a new AppContext and the clients derived from cfg.
func New(
	cfg *config.Config,
	db *gorm.DB,
	rdb *cache.RedisCache,
	logger *slog.Logger,
	mt *metrics.Metrics,
) *AppContext {
	creds := auth.FromConfig(cfg)
	return &AppContext{
		Config:      cfg,
		DB:          db,
		RedisCache:  rdb,
		Logger:      logger,
		Metrics:     mt,
		Credentials: creds,
		API:         api.NewFromConfig(cfg, creds),
		Realtime: realtime.NewManager(
			realtime.ConfigFrom(cfg),
			creds,
			realtime.WithLogger(logger.With("subsystem", "realtime")),
			realtime.WithMetrics(mt),
		),
		Outbox: repository.NewOutboxRepository(db),
	}
}

// UserID returns the id of the signed-in user, read from the credential.
func (a *AppContext) UserID() (int64, error) {
	token, err := auth.Require(a.Credentials)
	if err != nil {
		return 0, err
	}
	return auth.UserID(token)
}

// Close releases live connections.
func (a *AppContext) Close() {
	a.Realtime.Close()
	if a.RedisCache != nil {
		_ = a.RedisCache.Close()
	}
}
