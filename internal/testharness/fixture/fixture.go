// Package fixture assembles an AppContext against in-process fakes: the
// STOMP broker from testharness, an httptest REST server, miniredis and a
// throwaway sqlite outbox.
package fixture

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/jobswipe/internal/app"
	"github.com/oggyb/jobswipe/internal/cache"
	"github.com/oggyb/jobswipe/internal/config"
	"github.com/oggyb/jobswipe/internal/db"
	"github.com/oggyb/jobswipe/internal/logger"
	"github.com/oggyb/jobswipe/internal/metrics"
	"github.com/oggyb/jobswipe/internal/testharness"
)

// Env is everything a service test talks to.
type Env struct {
	App      *app.AppContext
	Broker   *testharness.Broker
	Redis    *miniredis.Miniredis
	Registry *prometheus.Registry
}

// Token returns an unsigned-for-production JWT whose subject is userID.
func Token(t testing.TB, userID int64) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// New wires an AppContext for userID. api serves the REST endpoints under
// /api.
func New(t testing.TB, userID int64, api http.Handler) *Env {
	t.Helper()

	broker := testharness.NewBroker(t)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)

	cfg := &config.Config{}
	cfg.App.ENV = "test"
	cfg.API.BaseURL = srv.URL + "/api"
	cfg.API.Timeout = 5 * time.Second
	cfg.Realtime.URL = broker.URL()
	cfg.Realtime.ReconnectDelay = 50 * time.Millisecond
	cfg.Realtime.HandshakeTimeout = time.Second
	cfg.Auth.Token = Token(t, userID)
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = filepath.Join(t.TempDir(), "outbox.db")
	cfg.Redis.Addr = mr.Addr()
	cfg.Chat.PageSize = 20

	database, err := db.NewDB(cfg)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	rc := &cache.RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	appCtx := app.New(cfg, database, rc, logger.Discard(), metrics.New(reg))
	t.Cleanup(appCtx.Close)

	return &Env{App: appCtx, Broker: broker, Redis: mr, Registry: reg}
}
