package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/jobswipe/internal/config"
)

func TestNewDB_Sqlite(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = filepath.Join(t.TempDir(), "outbox.db")

	database, err := NewDB(cfg)
	require.NoError(t, err)
	assert.True(t, database.Migrator().HasTable(&PendingAction{}))

	now := database.NowFunc()
	assert.Equal(t, 0, now.Nanosecond()%1e6)
}

func TestNewDB_UnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "postgres"

	_, err := NewDB(cfg)
	assert.ErrorContains(t, err, "unsupported db driver")
}
