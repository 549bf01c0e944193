package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("MAX_POINTS_PER_TRANSACTION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, 100, cfg.MaxPointsPerTransaction)
	assert.Equal(t, "@every 1h", cfg.ReconcileSchedule)
	assert.Equal(t, "points.changed", cfg.PointsEventsQueue)
	assert.False(t, cfg.ReconcileRepair)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_PORT", "")
	t.Setenv("JWT_EXPIRE", "7d")
	t.Setenv("MAX_POINTS_PER_TRANSACTION", "250")
	t.Setenv("RECONCILE_REPAIR", "true")
	t.Setenv("CACHE_TTL", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpire)
	assert.Equal(t, 250, cfg.MaxPointsPerTransaction)
	assert.True(t, cfg.ReconcileRepair)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "oracle")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MAX_POINTS_PER_TRANSACTION", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestInitDBSqlite(t *testing.T) {
	cfg := Config{DBDriver: "sqlite", DBDSN: "file:config_test?mode=memory&cache=shared", LogLevel: "warn"}
	db, err := InitDB(cfg)
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestNewRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, NewRedisClient(Config{}))
}
