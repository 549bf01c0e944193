package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-points/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testCtx = context.Background()

// setupTestDB opens a private in-memory database for one test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Table{}, &models.PointTransaction{}))
	return db
}

// fixedClock returns a clock that advances by one second per call.
func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(time.Second)
		return now
	}
}

type testEnv struct {
	db       *gorm.DB
	registry *TableRegistry
	ledger   *Ledger
	ranking  *Ranking
	points   *PointsService
	notifier *Notifier
	cashier  models.User
	admin    models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	cashier := models.User{Username: "cassiere", Email: "cassiere@example.com", Password: "x", Role: models.RoleCashier}
	admin := models.User{Username: "admin", Email: "admin@example.com", Password: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&cashier).Error)
	require.NoError(t, db.Create(&admin).Error)

	registry := NewTableRegistry(db)
	ledger := NewLedger(db)
	notifier := NewNotifier()
	return &testEnv{
		db:       db,
		registry: registry,
		ledger:   ledger,
		ranking:  NewRanking(db, registry),
		points:   NewPointsService(db, registry, ledger, notifier, DefaultMaxPointsPerTransaction),
		notifier: notifier,
		cashier:  cashier,
		admin:    admin,
	}
}

func (e *testEnv) createTable(t *testing.T, number int) models.Table {
	t.Helper()
	table, err := e.registry.Create(testCtx, NewTable{TableNumber: number})
	require.NoError(t, err)
	return table
}

func (e *testEnv) cashierActor() Actor {
	return Actor{ID: e.cashier.ID, Role: e.cashier.Role}
}

func (e *testEnv) award(t *testing.T, code string, points int, typ string) PointsResult {
	t.Helper()
	res, err := e.points.Award(testCtx, PointsRequest{QRCode: code, Points: points, Type: typ, Actor: e.cashierActor()})
	require.NoError(t, err)
	return res
}
