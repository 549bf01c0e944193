package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-points/models"
	"gorm.io/gorm"
)

func TestReconcilerReportsDrift(t *testing.T) {
	env := newTestEnv(t)
	first := env.createTable(t, 1)
	env.createTable(t, 2)
	env.award(t, "TABLE_1", 40, "")
	env.award(t, "TABLE_2", 10, "")

	require.NoError(t, env.db.Model(&models.Table{}).Where("id = ?", first.ID).UpdateColumn("points", 55).Error)

	reconciler := NewReconciler(env.db, env.registry, env.ledger, false)
	var reported []ReconcileReport
	reconciler.OnReport(func(r ReconcileReport) { reported = append(reported, r) })

	report, err := reconciler.Run(testCtx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CheckedTables)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, "TABLE_1", report.Drifts[0].QRCode)
	assert.Equal(t, 55, report.Drifts[0].Points)
	assert.Equal(t, int64(40), report.Drifts[0].Expected)
	assert.False(t, report.Drifts[0].Repaired)
	assert.Len(t, reported, 1)

	current, err := env.registry.Get(testCtx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 55, current.Points)
}

func TestReconcilerRepairs(t *testing.T) {
	env := newTestEnv(t)
	table := env.createTable(t, 1)
	env.award(t, table.QRCode, 40, "")
	require.NoError(t, env.db.Model(&models.Table{}).Where("id = ?", table.ID).UpdateColumn("points", 7).Error)

	report, err := NewReconciler(env.db, env.registry, env.ledger, true).Run(testCtx)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.True(t, report.Drifts[0].Repaired)

	current, err := env.registry.Get(testCtx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, current.Points)
}

func TestReconcilerCountsSoftDeletedAndHonoursReset(t *testing.T) {
	env := newTestEnv(t)
	table := env.createTable(t, 1)
	env.award(t, table.QRCode, 20, "")
	hidden := env.award(t, table.QRCode, 5, "")
	_, err := env.ledger.SoftDelete(testCtx, hidden.Transaction.ID)
	require.NoError(t, err)

	reconciler := NewReconciler(env.db, env.registry, env.ledger, false)
	report, err := reconciler.Run(testCtx)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)

	_, err = env.registry.ResetAllPoints(testCtx)
	require.NoError(t, err)
	env.award(t, table.QRCode, 3, "")

	report, err = reconciler.Run(testCtx)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestReconcilerSkipsBalanceChangedMeanwhile(t *testing.T) {
	env := newTestEnv(t)
	table := env.createTable(t, 1)
	env.award(t, table.QRCode, 40, "")
	require.NoError(t, env.db.Model(&models.Table{}).Where("id = ?", table.ID).UpdateColumn("points", 7).Error)

	// Another writer moves the balance between the inspection and the repair.
	fired := false
	require.NoError(t, env.db.Callback().Update().Before("gorm:update").Register("test:concurrent_write", func(tx *gorm.DB) {
		if fired {
			return
		}
		fired = true
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec("UPDATE tables SET points = ? WHERE id = ?", 12, table.ID).Error)
	}))

	report, err := NewReconciler(env.db, env.registry, env.ledger, true).Run(testCtx)
	require.NoError(t, err)
	assert.True(t, fired)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, 7, report.Drifts[0].Points)
	assert.False(t, report.Drifts[0].Repaired)

	current, err := env.registry.Get(testCtx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, current.Points)
}
