package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/utils"
	"gorm.io/gorm"
)

// Drift -> table whose balance disagrees with its ledger
type Drift struct {
	TableID     uint   `json:"tableId"`
	TableNumber int    `json:"tableNumber"`
	QRCode      string `json:"qrCode"`
	Points      int    `json:"points"`
	Expected    int64  `json:"expected"`
	Repaired    bool   `json:"repaired"`
}

type ReconcileReport struct {
	CheckedTables int       `json:"checkedTables"`
	Drifts        []Drift   `json:"drifts"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Reconciler recomputes each active balance from the ledger entries written
// since the table's last reset. Soft-deleted entries still count because
// hiding an entry does not reverse it.
type Reconciler struct {
	db       *gorm.DB
	registry *TableRegistry
	ledger   *Ledger
	repair   bool
	onReport func(ReconcileReport)
}

func NewReconciler(db *gorm.DB, registry *TableRegistry, ledger *Ledger, repair bool) *Reconciler {
	return &Reconciler{db: db, registry: registry, ledger: ledger, repair: repair}
}

// OnReport registers a hook called after every completed run.
func (r *Reconciler) OnReport(fn func(ReconcileReport)) {
	r.onReport = fn
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{StartedAt: utcNow(), Drifts: []Drift{}}

	tables, err := r.registry.Active(ctx)
	if err != nil {
		return report, err
	}

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		expected, err := r.ledger.SignedSum(ctx, table.ID, table.PointsResetAt, true)
		if err != nil {
			return report, err
		}
		report.CheckedTables++
		if expected == int64(table.Points) {
			continue
		}

		drift := Drift{
			TableID:     table.ID,
			TableNumber: table.TableNumber,
			QRCode:      table.QRCode,
			Points:      table.Points,
			Expected:    expected,
		}
		utils.ErrorLogger.WithFields(logrus.Fields{
			"table":    table.QRCode,
			"points":   table.Points,
			"expected": expected,
		}).Warn("ledger drift detected")

		if r.repair && expected >= 0 {
			fixed, err := r.fix(ctx, table, expected)
			if err != nil {
				return report, err
			}
			drift.Repaired = fixed
			if !fixed {
				utils.InfoLogger.WithField("table", table.QRCode).Info("balance changed during reconciliation, repair skipped")
			}
		}
		report.Drifts = append(report.Drifts, drift)
	}

	report.FinishedAt = utcNow()
	utils.InfoLogger.WithFields(logrus.Fields{
		"checked": report.CheckedTables,
		"drifts":  len(report.Drifts),
	}).Info("ledger reconciliation finished")

	if r.onReport != nil {
		r.onReport(report)
	}
	return report, nil
}

// fix only writes when the balance is still the one that was inspected and
// reports whether it did.
func (r *Reconciler) fix(ctx context.Context, table models.Table, expected int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Table{}).
		Where("id = ? AND points = ?", table.ID, table.Points).
		Update("points", expected)
	if res.Error != nil {
		return false, fmt.Errorf("repair table %d: %w", table.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}
