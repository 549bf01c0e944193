package services

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/yeremiapane/table-points/models"
	"gorm.io/gorm"
)

const (
	MinLedgerPoints      = 1
	MaxLedgerPoints      = 1000
	MaxDescriptionLength = 200

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	defaultPageLimit    = 20
	maxPageLimit        = 100
)

// Provenance -> where a point change came from
type Provenance struct {
	UserAgent string
	IPAddress string
}

// Entry is the input for Ledger.Append.
type Entry struct {
	TableID        uint
	ActingUserID   uint
	Points         int
	Type           string
	Description    string
	PreviousPoints int
	NewPoints      int
	Provenance     Provenance
}

// TransactionFilter narrows Ledger.List. Nil fields are ignored.
type TransactionFilter struct {
	TableID    *uint
	AssignedBy *uint
	Type       *string
	Page       int
	Limit      int
}

type TypeAggregate struct {
	Count       int64   `json:"count"`
	TotalPoints int64   `json:"totalPoints"`
	AvgPoints   float64 `json:"avgPoints"`
}

type DailyAggregate struct {
	Date              string                   `json:"date"`
	TotalTransactions int64                    `json:"totalTransactions"`
	TotalPoints       int64                    `json:"totalPoints"`
	AveragePoints     float64                  `json:"averagePoints"`
	ByType            map[string]TypeAggregate `json:"byType"`
}

// Ledger is the append-only record of point-changing events.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
	loc *time.Location
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: utcNow, loc: time.Local}
}

func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx, now: l.now, loc: l.loc}
}

func (l *Ledger) conn(ctx context.Context) *gorm.DB {
	return l.db.WithContext(ctx)
}

// Append validates and stores e. The snapshot must agree with the signed
// effect of the entry.
func (l *Ledger) Append(ctx context.Context, e Entry) (models.PointTransaction, error) {
	if e.Points < MinLedgerPoints || e.Points > MaxLedgerPoints {
		return models.PointTransaction{}, newError(KindValidationFailed,
			"Punti devono essere tra %d e %d", MinLedgerPoints, MaxLedgerPoints)
	}
	if !models.IsValidTransactionType(e.Type) {
		return models.PointTransaction{}, newError(KindValidationFailed, "Tipo transazione non valido: %s", e.Type)
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return models.PointTransaction{}, newError(KindValidationFailed,
			"Descrizione non può superare i %d caratteri", MaxDescriptionLength)
	}

	entry := models.PointTransaction{
		TableID:     e.TableID,
		AssignedBy:  e.ActingUserID,
		Points:      e.Points,
		Type:        e.Type,
		Description: e.Description,
		IsActive:    true,
		Metadata: models.TransactionMetadata{
			PreviousPoints: e.PreviousPoints,
			NewPoints:      e.NewPoints,
			UserAgent:      truncate(e.Provenance.UserAgent, 255),
			IPAddress:      truncate(e.Provenance.IPAddress, 64),
			Timestamp:      l.now(),
		},
	}
	if entry.PointsDifference() != entry.SignedPoints() {
		return models.PointTransaction{}, newError(KindValidationFailed,
			"Differenza punti incoerente: %d -> %d per %s %d",
			e.PreviousPoints, e.NewPoints, e.Type, e.Points)
	}

	if err := l.conn(ctx).Create(&entry).Error; err != nil {
		return models.PointTransaction{}, fmt.Errorf("append ledger entry: %w", err)
	}
	return entry, nil
}

// HistoryForTable -> active entries of one table, newest first
func (l *Ledger) HistoryForTable(ctx context.Context, tableID uint, limit int) ([]models.PointTransaction, error) {
	var entries []models.PointTransaction
	err := l.conn(ctx).
		Preload("Assigner").
		Where("table_id = ? AND is_active = ?", tableID, true).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit, defaultHistoryLimit, maxHistoryLimit)).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("history for table %d: %w", tableID, err)
	}
	return entries, nil
}

// ActivityForUser -> active entries recorded by one user, newest first
func (l *Ledger) ActivityForUser(ctx context.Context, userID uint, limit int) ([]models.PointTransaction, error) {
	var entries []models.PointTransaction
	err := l.conn(ctx).
		Preload("Table").
		Where("assigned_by = ? AND is_active = ?", userID, true).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit, defaultHistoryLimit, maxHistoryLimit)).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("activity for user %d: %w", userID, err)
	}
	return entries, nil
}

// DailyAggregate groups the active entries of the server-local calendar day
// containing date by type.
func (l *Ledger) DailyAggregate(ctx context.Context, date time.Time) (DailyAggregate, error) {
	local := date.In(l.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc)
	end := start.AddDate(0, 0, 1)

	var rows []struct {
		Type        string
		TxCount     int64
		TotalPoints int64
	}
	err := l.conn(ctx).Model(&models.PointTransaction{}).
		Select("type, COUNT(*) AS tx_count, COALESCE(SUM(points), 0) AS total_points").
		Where("is_active = ? AND created_at >= ? AND created_at < ?", true, start.UTC(), end.UTC()).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return DailyAggregate{}, fmt.Errorf("daily aggregate: %w", err)
	}

	agg := DailyAggregate{
		Date:   start.Format("2006-01-02"),
		ByType: make(map[string]TypeAggregate, len(rows)),
	}
	for _, row := range rows {
		t := TypeAggregate{Count: row.TxCount, TotalPoints: row.TotalPoints}
		if row.TxCount > 0 {
			t.AvgPoints = math.Round(float64(row.TotalPoints)/float64(row.TxCount)*100) / 100
		}
		agg.ByType[row.Type] = t
		agg.TotalTransactions += row.TxCount
		agg.TotalPoints += row.TotalPoints
	}
	if agg.TotalTransactions > 0 {
		agg.AveragePoints = math.Round(float64(agg.TotalPoints)/float64(agg.TotalTransactions)*100) / 100
	}
	return agg, nil
}

// SoftDelete hides an entry from history and aggregates. The table balance
// is not touched; a reversal is a new entry.
func (l *Ledger) SoftDelete(ctx context.Context, id uint) (models.PointTransaction, error) {
	var entry models.PointTransaction
	if err := l.conn(ctx).First(&entry, id).Error; err != nil {
		return entry, notFoundOr(err, "Transazione %d non trovata", id)
	}
	if err := l.conn(ctx).Model(&entry).Update("is_active", false).Error; err != nil {
		return models.PointTransaction{}, fmt.Errorf("soft delete entry %d: %w", id, err)
	}
	entry.IsActive = false
	return entry, nil
}

// List -> one page of active entries matching f, newest first, plus the total
func (l *Ledger) List(ctx context.Context, f TransactionFilter) ([]models.PointTransaction, int64, error) {
	if f.Type != nil && !models.IsValidTransactionType(*f.Type) {
		return nil, 0, newError(KindValidationFailed, "Tipo transazione non valido: %s", *f.Type)
	}
	page, limit := normalizePage(f.Page, f.Limit)

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("is_active = ?", true)
		if f.TableID != nil {
			db = db.Where("table_id = ?", *f.TableID)
		}
		if f.AssignedBy != nil {
			db = db.Where("assigned_by = ?", *f.AssignedBy)
		}
		if f.Type != nil {
			db = db.Where("type = ?", *f.Type)
		}
		return db
	}

	var total int64
	if err := l.conn(ctx).Model(&models.PointTransaction{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	var entries []models.PointTransaction
	err := l.conn(ctx).
		Scopes(scope).
		Preload("Table").
		Preload("Assigner").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return entries, total, nil
}

// SignedSum adds up the signed effect of a table's entries created after
// since (all entries when since is nil).
func (l *Ledger) SignedSum(ctx context.Context, tableID uint, since *time.Time, includeInactive bool) (int64, error) {
	q := l.conn(ctx).Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN -points ELSE points END), 0)", models.TransactionRedeemed).
		Where("table_id = ?", tableID)
	if since != nil {
		q = q.Where("created_at > ?", *since)
	}
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}

	var sum int64
	if err := q.Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("signed sum for table %d: %w", tableID, err)
	}
	return sum, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	return page, clampLimit(limit, defaultPageLimit, maxPageLimit)
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
