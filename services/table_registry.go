package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/qr"
	"gorm.io/gorm"
)

const (
	MaxTableNameLength     = 50
	MaxTableLocationLength = 100
	MinTableCapacity       = 1
	MaxTableCapacity       = 20
)

// NewTable -> input for TableRegistry.Create
type NewTable struct {
	TableNumber int
	Name        *string
	Location    *string
	Capacity    *int
	CreatedBy   *uint
}

// TableUpdate holds the editable fields; nil means "leave unchanged".
// Points are deliberately absent.
type TableUpdate struct {
	Name     *string
	Location *string
	Capacity *int
	IsActive *bool
}

type TableStats struct {
	TotalTables   int64   `json:"totalTables"`
	TotalPoints   int64   `json:"totalPoints"`
	AveragePoints float64 `json:"averagePoints"`
	MaxPoints     int64   `json:"maxPoints"`
	MinPoints     int64   `json:"minPoints"`
}

// TableRegistry owns table records. It enforces field constraints only,
// business rules live in PointsService.
type TableRegistry struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTableRegistry(db *gorm.DB) *TableRegistry {
	return &TableRegistry{db: db, now: utcNow}
}

// WithTx returns a registry bound to an open transaction.
func (r *TableRegistry) WithTx(tx *gorm.DB) *TableRegistry {
	return &TableRegistry{db: tx, now: r.now}
}

func (r *TableRegistry) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// FindByQrCode -> active table with the given code, case-insensitive
func (r *TableRegistry) FindByQrCode(ctx context.Context, code string) (models.Table, error) {
	var table models.Table
	err := r.conn(ctx).
		Where("qr_code = ? AND is_active = ?", qr.Normalize(code), true).
		First(&table).Error
	if err != nil {
		return table, notFoundOr(err, "Tavolo %s non trovato", qr.Normalize(code))
	}
	return table, nil
}

// findByQrCodeAnyStatus is used where inactive tables must be told apart
// from missing ones.
func (r *TableRegistry) findByQrCodeAnyStatus(ctx context.Context, code string) (models.Table, error) {
	var table models.Table
	err := r.conn(ctx).Where("qr_code = ?", qr.Normalize(code)).First(&table).Error
	if err != nil {
		return table, notFoundOr(err, "Tavolo %s non trovato", qr.Normalize(code))
	}
	return table, nil
}

// Get -> table by id regardless of status
func (r *TableRegistry) Get(ctx context.Context, id uint) (models.Table, error) {
	var table models.Table
	if err := r.conn(ctx).First(&table, id).Error; err != nil {
		return table, notFoundOr(err, "Tavolo %d non trovato", id)
	}
	return table, nil
}

func (r *TableRegistry) Create(ctx context.Context, in NewTable) (models.Table, error) {
	if !qr.ValidTableNumber(in.TableNumber) {
		return models.Table{}, newError(KindValidationFailed,
			"Numero tavolo deve essere tra %d e %d", qr.MinTableNumber, qr.MaxTableNumber)
	}

	name := fmt.Sprintf("Tavolo %d", in.TableNumber)
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		name = strings.TrimSpace(*in.Name)
	}
	if err := validateTableName(name); err != nil {
		return models.Table{}, err
	}
	location, err := normalizeLocation(in.Location)
	if err != nil {
		return models.Table{}, err
	}
	if err := validateCapacity(in.Capacity); err != nil {
		return models.Table{}, err
	}

	code := qr.Format(in.TableNumber)

	var existing int64
	if err := r.conn(ctx).Model(&models.Table{}).
		Where("table_number = ? OR qr_code = ?", in.TableNumber, code).
		Count(&existing).Error; err != nil {
		return models.Table{}, fmt.Errorf("check existing table: %w", err)
	}
	if existing > 0 {
		return models.Table{}, newError(KindDuplicateKey, "Tavolo numero %d già esistente", in.TableNumber)
	}

	table := models.Table{
		TableNumber:      in.TableNumber,
		Name:             name,
		QRCode:           code,
		Points:           0,
		IsActive:         true,
		LastPointsUpdate: r.now(),
		Location:         location,
		Capacity:         in.Capacity,
		CreatedBy:        in.CreatedBy,
	}
	if err := r.conn(ctx).Create(&table).Error; err != nil {
		if isDuplicateKey(err) {
			return models.Table{}, newError(KindDuplicateKey, "Tavolo numero %d già esistente", in.TableNumber)
		}
		return models.Table{}, fmt.Errorf("create table: %w", err)
	}
	return table, nil
}

// Rename trims and stores newName. Inactive tables are treated as missing.
func (r *TableRegistry) Rename(ctx context.Context, id uint, newName string) (models.Table, error) {
	table, err := r.Get(ctx, id)
	if err != nil {
		return table, err
	}
	if !table.IsActive {
		return models.Table{}, newError(KindNotFound, "Tavolo %d non trovato", id)
	}

	name := strings.TrimSpace(newName)
	if err := validateTableName(name); err != nil {
		return models.Table{}, err
	}
	if err := r.conn(ctx).Model(&table).Update("name", name).Error; err != nil {
		return models.Table{}, fmt.Errorf("rename table %d: %w", id, err)
	}
	table.Name = name
	return table, nil
}

// ApplyPointsDelta adds delta to the balance in a single UPDATE so that
// concurrent callers never lose increments. The row is only touched when
// the resulting balance stays non-negative.
func (r *TableRegistry) ApplyPointsDelta(ctx context.Context, id uint, delta int) (models.Table, error) {
	res := r.conn(ctx).Model(&models.Table{}).
		Where("id = ? AND points + ? >= 0", id, delta).
		Updates(map[string]interface{}{
			"points":             gorm.Expr("points + ?", delta),
			"last_points_update": r.now(),
		})
	if res.Error != nil {
		return models.Table{}, fmt.Errorf("apply points delta to table %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		table, err := r.Get(ctx, id)
		if err != nil {
			return models.Table{}, err
		}
		return models.Table{}, newError(KindInsufficientPoints,
			"Punti insufficienti: saldo %d, variazione %d", table.Points, delta)
	}
	return r.Get(ctx, id)
}

// Deactivate soft-deletes the table; points and history stay as they are.
func (r *TableRegistry) Deactivate(ctx context.Context, id uint) (models.Table, error) {
	table, err := r.Get(ctx, id)
	if err != nil {
		return table, err
	}
	if err := r.conn(ctx).Model(&table).Update("is_active", false).Error; err != nil {
		return models.Table{}, fmt.Errorf("deactivate table %d: %w", id, err)
	}
	table.IsActive = false
	return table, nil
}

func (r *TableRegistry) Update(ctx context.Context, id uint, upd TableUpdate) (models.Table, error) {
	table, err := r.Get(ctx, id)
	if err != nil {
		return table, err
	}

	changes := map[string]interface{}{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if err := validateTableName(name); err != nil {
			return models.Table{}, err
		}
		changes["name"] = name
	}
	if upd.Location != nil {
		location, err := normalizeLocation(upd.Location)
		if err != nil {
			return models.Table{}, err
		}
		changes["location"] = location
	}
	if upd.Capacity != nil {
		if err := validateCapacity(upd.Capacity); err != nil {
			return models.Table{}, err
		}
		changes["capacity"] = *upd.Capacity
	}
	if upd.IsActive != nil {
		changes["is_active"] = *upd.IsActive
	}
	if len(changes) == 0 {
		return table, nil
	}

	if err := r.conn(ctx).Model(&table).Updates(changes).Error; err != nil {
		return models.Table{}, fmt.Errorf("update table %d: %w", id, err)
	}
	return r.Get(ctx, id)
}

// List -> one page of active tables in leaderboard order
func (r *TableRegistry) List(ctx context.Context, page, limit int) ([]models.Table, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	if err := r.conn(ctx).Model(&models.Table{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tables: %w", err)
	}

	var tables []models.Table
	err := r.conn(ctx).
		Where("is_active = ?", true).
		Order(rankingOrder).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tables).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list tables: %w", err)
	}
	return tables, total, nil
}

// Active -> every active table ordered by table number
func (r *TableRegistry) Active(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	err := r.conn(ctx).Where("is_active = ?", true).Order("table_number ASC").Find(&tables).Error
	if err != nil {
		return nil, fmt.Errorf("list active tables: %w", err)
	}
	return tables, nil
}

func (r *TableRegistry) Stats(ctx context.Context) (TableStats, error) {
	var stats TableStats
	err := r.conn(ctx).Model(&models.Table{}).
		Select(`COUNT(*) AS total_tables,
			COALESCE(SUM(points), 0) AS total_points,
			COALESCE(AVG(points), 0) AS average_points,
			COALESCE(MAX(points), 0) AS max_points,
			COALESCE(MIN(points), 0) AS min_points`).
		Where("is_active = ?", true).
		Scan(&stats).Error
	if err != nil {
		return stats, fmt.Errorf("table stats: %w", err)
	}
	return stats, nil
}

// ResetAllPoints zeroes every active balance and records the reset time,
// which bounds the ledger window used by reconciliation.
func (r *TableRegistry) ResetAllPoints(ctx context.Context) (int64, error) {
	now := r.now()
	res := r.conn(ctx).Model(&models.Table{}).
		Where("is_active = ?", true).
		Updates(map[string]interface{}{
			"points":             0,
			"last_points_update": now,
			"points_reset_at":    now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("reset points: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *TableRegistry) AttachQRImage(ctx context.Context, id uint, path string) error {
	err := r.conn(ctx).Model(&models.Table{}).Where("id = ?", id).Update("qr_code_image", path).Error
	if err != nil {
		return fmt.Errorf("attach qr image to table %d: %w", id, err)
	}
	return nil
}

func validateTableName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > MaxTableNameLength {
		return newError(KindValidationFailed, "Il nome del tavolo deve essere tra 1 e %d caratteri", MaxTableNameLength)
	}
	return nil
}

func normalizeLocation(location *string) (*string, error) {
	if location == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*location)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > MaxTableLocationLength {
		return nil, newError(KindValidationFailed, "Ubicazione non può superare i %d caratteri", MaxTableLocationLength)
	}
	return &trimmed, nil
}

func validateCapacity(capacity *int) error {
	if capacity == nil {
		return nil
	}
	if *capacity < MinTableCapacity || *capacity > MaxTableCapacity {
		return newError(KindValidationFailed, "Capacità deve essere tra %d e %d", MinTableCapacity, MaxTableCapacity)
	}
	return nil
}

func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindNotFound, format, args...)
	}
	return err
}

func utcNow() time.Time {
	return time.Now().UTC()
}
