package services

import (
	"context"
	"fmt"

	"github.com/yeremiapane/table-points/models"
	"gorm.io/gorm"
)

// rankingOrder: more points first, then whoever reached the balance
// earlier. The id keeps listings stable.
const rankingOrder = "points DESC, last_points_update ASC, id ASC"

// LeaderboardEntry -> table plus its rank, as shown to customers
type LeaderboardEntry struct {
	Position         int     `json:"position"`
	Medal            string  `json:"medal"`
	ID               uint    `json:"id"`
	TableNumber      int     `json:"tableNumber"`
	Name             string  `json:"name"`
	QRCode           string  `json:"qrCode"`
	Points           int     `json:"points"`
	Location         *string `json:"location"`
	Capacity         *int    `json:"capacity"`
	LastPointsUpdate string  `json:"lastPointsUpdate"`
}

type Ranking struct {
	db       *gorm.DB
	registry *TableRegistry
}

func NewRanking(db *gorm.DB, registry *TableRegistry) *Ranking {
	return &Ranking{db: db, registry: registry}
}

// Leaderboard -> all active tables in ranking order
func (r *Ranking) Leaderboard(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order(rankingOrder).
		Find(&tables).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return tables, nil
}

// PositionOf counts the active tables strictly ahead of table. Tables with
// an identical key share a position.
func (r *Ranking) PositionOf(ctx context.Context, table models.Table) (int, error) {
	var ahead int64
	err := r.db.WithContext(ctx).Model(&models.Table{}).
		Where("is_active = ?", true).
		Where("points > ? OR (points = ? AND last_points_update < ?)",
			table.Points, table.Points, table.LastPointsUpdate).
		Count(&ahead).Error
	if err != nil {
		return 0, fmt.Errorf("position of table %d: %w", table.ID, err)
	}
	return int(ahead) + 1, nil
}

func (r *Ranking) PositionOfQr(ctx context.Context, code string) (int, error) {
	table, err := r.registry.FindByQrCode(ctx, code)
	if err != nil {
		return 0, err
	}
	return r.PositionOf(ctx, table)
}

// Medal -> decoration for the podium positions
func Medal(position int) string {
	switch position {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return ""
}

// Entries ranks one page of the leaderboard. The first position comes from
// PositionOf so a tie that straddles the page boundary keeps its shared
// position.
func (r *Ranking) Entries(ctx context.Context, tables []models.Table, offset int) ([]LeaderboardEntry, error) {
	if len(tables) == 0 || offset == 0 {
		return RankEntries(tables, offset), nil
	}
	first, err := r.PositionOf(ctx, tables[0])
	if err != nil {
		return nil, err
	}
	return rankFrom(tables, offset, first), nil
}

// RankEntries decorates an already ordered slice; offset is the number of
// tables that precede tables[0]. Tables with an identical key share the
// position of the first of them, as PositionOf reports it.
func RankEntries(tables []models.Table, offset int) []LeaderboardEntry {
	return rankFrom(tables, offset, offset+1)
}

func rankFrom(tables []models.Table, offset, first int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(tables))
	pos := first
	for i, t := range tables {
		if i > 0 && !sameRank(tables[i-1], t) {
			pos = offset + i + 1
		}
		entries = append(entries, LeaderboardEntry{
			Position:         pos,
			Medal:            Medal(pos),
			ID:               t.ID,
			TableNumber:      t.TableNumber,
			Name:             t.Name,
			QRCode:           t.QRCode,
			Points:           t.Points,
			Location:         t.Location,
			Capacity:         t.Capacity,
			LastPointsUpdate: t.LastPointsUpdate.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return entries
}

func sameRank(a, b models.Table) bool {
	return a.Points == b.Points && a.LastPointsUpdate.Equal(b.LastPointsUpdate)
}
