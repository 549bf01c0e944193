package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
	"gorm.io/gorm"
)

const seedProvenance = "seed"

type seedUser struct {
	Username, Email, Password, FirstName, LastName, Role string
}

type seedTable struct {
	Number   int
	Name     string
	Location string
	Capacity int
	Points   int
}

var defaultUsers = []seedUser{
	{"admin", "admin@qrtavoli.com", "admin123", "Admin", "Sistema", models.RoleAdmin},
	{"cassiere1", "cassiere1@qrtavoli.com", "cassiere123", "Mario", "Rossi", models.RoleCashier},
	{"cassiere2", "cassiere2@qrtavoli.com", "cassiere123", "Giulia", "Bianchi", models.RoleCashier},
	{"manager", "manager@qrtavoli.com", "manager123", "Luca", "Verdi", models.RoleCashier},
}

var defaultTables = []seedTable{
	{1, "Tavolo 1", "Sala principale", 4, 85},
	{2, "Tavolo VIP", "Zona riservata", 6, 92},
	{3, "Tavolo 3", "Sala principale", 4, 34},
	{4, "Tavolo Famiglia", "Zona bambini", 8, 67},
	{5, "Tavolo 5", "Sala principale", 2, 23},
	{6, "Tavolo Terrazza", "Terrazza esterna", 4, 78},
	{7, "Tavolo 7", "Sala principale", 4, 45},
	{8, "Tavolo Romantico", "Zona intima", 2, 56},
	{9, "Tavolo 9", "Sala principale", 6, 89},
	{10, "Tavolo Giardino", "Giardino", 4, 41},
}

// SeedReport -> what Seed created
type SeedReport struct {
	Users        int
	Tables       int
	Transactions int
	Skipped      bool
}

// Seeder fills an empty database with demo users and tables. Starting
// balances go through the points service as ADJUSTMENT entries so the
// ledger matches every balance from the first run.
type Seeder struct {
	DB         *gorm.DB
	Registry   *services.TableRegistry
	Points     *services.PointsService
	BcryptCost int
}

// Run does nothing when any user already exists.
func (s *Seeder) Run(ctx context.Context) (SeedReport, error) {
	var report SeedReport

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return report, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		report.Skipped = true
		utils.InfoLogger.Info("seed skipped: database not empty")
		return report, nil
	}

	var admin, cashier models.User
	for _, su := range defaultUsers {
		hash, err := utils.HashPassword(su.Password, s.BcryptCost)
		if err != nil {
			return report, err
		}
		u := models.User{
			Username:  su.Username,
			Email:     su.Email,
			Password:  hash,
			FirstName: su.FirstName,
			LastName:  su.LastName,
			Role:      su.Role,
			IsActive:  true,
		}
		if err := s.DB.WithContext(ctx).Create(&u).Error; err != nil {
			return report, fmt.Errorf("seed user %s: %w", su.Username, err)
		}
		report.Users++
		switch {
		case u.Role == models.RoleAdmin && admin.ID == 0:
			admin = u
		case u.Role == models.RoleCashier && cashier.ID == 0:
			cashier = u
		}
	}
	if admin.ID == 0 || cashier.ID == 0 {
		return report, errors.New("seed: admin and cashier users are required")
	}

	actor := services.Actor{ID: cashier.ID, Role: cashier.Role}
	step := s.Points.MaxPointsPerTransaction()
	for _, st := range defaultTables {
		name, location, capacity := st.Name, st.Location, st.Capacity
		table, err := s.Registry.Create(ctx, services.NewTable{
			TableNumber: st.Number,
			Name:        &name,
			Location:    &location,
			Capacity:    &capacity,
			CreatedBy:   &admin.ID,
		})
		if err != nil {
			return report, fmt.Errorf("seed table %d: %w", st.Number, err)
		}
		report.Tables++

		for left := st.Points; left > 0; left -= step {
			n := min(left, step)
			_, err := s.Points.Award(ctx, services.PointsRequest{
				QRCode:      table.QRCode,
				Points:      n,
				Type:        models.TransactionAdjustment,
				Description: "Punti iniziali",
				Actor:       actor,
				Provenance:  services.Provenance{UserAgent: seedProvenance, IPAddress: "127.0.0.1"},
			})
			if err != nil {
				return report, fmt.Errorf("seed points for %s: %w", table.QRCode, err)
			}
			report.Transactions++
		}
	}

	utils.InfoLogger.WithField("users", report.Users).WithField("tables", report.Tables).Info("database seeded")
	return report, nil
}
