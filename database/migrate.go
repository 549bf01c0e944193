package database

import (
	"fmt"

	"github.com/yeremiapane/table-points/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the users, tables and point_transactions
// schema.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Table{},
		&models.PointTransaction{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
