package models

import "time"

// Table -> one physical table, also the loyalty account its QR code points to
type Table struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	TableNumber      int        `gorm:"not null;uniqueIndex" json:"tableNumber"`
	Name             string     `gorm:"type:varchar(50);not null" json:"name"`
	QRCode           string     `gorm:"column:qr_code;type:varchar(16);not null;uniqueIndex" json:"qrCode"`
	QRCodeImage      *string    `gorm:"column:qr_code_image;type:varchar(255)" json:"qrCodeImage"`
	Points           int        `gorm:"not null;default:0;index:idx_tables_ranking,priority:1" json:"points"`
	IsActive         bool       `gorm:"not null;default:true;index" json:"isActive"`
	LastPointsUpdate time.Time  `gorm:"not null;index:idx_tables_ranking,priority:2" json:"lastPointsUpdate"`
	PointsResetAt    *time.Time `json:"pointsResetAt,omitempty"`
	Location         *string    `gorm:"type:varchar(100)" json:"location"`
	Capacity         *int       `json:"capacity"`
	CreatedBy        *uint      `json:"createdBy,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updatedAt"`
}
