package models

import "time"

// Ledger entry types. The stored Points is always a positive magnitude,
// the direction comes from the type.
const (
	TransactionEarned     = "EARNED"
	TransactionRedeemed   = "REDEEMED"
	TransactionAdjustment = "ADJUSTMENT"
	TransactionBonus      = "BONUS"
)

// TransactionMetadata -> balance snapshot plus request provenance
type TransactionMetadata struct {
	PreviousPoints int       `gorm:"not null" json:"previousPoints"`
	NewPoints      int       `gorm:"not null" json:"newPoints"`
	UserAgent      string    `gorm:"type:varchar(255)" json:"userAgent,omitempty"`
	IPAddress      string    `gorm:"type:varchar(64)" json:"ipAddress,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// PointTransaction -> one immutable point-changing event
type PointTransaction struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	TableID     uint                `gorm:"not null;index:idx_tx_table_created,priority:1" json:"tableId"`
	Table       *Table              `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"table,omitempty"`
	AssignedBy  uint                `gorm:"not null;index:idx_tx_user_created,priority:1" json:"assignedBy"`
	Assigner    *User               `gorm:"foreignKey:AssignedBy;references:ID" json:"assigner,omitempty"`
	Points      int                 `gorm:"not null" json:"points"`
	Type        string              `gorm:"type:varchar(20);not null;default:'EARNED';index" json:"type"`
	Description string              `gorm:"type:varchar(200)" json:"description"`
	Metadata    TransactionMetadata `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`
	IsActive    bool                `gorm:"not null;default:true;index" json:"isActive"`
	CreatedAt   time.Time           `gorm:"not null;index:idx_tx_table_created,priority:2,sort:desc;index:idx_tx_user_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// Sign returns +1 for entries that add to the balance and -1 for redemptions.
func (t PointTransaction) Sign() int {
	if t.Type == TransactionRedeemed {
		return -1
	}
	return 1
}

// SignedPoints -> effect of the entry on the table balance
func (t PointTransaction) SignedPoints() int {
	return t.Sign() * t.Points
}

// PointsDifference mirrors newPoints - previousPoints from the snapshot.
func (t PointTransaction) PointsDifference() int {
	return t.Metadata.NewPoints - t.Metadata.PreviousPoints
}

// IsValidTransactionType reports whether typ is one of the four ledger types.
func IsValidTransactionType(typ string) bool {
	switch typ {
	case TransactionEarned, TransactionRedeemed, TransactionAdjustment, TransactionBonus:
		return true
	}
	return false
}
