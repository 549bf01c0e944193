package models

import "time"

const (
	RoleCustomer = "customer"
	RoleCashier  = "cashier"
	RoleAdmin    = "admin"
)

type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Username  string     `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"type:varchar(255);not null" json:"-"`
	FirstName string     `gorm:"type:varchar(50)" json:"firstName"`
	LastName  string     `gorm:"type:varchar(50)" json:"lastName"`
	Role      string     `gorm:"type:varchar(20);not null;default:'cashier'" json:"role"`
	IsActive  bool       `gorm:"not null;default:true" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedBy *uint      `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// FullName -> "First Last", falls back to the username
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// IsValidRole reports whether role is one the service knows about.
func IsValidRole(role string) bool {
	return role == RoleCustomer || role == RoleCashier || role == RoleAdmin
}
