package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleManager || r == RoleAdmin
}

// IsStaff reports whether r may manage catalog and orders.
func (r Role) IsStaff() bool {
	return r == RoleManager || r == RoleAdmin
}

const (
	MaxFailedLoginAttempts = 5
	LockoutDuration        = 15 * time.Minute
)

// User represents an account of the store.
type User struct {
	Entity
	Email               string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash        string     `json:"-" gorm:"type:varchar(255);not null"`
	FirstName           string     `json:"first_name" gorm:"type:varchar(100)"`
	LastName            string     `json:"last_name" gorm:"type:varchar(100)"`
	Phone               string     `json:"phone" gorm:"type:varchar(30)"`
	Role                Role       `json:"role" gorm:"type:varchar(20);not null"`
	IsActive            bool       `json:"is_active"`
	LastLoginAt         *time.Time `json:"last_login_at"`
	FailedLoginAttempts int        `json:"-"`
	LockoutEnd          *time.Time `json:"-"`
	// PaymentCustomerID is the customer record at the payment provider.
	PaymentCustomerID *string `json:"-" gorm:"type:varchar(100)"`
	Version           int     `json:"version" gorm:"not null;default:1"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsLockedOut reports whether login is blocked at now.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}

// RecordSuccessfulLogin clears failure state and stamps the login time.
func (u *User) RecordSuccessfulLogin(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockoutEnd = nil
	u.LastLoginAt = &now
}

// RefreshToken is a long-lived, revocable token exchanged for access tokens.
type RefreshToken struct {
	Entity
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Token     string    `gorm:"uniqueIndex;type:varchar(255);not null"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
}

// IsUsable reports whether the token can still be exchanged at now.
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// AddressType says what an address may be used for.
type AddressType string

const (
	AddressTypeShipping AddressType = "shipping"
	AddressTypeBilling  AddressType = "billing"
	AddressTypeBoth     AddressType = "both"
)

// Address is a postal address owned by a user.
type Address struct {
	Entity
	UserID       uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;index"`
	AddressLine1 string      `json:"address_line1" gorm:"type:varchar(255);not null"`
	AddressLine2 string      `json:"address_line2" gorm:"type:varchar(255)"`
	City         string      `json:"city" gorm:"type:varchar(100);not null"`
	State        string      `json:"state" gorm:"type:varchar(100)"`
	PostalCode   string      `json:"postal_code" gorm:"type:varchar(20);not null"`
	Country      string      `json:"country" gorm:"type:varchar(100);not null"`
	Phone        string      `json:"phone" gorm:"type:varchar(30)"`
	IsDefault    bool        `json:"is_default"`
	AddressType  AddressType `json:"address_type" gorm:"type:varchar(20);not null"`
}
