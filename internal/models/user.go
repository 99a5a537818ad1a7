package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents an account that can authenticate against the API.
type User struct {
	BaseModel
	Email        string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `gorm:"default:customer" json:"role"`
	IsVerified   bool      `json:"is_verified"`
	Customer     *Customer `json:"customer,omitempty"`
}

// EmailVerification keeps track of verification codes mailed to users.
type EmailVerification struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	IsUsed    bool      `json:"is_used"`
}
