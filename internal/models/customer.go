package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the payment-facing profile attached to a user account.
type Customer struct {
	BaseModel
	UserID       uuid.UUID     `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	User         *User         `json:"-"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	PhoneNumber  string        `gorm:"uniqueIndex" json:"phone_number"`
	DateOfBirth  *time.Time    `json:"date_of_birth"`
	Country      string        `gorm:"default:EG" json:"country"`
	Addresses    []Address     `json:"addresses,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// Address is a customer delivery/billing address. At most one address per
// customer carries the main flag; the profile handler keeps that invariant.
type Address struct {
	BaseModel
	CustomerID      uuid.UUID `gorm:"type:uuid;index" json:"customer_id"`
	Line            string    `json:"line"`
	State           string    `json:"state"`
	City            string    `json:"city"`
	ApartmentNumber string    `json:"apartment_number"`
	BuildingNumber  string    `json:"building_number"`
	PostalCode      string    `json:"postal_code"`
	Country         string    `json:"country"`
	MainAddress     bool      `gorm:"index" json:"main_address"`
}

// KYC document types.
const (
	KYCDocumentNationalID = "national_id"
	KYCDocumentPassport   = "passport"
)

// KYC review states.
const (
	KYCStatusPending     = "pending"
	KYCStatusUnderReview = "under_review"
	KYCStatusApproved    = "approved"
	KYCStatusRejected    = "rejected"
)

// KYCDocument tracks identity review for a customer. Document files live in
// external storage; only the reference and review state are recorded here.
type KYCDocument struct {
	BaseModel
	CustomerID   uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"customer_id"`
	DocumentType string     `gorm:"default:national_id" json:"document_type"`
	DocumentID   string     `json:"document_id"`
	Status       string     `gorm:"default:pending" json:"status"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
}
