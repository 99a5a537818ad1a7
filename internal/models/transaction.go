package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Supported payment providers.
const (
	ProviderPayMob = "PayMob"
)

// Transaction lifecycle states.
const (
	TransactionStateInitiated = "initiated"
	TransactionStatePending   = "pending"
	TransactionStateSucceeded = "succeeded"
	TransactionStateFailed    = "failed"
	TransactionStateRefunded  = "refunded"
)

// TerminalTransactionState reports whether a state accepts no further
// webhook transitions.
func TerminalTransactionState(state string) bool {
	switch state {
	case TransactionStateSucceeded, TransactionStateFailed, TransactionStateRefunded:
		return true
	}
	return false
}

// Transaction is one payment attempt. Rows are append-only: state moves
// through the orchestration and webhook paths and nothing ever deletes them.
type Transaction struct {
	BaseModel
	CustomerID      uuid.UUID       `gorm:"type:uuid;index" json:"customer_id"`
	Customer        *Customer       `json:"customer,omitempty"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	PaymentProvider string          `gorm:"default:PayMob" json:"payment_provider"`
	State           string          `gorm:"default:initiated" json:"state"`
	// MerchantOrderID is generated once at creation and acts as the
	// idempotency key toward the provider. Never mutated.
	MerchantOrderID string `gorm:"size:36;uniqueIndex" json:"merchant_order_id"`
	// TransactionID is the provider-assigned transaction id, set only when a
	// webhook arrives.
	TransactionID string `gorm:"size:64;index" json:"transaction_id"`
	// OrderID is the provider-assigned order id, set once the provider call
	// succeeds.
	OrderID      string `gorm:"size:200" json:"order_id"`
	PaymentToken string `gorm:"type:text" json:"payment_token"`
}

// BeforeCreate assigns the primary key and a fresh merchant order id.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if err := t.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if t.MerchantOrderID == "" {
		t.MerchantOrderID = uuid.NewString()
	}
	if t.State == "" {
		t.State = TransactionStateInitiated
	}
	if t.PaymentProvider == "" {
		t.PaymentProvider = ProviderPayMob
	}
	return nil
}
