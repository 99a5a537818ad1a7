package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/stackpay/internal/models"
)

// CustomerStore exposes the customer lookups the payment path needs.
type CustomerStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	// MainAddress returns the customer's designated main address, or
	// (nil, nil) when none is flagged.
	MainAddress(ctx context.Context, customerID uuid.UUID) (*models.Address, error)
}

type customerStore struct {
	db *gorm.DB
}

// NewCustomerStore creates a CustomerStore backed by the given DB.
func NewCustomerStore(db *gorm.DB) CustomerStore {
	return &customerStore{db: db}
}

func (s *customerStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *customerStore) MainAddress(ctx context.Context, customerID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND main_address = ?", customerID, true).
		First(&address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &address, nil
}
