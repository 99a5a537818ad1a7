// Package repository provides the data access layer for stackpay.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/stackpay/internal/models"
)

// TransactionFilter narrows List results.
type TransactionFilter struct {
	CustomerID *uuid.UUID
	State      string
	Limit      int
	Offset     int
}

// TransactionStore defines transaction persistence with atomic state
// transitions. Mutations of an existing row go through ApplyLocked, which
// serializes against concurrent webhook or retry updates to the same row.
type TransactionStore interface {
	// Atomic runs fn inside a database transaction. Callbacks registered via
	// AfterCommit on the scoped store run only once the transaction has
	// durably committed and are dropped on rollback.
	Atomic(ctx context.Context, fn func(tx TransactionStore) error) error
	// AfterCommit registers a callback for the end of the enclosing atomic
	// unit. Outside an atomic unit the callback runs immediately.
	AfterCommit(fn func())

	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Transaction, error)
	// FindByProviderTransactionID returns (nil, nil) when no row carries the
	// provider-assigned transaction id yet.
	FindByProviderTransactionID(ctx context.Context, providerTxnID string) (*models.Transaction, error)
	// ApplyLocked re-fetches the row with SELECT ... FOR UPDATE inside a
	// transaction and passes it to apply. The returned column map is
	// persisted; a nil map leaves the row untouched.
	ApplyLocked(ctx context.Context, id uuid.UUID, apply func(txn *models.Transaction) map[string]any) error
	List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error)
}

// transactionStore implements TransactionStore on gorm.
type transactionStore struct {
	db          *gorm.DB
	afterCommit []func()
	scoped      bool
}

// NewTransactionStore creates a TransactionStore backed by the given DB.
func NewTransactionStore(db *gorm.DB) TransactionStore {
	return &transactionStore{db: db}
}

func (s *transactionStore) Atomic(ctx context.Context, fn func(tx TransactionStore) error) error {
	scoped := &transactionStore{scoped: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped.db = tx
		return fn(scoped)
	})
	if err != nil {
		return err
	}
	for _, cb := range scoped.afterCommit {
		cb()
	}
	return nil
}

func (s *transactionStore) AfterCommit(fn func()) {
	if !s.scoped {
		fn()
		return
	}
	s.afterCommit = append(s.afterCommit, fn)
}

func (s *transactionStore) Create(ctx context.Context, txn *models.Transaction) error {
	return s.db.WithContext(ctx).Create(txn).Error
}

func (s *transactionStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *transactionStore) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.WithContext(ctx).
		Where("merchant_order_id = ?", merchantOrderID).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *transactionStore) FindByProviderTransactionID(ctx context.Context, providerTxnID string) (*models.Transaction, error) {
	if providerTxnID == "" {
		return nil, nil
	}
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", providerTxnID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *transactionStore) ApplyLocked(ctx context.Context, id uuid.UUID, apply func(txn *models.Transaction) map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, "id = ?", id).Error; err != nil {
			return err
		}

		updates := apply(&txn)
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = time.Now()

		return tx.Model(&models.Transaction{}).
			Where("id = ?", id).
			Updates(updates).Error
	})
}

func (s *transactionStore) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.Transaction
	q := query.Order("created_at desc")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := q.Find(&txns).Error; err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}
