package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/repository"
)

// fakeTransactionStore is an in-memory TransactionStore for service tests.
type fakeTransactionStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Transaction

	createErr error
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{rows: map[uuid.UUID]*models.Transaction{}}
}

func (s *fakeTransactionStore) Atomic(ctx context.Context, fn func(tx repository.TransactionStore) error) error {
	scoped := &scopedFakeStore{fakeTransactionStore: s}
	if err := fn(scoped); err != nil {
		return err
	}
	for _, cb := range scoped.afterCommit {
		cb()
	}
	return nil
}

func (s *fakeTransactionStore) AfterCommit(fn func()) { fn() }

func (s *fakeTransactionStore) Create(ctx context.Context, txn *models.Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn.ID = uuid.New()
	if txn.MerchantOrderID == "" {
		txn.MerchantOrderID = uuid.NewString()
	}
	if txn.State == "" {
		txn.State = models.TransactionStateInitiated
	}
	clone := *txn
	s.rows[txn.ID] = &clone
	return nil
}

func (s *fakeTransactionStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (s *fakeTransactionStore) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.MerchantOrderID == merchantOrderID {
			clone := *row
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeTransactionStore) FindByProviderTransactionID(ctx context.Context, providerTxnID string) (*models.Transaction, error) {
	if providerTxnID == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.TransactionID == providerTxnID {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeTransactionStore) ApplyLocked(ctx context.Context, id uuid.UUID, apply func(txn *models.Transaction) map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}

	clone := *row
	updates := apply(&clone)
	for column, value := range updates {
		switch column {
		case "state":
			row.State = value.(string)
		case "transaction_id":
			row.TransactionID = value.(string)
		case "order_id":
			row.OrderID = value.(string)
		case "payment_token":
			row.PaymentToken = value.(string)
		}
	}
	return nil
}

func (s *fakeTransactionStore) List(ctx context.Context, filter repository.TransactionFilter) ([]models.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Transaction
	for _, row := range s.rows {
		if filter.CustomerID != nil && row.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.State != "" && row.State != filter.State {
			continue
		}
		out = append(out, *row)
	}
	return out, int64(len(out)), nil
}

func (s *fakeTransactionStore) get(id uuid.UUID) *models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

// scopedFakeStore collects AfterCommit callbacks the way the real store's
// transaction scope does.
type scopedFakeStore struct {
	*fakeTransactionStore
	afterCommit []func()
}

func (s *scopedFakeStore) AfterCommit(fn func()) {
	s.afterCommit = append(s.afterCommit, fn)
}

// fakeCustomerStore serves a single customer with an optional main address.
type fakeCustomerStore struct {
	customer *models.Customer
	address  *models.Address
}

func (s *fakeCustomerStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if s.customer == nil || s.customer.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.customer, nil
}

func (s *fakeCustomerStore) MainAddress(ctx context.Context, customerID uuid.UUID) (*models.Address, error) {
	return s.address, nil
}

// fakeProvider scripts provider responses for orchestration tests.
type fakeProvider struct {
	orderID      string
	paymentToken string

	orderErr error
	tokenErr error

	orderCalls int
	tokenCalls int
}

func (p *fakeProvider) CreateOrder(ctx context.Context, customer *models.Customer, amountCents int64, merchantOrderID string) (string, error) {
	p.orderCalls++
	if p.orderErr != nil {
		return "", p.orderErr
	}
	return p.orderID, nil
}

func (p *fakeProvider) PaymentKeyToken(ctx context.Context, customer *models.Customer, orderID string, amountCents int64) (string, error) {
	p.tokenCalls++
	if p.tokenErr != nil {
		return "", p.tokenErr
	}
	return p.paymentToken, nil
}

// fakeNotifier records terminal-state notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) NotifyTransactionState(txn *models.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, txn.State)
}
