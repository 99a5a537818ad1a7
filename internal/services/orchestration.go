package services

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/repository"
)

var minAmount = decimal.RequireFromString("0.01")

// AmountCents converts a decimal amount to integer minor-currency units at
// the provider boundary. Rounds half-up at two decimal places, then shifts.
func AmountCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// OrchestrationService drives transaction creation, the provider interaction
// and its failure fallback.
type OrchestrationService struct {
	transactions repository.TransactionStore
	provider     ProviderClient
}

// NewOrchestrationService wires the orchestration layer.
func NewOrchestrationService(transactions repository.TransactionStore, provider ProviderClient) *OrchestrationService {
	return &OrchestrationService{
		transactions: transactions,
		provider:     provider,
	}
}

// CreateTransaction persists a new initiated transaction and runs the
// provider interaction once the creation transaction has committed, so a
// rolled-back creation never reaches PayMob. The returned transaction
// reflects the interaction outcome (pending on success, failed on provider
// error); the webhook-driven update remains authoritative for settlement.
func (s *OrchestrationService) CreateTransaction(ctx context.Context, customer *models.Customer, amount decimal.Decimal) (*models.Transaction, error) {
	if amount.Cmp(minAmount) < 0 {
		return nil, &OrchestrationError{Message: "invalid amount", Details: "Amount"}
	}

	log.Printf("[Orchestration] initiate transaction for customer %s amount %s", customer.ID, amount)

	txn := &models.Transaction{
		CustomerID:      customer.ID,
		Amount:          amount,
		PaymentProvider: models.ProviderPayMob,
		State:           models.TransactionStateInitiated,
	}

	var interactErr error
	err := s.transactions.Atomic(ctx, func(tx repository.TransactionStore) error {
		if err := tx.Create(ctx, txn); err != nil {
			return err
		}
		tx.AfterCommit(func() {
			interactErr = s.InteractWithProvider(ctx, customer, txn)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Orchestration] transaction %s created", txn.MerchantOrderID)

	refreshed, findErr := s.transactions.FindByID(ctx, txn.ID)
	if findErr != nil {
		return nil, findErr
	}
	return refreshed, interactErr
}

// InteractWithProvider creates the PayMob order and payment key token for the
// transaction, then persists the provider fields. Any provider failure marks
// the transaction failed and is re-raised as an OrchestrationError carrying
// the provider's message.
func (s *OrchestrationService) InteractWithProvider(ctx context.Context, customer *models.Customer, txn *models.Transaction) error {
	merchantID := txn.MerchantOrderID
	amountCents := AmountCents(txn.Amount)

	orderID, err := s.provider.CreateOrder(ctx, customer, amountCents, merchantID)
	if err == nil {
		var paymentToken string
		paymentToken, err = s.provider.PaymentKeyToken(ctx, customer, orderID, amountCents)
		if err == nil {
			return s.setProviderFields(ctx, txn, orderID, paymentToken)
		}
	}

	if markErr := s.markFailed(ctx, txn); markErr != nil {
		log.Printf("[Orchestration] failed to mark transaction %s failed: %v", merchantID, markErr)
	}
	log.Printf("[Orchestration] transaction %s failed during provider interaction: %v", merchantID, err)

	return &OrchestrationError{
		Message: err.Error(),
		Details: "Provider interaction failed",
	}
}

// setProviderFields re-fetches the row under a lock and persists only the
// provider correlation fields plus the pending state.
func (s *OrchestrationService) setProviderFields(ctx context.Context, txn *models.Transaction, orderID, paymentToken string) error {
	err := s.transactions.ApplyLocked(ctx, txn.ID, func(current *models.Transaction) map[string]any {
		return map[string]any{
			"order_id":      orderID,
			"payment_token": paymentToken,
			"state":         models.TransactionStatePending,
		}
	})
	if err != nil {
		return err
	}

	log.Printf("[Orchestration] transaction %s updated with provider fields", txn.MerchantOrderID)
	return nil
}

func (s *OrchestrationService) markFailed(ctx context.Context, txn *models.Transaction) error {
	return s.transactions.ApplyLocked(ctx, txn.ID, func(current *models.Transaction) map[string]any {
		// A webhook that already finalized this row wins the race.
		if models.TerminalTransactionState(current.State) {
			return nil
		}
		return map[string]any{"state": models.TransactionStateFailed}
	})
}
