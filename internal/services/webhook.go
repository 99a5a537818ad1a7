package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"log"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/repository"
)

// WebhookPayload is the obj body of a PayMob transaction callback.
type WebhookPayload struct {
	Pending              bool   `json:"pending"`
	ID                   int64  `json:"id"`
	AmountCents          int64  `json:"amount_cents"`
	CreatedAt            string `json:"created_at"`
	Currency             string `json:"currency"`
	ErrorOccured         bool   `json:"error_occured"`
	HasParentTransaction bool   `json:"has_parent_transaction"`
	IntegrationID        int64  `json:"integration_id"`
	Is3DSecure           bool   `json:"is_3d_secure"`
	IsAuth               bool   `json:"is_auth"`
	IsCapture            bool   `json:"is_capture"`
	IsRefunded           bool   `json:"is_refunded"`
	IsStandalonePayment  bool   `json:"is_standalone_payment"`
	IsVoided             bool   `json:"is_voided"`
	Success              bool   `json:"success"`
	Owner                int64  `json:"owner"`
	Order                struct {
		ID              int64  `json:"id"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"order"`
	SourceData struct {
		Pan     string `json:"pan"`
		Type    string `json:"type"`
		SubType string `json:"sub_type"`
	} `json:"source_data"`
	Data struct {
		Message         string `json:"message"`
		AcqResponseCode string `json:"acq_response_code"`
	} `json:"data"`
}

// TransactionID renders the provider-assigned transaction id as stored on
// the transaction row.
func (p *WebhookPayload) TransactionID() string {
	return strconv.FormatInt(p.ID, 10)
}

// CanonicalString concatenates the designated payload fields in the fixed
// provider order, booleans lower-cased, with no separators. Any deviation
// breaks compatibility with the provider's computed signature.
func (p *WebhookPayload) CanonicalString() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(p.AmountCents, 10))
	b.WriteString(p.CreatedAt)
	b.WriteString(p.Currency)
	b.WriteString(strconv.FormatBool(p.ErrorOccured))
	b.WriteString(strconv.FormatBool(p.HasParentTransaction))
	b.WriteString(strconv.FormatInt(p.ID, 10))
	b.WriteString(strconv.FormatInt(p.IntegrationID, 10))
	b.WriteString(strconv.FormatBool(p.Is3DSecure))
	b.WriteString(strconv.FormatBool(p.IsAuth))
	b.WriteString(strconv.FormatBool(p.IsCapture))
	b.WriteString(strconv.FormatBool(p.IsRefunded))
	b.WriteString(strconv.FormatBool(p.IsStandalonePayment))
	b.WriteString(strconv.FormatBool(p.IsVoided))
	b.WriteString(strconv.FormatInt(p.Order.ID, 10))
	b.WriteString(strconv.FormatInt(p.Owner, 10))
	b.WriteString(strconv.FormatBool(p.Pending))
	b.WriteString(p.SourceData.Pan)
	b.WriteString(p.SourceData.SubType)
	b.WriteString(p.SourceData.Type)
	b.WriteString(strconv.FormatBool(p.Success))
	return b.String()
}

// VerifySignature computes the HMAC of the canonical field string and
// compares it with the received signature in constant time.
func VerifySignature(receivedHMAC, canonicalFields, secretKey string, digest func() hash.Hash) error {
	if digest == nil {
		digest = sha512.New
	}

	mac := hmac.New(digest, []byte(secretKey))
	mac.Write([]byte(canonicalFields))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(receivedHMAC)) {
		log.Println("[Webhook] received HMAC doesn't match computed HMAC")
		return &WebhookServiceError{
			Message: "verification hmac failed",
			Details: "HMAC_FAIL",
		}
	}
	return nil
}

// WebhookResult reports how a webhook delivery was resolved.
type WebhookResult struct {
	// AlreadyProcessed is set when the delivery repeated a finalized
	// transaction and was acknowledged without re-verification or mutation.
	AlreadyProcessed bool
	State            string
}

// TransactionNotifier is fired on terminal-state transitions. Delivery is
// best-effort and out of the webhook path's failure domain.
type TransactionNotifier interface {
	NotifyTransactionState(txn *models.Transaction)
}

// WebhookService authenticates inbound provider callbacks and idempotently
// transitions transaction state.
type WebhookService struct {
	transactions repository.TransactionStore
	secretKey    string
	notifier     TransactionNotifier
}

// NewWebhookService wires the webhook verifier and reconciler.
func NewWebhookService(transactions repository.TransactionStore, secretKey string, notifier TransactionNotifier) *WebhookService {
	return &WebhookService{
		transactions: transactions,
		secretKey:    secretKey,
		notifier:     notifier,
	}
}

// HandleWebhook processes one provider callback delivery. Webhook delivery
// is at-least-once: repeats of an already-finalized transaction short-circuit
// before signature verification, and every failure path leaves the
// transaction untouched.
func (s *WebhookService) HandleWebhook(ctx context.Context, payload *WebhookPayload, receivedHMAC string) (*WebhookResult, error) {
	providerTxnID := payload.TransactionID()

	existing, err := s.transactions.FindByProviderTransactionID(ctx, providerTxnID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.State != models.TransactionStatePending {
		log.Printf("[Webhook] transaction %s already processed", providerTxnID)
		return &WebhookResult{AlreadyProcessed: true, State: existing.State}, nil
	}

	if err := VerifySignature(receivedHMAC, payload.CanonicalString(), s.secretKey, nil); err != nil {
		return nil, err
	}
	log.Printf("[Webhook] HMAC for transaction %s verified", providerTxnID)

	txn, err := s.transactions.FindByMerchantOrderID(ctx, payload.Order.MerchantOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Webhook] transaction with merchant order id %q doesn't exist", payload.Order.MerchantOrderID)
			return nil, &WebhookServiceError{
				Message: "transaction not found",
				Details: "Transaction",
			}
		}
		return nil, err
	}

	newState := classify(payload)
	if err := s.transition(ctx, txn, newState, providerTxnID); err != nil {
		return nil, err
	}

	return &WebhookResult{State: newState}, nil
}

// classify maps the payload flags onto exactly one transition trigger.
// Refund and success take precedence over the pending flags; every unmatched
// combination resolves to failed, never to a no-op.
func classify(p *WebhookPayload) string {
	pendingAuth := (p.Data.Message == "AUTHENTICATION_UNAVAILABLE" ||
		p.Data.Message == "AUTHENTICATION_PENDING") &&
		p.Data.AcqResponseCode == "PROCEED"

	switch {
	case p.IsRefunded:
		return models.TransactionStateRefunded
	case p.Success:
		return models.TransactionStateSucceeded
	case p.Pending || pendingAuth:
		return models.TransactionStatePending
	default:
		return models.TransactionStateFailed
	}
}

// transition persists the new state together with the provider transaction
// id under a row lock. A concurrent delivery that already finalized the row
// wins; the loser observes the terminal state and no-ops.
func (s *WebhookService) transition(ctx context.Context, txn *models.Transaction, newState, providerTxnID string) error {
	var applied bool
	err := s.transactions.ApplyLocked(ctx, txn.ID, func(current *models.Transaction) map[string]any {
		if models.TerminalTransactionState(current.State) {
			return nil
		}
		applied = true
		return map[string]any{
			"state":          newState,
			"transaction_id": providerTxnID,
		}
	})
	if err != nil {
		return err
	}
	if !applied {
		log.Printf("[Webhook] transaction %s already finalized, skipping transition", providerTxnID)
		return nil
	}

	log.Printf("[Webhook] transaction %s updated to %s", providerTxnID, newState)

	if s.notifier != nil && models.TerminalTransactionState(newState) {
		txn.State = newState
		txn.TransactionID = providerTxnID
		s.notifier.NotifyTransactionState(txn)
	}
	return nil
}
