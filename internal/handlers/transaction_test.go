package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/repository"
	"github.com/example/stackpay/internal/services"
)

const webhookSecret = "webhook-secret"

// stubTransactionStore holds a single transaction row.
type stubTransactionStore struct {
	row *models.Transaction
}

func (s *stubTransactionStore) Atomic(ctx context.Context, fn func(tx repository.TransactionStore) error) error {
	return fn(s)
}

func (s *stubTransactionStore) AfterCommit(fn func()) { fn() }

func (s *stubTransactionStore) Create(ctx context.Context, txn *models.Transaction) error {
	txn.ID = uuid.New()
	txn.MerchantOrderID = uuid.NewString()
	s.row = txn
	return nil
}

func (s *stubTransactionStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if s.row == nil || s.row.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.row, nil
}

func (s *stubTransactionStore) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.Transaction, error) {
	if s.row == nil || s.row.MerchantOrderID != merchantOrderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.row, nil
}

func (s *stubTransactionStore) FindByProviderTransactionID(ctx context.Context, providerTxnID string) (*models.Transaction, error) {
	if s.row == nil || s.row.TransactionID != providerTxnID {
		return nil, nil
	}
	return s.row, nil
}

func (s *stubTransactionStore) ApplyLocked(ctx context.Context, id uuid.UUID, apply func(txn *models.Transaction) map[string]any) error {
	if s.row == nil || s.row.ID != id {
		return gorm.ErrRecordNotFound
	}
	updates := apply(s.row)
	if state, ok := updates["state"].(string); ok {
		s.row.State = state
	}
	if txnID, ok := updates["transaction_id"].(string); ok {
		s.row.TransactionID = txnID
	}
	return nil
}

func (s *stubTransactionStore) List(ctx context.Context, filter repository.TransactionFilter) ([]models.Transaction, int64, error) {
	if s.row == nil {
		return nil, 0, nil
	}
	return []models.Transaction{*s.row}, 1, nil
}

func webhookApp(store repository.TransactionStore) *fiber.App {
	webhook := services.NewWebhookService(store, webhookSecret, nil)
	handler := NewTransactionHandler(store, nil, webhook)

	app := fiber.New()
	app.Post("/api/transactions/webhook", handler.Webhook)
	return app
}

func webhookBody(t *testing.T, merchantOrderID string, providerTxnID int64) ([]byte, string) {
	t.Helper()

	payload := &services.WebhookPayload{
		ID:          providerTxnID,
		AmountCents: 10022,
		Currency:    "EGP",
		Success:     true,
	}
	payload.Order.MerchantOrderID = merchantOrderID

	mac := hmac.New(sha512.New, []byte(webhookSecret))
	mac.Write([]byte(payload.CanonicalString()))
	signature := hex.EncodeToString(mac.Sum(nil))

	body, err := json.Marshal(map[string]any{"obj": payload})
	require.NoError(t, err)
	return body, signature
}

func TestWebhookEndpointAcceptsValidDelivery(t *testing.T) {
	store := &stubTransactionStore{}
	require.NoError(t, store.Create(context.Background(), &models.Transaction{State: models.TransactionStatePending}))
	app := webhookApp(store)

	body, signature := webhookBody(t, store.row.MerchantOrderID, 9231465)
	req := httptest.NewRequest("POST", "/api/transactions/webhook?hmac="+signature, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	respBody, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"Webhook": "HMAC successfully verified."}`, string(respBody))

	assert.Equal(t, models.TransactionStateSucceeded, store.row.State)
	assert.Equal(t, "9231465", store.row.TransactionID)
}

func TestWebhookEndpointRepeatDelivery(t *testing.T) {
	store := &stubTransactionStore{}
	require.NoError(t, store.Create(context.Background(), &models.Transaction{State: models.TransactionStatePending}))
	app := webhookApp(store)

	body, signature := webhookBody(t, store.row.MerchantOrderID, 9231465)

	for i, want := range []string{"HMAC successfully verified.", "Transaction already processed."} {
		req := httptest.NewRequest("POST", "/api/transactions/webhook?hmac="+signature, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode, "delivery %d", i+1)
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.JSONEq(t, fmt.Sprintf(`{"Webhook": %q}`, want), string(respBody))
	}
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	store := &stubTransactionStore{}
	require.NoError(t, store.Create(context.Background(), &models.Transaction{State: models.TransactionStatePending}))
	app := webhookApp(store)

	body, _ := webhookBody(t, store.row.MerchantOrderID, 9231465)
	req := httptest.NewRequest("POST", "/api/transactions/webhook?hmac=deadbeef", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.TransactionStatePending, store.row.State)
}

func TestWebhookEndpointRejectsMalformedBody(t *testing.T) {
	app := webhookApp(&stubTransactionStore{})

	req := httptest.NewRequest("POST", "/api/transactions/webhook", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	respBody, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"Webhook": "Invalid webhook data received."}`, string(respBody))
}

func TestWebhookEndpointMissingObj(t *testing.T) {
	app := webhookApp(&stubTransactionStore{})

	req := httptest.NewRequest("POST", "/api/transactions/webhook", bytes.NewReader([]byte(`{"type":"TRANSACTION"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
