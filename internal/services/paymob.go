package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/example/stackpay/internal/config"
	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/repository"
)

// ProviderClient is the slice of the PayMob client the orchestration layer
// depends on.
type ProviderClient interface {
	CreateOrder(ctx context.Context, customer *models.Customer, amountCents int64, merchantOrderID string) (string, error)
	PaymentKeyToken(ctx context.Context, customer *models.Customer, orderID string, amountCents int64) (string, error)
}

// PayMobClient talks to the PayMob acceptance API. Every call POSTs a JSON
// payload carrying the cached auth token; failures of any shape surface as
// ProviderServiceError.
type PayMobClient struct {
	cfg       *config.Config
	session   *http.Client
	tokens    *TokenCache
	customers repository.CustomerStore
}

// NewPayMobClient wires the provider client with its retrying session and
// auth-token cache.
func NewPayMobClient(cfg *config.Config, customers repository.CustomerStore) *PayMobClient {
	c := &PayMobClient{
		cfg:       cfg,
		session:   NewProviderHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout),
		customers: customers,
	}
	c.tokens = NewTokenCache(cfg.AuthTokenCacheTTL, nil, c.fetchAuthToken)
	return c
}

func (c *PayMobClient) fetchAuthToken(ctx context.Context) (string, error) {
	payload := map[string]any{"api_key": c.cfg.PayMobAPIKey}
	return c.requestField(ctx, c.cfg.PayMobAuthURL, payload, "token", "Auth token")
}

// requestField POSTs payload to endpoint and returns the named field from the
// JSON response. A missing field is treated identically to a network failure.
func (c *PayMobClient) requestField(ctx context.Context, endpoint string, payload any, field, fieldName string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &ProviderServiceError{Message: err.Error(), Details: fieldName}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderServiceError{Message: err.Error(), Details: fieldName}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		log.Printf("[PayMob] request for %s failed: %v", fieldName, err)
		return "", &ProviderServiceError{Message: "provider API fail: " + err.Error(), Details: fieldName}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderServiceError{Message: "provider API fail: " + err.Error(), Details: fieldName}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[PayMob] request for %s returned status %d", fieldName, resp.StatusCode)
		return "", &ProviderServiceError{
			Message: fmt.Sprintf("provider API fail: status %d", resp.StatusCode),
			Details: fieldName,
		}
	}

	data := map[string]json.RawMessage{}
	if err := json.Unmarshal(respBody, &data); err != nil {
		return "", &ProviderServiceError{Message: "provider API fail: " + err.Error(), Details: fieldName}
	}

	result := rawFieldString(data[field])
	if result == "" {
		log.Printf("[PayMob] no %s returned from provider", fieldName)
		return "", &ProviderServiceError{
			Message: fmt.Sprintf("the API did not return the %s", fieldName),
			Details: fieldName,
		}
	}

	return result, nil
}

// rawFieldString renders a JSON string or number field as its text form.
func rawFieldString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String()
	}
	return ""
}

// CreateOrder registers the order with PayMob and returns the provider order id.
func (c *PayMobClient) CreateOrder(ctx context.Context, customer *models.Customer, amountCents int64, merchantOrderID string) (string, error) {
	currency, _, err := c.resolveCurrency(ctx, customer)
	if err != nil {
		return "", err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"auth_token":        token,
		"delivery_needed":   "false",
		"merchant_order_id": merchantOrderID,
		"amount_cents":      amountCents,
		"currency":          currency,
		"items":             []any{},
	}

	orderID, err := c.requestField(ctx, c.cfg.PayMobOrderURL, payload, "id", "Order ID")
	if err != nil {
		return "", err
	}

	log.Printf("[PayMob] order id for transaction %s returned", merchantOrderID)
	return orderID, nil
}

// PaymentKeyToken returns the opaque token the client uses to render the
// payment iframe for the given provider order.
func (c *PayMobClient) PaymentKeyToken(ctx context.Context, customer *models.Customer, orderID string, amountCents int64) (string, error) {
	currency, address, err := c.resolveCurrency(ctx, customer)
	if err != nil {
		return "", err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"auth_token":     token,
		"amount_cents":   amountCents,
		"currency":       currency,
		"order_id":       orderID,
		"billing_data":   billingData(customer, address),
		"integration_id": c.cfg.PayMobIntegrationID,
	}

	return c.requestField(ctx, c.cfg.PayMobPaymentKeyURL, payload, "token", "Payment token")
}

// TransactionFlags reports a transaction's current provider-side status.
type TransactionFlags struct {
	Success    bool `json:"success"`
	Pending    bool `json:"pending"`
	IsRefunded bool `json:"is_refunded"`
	IsVoided   bool `json:"is_voided"`
}

// GetTransactionFlags queries PayMob for the current status of a transaction.
func (c *PayMobClient) GetTransactionFlags(ctx context.Context, transactionID string) (*TransactionFlags, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s", c.cfg.PayMobTxnURL, transactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ProviderServiceError{Message: err.Error(), Details: "Transaction flags"}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.session.Do(req)
	if err != nil {
		log.Printf("[PayMob] transaction %s status query failed: %v", transactionID, err)
		return nil, &ProviderServiceError{
			Message: "provider fail to return transaction current state: " + err.Error(),
			Details: "Transaction flags",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderServiceError{
			Message: fmt.Sprintf("provider fail to return transaction current state: status %d", resp.StatusCode),
			Details: "Transaction flags",
		}
	}

	var flags TransactionFlags
	if err := json.NewDecoder(resp.Body).Decode(&flags); err != nil {
		return nil, &ProviderServiceError{Message: err.Error(), Details: "Transaction flags"}
	}

	return &flags, nil
}

func (c *PayMobClient) resolveCurrency(ctx context.Context, customer *models.Customer) (string, *models.Address, error) {
	return CountryCurrency(ctx, c.customers, customer, c.cfg.SupportedCountries)
}

// billingData builds the provider billing payload from the customer profile
// and their main address. Missing fields become the "NA" placeholder: the
// provider tolerates incomplete billing data, so neither do we fail on it.
func billingData(customer *models.Customer, address *models.Address) map[string]any {
	email := ""
	if customer.User != nil {
		email = customer.User.Email
	}

	return map[string]any{
		"apartment":       orNA(address.ApartmentNumber),
		"email":           orNA(email),
		"first_name":      orNA(customer.FirstName),
		"last_name":       orNA(customer.LastName),
		"street":          orNA(address.Line),
		"building":        orNA(address.BuildingNumber),
		"phone_number":    orNA(customer.PhoneNumber),
		"postal_code":     orNA(address.PostalCode),
		"city":            orNA(address.City),
		"country":         orNA(address.Country),
		"state":           orNA(address.State),
		"floor":           "NA",
		"shipping_method": "PKG",
	}
}

func orNA(value string) string {
	if value == "" {
		return "NA"
	}
	return value
}
