package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/stackpay/internal/middleware"
	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/repository"
	"github.com/example/stackpay/internal/services"
	"github.com/example/stackpay/internal/utils"
)

// TransactionHandler manages payment transaction endpoints.
type TransactionHandler struct {
	transactions  repository.TransactionStore
	orchestration *services.OrchestrationService
	webhook       *services.WebhookService
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(
	transactions repository.TransactionStore,
	orchestration *services.OrchestrationService,
	webhook *services.WebhookService,
) *TransactionHandler {
	return &TransactionHandler{
		transactions:  transactions,
		orchestration: orchestration,
		webhook:       webhook,
	}
}

type createTransactionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// transactionResponse is the representation exposed to API consumers. Only
// amount is client-settable at creation; everything else is read-only.
func transactionResponse(txn *models.Transaction) fiber.Map {
	return fiber.Map{
		"customer":          txn.CustomerID,
		"transaction_id":    txn.TransactionID,
		"amount":            txn.Amount,
		"state":             txn.State,
		"order_id":          txn.OrderID,
		"payment_token":     txn.PaymentToken,
		"created_at":        txn.CreatedAt,
		"merchant_order_id": txn.MerchantOrderID,
	}
}

// Create starts a new transaction with PayMob orchestration.
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	customer, ok := middleware.GetCurrentCustomer(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Amount.Sign() <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}

	txn, err := h.orchestration.CreateTransaction(c.Context(), customer, req.Amount)
	if err != nil {
		var countryErr *services.SupportedCountryError
		var orchErr *services.OrchestrationError
		switch {
		case errors.As(err, &countryErr):
			return writeServiceError(c, countryErr.Details, countryErr.Message)
		case errors.As(err, &orchErr):
			if txn != nil {
				// The row exists in the failed state; surface the provider
				// message alongside it.
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"non_field_errors": []string{orchErr.Details + ":" + orchErr.Message},
					"transaction":      transactionResponse(txn),
				})
			}
			return writeServiceError(c, orchErr.Details, orchErr.Message)
		default:
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(transactionResponse(txn))
}

// List returns transactions; customers see only their own, admins see all.
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	filter := repository.TransactionFilter{
		State:  c.Query("state"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}

	if middleware.GetCurrentUserRole(c) != models.RoleAdmin {
		customer, ok := middleware.GetCurrentCustomer(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		filter.CustomerID = &customer.ID
	}

	txns, total, err := h.transactions.List(c.Context(), filter)
	if err != nil {
		return err
	}

	data := make([]fiber.Map, 0, len(txns))
	for i := range txns {
		data = append(data, transactionResponse(&txns[i]))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type webhookRequest struct {
	Obj *services.WebhookPayload `json:"obj"`
}

// Webhook receives PayMob transaction callbacks. Signature failures and
// unknown transactions are rejected with 400 so the provider's retry
// mechanism redelivers; accepted and already-processed deliveries answer 200.
func (h *TransactionHandler) Webhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil || req.Obj == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"Webhook": "Invalid webhook data received.",
		})
	}

	receivedHMAC := c.Query("hmac")

	result, err := h.webhook.HandleWebhook(c.Context(), req.Obj, receivedHMAC)
	if err != nil {
		var whErr *services.WebhookServiceError
		if errors.As(err, &whErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"Webhook":          "Verification failed.",
				"non_field_errors": []string{whErr.Details + ":" + whErr.Message},
			})
		}
		return err
	}

	if result.AlreadyProcessed {
		return c.JSON(fiber.Map{"Webhook": "Transaction already processed."})
	}
	return c.JSON(fiber.Map{"Webhook": "HMAC successfully verified."})
}

func writeServiceError(c *fiber.Ctx, details, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"non_field_errors": []string{details + ":" + message},
	})
}
