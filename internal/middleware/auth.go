package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/stackpay/internal/config"
	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/utils"
)

const (
	userContextKey     = "currentUserID"
	roleContextKey     = "currentUserRole"
	customerContextKey = "currentCustomer"
)

// AuthMiddleware validates JWT tokens and loads the authenticated user ID
// and role into the request context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		userID, role, err := utils.ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(userContextKey, userID)
		c.Locals(roleContextKey, role)
		return c.Next()
	}
}

// RequireVerifiedCustomer loads the caller's customer profile and rejects
// accounts that have not completed email verification. Must run after
// AuthMiddleware.
func RequireVerifiedCustomer(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := GetCurrentUserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		var user models.User
		if err := db.Preload("Customer").First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
			}
			return err
		}

		if !user.IsVerified {
			return fiber.NewError(fiber.StatusForbidden, "account is not verified")
		}
		if user.Customer == nil {
			return fiber.NewError(fiber.StatusForbidden, "no customer profile")
		}

		user.Customer.User = &user
		c.Locals(customerContextKey, user.Customer)
		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}

// GetCurrentUserRole extracts the authenticated user role from context.
func GetCurrentUserRole(c *fiber.Ctx) string {
	if role, ok := c.Locals(roleContextKey).(string); ok {
		return role
	}
	return ""
}

// GetCurrentCustomer extracts the customer profile loaded by
// RequireVerifiedCustomer.
func GetCurrentCustomer(c *fiber.Ctx) (*models.Customer, bool) {
	customer, ok := c.Locals(customerContextKey).(*models.Customer)
	return customer, ok
}
