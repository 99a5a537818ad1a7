package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/stackpay/internal/config"
	"github.com/example/stackpay/internal/middleware"
	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/services"
	"github.com/example/stackpay/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Country     string `json:"country"`
}

// Register creates a user account with its customer profile and mails a
// verification code.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "user already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleCustomer,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		customer := models.Customer{
			UserID:      user.ID,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			PhoneNumber: req.PhoneNumber,
			Country:     req.Country,
		}
		return tx.Create(&customer).Error
	})
	if err != nil {
		return err
	}

	verification := services.NewVerificationCodeService(h.db, &user)
	if _, err := verification.CreateCode(); err != nil {
		log.Printf("[Auth] failed to create verification code for %s: %v", user.Email, err)
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":          user.ID,
			"email":       user.Email,
			"is_verified": user.IsVerified,
		},
		"token": token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":          user.ID,
			"email":       user.Email,
			"is_verified": user.IsVerified,
		},
		"token": token,
	})
}

type verifyRequest struct {
	Code string `json:"code"`
}

// Verify validates the emailed verification code for the authenticated user.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	status, err := services.NewVerificationCodeService(h.db, &user).ValidateCode(req.Code)
	if err != nil {
		return err
	}

	switch status {
	case services.VerifyCodeValid:
		return c.JSON(fiber.Map{"success": true, "verified": true})
	case services.VerifyCodeExpired:
		return fiber.NewError(fiber.StatusBadRequest, "verification code expired")
	case services.VerifyCodeNotFound:
		return fiber.NewError(fiber.StatusNotFound, "verification code not found")
	default:
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}
}

// ResendCode recreates a verification code when none is active.
func (h *AuthHandler) ResendCode(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	if user.IsVerified {
		return fiber.NewError(fiber.StatusBadRequest, "account already verified")
	}

	if _, err := services.NewVerificationCodeService(h.db, &user).CreateCode(); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "verification code sent"})
}
