package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/stackpay/internal/middleware"
	"github.com/example/stackpay/internal/models"
)

// ProfileHandler manages customer profile, address and KYC endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

func (h *ProfileHandler) currentCustomer(c *fiber.Ctx) (*models.Customer, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var customer models.Customer
	if err := h.db.Where("user_id = ?", userID).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "customer profile not found")
		}
		return nil, err
	}
	return &customer, nil
}

// GetProfile returns the authenticated customer profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	customer, err := h.currentCustomer(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": customer})
}

type updateProfileRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	DateOfBirth *string `json:"date_of_birth"`
}

// UpdateProfile updates customer profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	customer, err := h.currentCustomer(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid date_of_birth")
		}
		updates["date_of_birth"] = dob
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	if err := h.db.Model(&models.Customer{}).
		Where("id = ?", customer.ID).
		Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

// Address endpoints

// ListAddresses returns the customer's addresses.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	customer, err := h.currentCustomer(c)
	if err != nil {
		return err
	}

	var addresses []models.Address
	if err := h.db.Where("customer_id = ?", customer.ID).Find(&addresses).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

type addressRequest struct {
	Line            string `json:"line"`
	State           string `json:"state"`
	City            string `json:"city"`
	ApartmentNumber string `json:"apartment_number"`
	BuildingNumber  string `json:"building_number"`
	PostalCode      string `json:"postal_code"`
	Country         string `json:"country"`
	MainAddress     bool   `json:"main_address"`
}

// CreateAddress creates an address. When the new address is flagged main, the
// flag is cleared on every sibling in the same transaction so exactly one
// main address exists per customer.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	customer, err := h.currentCustomer(c)
	if err != nil {
		return err
	}

	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	address := models.Address{
		CustomerID:      customer.ID,
		Line:            req.Line,
		State:           req.State,
		City:            req.City,
		ApartmentNumber: req.ApartmentNumber,
		BuildingNumber:  req.BuildingNumber,
		PostalCode:      req.PostalCode,
		Country:         req.Country,
		MainAddress:     req.MainAddress,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if address.MainAddress {
			if err := tx.Model(&models.Address{}).
				Where("customer_id = ?", customer.ID).
				Update("main_address", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": address})
}

// UpdateAddress updates an address, keeping the single-main invariant.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	customer, err := h.currentCustomer(c)
	if err != nil {
		return err
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var address models.Address
	if err := h.db.
		Where("id = ? AND customer_id = ?", addrID, customer.ID).
		First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "address not found")
		}
		return err
	}

	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if req.MainAddress {
			if err := tx.Model(&models.Address{}).
				Where("customer_id = ? AND id <> ?", customer.ID, addrID).
				Update("main_address", false).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Address{}).
			Where("id = ?", addrID).
			Updates(map[string]interface{}{
				"line":             req.Line,
				"state":            req.State,
				"city":             req.City,
				"apartment_number": req.ApartmentNumber,
				"building_number":  req.BuildingNumber,
				"postal_code":      req.PostalCode,
				"country":          req.Country,
				"main_address":     req.MainAddress,
			}).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "address updated"})
}

// DeleteAddress removes an address.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	customer, err := h.currentCustomer(c)
	if err != nil {
		return err
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.db.Where("id = ? AND customer_id = ?", addrID, customer.ID).
		Delete(&models.Address{}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "address deleted"})
}

// KYC endpoints

type kycRequest struct {
	DocumentType string `json:"document_type"`
	DocumentID   string `json:"document_id"`
}

// SubmitKYC records a KYC document for review. One record per customer;
// resubmission moves an existing record back to pending.
func (h *ProfileHandler) SubmitKYC(c *fiber.Ctx) error {
	customer, err := h.currentCustomer(c)
	if err != nil {
		return err
	}

	var req kycRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.DocumentType != models.KYCDocumentNationalID && req.DocumentType != models.KYCDocumentPassport {
		return fiber.NewError(fiber.StatusBadRequest, "invalid document_type")
	}

	var doc models.KYCDocument
	err = h.db.Where("customer_id = ?", customer.ID).First(&doc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		doc = models.KYCDocument{
			CustomerID:   customer.ID,
			DocumentType: req.DocumentType,
			DocumentID:   req.DocumentID,
			Status:       models.KYCStatusPending,
		}
		if err := h.db.Create(&doc).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := h.db.Model(&doc).Updates(map[string]interface{}{
			"document_type": req.DocumentType,
			"document_id":   req.DocumentID,
			"status":        models.KYCStatusPending,
			"reviewed_at":   nil,
		}).Error; err != nil {
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": doc})
}

// GetKYCStatus returns the customer's KYC review state.
func (h *ProfileHandler) GetKYCStatus(c *fiber.Ctx) error {
	customer, err := h.currentCustomer(c)
	if err != nil {
		return err
	}

	var doc models.KYCDocument
	if err := h.db.Where("customer_id = ?", customer.ID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no kyc record")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": doc})
}
