package services

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/example/stackpay/internal/models"
)

// VerifyCodeStatus is the outcome of evaluating a received code.
type VerifyCodeStatus string

const (
	VerifyCodeValid    VerifyCodeStatus = "valid"
	VerifyCodeNotFound VerifyCodeStatus = "not_found"
	VerifyCodeExpired  VerifyCodeStatus = "expired"
	VerifyCodeInvalid  VerifyCodeStatus = "invalid"
)

const (
	verificationCodeLength = 6
	verificationCodeExpiry = 10 * time.Minute
)

// VerificationCodeService manages email verification codes for a user.
type VerificationCodeService struct {
	db   *gorm.DB
	user *models.User
}

// NewVerificationCodeService creates a code service bound to one user.
func NewVerificationCodeService(db *gorm.DB, user *models.User) *VerificationCodeService {
	return &VerificationCodeService{db: db, user: user}
}

// CreateCode stores a fresh verification code with the default expiry.
func (s *VerificationCodeService) CreateCode() (*models.EmailVerification, error) {
	code, err := GenerateVerificationCode()
	if err != nil {
		return nil, err
	}

	verification := &models.EmailVerification{
		UserID:    s.user.ID,
		Code:      code,
		ExpiresAt: time.Now().Add(verificationCodeExpiry),
	}
	if err := s.db.Create(verification).Error; err != nil {
		return nil, err
	}

	log.Printf("[Verification] new code created for %s", s.user.Email)
	return verification, nil
}

// ValidateCode evaluates the received code against the user's active code
// and, when valid, marks the code used and the user verified.
func (s *VerificationCodeService) ValidateCode(received string) (VerifyCodeStatus, error) {
	active, err := s.activeCode()
	if err != nil {
		return VerifyCodeNotFound, err
	}
	if active == nil {
		log.Printf("[Verification] no active code for %s", s.user.Email)
		return VerifyCodeNotFound, nil
	}

	status := EvaluateCode(active, received, time.Now())
	switch status {
	case VerifyCodeExpired:
		if err := s.disableCode(active); err != nil {
			return status, err
		}
	case VerifyCodeValid:
		if err := s.disableCode(active); err != nil {
			return status, err
		}
		if err := s.db.Model(&models.User{}).
			Where("id = ?", s.user.ID).
			Update("is_verified", true).Error; err != nil {
			return status, err
		}
		log.Printf("[Verification] account %s verified", s.user.Email)
	}

	return status, nil
}

// EvaluateCode classifies a received code against a stored one.
func EvaluateCode(stored *models.EmailVerification, received string, now time.Time) VerifyCodeStatus {
	if stored == nil || stored.IsUsed {
		return VerifyCodeNotFound
	}
	if !stored.ExpiresAt.After(now) {
		return VerifyCodeExpired
	}
	if stored.Code != received {
		return VerifyCodeInvalid
	}
	return VerifyCodeValid
}

func (s *VerificationCodeService) activeCode() (*models.EmailVerification, error) {
	var code models.EmailVerification
	err := s.db.
		Where("user_id = ? AND is_used = ?", s.user.ID, false).
		Order("created_at desc").
		First(&code).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (s *VerificationCodeService) disableCode(code *models.EmailVerification) error {
	return s.db.Model(&models.EmailVerification{}).
		Where("id = ?", code.ID).
		Update("is_used", true).Error
}

// GenerateVerificationCode returns a random numeric code.
func GenerateVerificationCode() (string, error) {
	max := big.NewInt(1)
	max.Exp(big.NewInt(10), big.NewInt(verificationCodeLength), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", verificationCodeLength, n.Int64()), nil
}
