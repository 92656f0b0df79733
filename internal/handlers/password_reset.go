package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/config"
	"github.com/example/snbstore/internal/models"
	"github.com/example/snbstore/internal/services"
)

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	db    *gorm.DB
	users *services.UserService
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, cfg *config.Config) *PasswordResetHandler {
	users := services.NewUserService(db)
	users.SetHashCost(cfg.BcryptCost)
	return &PasswordResetHandler{db: db, users: users}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword initiates the reset flow: validates the account, generates a
// 6-digit code plus an opaque token, and stores them with a 10-minute expiry.
// The code would normally leave via email; it is returned in the response
// until a mail sender is wired up.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	var user models.User
	if err := h.db.First(&user, "email = ? AND is_deleted = ?", email, false).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	code, err := generateResetCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}
	resetToken := hex.EncodeToString(tokenBytes)

	// Expire any previous unused reset tokens for this account.
	h.db.Model(&models.PasswordResetToken{}).
		Where("email = ? AND used_at IS NULL", email).
		Update("expires_at", time.Now())

	record := models.PasswordResetToken{
		Email:     email,
		Token:     resetToken,
		Code:      code,
		ExpiresAt: time.Now().Add(10 * time.Minute),
		Verified:  false,
	}
	if err := h.db.Create(&record).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create reset token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   resetToken,
		"code":    code,
	})
}

type verifyResetCodeRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

// VerifyResetCode verifies the code submitted by the user.
func (h *PasswordResetHandler) VerifyResetCode(c *fiber.Ctx) error {
	var req verifyResetCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Token == "" || req.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token and code are required")
	}

	var record models.PasswordResetToken
	if err := h.db.Where("token = ?", req.Token).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "invalid reset token")
		}
		return err
	}

	if record.UsedAt != nil {
		return fiber.NewError(fiber.StatusBadRequest, "token already used")
	}

	if record.ExpiresAt.Before(time.Now()) {
		return fiber.NewError(fiber.StatusBadRequest, "token expired")
	}

	if record.Code != req.Code {
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}

	record.Verified = true
	if err := h.db.Save(&record).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"verified": true,
		"token":    record.Token,
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword updates the user's password after successful code
// verification. The change bumps PasswordChangedAt, so sessions issued
// before it are invalidated.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Token == "" || req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token and new_password are required")
	}

	var record models.PasswordResetToken
	if err := h.db.Where("token = ?", req.Token).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "invalid reset token")
		}
		return err
	}

	if record.UsedAt != nil {
		return fiber.NewError(fiber.StatusBadRequest, "token already used")
	}

	if record.ExpiresAt.Before(time.Now()) {
		return fiber.NewError(fiber.StatusBadRequest, "token expired")
	}

	if !record.Verified {
		return fiber.NewError(fiber.StatusBadRequest, "code not verified yet")
	}

	if err := h.users.ResetPassword(c.Context(), record.Email, req.NewPassword); err != nil {
		return toHTTPError(err)
	}

	now := time.Now()
	record.UsedAt = &now
	h.db.Save(&record)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password updated successfully",
	})
}

func generateResetCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
