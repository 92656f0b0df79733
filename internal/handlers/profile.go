package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/config"
	"github.com/example/snbstore/internal/middleware"
	"github.com/example/snbstore/internal/models"
	"github.com/example/snbstore/internal/services"
)

// ProfileHandler manages user profile, address, and wishlist endpoints.
type ProfileHandler struct {
	db    *gorm.DB
	users *services.UserService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, cfg *config.Config) *ProfileHandler {
	users := services.NewUserService(db)
	users.SetHashCost(cfg.BcryptCost)
	return &ProfileHandler{db: db, users: users}
}

// GetProfile returns the authenticated user's profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.users.Get(c.Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Gender    *string `json:"gender"`
	AvatarURL *string `json:"avatar_url"`
}

// UpdateProfile updates basic profile fields. Password changes go through
// the dedicated endpoint so credential handling stays in one place.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
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
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Gender != nil {
		updates["gender"] = *req.Gender
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	if err := h.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword rotates the user's credential.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.users.ChangePassword(c.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "password changed"})
}

// Address endpoints

// ListAddresses returns the user's addresses.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var addresses []models.Address
	if err := h.db.Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&addresses).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

type addressRequest struct {
	Label     string `json:"label"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"is_default"`
}

// CreateAddress appends an address to the user's list.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	address, err := h.users.AddAddress(c.Context(), userID, models.Address{
		Label:     req.Label,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Address1:  req.Address1,
		Address2:  req.Address2,
		City:      req.City,
		State:     req.State,
		ZipCode:   req.ZipCode,
		Country:   req.Country,
		Phone:     req.Phone,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": address})
}

type updateAddressRequest struct {
	Label     *string `json:"label"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Company   *string `json:"company"`
	Address1  *string `json:"address1"`
	Address2  *string `json:"address2"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	ZipCode   *string `json:"zip_code"`
	Country   *string `json:"country"`
	Phone     *string `json:"phone"`
	IsDefault *bool   `json:"is_default"`
}

// UpdateAddress merges fields onto an existing address.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateAddressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	address, err := h.users.UpdateAddress(c.Context(), userID, addrID, services.UpdateAddressInput{
		Label:     req.Label,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Address1:  req.Address1,
		Address2:  req.Address2,
		City:      req.City,
		State:     req.State,
		ZipCode:   req.ZipCode,
		Country:   req.Country,
		Phone:     req.Phone,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": address})
}

// DeleteAddress removes an address; the default may move to the first
// remaining one.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.users.RemoveAddress(c.Context(), userID, addrID); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "address deleted"})
}

// Wishlist endpoints

// GetWishlist returns the user's saved products.
func (h *ProfileHandler) GetWishlist(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	items, err := h.users.Wishlist(c.Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": items})
}

type wishlistRequest struct {
	ProductID string `json:"product_id"`
}

// AddWishlistItem saves a product; adding it twice is a no-op.
func (h *ProfileHandler) AddWishlistItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req wishlistRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
	}

	if err := h.users.AddToWishlist(c.Context(), userID, productID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": "added to wishlist"})
}

// RemoveWishlistItem filters a product out of the wishlist.
func (h *ProfileHandler) RemoveWishlistItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	if err := h.users.RemoveFromWishlist(c.Context(), userID, productID); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "removed from wishlist"})
}
