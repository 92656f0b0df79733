package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/database"
	"github.com/example/snbstore/internal/models"
	"github.com/example/snbstore/internal/utils"
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

// ErrInvalidCredentials is returned when a login or password change presents
// the wrong current password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService owns credential security, the default-address invariant, and
// wishlist membership.
type UserService struct {
	db       *gorm.DB
	now      func() time.Time
	hashCost int
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, now: time.Now, hashCost: utils.PasswordHashCost}
}

// SetHashCost raises the bcrypt cost factor. Values below the floor are
// ignored; the cost never weakens.
func (s *UserService) SetHashCost(cost int) {
	if cost > s.hashCost {
		s.hashCost = cost
	}
}

// RegisterInput carries new-account fields. Password arrives in plaintext and
// is hashed before anything is persisted.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

func validateRegister(in RegisterInput) error {
	switch {
	case strings.TrimSpace(in.FirstName) == "":
		return database.Validation("first_name", "first name is required")
	case len(in.FirstName) > 50:
		return database.Validation("first_name", "first name cannot exceed 50 characters")
	case strings.TrimSpace(in.LastName) == "":
		return database.Validation("last_name", "last name is required")
	case len(in.LastName) > 50:
		return database.Validation("last_name", "last name cannot exceed 50 characters")
	case !emailPattern.MatchString(strings.ToLower(strings.TrimSpace(in.Email))):
		return database.Validation("email", "please enter a valid email")
	case len(in.Password) < 8:
		return database.Validation("password", "password must be at least 8 characters long")
	}
	return nil
}

// Register creates an account with a hashed credential.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validateRegister(in); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password, s.hashCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:      hash,
		Phone:             strings.TrimSpace(in.Phone),
		Role:              models.RoleCustomer,
		Status:            models.UserStatusActive,
		PreferredCurrency: "USD",
		NewsletterOptIn:   true,
		PasswordChangedAt: s.now(),
	}

	err = database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Create(user).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, &database.ConflictError{Field: "email", Err: err}
		}
		return nil, err
	}
	return user, nil
}

// Authenticate verifies the credential and records the login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		First(&user, "email = ? AND is_deleted = ?", strings.ToLower(strings.TrimSpace(email)), false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.Status != models.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	user.LastLoginAt = &now
	user.LoginCount++
	err = database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Model(&user).
			Updates(map[string]interface{}{
				"last_login_at": &now,
				"login_count":   user.LoginCount,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ChangePassword rehashes the credential only because it actually changed,
// and stamps PasswordChangedAt so earlier tokens die.
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.ErrUserNotFound
		}
		return err
	}

	if !utils.CheckPassword(user.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if len(next) < 8 {
		return database.Validation("password", "password must be at least 8 characters long")
	}

	return s.setPassword(ctx, &user, next)
}

// ResetPassword replaces the credential without the current password; the
// reset-token flow has already proven ownership of the account.
func (s *UserService) ResetPassword(ctx context.Context, email, next string) error {
	if len(next) < 8 {
		return database.Validation("password", "password must be at least 8 characters long")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		First(&user, "email = ? AND is_deleted = ?", strings.ToLower(strings.TrimSpace(email)), false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.ErrUserNotFound
		}
		return err
	}

	return s.setPassword(ctx, &user, next)
}

func (s *UserService) setPassword(ctx context.Context, user *models.User, plaintext string) error {
	hash, err := utils.HashPassword(plaintext, s.hashCost)
	if err != nil {
		return err
	}

	return database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
			"password_hash":       hash,
			"password_changed_at": s.now(),
		}).Error
	})
}

// Get loads a non-deleted user with addresses.
func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Addresses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&user, "id = ? AND is_deleted = ?", userID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SoftDelete flags the account deleted without removing its records.
func (s *UserService) SoftDelete(ctx context.Context, userID uuid.UUID) error {
	return database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		result := s.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND is_deleted = ?", userID, false).
			Updates(map[string]interface{}{
				"is_deleted": true,
				"status":     models.UserStatusInactive,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return database.ErrUserNotFound
		}
		return nil
	})
}

// NormalizeDefaultAddress enforces the invariant on an address list sorted by
// creation order: exactly one default whenever the list is non-empty. With no
// default the first is promoted; with several, the most recently added wins.
// Returns whether any flags changed.
func NormalizeDefaultAddress(addresses []models.Address) bool {
	if len(addresses) == 0 {
		return false
	}

	lastDefault := -1
	count := 0
	for i := range addresses {
		if addresses[i].IsDefault {
			lastDefault = i
			count++
		}
	}

	keep := lastDefault
	if count == 0 {
		keep = 0
	} else if count == 1 {
		return false
	}

	changed := false
	for i := range addresses {
		want := i == keep
		if addresses[i].IsDefault != want {
			addresses[i].IsDefault = want
			changed = true
		}
	}
	return changed
}

func (s *UserService) loadAddresses(tx *gorm.DB, userID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	if err := tx.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&addresses).Error; err != nil {
		return nil, err
	}
	return addresses, nil
}

func (s *UserService) normalizeAndPersist(tx *gorm.DB, userID uuid.UUID) error {
	addresses, err := s.loadAddresses(tx, userID)
	if err != nil {
		return err
	}
	if !NormalizeDefaultAddress(addresses) {
		return nil
	}
	for i := range addresses {
		if err := tx.Model(&models.Address{}).
			Where("id = ?", addresses[i].ID).
			Update("is_default", addresses[i].IsDefault).Error; err != nil {
			return err
		}
	}
	return nil
}

// AddAddress appends an address; marking it default clears the others.
func (s *UserService) AddAddress(ctx context.Context, userID uuid.UUID, address models.Address) (*models.Address, error) {
	if address.Address1 == "" {
		return nil, database.Validation("address1", "address line is required")
	}
	if address.City == "" {
		return nil, database.Validation("city", "city is required")
	}
	if address.Label == "" {
		address.Label = "home"
	}
	address.UserID = userID

	err := database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if address.IsDefault {
				if err := tx.Model(&models.Address{}).
					Where("user_id = ?", userID).
					Update("is_default", false).Error; err != nil {
					return err
				}
			}
			if err := tx.Create(&address).Error; err != nil {
				return err
			}
			return s.normalizeAndPersist(tx, userID)
		})
	})
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// UpdateAddressInput merges onto the matching address; nil fields are left
// untouched.
type UpdateAddressInput struct {
	Label     *string
	FirstName *string
	LastName  *string
	Company   *string
	Address1  *string
	Address2  *string
	City      *string
	State     *string
	ZipCode   *string
	Country   *string
	Phone     *string
	IsDefault *bool
}

// UpdateAddress merges fields onto the address with the given id, failing
// with a not-found condition when it doesn't exist.
func (s *UserService) UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, in UpdateAddressInput) (*models.Address, error) {
	var address models.Address

	err := database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&address, "id = ? AND user_id = ?", addressID, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return database.ErrAddressNotFound
				}
				return err
			}

			updates := map[string]interface{}{}
			assign := func(column string, value *string) {
				if value != nil {
					updates[column] = *value
				}
			}
			assign("label", in.Label)
			assign("first_name", in.FirstName)
			assign("last_name", in.LastName)
			assign("company", in.Company)
			assign("address1", in.Address1)
			assign("address2", in.Address2)
			assign("city", in.City)
			assign("state", in.State)
			assign("zip_code", in.ZipCode)
			assign("country", in.Country)
			assign("phone", in.Phone)

			if in.IsDefault != nil {
				updates["is_default"] = *in.IsDefault
				if *in.IsDefault {
					if err := tx.Model(&models.Address{}).
						Where("user_id = ? AND id <> ?", userID, addressID).
						Update("is_default", false).Error; err != nil {
						return err
					}
				}
			}

			if len(updates) > 0 {
				if err := tx.Model(&address).Updates(updates).Error; err != nil {
					return err
				}
			}

			if err := s.normalizeAndPersist(tx, userID); err != nil {
				return err
			}
			return tx.First(&address, "id = ?", addressID).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// RemoveAddress deletes the address; if it was the default and others remain,
// the first remaining address is promoted.
func (s *UserService) RemoveAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	return database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var address models.Address
			if err := tx.First(&address, "id = ? AND user_id = ?", addressID, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return database.ErrAddressNotFound
				}
				return err
			}

			if err := tx.Delete(&address).Error; err != nil {
				return err
			}
			return s.normalizeAndPersist(tx, userID)
		})
	})
}

// AddToWishlist is idempotent: adding a product twice leaves one entry.
func (s *UserService) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ? AND is_deleted = ?", productID, false).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.ErrProductNotFound
		}
		return err
	}

	item := models.WishlistItem{UserID: userID, ProductID: productID}
	err := database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).Create(&item).Error
	})
	if err != nil && database.IsUniqueViolation(err) {
		// Already saved; the composite unique index makes this a no-op.
		return nil
	}
	return err
}

// RemoveFromWishlist filters the product out of the wishlist.
func (s *UserService) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	return database.WithRetry(ctx, database.DefaultRetryOptions(), func() error {
		return s.db.WithContext(ctx).
			Where("user_id = ? AND product_id = ?", userID, productID).
			Delete(&models.WishlistItem{}).Error
	})
}

// Wishlist returns the user's saved products.
func (s *UserService) Wishlist(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}
