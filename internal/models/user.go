package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
)

// User account statuses.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// User represents a customer or staff account. The password hash is never
// serialized; only the authentication layer reads it.
type User struct {
	BaseModel
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	Email             string         `gorm:"uniqueIndex" json:"email"`
	PasswordHash      string         `json:"-"`
	Phone             string         `json:"phone"`
	DateOfBirth       *time.Time     `json:"date_of_birth,omitempty"`
	Gender            string         `json:"gender,omitempty"`
	AvatarURL         string         `json:"avatar_url,omitempty"`
	Role              string         `json:"role"`
	Status            string         `json:"status"`
	EmailVerified     bool           `json:"email_verified"`
	NewsletterOptIn   bool           `json:"newsletter_opt_in"`
	PreferredCurrency string         `json:"preferred_currency"`
	LastLoginAt       *time.Time     `json:"last_login_at,omitempty"`
	LoginCount        int            `json:"login_count"`
	PasswordChangedAt time.Time      `json:"-"`
	IsDeleted         bool           `gorm:"index" json:"-"`
	Addresses         []Address      `json:"addresses,omitempty"`
	Wishlist          []WishlistItem `json:"wishlist,omitempty"`
}

// FullName joins the user's first and last names.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// ChangedPasswordAfter reports whether the password was changed after the
// given token-issue time. Tokens issued before a password change are invalid.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt.IsZero() {
		return false
	}
	// JWT iat has second precision; truncate to avoid rejecting a token
	// issued within the same second as the change.
	return u.PasswordChangedAt.Truncate(time.Second).After(issuedAt)
}

// DefaultAddress returns the address marked default, or the first one.
func (u *User) DefaultAddress() *Address {
	for i := range u.Addresses {
		if u.Addresses[i].IsDefault {
			return &u.Addresses[i]
		}
	}
	if len(u.Addresses) > 0 {
		return &u.Addresses[0]
	}
	return nil
}

// Address is a saved shipping/billing address. At most one address per user
// carries IsDefault = true.
type Address struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Label     string    `json:"label"` // home|work|other
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   string    `json:"company,omitempty"`
	Address1  string    `json:"address1"`
	Address2  string    `json:"address2,omitempty"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   string    `json:"zip_code"`
	Country   string    `json:"country"`
	Phone     string    `json:"phone,omitempty"`
	IsDefault bool      `json:"is_default"`
}

// WishlistItem links a user to a saved product. The composite unique index
// makes wishlist adds idempotent at the store level.
type WishlistItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_wishlist_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_wishlist_user_product" json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
}

// PasswordResetToken tracks a single-use password reset request.
type PasswordResetToken struct {
	BaseModel
	Email     string     `gorm:"index" json:"email"`
	Token     string     `gorm:"uniqueIndex" json:"-"`
	Code      string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	Verified  bool       `json:"verified"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}
