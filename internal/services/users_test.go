package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/snbstore/internal/database"
	"github.com/example/snbstore/internal/models"
	"github.com/example/snbstore/internal/utils"
)

func newTestUserService(db *gorm.DB) *UserService {
	return NewUserService(db)
}

func TestRegister(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)

	user, err := svc.Register(testContext(), RegisterInput{
		FirstName: "  Grace ",
		LastName:  "Hopper",
		Email:     "Grace.Hopper@Example.COM",
		Password:  "correct horse",
	})
	require.NoError(t, err)

	assert.Equal(t, "Grace", user.FirstName)
	assert.Equal(t, "grace.hopper@example.com", user.Email)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.True(t, utils.CheckPassword(user.PasswordHash, "correct horse"))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	seedUser(t, db) // ada@example.com

	_, err := svc.Register(testContext(), RegisterInput{
		FirstName: "Ada",
		LastName:  "Again",
		Email:     "ADA@example.com",
		Password:  "long enough",
	})
	var cerr *database.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "email", cerr.Field)
}

func TestRegisterValidation(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)

	cases := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"blank first name", RegisterInput{LastName: "H", Email: "a@b.co", Password: "12345678"}, "first_name"},
		{"blank last name", RegisterInput{FirstName: "G", Email: "a@b.co", Password: "12345678"}, "last_name"},
		{"bad email", RegisterInput{FirstName: "G", LastName: "H", Email: "not-an-email", Password: "12345678"}, "email"},
		{"short password", RegisterInput{FirstName: "G", LastName: "H", Email: "a@b.co", Password: "short"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(testContext(), tc.in)
			var verr *database.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)

	registered, err := svc.Register(testContext(), RegisterInput{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
		Password:  "correct horse",
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(testContext(), "grace@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, 1, user.LoginCount)
	require.NotNil(t, user.LastLoginAt)

	_, err = svc.Authenticate(testContext(), "grace@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(testContext(), "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Suspended accounts cannot log in even with the right password.
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", registered.ID).
		Update("status", models.UserStatusSuspended).Error)
	_, err = svc.Authenticate(testContext(), "grace@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)

	registered, err := svc.Register(testContext(), RegisterInput{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
		Password:  "original pass",
	})
	require.NoError(t, err)
	originalHash := registered.PasswordHash
	originalChangedAt := registered.PasswordChangedAt

	// Wrong current password is rejected and nothing changes.
	err = svc.ChangePassword(testContext(), registered.ID, "wrong", "whatever next")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	var unchanged models.User
	require.NoError(t, db.First(&unchanged, "id = ?", registered.ID).Error)
	assert.Equal(t, originalHash, unchanged.PasswordHash)

	svc.now = func() time.Time { return originalChangedAt.Add(time.Hour) }
	require.NoError(t, svc.ChangePassword(testContext(), registered.ID, "original pass", "replacement pass"))

	var updated models.User
	require.NoError(t, db.First(&updated, "id = ?", registered.ID).Error)
	assert.NotEqual(t, originalHash, updated.PasswordHash)
	assert.True(t, utils.CheckPassword(updated.PasswordHash, "replacement pass"))
	assert.True(t, updated.PasswordChangedAt.After(originalChangedAt))
}

func TestChangedPasswordAfterInvalidatesOldTokens(t *testing.T) {
	changedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := &models.User{PasswordChangedAt: changedAt}

	assert.True(t, user.ChangedPasswordAfter(changedAt.Add(-time.Hour)))
	assert.False(t, user.ChangedPasswordAfter(changedAt.Add(time.Hour)))
}

func TestProfileUpdateDoesNotRehash(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)

	registered, err := svc.Register(testContext(), RegisterInput{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
		Password:  "stable pass",
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", registered.ID).
		Update("first_name", "Gracie").Error)
	_, err = svc.Authenticate(testContext(), "grace@example.com", "stable pass")
	require.NoError(t, err)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", registered.ID).Error)
	assert.Equal(t, registered.PasswordHash, reloaded.PasswordHash)
	assert.Equal(t, registered.PasswordChangedAt.Unix(), reloaded.PasswordChangedAt.Unix())
}

func TestSoftDeleteUser(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	require.NoError(t, svc.SoftDelete(testContext(), user.ID))

	_, err := svc.Get(testContext(), user.ID)
	assert.ErrorIs(t, err, database.ErrUserNotFound)

	assert.ErrorIs(t, svc.SoftDelete(testContext(), user.ID), database.ErrUserNotFound)
}

func TestNormalizeDefaultAddress(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		assert.False(t, NormalizeDefaultAddress(nil))
	})

	t.Run("no default promotes first", func(t *testing.T) {
		addresses := []models.Address{
			{Label: "home"},
			{Label: "work"},
		}
		assert.True(t, NormalizeDefaultAddress(addresses))
		assert.True(t, addresses[0].IsDefault)
		assert.False(t, addresses[1].IsDefault)
	})

	t.Run("single default untouched", func(t *testing.T) {
		addresses := []models.Address{
			{Label: "home"},
			{Label: "work", IsDefault: true},
		}
		assert.False(t, NormalizeDefaultAddress(addresses))
		assert.True(t, addresses[1].IsDefault)
	})

	t.Run("several defaults keep most recent", func(t *testing.T) {
		addresses := []models.Address{
			{Label: "home", IsDefault: true},
			{Label: "work", IsDefault: true},
			{Label: "gym"},
		}
		assert.True(t, NormalizeDefaultAddress(addresses))
		assert.False(t, addresses[0].IsDefault)
		assert.True(t, addresses[1].IsDefault)
		assert.False(t, addresses[2].IsDefault)
	})
}

func testAddress(label string, isDefault bool) models.Address {
	return models.Address{
		Label:     label,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address1:  "1 Analytical Way",
		City:      "London",
		State:     "LDN",
		ZipCode:   "E1 6AN",
		Country:   "GB",
		IsDefault: isDefault,
	}
}

func TestAddAddressPromotesFirst(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	first, err := svc.AddAddress(testContext(), user.ID, testAddress("home", false))
	require.NoError(t, err)

	var reloaded models.Address
	require.NoError(t, db.First(&reloaded, "id = ?", first.ID).Error)
	assert.True(t, reloaded.IsDefault, "sole address becomes the default")
}

func TestAddAddressRetriesTransientFailure(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	fired := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("transient_address_insert", func(tx *gorm.DB) {
			if tx.Statement.Table != "addresses" {
				return
			}
			if fired == 0 {
				fired++
				tx.AddError(&pq.Error{Code: "40P01"})
			}
		}))

	address, err := svc.AddAddress(testContext(), user.ID, testAddress("home", false))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	var reloaded models.Address
	require.NoError(t, db.First(&reloaded, "id = ?", address.ID).Error)
	assert.True(t, reloaded.IsDefault)
}

func TestAddDefaultAddressClearsOthers(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	first, err := svc.AddAddress(testContext(), user.ID, testAddress("home", false))
	require.NoError(t, err)
	second, err := svc.AddAddress(testContext(), user.ID, testAddress("work", true))
	require.NoError(t, err)

	addresses, err := svc.loadAddresses(db, user.ID)
	require.NoError(t, err)
	require.Len(t, addresses, 2)

	defaults := 0
	for _, addr := range addresses {
		if addr.IsDefault {
			defaults++
			assert.Equal(t, second.ID, addr.ID)
		} else {
			assert.Equal(t, first.ID, addr.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestRemoveDefaultAddressPromotesFirstRemaining(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	first, err := svc.AddAddress(testContext(), user.ID, testAddress("home", false))
	require.NoError(t, err)
	second, err := svc.AddAddress(testContext(), user.ID, testAddress("work", true))
	require.NoError(t, err)

	require.NoError(t, svc.RemoveAddress(testContext(), user.ID, second.ID))

	var remaining models.Address
	require.NoError(t, db.First(&remaining, "id = ?", first.ID).Error)
	assert.True(t, remaining.IsDefault)
}

func TestRemoveLastAddress(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	only, err := svc.AddAddress(testContext(), user.ID, testAddress("home", true))
	require.NoError(t, err)
	require.NoError(t, svc.RemoveAddress(testContext(), user.ID, only.ID))

	addresses, err := svc.loadAddresses(db, user.ID)
	require.NoError(t, err)
	assert.Empty(t, addresses)
}

func TestUpdateAddressSetsDefault(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	first, err := svc.AddAddress(testContext(), user.ID, testAddress("home", true))
	require.NoError(t, err)
	second, err := svc.AddAddress(testContext(), user.ID, testAddress("work", false))
	require.NoError(t, err)

	makeDefault := true
	newLabel := "office"
	updated, err := svc.UpdateAddress(testContext(), user.ID, second.ID, UpdateAddressInput{
		Label:     &newLabel,
		IsDefault: &makeDefault,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, "office", updated.Label)

	var previous models.Address
	require.NoError(t, db.First(&previous, "id = ?", first.ID).Error)
	assert.False(t, previous.IsDefault)
}

func TestUpdateAddressNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	label := "ghost"
	_, err := svc.UpdateAddress(testContext(), user.ID, uuid.New(), UpdateAddressInput{Label: &label})
	assert.ErrorIs(t, err, database.ErrAddressNotFound)
}

func TestAddAddressValidation(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	addr := testAddress("home", false)
	addr.Address1 = ""
	_, err := svc.AddAddress(testContext(), user.ID, addr)
	assert.True(t, database.IsValidation(err))
}

func TestWishlistAddIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "WL-1", 50, 5)

	require.NoError(t, svc.AddToWishlist(testContext(), user.ID, product.ID))
	require.NoError(t, svc.AddToWishlist(testContext(), user.ID, product.ID))

	items, err := svc.Wishlist(testContext(), user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, product.ID, items[0].ProductID)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, product.Name, items[0].Product.Name)
}

func TestWishlistUnknownProduct(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)

	err := svc.AddToWishlist(testContext(), user.ID, uuid.New())
	assert.ErrorIs(t, err, database.ErrProductNotFound)
}

func TestWishlistRemove(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUserService(db)
	user := seedUser(t, db)
	product := seedProduct(t, db, "WL-2", 50, 5)

	require.NoError(t, svc.AddToWishlist(testContext(), user.ID, product.ID))
	require.NoError(t, svc.RemoveFromWishlist(testContext(), user.ID, product.ID))

	items, err := svc.Wishlist(testContext(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Removing again is harmless.
	require.NoError(t, svc.RemoveFromWishlist(testContext(), user.ID, product.ID))
}
