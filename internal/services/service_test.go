package services

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/snbstore/internal/database"
	"github.com/example/snbstore/internal/models"
)

// openTestDB returns an isolated in-memory store with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		PasswordHash: "not-a-real-hash",
		Role:         models.RoleCustomer,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, sku string, price float64, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		Name:        "Runner " + sku,
		Brand:       "Stride",
		Category:    models.CategorySneakers,
		Description: "lightweight everyday runner",
		Price:       price,
		Stock:       stock,
		Status:      models.ProductStatusActive,
		SKU:         sku,
		Barcode:     "BC-" + sku,
		Image:       "https://img.example.com/" + sku + ".jpg",
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func testContext() context.Context {
	return context.Background()
}
