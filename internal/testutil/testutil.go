// Package testutil provides an in-memory database and catalog fixtures for
// package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/ricestore/internal/database"
	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/utils"
)

// NewDB opens a migrated in-memory SQLite database seeded with the default
// payment methods. A single connection keeps every transaction serialized.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedPaymentMethods(db))
	return db
}

// CreateUser inserts a customer whose password is "password".
func CreateUser(t testing.TB, db *gorm.DB, email string) models.User {
	t.Helper()

	hash, err := utils.HashPassword("password")
	require.NoError(t, err)

	user := models.User{
		FirstName:    "Juan",
		LastName:     "Cruz",
		Email:        email,
		PasswordHash: hash,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateAdmin inserts an admin whose password is "password".
func CreateAdmin(t testing.TB, db *gorm.DB, username string) models.Admin {
	t.Helper()

	hash, err := utils.HashPassword("password")
	require.NoError(t, err)

	admin := models.Admin{Username: username, DisplayName: "Store Admin", PasswordHash: hash}
	require.NoError(t, db.Create(&admin).Error)
	return admin
}

// CreateProduct inserts an active product with a single 25kg variant.
func CreateProduct(t testing.TB, db *gorm.DB, name string, price int64, stock int) (models.Product, models.ProductVariant) {
	t.Helper()

	product := models.Product{
		Name:        name,
		Description: name + " rice",
		BasePrice:   decimal.NewFromInt(price),
		IsActive:    true,
	}
	require.NoError(t, db.Create(&product).Error)

	variant := AddVariant(t, db, product, "25kg", price, stock)
	return product, variant
}

// AddVariant adds another weight variant to product.
func AddVariant(t testing.TB, db *gorm.DB, product models.Product, label string, price int64, stock int) models.ProductVariant {
	t.Helper()

	variant := models.ProductVariant{
		ProductID:   product.ID,
		WeightLabel: label,
		Kilograms:   decimal.NewFromInt(25),
		Price:       decimal.NewFromInt(price),
		Stock:       stock,
	}
	require.NoError(t, db.Create(&variant).Error)
	return variant
}

// Stock reloads the current stock of a variant.
func Stock(t testing.TB, db *gorm.DB, variant models.ProductVariant) int {
	t.Helper()

	var fresh models.ProductVariant
	require.NoError(t, db.First(&fresh, "id = ?", variant.ID).Error)
	return fresh.Stock
}

// Count returns the number of rows of model.
func Count(t testing.TB, db *gorm.DB, model interface{}) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
