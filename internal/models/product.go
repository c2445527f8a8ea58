package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LowStockThreshold marks variants that need restocking on the dashboard.
const LowStockThreshold = 25

type Product struct {
	BaseModel
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Image         string           `json:"image"`
	BasePrice     decimal.Decimal  `gorm:"type:numeric(12,2)" json:"base_price"`
	IsActive      bool             `gorm:"index" json:"is_active"`
	RatingAverage decimal.Decimal  `gorm:"type:numeric(4,2)" json:"rating_average"`
	RatingCount   int              `json:"rating_count"`
	Variants      []ProductVariant `json:"variants,omitempty"`
}

// ProductVariant is a purchasable weight-based SKU of a product.
type ProductVariant struct {
	BaseModel
	ProductID   uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	WeightLabel string          `json:"weight_label"`
	Kilograms   decimal.Decimal `gorm:"type:numeric(8,2)" json:"kilograms"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Stock       int             `gorm:"check:stock >= 0" json:"stock"`
}

// StockStatus classifies a stock count for inventory views.
func StockStatus(stock int) string {
	switch {
	case stock <= 0:
		return "out-of-stock"
	case stock <= LowStockThreshold:
		return "low-stock"
	default:
		return "in-stock"
	}
}
