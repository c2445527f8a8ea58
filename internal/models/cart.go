package models

import "github.com/google/uuid"

// CartItem is one line of a customer's in-progress selection. A user holds at
// most one line per (product, variant).
type CartItem struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_user_product_variant" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_user_product_variant" json:"product_id"`
	VariantID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_user_product_variant" json:"variant_id"`
	Quantity  int       `json:"quantity"`
}
