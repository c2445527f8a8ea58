package models

import "github.com/google/uuid"

// Rating is a star rating left on a product from a delivered order.
type Rating struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_rating_user_product_order" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_rating_user_product_order;index" json:"product_id"`
	OrderID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_rating_user_product_order" json:"order_id"`
	Rating    int       `json:"rating"`
}
