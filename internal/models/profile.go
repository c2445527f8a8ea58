package models

import "github.com/google/uuid"

// UserAddress is an entry in a customer's shipping address book.
type UserAddress struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	AddressLine string    `json:"address_line"`
	City        string    `json:"city"`
	Region      string    `json:"region"`
	PostalCode  string    `json:"postal_code"`
	Phone       string    `json:"phone"`
}
