package models

// PaymentMethod is a manual payment option shown at checkout together with
// the instructions the customer follows after ordering.
type PaymentMethod struct {
	BaseModel
	Code         string `gorm:"uniqueIndex" json:"code"`
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	IsActive     bool   `json:"is_active"`
}
