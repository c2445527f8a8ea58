package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminSession backs the database session store.
type AdminSession struct {
	BaseModel
	Token       string    `gorm:"uniqueIndex" json:"-"`
	AdminID     uuid.UUID `gorm:"type:uuid;index" json:"admin_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `gorm:"index" json:"expires_at"`
}
