package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is a step of the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
}

// CanTransitionTo reports whether next directly follows s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OpenOrderStatuses are the statuses an admin still has to act on.
var OpenOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusOutForDelivery,
}

// Order is the priced record of a completed checkout. Amounts are fixed at
// creation; only the status and the delivery schedule change afterwards.
type Order struct {
	BaseModel
	UserID              uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	User                *User           `json:"user,omitempty"`
	OrderNumber         string          `gorm:"uniqueIndex" json:"order_number"`
	Status              OrderStatus     `gorm:"type:varchar(32);index" json:"status"`
	PaymentMethod       string          `json:"payment_method"`
	Subtotal            decimal.Decimal `gorm:"type:numeric(12,2)" json:"subtotal"`
	ShippingFee         decimal.Decimal `gorm:"type:numeric(12,2)" json:"shipping_fee"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric(12,2)" json:"total_amount"`
	Currency            string          `json:"currency"`
	EstimatedDelivery   time.Time       `json:"estimated_delivery"`
	DeliveryAddressID   *uuid.UUID      `gorm:"type:uuid" json:"delivery_address_id"`
	DeliveryName        string          `json:"delivery_name"`
	DeliveryAddressLine string          `json:"delivery_address_line"`
	DeliveryCity        string          `json:"delivery_city"`
	DeliveryRegion      string          `json:"delivery_region"`
	DeliveryPostalCode  string          `json:"delivery_postal_code"`
	DeliveryPhone       string          `json:"delivery_phone"`
	DeliveryDate        string          `json:"delivery_date"`
	DeliveryTime        string          `json:"delivery_time"`
	TrackingNote        string          `json:"tracking_note"`
	Items               []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID      uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID    uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	VariantID    uuid.UUID       `gorm:"type:uuid" json:"variant_id"`
	ProductName  string          `json:"product_name"`
	VariantLabel string          `json:"variant_label"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_price"`
	LineTotal    decimal.Decimal `gorm:"type:numeric(12,2)" json:"line_total"`
}
