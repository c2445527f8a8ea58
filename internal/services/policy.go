package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ricestore/internal/config"
)

// CheckoutPolicy holds the store-wide pricing and delivery rules.
type CheckoutPolicy struct {
	ShippingFee          decimal.Decimal
	FreeShippingQuantity int
	DeliveryLeadTime     time.Duration
	Currency             string
}

// DefaultCheckoutPolicy charges 100 below five sacks and delivers within five hours.
func DefaultCheckoutPolicy() CheckoutPolicy {
	return CheckoutPolicy{
		ShippingFee:          decimal.NewFromInt(100),
		FreeShippingQuantity: 5,
		DeliveryLeadTime:     5 * time.Hour,
		Currency:             "PHP",
	}
}

// PolicyFromConfig builds the policy from environment configuration.
func PolicyFromConfig(cfg *config.Config) CheckoutPolicy {
	return CheckoutPolicy{
		ShippingFee:          cfg.ShippingFee,
		FreeShippingQuantity: cfg.FreeShippingQty,
		DeliveryLeadTime:     cfg.DeliveryLeadTime,
		Currency:             cfg.Currency,
	}
}

// ShippingFor returns the fee owed for totalQuantity units across all lines.
func (p CheckoutPolicy) ShippingFor(totalQuantity int) decimal.Decimal {
	if totalQuantity <= 0 || totalQuantity >= p.FreeShippingQuantity {
		return decimal.Zero
	}
	return p.ShippingFee
}
