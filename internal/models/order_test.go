package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusProcessing}:        true,
		{OrderStatusPending, OrderStatusCancelled}:         true,
		{OrderStatusProcessing, OrderStatusOutForDelivery}: true,
		{OrderStatusProcessing, OrderStatusCancelled}:      true,
		{OrderStatusOutForDelivery, OrderStatusDelivered}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]OrderStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusOutForDelivery.IsTerminal())

	assert.True(t, OrderStatusOutForDelivery.Valid())
	assert.False(t, OrderStatus("shipped").Valid())
}

func TestStockStatus(t *testing.T) {
	assert.Equal(t, "out-of-stock", StockStatus(0))
	assert.Equal(t, "low-stock", StockStatus(1))
	assert.Equal(t, "low-stock", StockStatus(LowStockThreshold))
	assert.Equal(t, "in-stock", StockStatus(LowStockThreshold+1))
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Juan Cruz", User{FirstName: "Juan", LastName: "Cruz"}.FullName())
	assert.Equal(t, "Juan", User{FirstName: "Juan"}.FullName())
	assert.Equal(t, "Cruz", User{LastName: "Cruz"}.FullName())
}
