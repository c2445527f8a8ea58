package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/services"
	"github.com/example/ricestore/internal/utils"
)

// OrderHandler manages customer order endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method"`
	AddressID     string `json:"address_id"`
}

// Checkout places an order from the customer's cart.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	checkout := services.CheckoutRequest{PaymentMethod: req.PaymentMethod}
	if req.AddressID != "" {
		id, err := uuid.Parse(req.AddressID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid address_id")
		}
		checkout.AddressID = &id
	}

	order, err := h.orders.PlaceOrder(c.UserContext(), middleware.CurrentCustomer(c), checkout)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"orderId": order.ID,
		"data": fiber.Map{
			"id":                 order.ID,
			"order_number":       order.OrderNumber,
			"status":             order.Status,
			"subtotal":           order.Subtotal,
			"shipping_fee":       order.ShippingFee,
			"total":              order.TotalAmount,
			"currency":           order.Currency,
			"estimated_delivery": order.EstimatedDelivery,
		},
	})
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrders(c.UserContext(), middleware.CurrentCustomer(c), c.Query("status"), pg)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrder(c.UserContext(), middleware.CurrentCustomer(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// PaymentInstructions shows how to pay for an order.
func (h *OrderHandler) PaymentInstructions(c *fiber.Ctx) error {
	id, err := parseID(c, "orderId")
	if err != nil {
		return err
	}

	instructions, err := h.orders.PaymentInstructions(c.UserContext(), middleware.CurrentCustomer(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": instructions})
}
