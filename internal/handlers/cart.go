package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/services"
)

// CartHandler exposes the cart service.
type CartHandler struct {
	cart *services.CartService
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(cart *services.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// AddToCart adds a variant to the cart.
func (h *CartHandler) AddToCart(c *fiber.Ctx) error {
	var req addToCartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid productId")
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid variantId")
	}

	line, err := h.cart.AddLine(c.UserContext(), middleware.CurrentCustomer(c), productID, variantID, req.Quantity)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Added to cart",
		"data":    line,
	})
}

// ListCart returns the cart lines as a bare array.
func (h *CartHandler) ListCart(c *fiber.Ctx) error {
	lines, err := h.cart.ListCart(c.UserContext(), middleware.CurrentCustomer(c))
	if err != nil {
		return err
	}
	return c.JSON(lines)
}

// Summary returns cart totals including shipping.
func (h *CartHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.cart.Summary(c.UserContext(), middleware.CurrentCustomer(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": summary})
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantity overwrites the quantity of a line.
func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req updateCartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	line, err := h.cart.SetLineQuantity(c.UserContext(), middleware.CurrentCustomer(c), id, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": line})
}

// RemoveLine deletes a line from the cart.
func (h *CartHandler) RemoveLine(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.cart.RemoveLine(c.UserContext(), middleware.CurrentCustomer(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Removed from cart"})
}
