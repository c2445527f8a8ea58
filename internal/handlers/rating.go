package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/services"
)

// RatingHandler accepts product ratings.
type RatingHandler struct {
	ratings *services.RatingService
}

// NewRatingHandler constructs RatingHandler.
func NewRatingHandler(ratings *services.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

type ratingRequest struct {
	ProductID string `json:"productId"`
	OrderID   string `json:"orderId"`
	Rating    int    `json:"rating"`
}

// Submit stores the rating, overwriting an earlier one for the same order line.
func (h *RatingHandler) Submit(c *fiber.Ctx) error {
	var req ratingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid productId")
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid orderId")
	}

	rating, err := h.ratings.SubmitRating(c.UserContext(), middleware.CurrentCustomer(c), orderID, productID, req.Rating)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Thanks for rating!",
		"data":    rating,
	})
}
