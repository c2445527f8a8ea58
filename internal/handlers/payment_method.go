package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/models"
)

// PaymentMethodHandler manages the manual payment options.
type PaymentMethodHandler struct {
	db *gorm.DB
}

// NewPaymentMethodHandler constructs PaymentMethodHandler.
func NewPaymentMethodHandler(db *gorm.DB) *PaymentMethodHandler {
	return &PaymentMethodHandler{db: db}
}

// ListActive returns the methods offered at checkout.
func (h *PaymentMethodHandler) ListActive(c *fiber.Ctx) error {
	var items []models.PaymentMethod
	if err := h.db.WithContext(c.UserContext()).Where("is_active = ?", true).
		Order("name asc").Find(&items).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

// List returns every method including inactive ones.
func (h *PaymentMethodHandler) List(c *fiber.Ctx) error {
	var items []models.PaymentMethod
	if err := h.db.WithContext(c.UserContext()).Order("name asc").Find(&items).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

type paymentMethodRequest struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	IsActive     *bool  `json:"is_active"`
}

func (h *PaymentMethodHandler) Create(c *fiber.Ctx) error {
	var req paymentMethodRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	item := models.PaymentMethod{
		Code:         strings.ToLower(strings.TrimSpace(req.Code)),
		Name:         strings.TrimSpace(req.Name),
		Instructions: req.Instructions,
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	if item.Code == "" || item.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "code and name are required")
	}

	var existing int64
	if err := h.db.WithContext(c.UserContext()).Model(&models.PaymentMethod{}).
		Where("code = ?", item.Code).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return fiber.NewError(fiber.StatusConflict, "payment method code already exists")
	}

	if err := h.db.WithContext(c.UserContext()).Create(&item).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

// Update changes name, instructions and the active flag. Codes are fixed
// because orders reference them.
func (h *PaymentMethodHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var item models.PaymentMethod
	if err := h.db.WithContext(c.UserContext()).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment method not found")
		}
		return err
	}

	var req paymentMethodRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if v := strings.TrimSpace(req.Name); v != "" {
		item.Name = v
	}
	if req.Instructions != "" {
		item.Instructions = req.Instructions
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if err := h.db.WithContext(c.UserContext()).Save(&item).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

// Delete removes an unused method, or deactivates one that orders reference.
func (h *PaymentMethodHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	var item models.PaymentMethod
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment method not found")
		}
		return err
	}

	var used int64
	if err := db.Model(&models.Order{}).Where("payment_method = ?", item.Code).Count(&used).Error; err != nil {
		return err
	}
	if used > 0 {
		if err := db.Model(&item).Update("is_active", false).Error; err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "payment method deactivated"})
	}

	if err := db.Delete(&item).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "payment method deleted"})
}
