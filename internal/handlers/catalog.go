package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/utils"
)

// CatalogHandler serves the public storefront catalog.
type CatalogHandler struct {
	db *gorm.DB
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(db *gorm.DB) *CatalogHandler {
	return &CatalogHandler{db: db}
}

func orderedVariants(db *gorm.DB) *gorm.DB {
	return db.Order("price asc")
}

// ListProducts returns active products with their variants.
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Product{}).Where("is_active = ?", true)

	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		q := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	order := "created_at desc"
	switch c.Query("sort") {
	case "price_asc":
		order = "base_price asc"
	case "price_desc":
		order = "base_price desc"
	case "rating":
		order = "rating_average desc"
	}

	var products []models.Product
	if err := query.Preload("Variants", orderedVariants).
		Order(order).
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

// GetProduct loads an active product with its variants.
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.db.WithContext(c.UserContext()).Preload("Variants", orderedVariants).
		First(&product, "id = ? AND is_active = ?", id, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}
