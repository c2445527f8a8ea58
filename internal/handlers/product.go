package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/services"
	"github.com/example/ricestore/internal/utils"
)

// ProductHandler manages the catalogue from the back-office.
type ProductHandler struct {
	db     *gorm.DB
	images services.ImageStore
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, images services.ImageStore) *ProductHandler {
	return &ProductHandler{db: db, images: images}
}

// ListProducts returns every product, inactive ones included.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Product{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if v := c.Query("active"); v != "" {
		query = query.Where("is_active = ?", v == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Variants", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("kilograms asc")
	}).Limit(pg.Limit).Offset(pg.Offset).Order("created_at desc").Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": products, "pagination": pg.Meta(total)})
}

// AddProduct creates a product and its variants from a multipart form.
// Variants arrive as parallel weight_label[], kilograms[], price[] and
// stock[] fields.
func (h *ProductHandler) AddProduct(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	basePrice, err := parseMoney(c.FormValue("base_price"))
	if err != nil {
		return err
	}

	variants, err := parseVariantForm(c)
	if err != nil {
		return err
	}
	if len(variants) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "at least one variant is required")
	}

	product := models.Product{
		Name:        name,
		Description: strings.TrimSpace(c.FormValue("description")),
		BasePrice:   basePrice,
		IsActive:    true,
		Variants:    variants,
	}

	if file, err := c.FormFile("image"); err == nil {
		stored, err := h.images.Save(file)
		if err != nil {
			return err
		}
		product.Image = stored
	}

	if err := h.db.WithContext(c.UserContext()).Create(&product).Error; err != nil {
		if product.Image != "" {
			_ = h.images.Delete(product.Image)
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// EditProduct updates product fields; a new image replaces the old file.
func (h *ProductHandler) EditProduct(c *fiber.Ctx) error {
	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if v := strings.TrimSpace(c.FormValue("name")); v != "" {
		updates["name"] = v
	}
	if v := c.FormValue("description"); v != "" {
		updates["description"] = strings.TrimSpace(v)
	}
	if v := c.FormValue("base_price"); v != "" {
		price, err := parseMoney(v)
		if err != nil {
			return err
		}
		updates["base_price"] = price
	}
	if v := c.FormValue("is_active"); v != "" {
		updates["is_active"] = v == "true" || v == "1"
	}

	oldImage := product.Image
	if file, err := c.FormFile("image"); err == nil {
		stored, err := h.images.Save(file)
		if err != nil {
			return err
		}
		updates["image"] = stored
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	if err := h.db.WithContext(c.UserContext()).Model(&product).Updates(updates).Error; err != nil {
		return err
	}
	if _, replaced := updates["image"]; replaced && oldImage != "" {
		if err := h.images.Delete(oldImage); err != nil {
			log.Warn().Err(err).Str("image", oldImage).Msg("failed to remove replaced product image")
		}
	}

	if err := h.db.WithContext(c.UserContext()).First(&product, "id = ?", product.ID).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// ListVariants returns the variants of one product.
func (h *ProductHandler) ListVariants(c *fiber.Ctx) error {
	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	var variants []models.ProductVariant
	if err := h.db.WithContext(c.UserContext()).Where("product_id = ?", product.ID).
		Order("kilograms asc").Find(&variants).Error; err != nil {
		return err
	}

	data := make([]fiber.Map, 0, len(variants))
	for _, v := range variants {
		data = append(data, fiber.Map{
			"id":           v.ID,
			"weight_label": v.WeightLabel,
			"kilograms":    v.Kilograms,
			"price":        v.Price,
			"stock":        v.Stock,
			"stock_status": models.StockStatus(v.Stock),
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": data})
}

type variantRequest struct {
	ID          string          `json:"id"`
	WeightLabel string          `json:"weight_label"`
	Kilograms   decimal.Decimal `json:"kilograms"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type editVariantsRequest struct {
	Variants []variantRequest `json:"variants"`
}

// EditVariants updates existing variants by id and adds those without one.
func (h *ProductHandler) EditVariants(c *fiber.Ctx) error {
	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	var req editVariantsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if len(req.Variants) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "variants are required")
	}

	for _, v := range req.Variants {
		if v.Stock < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "stock cannot be negative")
		}
		if v.Price.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "price cannot be negative")
		}
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		for _, v := range req.Variants {
			if v.ID == "" {
				if strings.TrimSpace(v.WeightLabel) == "" {
					return fiber.NewError(fiber.StatusBadRequest, "weight_label is required for new variants")
				}
				variant := models.ProductVariant{
					ProductID:   product.ID,
					WeightLabel: strings.TrimSpace(v.WeightLabel),
					Kilograms:   v.Kilograms,
					Price:       v.Price,
					Stock:       v.Stock,
				}
				if err := tx.Create(&variant).Error; err != nil {
					return err
				}
				continue
			}

			id, err := uuid.Parse(v.ID)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid variant id")
			}
			updates := map[string]interface{}{
				"price": v.Price,
				"stock": v.Stock,
			}
			if label := strings.TrimSpace(v.WeightLabel); label != "" {
				updates["weight_label"] = label
			}
			if !v.Kilograms.IsZero() {
				updates["kilograms"] = v.Kilograms
			}
			res := tx.Model(&models.ProductVariant{}).
				Where("id = ? AND product_id = ?", id, product.ID).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fiber.NewError(fiber.StatusNotFound, "variant not found")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return h.ListVariants(c)
}

// DeleteProduct hides a product from the storefront. Orders keep their
// snapshots, so rows are never removed.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	product, err := h.findProduct(c)
	if err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).Model(&product).Update("is_active", false).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "product deleted"})
}

func (h *ProductHandler) findProduct(c *fiber.Ctx) (models.Product, error) {
	var product models.Product
	id, err := parseID(c, "id")
	if err != nil {
		return product, err
	}
	if err := h.db.WithContext(c.UserContext()).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return product, fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return product, err
	}
	return product, nil
}

func parseVariantForm(c *fiber.Ctx) ([]models.ProductVariant, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "multipart form expected")
	}

	labels := formList(form.Value, "weight_label")
	prices := formList(form.Value, "price")
	stocks := formList(form.Value, "stock")
	kilos := formList(form.Value, "kilograms")
	if len(prices) != len(labels) || len(stocks) != len(labels) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "variant fields must have the same length")
	}

	variants := make([]models.ProductVariant, 0, len(labels))
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fiber.NewError(fiber.StatusBadRequest, "weight_label is required")
		}
		price, err := parseMoney(prices[i])
		if err != nil {
			return nil, err
		}
		stock, err := strconv.Atoi(strings.TrimSpace(stocks[i]))
		if err != nil || stock < 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "stock must be a non-negative integer")
		}

		variant := models.ProductVariant{WeightLabel: label, Price: price, Stock: stock}
		if i < len(kilos) && kilos[i] != "" {
			kg, err := decimal.NewFromString(strings.TrimSpace(kilos[i]))
			if err != nil {
				return nil, fiber.NewError(fiber.StatusBadRequest, "invalid kilograms")
			}
			variant.Kilograms = kg
		} else {
			variant.Kilograms = kilogramsFromLabel(label)
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

// formList accepts both "key[]" and repeated "key" fields.
func formList(values map[string][]string, key string) []string {
	if v, ok := values[key+"[]"]; ok {
		return v
	}
	return values[key]
}

func parseMoney(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || value.IsNegative() {
		return decimal.Zero, fiber.NewError(fiber.StatusBadRequest, "invalid price")
	}
	return value.Round(2), nil
}

// kilogramsFromLabel reads "25kg" or "50 KG" style labels.
func kilogramsFromLabel(label string) decimal.Decimal {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.ToLower(label), "kg"))
	kg, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero
	}
	return kg
}
