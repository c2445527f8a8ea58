package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/ricestore/internal/models"
)

// CartService manages the per-user cart lines.
type CartService struct {
	db     *gorm.DB
	policy CheckoutPolicy
}

// NewCartService constructs CartService.
func NewCartService(db *gorm.DB, policy CheckoutPolicy) *CartService {
	return &CartService{db: db, policy: policy}
}

// CartLineView is a cart line joined with its catalog entry.
type CartLineView struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Image       string          `json:"image"`
	WeightLabel string          `json:"weight_label"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Stock       int             `json:"stock"`
	Available   bool            `json:"available"`
}

// CartSummary holds the totals shown beside the cart.
type CartSummary struct {
	Items         int             `json:"items"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
}

// cartRow is the raw join of a cart line against products and variants.
// Product and variant columns are NULL when the reference dangles.
type cartRow struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	VariantID    uuid.UUID
	Quantity     int
	ProductName  *string
	Image        *string
	BasePrice    decimal.NullDecimal
	WeightLabel  *string
	VariantPrice decimal.NullDecimal
	Stock        *int
}

func (r cartRow) unitPrice() decimal.Decimal {
	if r.VariantPrice.Valid {
		return r.VariantPrice.Decimal
	}
	if r.BasePrice.Valid {
		return r.BasePrice.Decimal
	}
	return decimal.Zero
}

func (r cartRow) view() CartLineView {
	price := r.unitPrice()
	v := CartLineView{
		ID:        r.ID,
		ProductID: r.ProductID,
		VariantID: r.VariantID,
		Quantity:  r.Quantity,
		UnitPrice: price,
		LineTotal: price.Mul(decimal.NewFromInt(int64(r.Quantity))),
	}
	if r.ProductName != nil {
		v.ProductName = *r.ProductName
	}
	if r.Image != nil {
		v.Image = *r.Image
	}
	if r.WeightLabel != nil {
		v.WeightLabel = *r.WeightLabel
	}
	if r.Stock != nil {
		v.Stock = *r.Stock
		v.Available = *r.Stock >= r.Quantity
	}
	return v
}

func loadCartRows(tx *gorm.DB, userID uuid.UUID) ([]cartRow, error) {
	var rows []cartRow
	err := tx.Table("cart_items").
		Select(`cart_items.id, cart_items.product_id, cart_items.variant_id, cart_items.quantity,
			products.name AS product_name, products.image AS image, products.base_price AS base_price,
			product_variants.weight_label AS weight_label, product_variants.price AS variant_price,
			product_variants.stock AS stock`).
		Joins("LEFT JOIN products ON products.id = cart_items.product_id").
		Joins("LEFT JOIN product_variants ON product_variants.id = cart_items.variant_id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.created_at, cart_items.id").
		Scan(&rows).Error
	return rows, err
}

// AddLine puts quantity units of a variant into the cart, merging with an
// existing line for the same product and variant.
func (s *CartService) AddLine(ctx context.Context, user *CustomerIdentity, productID, variantID uuid.UUID, quantity int) (*models.CartItem, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	if quantity < 1 {
		return nil, invalidInput("quantity must be at least 1")
	}

	var line models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var variant models.ProductVariant
		if err := tx.First(&variant, "id = ? AND product_id = ?", variantID, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("variant not found")
			}
			return err
		}

		var product models.Product
		if err := tx.First(&product, "id = ? AND is_active = ?", productID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("product not found")
			}
			return err
		}

		merged := quantity
		var existing models.CartItem
		err := tx.Where("user_id = ? AND product_id = ? AND variant_id = ?", user.ID, productID, variantID).
			First(&existing).Error
		switch {
		case err == nil:
			merged += existing.Quantity
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if merged > variant.Stock {
			return newError(KindInsufficientStock, "Only %d sacks of %s (%s) available", variant.Stock, product.Name, variant.WeightLabel)
		}

		candidate := models.CartItem{
			UserID:    user.ID,
			ProductID: productID,
			VariantID: variantID,
			Quantity:  quantity,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "variant_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + ?", quantity),
				"updated_at": time.Now(),
			}),
		}).Create(&candidate).Error; err != nil {
			return err
		}

		return tx.Where("user_id = ? AND product_id = ? AND variant_id = ?", user.ID, productID, variantID).
			First(&line).Error
	})
	if err != nil {
		return nil, storeError(err)
	}

	return &line, nil
}

// SetLineQuantity overwrites the quantity of one of the user's lines. Stock
// is checked again at checkout.
func (s *CartService) SetLineQuantity(ctx context.Context, user *CustomerIdentity, lineID uuid.UUID, quantity int) (*models.CartItem, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	if quantity < 1 {
		return nil, invalidInput("quantity must be at least 1")
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", lineID, user.ID).
		Updates(map[string]interface{}{"quantity": quantity, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound("cart item not found")
	}

	var line models.CartItem
	if err := db.First(&line, "id = ?", lineID).Error; err != nil {
		return nil, storeError(err)
	}
	return &line, nil
}

// RemoveLine deletes one of the user's lines. Removing a missing line succeeds.
func (s *CartService) RemoveLine(ctx context.Context, user *CustomerIdentity, lineID uuid.UUID) error {
	if user == nil {
		return ErrUnauthorized
	}

	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, user.ID).
		Delete(&models.CartItem{}).Error
	return storeError(err)
}

// ListCart returns the user's lines in insertion order.
func (s *CartService) ListCart(ctx context.Context, user *CustomerIdentity) ([]CartLineView, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	rows, err := loadCartRows(s.db.WithContext(ctx), user.ID)
	if err != nil {
		return nil, storeError(err)
	}

	views := make([]CartLineView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.view())
	}
	return views, nil
}

// Summary totals the cart under the store shipping rule.
func (s *CartService) Summary(ctx context.Context, user *CustomerIdentity) (*CartSummary, error) {
	lines, err := s.ListCart(ctx, user)
	if err != nil {
		return nil, err
	}

	summary := &CartSummary{
		Items:    len(lines),
		Subtotal: decimal.Zero,
		Currency: s.policy.Currency,
	}
	for _, line := range lines {
		summary.TotalQuantity += line.Quantity
		summary.Subtotal = summary.Subtotal.Add(line.LineTotal)
	}
	summary.ShippingFee = s.policy.ShippingFor(summary.TotalQuantity)
	summary.Total = summary.Subtotal.Add(summary.ShippingFee)

	return summary, nil
}
