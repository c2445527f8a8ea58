package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/utils"
)

// OrderService converts carts into orders and drives the order lifecycle.
type OrderService struct {
	db        *gorm.DB
	policy    CheckoutPolicy
	publisher EventPublisher
	now       func() time.Time
}

// NewOrderService constructs OrderService. A nil publisher disables events.
func NewOrderService(db *gorm.DB, policy CheckoutPolicy, publisher EventPublisher) *OrderService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &OrderService{db: db, policy: policy, publisher: publisher, now: time.Now}
}

// CheckoutRequest carries the customer's checkout choices.
type CheckoutRequest struct {
	PaymentMethod string
	AddressID     *uuid.UUID
}

// PlaceOrder turns the user's cart into a pending order. Stock validation,
// order creation, stock decrement and cart clearing commit together or not
// at all.
func (s *OrderService) PlaceOrder(ctx context.Context, user *CustomerIdentity, req CheckoutRequest) (*models.Order, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, invalidInput("payment method is required")
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.PaymentMethod
		if err := tx.First(&payment, "code = ? AND is_active = ?", method, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidInput("unsupported payment method %q", method)
			}
			return err
		}

		var address *models.UserAddress
		if req.AddressID != nil {
			address = &models.UserAddress{}
			if err := tx.First(address, "id = ? AND user_id = ?", *req.AddressID, user.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound("address not found")
				}
				return err
			}
		}

		rows, err := loadCartRows(tx, user.ID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrEmptyCart
		}

		variants, err := lockVariants(tx, rows)
		if err != nil {
			return err
		}
		if err := ensureActiveProducts(tx, rows); err != nil {
			return err
		}

		requested := make(map[uuid.UUID]int, len(rows))
		for _, row := range rows {
			requested[row.VariantID] += row.Quantity
		}

		subtotal := decimal.Zero
		totalQuantity := 0
		items := make([]models.OrderItem, 0, len(rows))
		for _, row := range rows {
			variant, ok := variants[row.VariantID]
			if !ok || variant.ProductID != row.ProductID || row.ProductName == nil {
				return notFound("variant not found")
			}
			if want := requested[row.VariantID]; want > variant.Stock {
				return newError(KindInsufficientStock, "Only %d sacks of %s (%s) available", variant.Stock, *row.ProductName, variant.WeightLabel)
			}

			price := row.unitPrice()
			lineTotal := price.Mul(decimal.NewFromInt(int64(row.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			totalQuantity += row.Quantity

			items = append(items, models.OrderItem{
				ProductID:    row.ProductID,
				VariantID:    row.VariantID,
				ProductName:  *row.ProductName,
				VariantLabel: variant.WeightLabel,
				Quantity:     row.Quantity,
				UnitPrice:    price,
				LineTotal:    lineTotal,
			})
		}

		now := s.now()
		shipping := s.policy.ShippingFor(totalQuantity)
		order = models.Order{
			UserID:            user.ID,
			Status:            models.OrderStatusPending,
			PaymentMethod:     payment.Code,
			Subtotal:          subtotal,
			ShippingFee:       shipping,
			TotalAmount:       subtotal.Add(shipping),
			Currency:          s.policy.Currency,
			EstimatedDelivery: now.Add(s.policy.DeliveryLeadTime),
		}
		order.ID = uuid.New()
		order.OrderNumber = orderNumber(order.ID, now)
		if address != nil {
			order.DeliveryAddressID = &address.ID
			order.DeliveryName = strings.TrimSpace(address.FirstName + " " + address.LastName)
			order.DeliveryAddressLine = address.AddressLine
			order.DeliveryCity = address.City
			order.DeliveryRegion = address.Region
			order.DeliveryPostalCode = address.PostalCode
			order.DeliveryPhone = address.Phone
		}

		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		for variantID, quantity := range requested {
			res := tx.Model(&models.ProductVariant{}).
				Where("id = ? AND stock >= ?", variantID, quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return conflict("stock for %s changed during checkout, please review your cart", variants[variantID].WeightLabel)
			}
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		order.Items = items
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	log.Info().
		Str("order_number", order.OrderNumber).
		Str("user_id", user.ID.String()).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("order placed")

	event := newOrderEvent(EventOrderPlaced, &order, s.now())
	event.CustomerName = user.Name
	event.CustomerEmail = user.Email
	publishAfterCommit(ctx, s.publisher, event)

	return &order, nil
}

// lockVariants loads every variant referenced by rows FOR UPDATE in id order
// so concurrent checkouts acquire locks consistently.
func lockVariants(tx *gorm.DB, rows []cartRow) (map[uuid.UUID]models.ProductVariant, error) {
	seen := make(map[uuid.UUID]struct{}, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.VariantID]; ok {
			continue
		}
		seen[row.VariantID] = struct{}{}
		ids = append(ids, row.VariantID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var variants []models.ProductVariant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&variants).Error; err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]models.ProductVariant, len(variants))
	for _, v := range variants {
		out[v.ID] = v
	}
	return out, nil
}

func ensureActiveProducts(tx *gorm.DB, rows []cartRow) error {
	seen := make(map[uuid.UUID]struct{}, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ProductID]; ok {
			continue
		}
		seen[row.ProductID] = struct{}{}
		ids = append(ids, row.ProductID)
	}

	var active int64
	if err := tx.Model(&models.Product{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Count(&active).Error; err != nil {
		return err
	}
	if int(active) != len(ids) {
		return notFound("variant not found")
	}
	return nil
}

func orderNumber(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("RS-%s-%s", at.Format("060102"), strings.ToUpper(id.String()[:8]))
}

// Transition moves an order to target if the lifecycle allows it. Cancelling
// returns the ordered quantities to stock.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus) (*models.Order, error) {
	if !target.Valid() {
		return nil, invalidInput("unknown order status %q", target)
	}

	var (
		order    models.Order
		previous models.OrderStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("order not found")
			}
			return err
		}

		previous = order.Status
		if !order.Status.CanTransitionTo(target) {
			return conflict("order %s cannot move from %s to %s", order.OrderNumber, order.Status, target)
		}

		if err := tx.Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
			return err
		}

		if target == models.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := tx.Model(&models.ProductVariant{}).
					Where("id = ?", item.VariantID).
					UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
					return err
				}
			}
		}

		order.Status = target
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{"status": target, "updated_at": s.now()}).Error
	})
	if err != nil {
		return nil, storeError(err)
	}

	log.Info().
		Str("order_number", order.OrderNumber).
		Str("from", string(previous)).
		Str("to", string(target)).
		Msg("order status changed")

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", order.UserID).Error; err == nil {
		order.User = &user
	}
	event := newOrderEvent(EventOrderStatusChanged, &order, s.now())
	event.PreviousState = previous
	publishAfterCommit(ctx, s.publisher, event)

	return &order, nil
}

// ListOrders pages through the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, user *CustomerIdentity, status string, pg utils.Pagination) ([]models.Order, int64, error) {
	if user == nil {
		return nil, 0, ErrUnauthorized
	}

	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", user.ID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeError(err)
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, storeError(err)
	}

	return orders, total, nil
}

// GetOrder loads one of the user's orders with its items.
func (s *OrderService) GetOrder(ctx context.Context, user *CustomerIdentity, orderID uuid.UUID) (*models.Order, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").
		First(&order, "id = ? AND user_id = ?", orderID, user.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("order not found")
		}
		return nil, storeError(err)
	}
	return &order, nil
}

// PaymentInstructions pairs an order with how to pay for it.
type PaymentInstructions struct {
	Order  *models.Order         `json:"order"`
	Method *models.PaymentMethod `json:"payment_method"`
}

// PaymentInstructions returns the manual payment steps for the user's order.
func (s *OrderService) PaymentInstructions(ctx context.Context, user *CustomerIdentity, orderID uuid.UUID) (*PaymentInstructions, error) {
	order, err := s.GetOrder(ctx, user, orderID)
	if err != nil {
		return nil, err
	}

	var method models.PaymentMethod
	if err := s.db.WithContext(ctx).First(&method, "code = ?", order.PaymentMethod).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("payment method not found")
		}
		return nil, storeError(err)
	}

	return &PaymentInstructions{Order: order, Method: &method}, nil
}

// OrderFilter narrows the admin order list.
type OrderFilter struct {
	Status string
	Search string
}

// ListAllOrders pages through every order for the back-office.
func (s *OrderService) ListAllOrders(ctx context.Context, filter OrderFilter, pg utils.Pagination) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(order_number) LIKE ? OR LOWER(delivery_name) LIKE ? OR LOWER(delivery_address_line) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeError(err)
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, storeError(err)
	}

	return orders, total, nil
}

// DeliveryUpdate is the admin-entered delivery schedule.
type DeliveryUpdate struct {
	Date string
	Time string
	Note string
}

// UpdateDelivery records the delivery schedule of an open order.
func (s *OrderService) UpdateDelivery(ctx context.Context, orderID uuid.UUID, update DeliveryUpdate) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("order not found")
			}
			return err
		}
		if order.Status == models.OrderStatusCancelled {
			return conflict("order %s is cancelled", order.OrderNumber)
		}

		order.DeliveryDate = strings.TrimSpace(update.Date)
		order.DeliveryTime = strings.TrimSpace(update.Time)
		order.TrackingNote = strings.TrimSpace(update.Note)
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"delivery_date": order.DeliveryDate,
			"delivery_time": order.DeliveryTime,
			"tracking_note": order.TrackingNote,
			"updated_at":    s.now(),
		}).Error
	})
	if err != nil {
		return nil, storeError(err)
	}
	return &order, nil
}
