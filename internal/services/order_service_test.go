package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/testutil"
	"github.com/example/ricestore/internal/utils"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func identityOf(user models.User) *CustomerIdentity {
	return &CustomerIdentity{ID: user.ID, Name: user.FullName(), Email: user.Email}
}

type OrderServiceSuite struct {
	suite.Suite
	ctx       context.Context
	db        *gorm.DB
	cart      *CartService
	orders    *OrderService
	publisher *recordingPublisher
	clock     time.Time
	user      *CustomerIdentity
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewDB(s.T())
	s.publisher = &recordingPublisher{}
	s.cart = NewCartService(s.db, DefaultCheckoutPolicy())
	s.orders = NewOrderService(s.db, DefaultCheckoutPolicy(), s.publisher)
	s.clock = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	s.orders.now = func() time.Time { return s.clock }
	s.user = identityOf(testutil.CreateUser(s.T(), s.db, "juan@example.com"))
}

func (s *OrderServiceSuite) checkout() (*models.Order, error) {
	return s.orders.PlaceOrder(s.ctx, s.user, CheckoutRequest{PaymentMethod: "cod"})
}

func (s *OrderServiceSuite) TestPlaceOrderHappyPath() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Dinorado", 500, 10)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 3)
	require.NoError(s.T(), err)

	order, err := s.checkout()
	require.NoError(s.T(), err)

	require.Equal(s.T(), models.OrderStatusPending, order.Status)
	require.Equal(s.T(), "cod", order.PaymentMethod)
	require.True(s.T(), decimal.NewFromInt(1500).Equal(order.Subtotal))
	require.True(s.T(), decimal.NewFromInt(100).Equal(order.ShippingFee))
	require.True(s.T(), decimal.NewFromInt(1600).Equal(order.TotalAmount))
	require.Equal(s.T(), s.clock.Add(5*time.Hour), order.EstimatedDelivery)
	require.Regexp(s.T(), `^RS-240314-[0-9A-F]{8}$`, order.OrderNumber)

	var items []models.OrderItem
	require.NoError(s.T(), s.db.Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(s.T(), items, 1)
	require.Equal(s.T(), 3, items[0].Quantity)
	require.True(s.T(), decimal.NewFromInt(500).Equal(items[0].UnitPrice))
	require.Equal(s.T(), "Dinorado", items[0].ProductName)
	require.Equal(s.T(), "25kg", items[0].VariantLabel)

	require.Equal(s.T(), 7, testutil.Stock(s.T(), s.db, variant))
	require.Zero(s.T(), testutil.Count(s.T(), s.db, &models.CartItem{}))
	require.Equal(s.T(), []string{EventOrderPlaced}, s.publisher.types())
}

func (s *OrderServiceSuite) TestFreeShippingAtThreshold() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Jasmine", 1200, 20)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 5)
	require.NoError(s.T(), err)

	order, err := s.checkout()
	require.NoError(s.T(), err)
	require.True(s.T(), order.ShippingFee.IsZero())
	require.True(s.T(), decimal.NewFromInt(6000).Equal(order.TotalAmount))
}

func (s *OrderServiceSuite) TestEmptyCart() {
	_, err := s.checkout()
	require.ErrorIs(s.T(), err, ErrEmptyCart)
	require.Zero(s.T(), testutil.Count(s.T(), s.db, &models.Order{}))
	require.Zero(s.T(), testutil.Count(s.T(), s.db, &models.OrderItem{}))
	require.Empty(s.T(), s.publisher.types())
}

func (s *OrderServiceSuite) TestRequiresIdentity() {
	_, err := s.orders.PlaceOrder(s.ctx, nil, CheckoutRequest{PaymentMethod: "cod"})
	require.ErrorIs(s.T(), err, ErrUnauthorized)
}

func (s *OrderServiceSuite) TestPaymentMethodValidation() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Dinorado", 500, 10)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 1)
	require.NoError(s.T(), err)

	_, err = s.orders.PlaceOrder(s.ctx, s.user, CheckoutRequest{})
	require.ErrorIs(s.T(), err, ErrInvalidInput)

	_, err = s.orders.PlaceOrder(s.ctx, s.user, CheckoutRequest{PaymentMethod: "crypto"})
	require.ErrorIs(s.T(), err, ErrInvalidInput)

	require.Equal(s.T(), 10, testutil.Stock(s.T(), s.db, variant))
	require.Equal(s.T(), int64(1), testutil.Count(s.T(), s.db, &models.CartItem{}))
}

func (s *OrderServiceSuite) TestInsufficientStockLeavesNoTrace() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Sinandomeng", 450, 5)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 5)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.db.Model(&variant).Update("stock", 2).Error)

	_, err = s.checkout()
	require.ErrorIs(s.T(), err, ErrInsufficientStock)
	require.Contains(s.T(), err.Error(), "Only 2 sacks")

	require.Zero(s.T(), testutil.Count(s.T(), s.db, &models.Order{}))
	require.Equal(s.T(), 2, testutil.Stock(s.T(), s.db, variant))
	require.Equal(s.T(), int64(1), testutil.Count(s.T(), s.db, &models.CartItem{}))
}

func (s *OrderServiceSuite) TestMissingVariantIsNotFound() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Malagkit", 700, 5)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 1)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.db.Delete(&models.ProductVariant{}, "id = ?", variant.ID).Error)

	_, err = s.checkout()
	require.ErrorIs(s.T(), err, ErrNotFound)
	require.Zero(s.T(), testutil.Count(s.T(), s.db, &models.Order{}))
}

func (s *OrderServiceSuite) TestInactiveProductIsNotFound() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Malagkit", 700, 5)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 1)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.db.Model(&product).Update("is_active", false).Error)

	_, err = s.checkout()
	require.ErrorIs(s.T(), err, ErrNotFound)
	require.Equal(s.T(), 5, testutil.Stock(s.T(), s.db, variant))
}

func (s *OrderServiceSuite) TestPriceSnapshot() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Dinorado", 500, 10)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 2)
	require.NoError(s.T(), err)

	order, err := s.checkout()
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.db.Model(&variant).Update("price", decimal.NewFromInt(600)).Error)

	reloaded, err := s.orders.GetOrder(s.ctx, s.user, order.ID)
	require.NoError(s.T(), err)
	require.True(s.T(), decimal.NewFromInt(1100).Equal(reloaded.TotalAmount))
	require.True(s.T(), decimal.NewFromInt(500).Equal(reloaded.Items[0].UnitPrice))
}

func (s *OrderServiceSuite) TestFailedCartClearRollsBack() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Dinorado", 500, 10)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 4)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.db.Callback().Delete().Before("gorm:delete").
		Register("test:fail_cart_clear", func(tx *gorm.DB) {
			if tx.Statement.Table == "cart_items" {
				_ = tx.AddError(errors.New("disk full"))
			}
		}))

	_, err = s.checkout()
	require.ErrorIs(s.T(), err, ErrStore)
	require.NotContains(s.T(), err.Error(), "disk full")

	require.Zero(s.T(), testutil.Count(s.T(), s.db, &models.Order{}))
	require.Zero(s.T(), testutil.Count(s.T(), s.db, &models.OrderItem{}))
	require.Equal(s.T(), 10, testutil.Stock(s.T(), s.db, variant))
	require.Equal(s.T(), int64(1), testutil.Count(s.T(), s.db, &models.CartItem{}))
	require.Empty(s.T(), s.publisher.types())
}

func (s *OrderServiceSuite) TestConcurrentCheckoutsNeverOversell() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Dinorado", 500, 4)

	buyers := []*CustomerIdentity{s.user}
	for _, email := range []string{"maria@example.com", "jose@example.com"} {
		buyers = append(buyers, identityOf(testutil.CreateUser(s.T(), s.db, email)))
	}
	for _, buyer := range buyers {
		_, err := s.cart.AddLine(s.ctx, buyer, product.ID, variant.ID, 4)
		require.NoError(s.T(), err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, buyer := range buyers {
		wg.Add(1)
		go func(i int, buyer *CustomerIdentity) {
			defer wg.Done()
			_, errs[i] = s.orders.PlaceOrder(s.ctx, buyer, CheckoutRequest{PaymentMethod: "gcash"})
		}(i, buyer)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(s.T(), errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrConflict), "unexpected error: %v", err)
	}
	require.Equal(s.T(), 1, succeeded)
	require.Equal(s.T(), 0, testutil.Stock(s.T(), s.db, variant))
	require.Equal(s.T(), int64(1), testutil.Count(s.T(), s.db, &models.Order{}))
}

func (s *OrderServiceSuite) TestAddressSnapshot() {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Dinorado", 500, 10)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, 1)
	require.NoError(s.T(), err)

	address := models.UserAddress{
		UserID:      s.user.ID,
		FirstName:   "Juan",
		LastName:    "Cruz",
		AddressLine: "12 Rizal St",
		City:        "Quezon City",
		Phone:       "09171234567",
	}
	require.NoError(s.T(), s.db.Create(&address).Error)

	stranger := uuid.New()
	_, err = s.orders.PlaceOrder(s.ctx, s.user, CheckoutRequest{PaymentMethod: "cod", AddressID: &stranger})
	require.ErrorIs(s.T(), err, ErrNotFound)

	order, err := s.orders.PlaceOrder(s.ctx, s.user, CheckoutRequest{PaymentMethod: "cod", AddressID: &address.ID})
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Juan Cruz", order.DeliveryName)
	require.Equal(s.T(), "12 Rizal St", order.DeliveryAddressLine)
	require.Equal(s.T(), &address.ID, order.DeliveryAddressID)
}

func (s *OrderServiceSuite) placeOrder(quantity int) (*models.Order, models.ProductVariant) {
	product, variant := testutil.CreateProduct(s.T(), s.db, "Dinorado", 500, 10)
	_, err := s.cart.AddLine(s.ctx, s.user, product.ID, variant.ID, quantity)
	require.NoError(s.T(), err)
	order, err := s.checkout()
	require.NoError(s.T(), err)
	return order, variant
}

func (s *OrderServiceSuite) TestTransitionsFollowLifecycle() {
	order, _ := s.placeOrder(1)

	_, err := s.orders.Transition(s.ctx, order.ID, models.OrderStatusDelivered)
	require.ErrorIs(s.T(), err, ErrConflict)

	for _, next := range []models.OrderStatus{
		models.OrderStatusProcessing,
		models.OrderStatusOutForDelivery,
		models.OrderStatusDelivered,
	} {
		updated, err := s.orders.Transition(s.ctx, order.ID, next)
		require.NoError(s.T(), err)
		require.Equal(s.T(), next, updated.Status)
	}

	_, err = s.orders.Transition(s.ctx, order.ID, models.OrderStatusCancelled)
	require.ErrorIs(s.T(), err, ErrConflict)

	require.Equal(s.T(), []string{
		EventOrderPlaced,
		EventOrderStatusChanged,
		EventOrderStatusChanged,
		EventOrderStatusChanged,
	}, s.publisher.types())
}

func (s *OrderServiceSuite) TestCancelRestocks() {
	order, variant := s.placeOrder(3)
	require.Equal(s.T(), 7, testutil.Stock(s.T(), s.db, variant))

	updated, err := s.orders.Transition(s.ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(s.T(), err)
	require.Equal(s.T(), models.OrderStatusCancelled, updated.Status)
	require.Equal(s.T(), 10, testutil.Stock(s.T(), s.db, variant))
}

func (s *OrderServiceSuite) TestTransitionErrors() {
	_, err := s.orders.Transition(s.ctx, uuid.New(), models.OrderStatusProcessing)
	require.ErrorIs(s.T(), err, ErrNotFound)

	order, _ := s.placeOrder(1)
	_, err = s.orders.Transition(s.ctx, order.ID, models.OrderStatus("shipped"))
	require.ErrorIs(s.T(), err, ErrInvalidInput)
}

func (s *OrderServiceSuite) TestPublisherFailureDoesNotFailCheckout() {
	s.publisher.err = errors.New("broker down")
	order, _ := s.placeOrder(1)
	require.NotNil(s.T(), order)
	require.Equal(s.T(), int64(1), testutil.Count(s.T(), s.db, &models.Order{}))
}

func (s *OrderServiceSuite) TestReadSide() {
	order, _ := s.placeOrder(2)
	other := identityOf(testutil.CreateUser(s.T(), s.db, "maria@example.com"))

	orders, total, err := s.orders.ListOrders(s.ctx, s.user, "", utils.NewPagination(1, 10))
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(1), total)
	require.Len(s.T(), orders[0].Items, 1)

	_, err = s.orders.GetOrder(s.ctx, other, order.ID)
	require.ErrorIs(s.T(), err, ErrNotFound)

	instructions, err := s.orders.PaymentInstructions(s.ctx, s.user, order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Cash on Delivery", instructions.Method.Name)

	all, total, err := s.orders.ListAllOrders(s.ctx, OrderFilter{Search: order.OrderNumber[len(order.OrderNumber)-4:]}, utils.NewPagination(1, 10))
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(1), total)
	require.NotNil(s.T(), all[0].User)

	_, total, err = s.orders.ListAllOrders(s.ctx, OrderFilter{Status: string(models.OrderStatusDelivered)}, utils.NewPagination(1, 10))
	require.NoError(s.T(), err)
	require.Zero(s.T(), total)
}

func (s *OrderServiceSuite) TestUpdateDelivery() {
	order, _ := s.placeOrder(1)

	updated, err := s.orders.UpdateDelivery(s.ctx, order.ID, DeliveryUpdate{Date: "2024-03-15", Time: "10:00-12:00", Note: " rider assigned "})
	require.NoError(s.T(), err)
	require.Equal(s.T(), "rider assigned", updated.TrackingNote)

	_, err = s.orders.Transition(s.ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(s.T(), err)
	_, err = s.orders.UpdateDelivery(s.ctx, order.ID, DeliveryUpdate{Date: "2024-03-16"})
	require.ErrorIs(s.T(), err, ErrConflict)

	_, err = s.orders.UpdateDelivery(s.ctx, uuid.New(), DeliveryUpdate{})
	require.ErrorIs(s.T(), err, ErrNotFound)
}
