package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/testutil"
)

func TestSubmitRating(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	user := identityOf(testutil.CreateUser(t, db, "juan@example.com"))
	product, variant := testutil.CreateProduct(t, db, "Dinorado", 500, 10)

	cart := NewCartService(db, DefaultCheckoutPolicy())
	orders := NewOrderService(db, DefaultCheckoutPolicy(), nil)
	ratings := NewRatingService(db)

	_, err := cart.AddLine(ctx, user, product.ID, variant.ID, 1)
	require.NoError(t, err)
	order, err := orders.PlaceOrder(ctx, user, CheckoutRequest{PaymentMethod: "cod"})
	require.NoError(t, err)

	_, err = ratings.SubmitRating(ctx, user, order.ID, product.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ratings.SubmitRating(ctx, user, order.ID, product.ID, 6)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ratings.SubmitRating(ctx, user, order.ID, product.ID, 5)
	assert.ErrorIs(t, err, ErrForbidden, "pending orders cannot be rated")

	for _, next := range []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusOutForDelivery, models.OrderStatusDelivered} {
		_, err = orders.Transition(ctx, order.ID, next)
		require.NoError(t, err)
	}

	stranger := identityOf(testutil.CreateUser(t, db, "maria@example.com"))
	_, err = ratings.SubmitRating(ctx, stranger, order.ID, product.ID, 5)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = ratings.SubmitRating(ctx, user, order.ID, uuid.New(), 5)
	assert.ErrorIs(t, err, ErrForbidden)

	first, err := ratings.SubmitRating(ctx, user, order.ID, product.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Rating)

	second, err := ratings.SubmitRating(ctx, user, order.ID, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Rating)

	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Rating{}))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 1, reloaded.RatingCount)
	assert.Equal(t, "3", reloaded.RatingAverage.String())
}

func TestSubmitRatingRequiresIdentity(t *testing.T) {
	_, err := NewRatingService(testutil.NewDB(t)).SubmitRating(context.Background(), nil, uuid.New(), uuid.New(), 4)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
