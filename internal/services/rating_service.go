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

// RatingService records product ratings from delivered orders.
type RatingService struct {
	db *gorm.DB
}

// NewRatingService constructs RatingService.
func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// SubmitRating stores or overwrites the user's rating of a product bought in
// orderID and refreshes the product's average.
func (s *RatingService) SubmitRating(ctx context.Context, user *CustomerIdentity, orderID, productID uuid.UUID, rating int) (*models.Rating, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	if rating < 1 || rating > 5 {
		return nil, invalidInput("rating must be between 1 and 5")
	}

	var saved models.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ? AND user_id = ?", orderID, user.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return forbidden("you can only rate products from your own orders")
			}
			return err
		}
		if order.Status != models.OrderStatusDelivered {
			return forbidden("you can only rate products from delivered orders")
		}

		var lines int64
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND product_id = ?", orderID, productID).
			Count(&lines).Error; err != nil {
			return err
		}
		if lines == 0 {
			return forbidden("this product is not part of the order")
		}

		candidate := models.Rating{
			UserID:    user.ID,
			ProductID: productID,
			OrderID:   orderID,
			Rating:    rating,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "order_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"rating":     rating,
				"updated_at": time.Now(),
			}),
		}).Create(&candidate).Error; err != nil {
			return err
		}

		if err := refreshProductRating(tx, productID); err != nil {
			return err
		}

		return tx.First(&saved, "user_id = ? AND product_id = ? AND order_id = ?", user.ID, productID, orderID).Error
	})
	if err != nil {
		return nil, storeError(err)
	}

	return &saved, nil
}

func refreshProductRating(tx *gorm.DB, productID uuid.UUID) error {
	var agg struct {
		Average float64
		Count   int64
	}
	if err := tx.Model(&models.Rating{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&agg).Error; err != nil {
		return err
	}

	return tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]interface{}{
		"rating_average": decimal.NewFromFloat(agg.Average).Round(2),
		"rating_count":   agg.Count,
	}).Error
}
