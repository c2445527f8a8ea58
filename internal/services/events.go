package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/example/ricestore/internal/models"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is emitted after an order transaction commits.
type OrderEvent struct {
	Type          string             `json:"type"`
	OrderID       uuid.UUID          `json:"order_id"`
	OrderNumber   string             `json:"order_number"`
	UserID        uuid.UUID          `json:"user_id"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	PaymentMethod string             `json:"payment_method"`
	Status        models.OrderStatus `json:"status"`
	PreviousState models.OrderStatus `json:"previous_status,omitempty"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	ShippingFee   decimal.Decimal    `json:"shipping_fee"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	Currency      string             `json:"currency"`
	Items         []OrderEventItem   `json:"items,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// OrderEventItem is one purchased line inside an OrderEvent.
type OrderEventItem struct {
	ProductName  string          `json:"product_name"`
	VariantLabel string          `json:"variant_label"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

func newOrderEvent(eventType string, order *models.Order, at time.Time) OrderEvent {
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		Subtotal:      order.Subtotal,
		ShippingFee:   order.ShippingFee,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		OccurredAt:    at,
	}
	if order.User != nil {
		event.CustomerName = order.User.FullName()
		event.CustomerEmail = order.User.Email
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, OrderEventItem{
			ProductName:  item.ProductName,
			VariantLabel: item.VariantLabel,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}
	return event
}

// EventPublisher delivers order events to an outside system.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event OrderEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publishAfterCommit sends event and logs any failure. The order is already
// committed so the caller never sees the error.
func publishAfterCommit(ctx context.Context, publisher EventPublisher, event OrderEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("event", event.Type).
			Str("order_number", event.OrderNumber).
			Msg("order event publish failed")
	}
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events as JSON keyed by order id.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error().Msgf("kafka: "+msg, args...)
		}),
	}
	return &KafkaPublisher{writer: writer}
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
