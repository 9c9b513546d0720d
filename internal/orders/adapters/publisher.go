package adapters

import (
	"context"
	"time"

	"bookstore/internal/orders/domain"
	"bookstore/pkg/events"
	"bookstore/pkg/logger"
)

// MessagePublisher is the part of rabbitmq.Publisher the adapter needs.
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, message interface{}) error
}

// RabbitMQPublisher implements EventPublisher using RabbitMQ
type RabbitMQPublisher struct {
	publisher MessagePublisher
	log       *logger.Logger
}

// NewRabbitMQPublisher creates a new RabbitMQ event publisher
func NewRabbitMQPublisher(publisher MessagePublisher, log *logger.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		publisher: publisher,
		log:       log,
	}
}

// PublishOrderCreated publishes an order.created event
func (p *RabbitMQPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order, paymentMethod string) error {
	event := events.NewOrderCreatedEvent(events.OrderCreatedPayload{
		ID:            order.ID,
		StudentName:   order.StudentName,
		Total:         order.Total.String(),
		Items:         len(order.Cart),
		PaymentMethod: paymentMethod,
		CreatedAt:     order.CreatedAt,
	}, logger.GetTraceID(ctx))

	return p.publisher.Publish(ctx, events.RoutingKeyOrderCreated, event)
}

// PublishOrderResolved publishes order.completed or order.failed
func (p *RabbitMQPublisher) PublishOrderResolved(ctx context.Context, order *domain.Order) error {
	event := events.NewOrderResolvedEvent(events.OrderResolvedPayload{
		ID:                    order.ID,
		Status:                string(order.Status),
		Total:                 order.Total.String(),
		PaymentProvider:       order.PaymentProvider,
		ProviderTransactionID: order.ProviderTransactionID,
		ResolvedAt:            time.Now().UTC(),
	}, logger.GetTraceID(ctx))

	return p.publisher.Publish(ctx, event.EventType, event)
}
