package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"bookstore/internal/orders/domain"
	"bookstore/internal/orders/ports"
	apperrors "bookstore/pkg/errors"
	"bookstore/pkg/events"
	"bookstore/pkg/logger"
	"bookstore/pkg/rabbitmq"
)

// OrderResolvedConsumer projects order.completed and order.failed events
// into the status cache read by the poll endpoint.
type OrderResolvedConsumer struct {
	consumer *rabbitmq.Consumer
	orders   OrderLookup
	cache    ports.StatusCache
	log      *logger.Logger
}

// OrderLookup is the part of the order store the projection reads.
type OrderLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

// NewOrderResolvedConsumer declares the projection queue and binds it
func NewOrderResolvedConsumer(conn *rabbitmq.Connection, orders OrderLookup, cache ports.StatusCache, log *logger.Logger) (*OrderResolvedConsumer, error) {
	consumer, err := rabbitmq.NewConsumer(
		conn,
		events.QueueOrderResolved,
		events.ExchangeOrders,
		[]string{events.RoutingKeyOrderCompleted, events.RoutingKeyOrderFailed},
		log,
	)
	if err != nil {
		return nil, err
	}

	return &OrderResolvedConsumer{
		consumer: consumer,
		orders:   orders,
		cache:    cache,
		log:      log,
	}, nil
}

// Start starts consuming resolved-order events
func (c *OrderResolvedConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, HandleOrderResolved(c.orders, c.cache, c.log))
}

// HandleOrderResolved returns the message handler that writes terminal
// statuses to cache. Malformed events are rejected so they dead-letter.
// The cached status is the stored one; events for orders that have since
// been deleted are dropped.
func HandleOrderResolved(orders OrderLookup, cache ports.StatusCache, log *logger.Logger) rabbitmq.MessageHandler {
	return func(ctx context.Context, routingKey string, body []byte) error {
		var event events.OrderResolvedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("unmarshal %s: %w", routingKey, err)
		}

		status, ok := domain.ParseOrderStatus(event.Payload.Status)
		if !ok || !status.IsTerminal() {
			return fmt.Errorf("event %s carries non-terminal status %q", routingKey, event.Payload.Status)
		}
		if err := domain.ValidateOrderID(event.Payload.ID); err != nil {
			return fmt.Errorf("event %s carries invalid order id %q", routingKey, event.Payload.ID)
		}

		order, err := orders.GetByID(ctx, event.Payload.ID)
		if apperrors.Is(err, apperrors.CodeNotFound) {
			log.WithContext(ctx).Debug("skipping event for deleted order",
				zap.String("order_id", event.Payload.ID),
			)
			return cache.Delete(ctx, event.Payload.ID)
		}
		if err != nil {
			return fmt.Errorf("look up order: %w", err)
		}
		if !order.Status.IsTerminal() {
			return nil
		}

		if err := cache.Set(ctx, order.ID, order.Status); err != nil {
			return fmt.Errorf("cache order status: %w", err)
		}

		log.WithContext(ctx).Debug("order status projected",
			zap.String("order_id", order.ID),
			zap.String("event_status", string(status)),
			zap.String("status", string(order.Status)),
		)
		return nil
	}
}
