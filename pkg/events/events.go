package events

import "time"

// Exchange names
const (
	ExchangeOrders = "orders.events"
)

// Routing keys
const (
	RoutingKeyOrderCreated   = "order.created"
	RoutingKeyOrderCompleted = "order.completed"
	RoutingKeyOrderFailed    = "order.failed"
)

// QueueOrderResolved receives order.completed and order.failed for the status projection.
const QueueOrderResolved = "bookstore.order-resolved"

// OrderCreatedEvent is published when a pending order is stored
type OrderCreatedEvent struct {
	Version   string              `json:"version"`
	EventType string              `json:"event_type"`
	Timestamp time.Time           `json:"timestamp"`
	TraceID   string              `json:"trace_id"`
	Payload   OrderCreatedPayload `json:"payload"`
}

// OrderCreatedPayload contains order data
type OrderCreatedPayload struct {
	ID            string    `json:"id"`
	StudentName   string    `json:"student_name"`
	Total         string    `json:"total"`
	Items         int       `json:"items"`
	PaymentMethod string    `json:"payment_method"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(payload OrderCreatedPayload, traceID string) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		Version:   "1.0",
		EventType: RoutingKeyOrderCreated,
		Timestamp: time.Now(),
		TraceID:   traceID,
		Payload:   payload,
	}
}

// OrderResolvedEvent is published when an order leaves pending
type OrderResolvedEvent struct {
	Version   string               `json:"version"`
	EventType string               `json:"event_type"`
	Timestamp time.Time            `json:"timestamp"`
	TraceID   string               `json:"trace_id"`
	Payload   OrderResolvedPayload `json:"payload"`
}

// OrderResolvedPayload carries the terminal status and provider metadata
type OrderResolvedPayload struct {
	ID                    string    `json:"id"`
	Status                string    `json:"status"`
	Total                 string    `json:"total"`
	PaymentProvider       string    `json:"payment_provider,omitempty"`
	ProviderTransactionID string    `json:"provider_transaction_id,omitempty"`
	ResolvedAt            time.Time `json:"resolved_at"`
}

// RoutingKeyForStatus returns the routing key for a terminal status.
func RoutingKeyForStatus(status string) string {
	if status == "completed" {
		return RoutingKeyOrderCompleted
	}
	return RoutingKeyOrderFailed
}

// NewOrderResolvedEvent creates a new OrderResolvedEvent
func NewOrderResolvedEvent(payload OrderResolvedPayload, traceID string) *OrderResolvedEvent {
	return &OrderResolvedEvent{
		Version:   "1.0",
		EventType: RoutingKeyForStatus(payload.Status),
		Timestamp: time.Now(),
		TraceID:   traceID,
		Payload:   payload,
	}
}
