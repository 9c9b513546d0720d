package adapters

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore/internal/orders/domain"
	"bookstore/pkg/events"
	"bookstore/pkg/logger"
)

type capturedMessage struct {
	routingKey string
	body       []byte
}

type fakeMessagePublisher struct {
	messages []capturedMessage
}

func (f *fakeMessagePublisher) Publish(ctx context.Context, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	f.messages = append(f.messages, capturedMessage{routingKey: routingKey, body: body})
	return nil
}

type memStatusCache struct {
	mu       sync.Mutex
	statuses map[string]domain.OrderStatus
}

func (m *memStatusCache) Get(ctx context.Context, id string) (domain.OrderStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	return s, ok, nil
}

func (m *memStatusCache) Set(ctx context.Context, id string, s domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = s
	return nil
}

func (m *memStatusCache) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, id)
	return nil
}

func TestPublisher_ResolvedEventFeedsStatusProjection(t *testing.T) {
	// Arrange
	sink := &fakeMessagePublisher{}
	publisher := NewRabbitMQPublisher(sink, logger.NewNop())
	repo := newTestRepo(t)
	cache := &memStatusCache{statuses: map[string]domain.OrderStatus{}}
	handle := HandleOrderResolved(repo, cache, logger.NewNop())
	order := newPendingOrder(t, 5)
	require.NoError(t, repo.Create(context.Background(), order))
	won, err := repo.ResolvePending(context.Background(), order.ID, domain.Resolution{Status: domain.OrderStatusFailed})
	require.NoError(t, err)
	require.True(t, won)
	order.Status = domain.OrderStatusFailed

	// Act
	require.NoError(t, publisher.PublishOrderResolved(context.Background(), order))
	require.Len(t, sink.messages, 1)
	msg := sink.messages[0]
	err = handle(context.Background(), msg.routingKey, msg.body)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, events.RoutingKeyOrderFailed, msg.routingKey)
	assert.Equal(t, domain.OrderStatusFailed, cache.statuses[order.ID])
}

func TestPublisher_OrderCreated(t *testing.T) {
	sink := &fakeMessagePublisher{}
	publisher := NewRabbitMQPublisher(sink, logger.NewNop())
	order := newPendingOrder(t, 1)
	order.ID = uuid.New().String()

	require.NoError(t, publisher.PublishOrderCreated(context.Background(), order, "iframe"))

	require.Len(t, sink.messages, 1)
	assert.Equal(t, events.RoutingKeyOrderCreated, sink.messages[0].routingKey)
	var event events.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(sink.messages[0].body, &event))
	assert.Equal(t, order.ID, event.Payload.ID)
	assert.Equal(t, "130", event.Payload.Total)
	assert.Equal(t, "iframe", event.Payload.PaymentMethod)
}

func TestHandleOrderResolved_SkipsDeletedOrder(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := newTestRepo(t)
	order := newPendingOrder(t, 5)
	require.NoError(t, repo.Create(ctx, order))
	_, err := repo.ResolvePending(ctx, order.ID, domain.Resolution{Status: domain.OrderStatusCompleted})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, order.ID))

	cache := &memStatusCache{statuses: map[string]domain.OrderStatus{}}
	handle := HandleOrderResolved(repo, cache, logger.NewNop())
	late, _ := json.Marshal(events.NewOrderResolvedEvent(events.OrderResolvedPayload{
		ID: order.ID, Status: string(domain.OrderStatusCompleted),
	}, ""))

	// Act
	err = handle(ctx, events.RoutingKeyOrderCompleted, late)

	// Assert
	require.NoError(t, err)
	_, cached, _ := cache.Get(ctx, order.ID)
	assert.False(t, cached)
}

func TestHandleOrderResolved_RejectsMalformed(t *testing.T) {
	cache := &memStatusCache{statuses: map[string]domain.OrderStatus{}}
	handle := HandleOrderResolved(newTestRepo(t), cache, logger.NewNop())

	assert.Error(t, handle(context.Background(), events.RoutingKeyOrderCompleted, []byte("{not json")))

	pending, _ := json.Marshal(events.NewOrderResolvedEvent(events.OrderResolvedPayload{
		ID: uuid.New().String(), Status: "pending",
	}, ""))
	assert.Error(t, handle(context.Background(), events.RoutingKeyOrderCompleted, pending))
	assert.Empty(t, cache.statuses)
}
