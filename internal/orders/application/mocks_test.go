package application

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"bookstore/internal/orders/domain"
	"bookstore/internal/orders/ports"
)

// MockOrderRepository is an in-memory OrderRepository
type MockOrderRepository struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	creates int
	// createErr, if set, is returned by Create
	createErr error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*domain.Order)}
}

func clone(o *domain.Order) *domain.Order {
	c := *o
	c.Cart = append([]domain.LineItem(nil), o.Cart...)
	return &c
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	order.ID = uuid.New().String()
	m.orders[order.ID] = clone(order)
	m.creates++
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, domain.NewOrderNotFound(id)
	}
	return clone(order), nil
}

func (m *MockOrderRepository) FindPending(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != domain.OrderStatusPending {
		return nil, nil
	}
	return clone(order), nil
}

func (m *MockOrderRepository) ResolvePending(ctx context.Context, id string, res domain.Resolution) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != domain.OrderStatusPending {
		return false, nil
	}
	return true, order.Resolve(res)
}

func (m *MockOrderRepository) List(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Order
	for _, order := range m.orders {
		if status == "" || order.Status == status {
			result = append(result, clone(order))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return domain.NewOrderNotFound(order.ID)
	}
	m.orders[order.ID] = clone(order)
	return nil
}

func (m *MockOrderRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return domain.NewOrderNotFound(id)
	}
	delete(m.orders, id)
	return nil
}

func (m *MockOrderRepository) get(id string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu       sync.Mutex
	created  []string
	resolved []domain.OrderStatus
}

func (m *MockEventPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, order.ID)
	return nil
}

func (m *MockEventPublisher) PublishOrderResolved(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, order.Status)
	return nil
}

// MockStatusCache is a map-backed StatusCache
type MockStatusCache struct {
	mu       sync.Mutex
	statuses map[string]domain.OrderStatus
}

func NewMockStatusCache() *MockStatusCache {
	return &MockStatusCache{statuses: make(map[string]domain.OrderStatus)}
}

func (m *MockStatusCache) Get(ctx context.Context, id string) (domain.OrderStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	return s, ok, nil
}

func (m *MockStatusCache) Set(ctx context.Context, id string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func (m *MockStatusCache) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, id)
	return nil
}

// MockPaymentGateway returns canned processor responses
type MockPaymentGateway struct {
	link     string
	linkErr  error
	sale     *ports.SaleRecord
	saleErr  error
	requests []ports.SaleLinkRequest
}

func (m *MockPaymentGateway) CreateSaleLink(ctx context.Context, req ports.SaleLinkRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.linkErr != nil {
		return "", m.linkErr
	}
	return m.link, nil
}

func (m *MockPaymentGateway) GetSale(ctx context.Context, saleID string) (*ports.SaleRecord, error) {
	if m.saleErr != nil {
		return nil, m.saleErr
	}
	return m.sale, nil
}
