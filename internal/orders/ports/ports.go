package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"bookstore/internal/orders/domain"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// Create inserts a pending order and assigns its ID
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// FindPending retrieves the order only while it is still pending.
	// It returns (nil, nil) when no pending order has that ID.
	FindPending(ctx context.Context, id string) (*domain.Order, error)

	// ResolvePending moves a pending order to a terminal status in one
	// conditional update. It returns false when the order was not pending.
	ResolvePending(ctx context.Context, id string, res domain.Resolution) (bool, error)

	// List returns orders, newest first. An empty status lists all.
	List(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)

	// Update persists the cart and total of an existing order together
	Update(ctx context.Context, order *domain.Order) error

	// Delete removes an order permanently
	Delete(ctx context.Context, id string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order, paymentMethod string) error
	PublishOrderResolved(ctx context.Context, order *domain.Order) error
}

// StatusCache keeps terminal order statuses for the poll endpoint.
type StatusCache interface {
	// Get returns ok=false on a miss
	Get(ctx context.Context, orderID string) (status domain.OrderStatus, ok bool, err error)
	Set(ctx context.Context, orderID string, status domain.OrderStatus) error
	Delete(ctx context.Context, orderID string) error
}

// SaleLinkRequest asks the processor for a hosted payment page.
type SaleLinkRequest struct {
	SaleID      string
	Amount      decimal.Decimal
	FullName    string
	SuccessURL  string
	FailureURL  string
	CallbackURL string
}

// SaleRecord is the processor's own view of a sale.
type SaleRecord struct {
	SaleID           string
	ResultCode       int
	ConfirmationCode string
	NdsSaleID        string
	Amount           decimal.Decimal
}

// PaymentGateway is the server-to-server side of the payment processor.
type PaymentGateway interface {
	CreateSaleLink(ctx context.Context, req SaleLinkRequest) (string, error)
	GetSale(ctx context.Context, saleID string) (*SaleRecord, error)
}
