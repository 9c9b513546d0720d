package application

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookstore/internal/orders/domain"
	"bookstore/internal/orders/ports"
	"bookstore/pkg/errors"
	"bookstore/pkg/logger"
)

// OrderUseCase handles the student-facing side: creating orders and reporting status
type OrderUseCase struct {
	repo      ports.OrderRepository
	publisher ports.EventPublisher
	cache     ports.StatusCache
	initiator PaymentInitiator
	log       *logger.Logger
}

// NewOrderUseCase creates a new order use case.
// publisher and cache may be nil.
func NewOrderUseCase(
	repo ports.OrderRepository,
	publisher ports.EventPublisher,
	cache ports.StatusCache,
	initiator PaymentInitiator,
	log *logger.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		repo:      repo,
		publisher: publisher,
		cache:     cache,
		initiator: initiator,
		log:       log,
	}
}

// CreateOrderInput represents the input for creating an order
type CreateOrderInput struct {
	StudentName      string
	Cart             []domain.LineItem
	Total            decimal.Decimal
	PaymentReference string
}

// CreateOrderOutput represents the output of creating an order
type CreateOrderOutput struct {
	Order   *domain.Order
	Payment *PaymentInstructions
}

// CreatePendingOrder validates the cart, stores a pending order and asks the
// payment strategy how the student should pay. Every call stores a new order.
func (uc *OrderUseCase) CreatePendingOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderOutput, error) {
	order, err := domain.NewOrder(input.StudentName, input.Cart, input.Total)
	if err != nil {
		return nil, err
	}

	if err := uc.initiator.Preflight(input); err != nil {
		if errors.Is(err, errors.CodeConfiguration) {
			uc.log.WithContext(ctx).Error("payment strategy not configured",
				zap.String("method", uc.initiator.Method()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	order.PaymentProvider = uc.initiator.Provider()
	if uc.initiator.Method() == MethodBankTransfer {
		order.PaymentReference = strings.TrimSpace(input.PaymentReference)
	}

	if err := uc.repo.Create(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}

	payment, err := uc.initiator.Initiate(ctx, order)
	if err != nil {
		// The order stays pending; a retry creates a fresh one.
		uc.log.WithContext(ctx).Error("failed to initiate payment",
			zap.String("order_id", order.ID),
			zap.String("method", uc.initiator.Method()),
			zap.Error(err),
		)
		return nil, err
	}

	if uc.publisher != nil {
		if err := uc.publisher.PublishOrderCreated(ctx, order, payment.Method); err != nil {
			uc.log.WithContext(ctx).Error("failed to publish order created event",
				zap.Error(err),
				zap.String("order_id", order.ID),
			)
		}
	}

	uc.log.WithContext(ctx).Info("order created",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Cart)),
		zap.String("total", order.Total.String()),
		zap.String("method", payment.Method),
	)

	return &CreateOrderOutput{Order: order, Payment: payment}, nil
}

// GetOrderStatus returns the current status of an order.
// Terminal statuses are served from the cache when one is configured.
func (uc *OrderUseCase) GetOrderStatus(ctx context.Context, id string) (domain.OrderStatus, error) {
	if err := domain.ValidateOrderID(id); err != nil {
		return "", err
	}

	if uc.cache != nil {
		status, ok, err := uc.cache.Get(ctx, id)
		if err != nil {
			uc.log.WithContext(ctx).Warn("status cache read failed", zap.String("order_id", id), zap.Error(err))
		} else if ok {
			return status, nil
		}
	}

	order, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	if uc.cache != nil && order.Status.IsTerminal() {
		if err := uc.cache.Set(ctx, id, order.Status); err != nil {
			uc.log.WithContext(ctx).Warn("status cache write failed", zap.String("order_id", id), zap.Error(err))
		}
	}

	return order.Status, nil
}
