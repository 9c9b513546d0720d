package application

import (
	"context"
	"crypto/subtle"
	"strings"

	"go.uber.org/zap"

	"bookstore/internal/orders/domain"
	"bookstore/internal/orders/ports"
	"bookstore/pkg/errors"
	"bookstore/pkg/logger"
)

// AdminUseCase holds the privileged operations. Every call carries the shared
// admin password and is refused before any data access if it does not match.
type AdminUseCase struct {
	repo      ports.OrderRepository
	publisher ports.EventPublisher
	cache     ports.StatusCache
	password  string
	log       *logger.Logger
}

// NewAdminUseCase creates the admin use case. An empty password disables
// every admin operation with a configuration error.
func NewAdminUseCase(
	repo ports.OrderRepository,
	publisher ports.EventPublisher,
	cache ports.StatusCache,
	password string,
	log *logger.Logger,
) *AdminUseCase {
	return &AdminUseCase{
		repo:      repo,
		publisher: publisher,
		cache:     cache,
		password:  password,
		log:       log,
	}
}

func (uc *AdminUseCase) authorize(ctx context.Context, password string) error {
	if uc.password == "" {
		uc.log.WithContext(ctx).Error("admin password is not configured")
		return errors.NewConfiguration("admin access is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(uc.password)) != 1 {
		uc.log.WithContext(ctx).Warn("admin authentication failed")
		return errors.NewUnauthorized("invalid admin password")
	}
	return nil
}

// ListOrders returns every order, newest first, optionally filtered by status.
func (uc *AdminUseCase) ListOrders(ctx context.Context, password string, status string) ([]*domain.Order, error) {
	if err := uc.authorize(ctx, password); err != nil {
		return nil, err
	}

	filter, err := parseStatusFilter(status, "")
	if err != nil {
		return nil, err
	}

	orders, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return orders, nil
}

// RemoveLineItem takes one book out of an order and lowers its total.
// Allowed whatever the order's status.
func (uc *AdminUseCase) RemoveLineItem(ctx context.Context, orderID string, bookID int, password string) (*domain.Order, error) {
	if err := uc.authorize(ctx, password); err != nil {
		return nil, err
	}
	if err := domain.ValidateOrderID(orderID); err != nil {
		return nil, err
	}

	order, err := uc.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	removed, err := order.RemoveLineItem(bookID)
	if err != nil {
		return nil, err
	}

	if err := uc.repo.Update(ctx, order); err != nil {
		return nil, err
	}

	uc.log.WithContext(ctx).Info("book removed from order",
		zap.String("order_id", order.ID),
		zap.Int("book_id", removed.BookID),
		zap.String("status", string(order.Status)),
		zap.String("new_total", order.Total.String()),
	)
	return order, nil
}

// DeleteOrder removes an order permanently.
func (uc *AdminUseCase) DeleteOrder(ctx context.Context, orderID string, password string) error {
	if err := uc.authorize(ctx, password); err != nil {
		return err
	}
	if err := domain.ValidateOrderID(orderID); err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, orderID); err != nil {
		return err
	}

	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, orderID); err != nil {
			uc.log.WithContext(ctx).Warn("failed to evict deleted order from status cache",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
		}
	}

	uc.log.WithContext(ctx).Info("order deleted", zap.String("order_id", orderID))
	return nil
}

// ResolvePayment records the outcome of a payment confirmed outside the
// processor, such as a bank transfer. Only pending orders can be resolved.
func (uc *AdminUseCase) ResolvePayment(ctx context.Context, orderID string, status string, reference string, password string) (*domain.Order, error) {
	if err := uc.authorize(ctx, password); err != nil {
		return nil, err
	}
	if err := domain.ValidateOrderID(orderID); err != nil {
		return nil, err
	}

	target, ok := domain.ParseOrderStatus(status)
	if !ok || !target.IsTerminal() {
		return nil, domain.ErrInvalidStatus
	}

	order, err := uc.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, domain.NewInvalidTransitionError(order.ID, order.Status, target)
	}

	res := domain.Resolution{
		Status:                target,
		ProviderTransactionID: strings.TrimSpace(reference),
	}
	won, err := uc.repo.ResolvePending(ctx, orderID, res)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve order")
	}
	if !won {
		return nil, errors.NewConflict("order '" + orderID + "' was resolved concurrently")
	}

	if err := order.Resolve(res); err != nil {
		return nil, err
	}
	publishResolved(ctx, uc.publisher, uc.log, order)

	uc.log.WithContext(ctx).Info("order resolved by admin",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

func parseStatusFilter(status string, fallback domain.OrderStatus) (domain.OrderStatus, error) {
	switch {
	case strings.TrimSpace(status) == "":
		return fallback, nil
	case strings.EqualFold(strings.TrimSpace(status), "all"):
		return "", nil
	}
	parsed, ok := domain.ParseOrderStatus(status)
	if !ok {
		return "", errors.NewValidation("unknown status filter", map[string]string{"status": status})
	}
	return parsed, nil
}
