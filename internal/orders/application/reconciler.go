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

// WebhookInput is a payment-result notification from the processor.
// SaleID is the order id the processor was given.
type WebhookInput struct {
	SaleID           string
	ResultCode       int
	ConfirmationCode string
	NdsSaleID        string
	Amount           decimal.Decimal
}

// Outcome is what a notification did to its order.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeIgnored means no pending order matched; nothing changed.
	OutcomeIgnored Outcome = "ignored"
)

// Reconciler applies payment notifications to pending orders.
// Each order is resolved at most once; repeats and races are ignored.
type Reconciler struct {
	repo      ports.OrderRepository
	publisher ports.EventPublisher
	gateway   ports.PaymentGateway
	verify    bool
	log       *logger.Logger
}

// NewReconciler creates a reconciler. With verify set, every notification is
// checked against the processor's own record of the sale before it is trusted.
func NewReconciler(
	repo ports.OrderRepository,
	publisher ports.EventPublisher,
	gateway ports.PaymentGateway,
	verify bool,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		repo:      repo,
		publisher: publisher,
		gateway:   gateway,
		verify:    verify && gateway != nil,
		log:       log,
	}
}

// Verifies reports whether notifications are checked with the processor,
// in which case their own result code and amount are not used.
func (r *Reconciler) Verifies() bool {
	return r.verify
}

// Reconcile validates one notification and resolves its order.
func (r *Reconciler) Reconcile(ctx context.Context, in WebhookInput) (Outcome, error) {
	log := r.log.WithContext(ctx).With(zap.String("order_id", in.SaleID))

	if err := domain.ValidateOrderID(in.SaleID); err != nil {
		return "", err
	}

	if r.verify {
		verified, err := r.verifySale(ctx, in)
		if err != nil {
			return "", err
		}
		in = verified
	}

	order, err := r.repo.FindPending(ctx, in.SaleID)
	if err != nil {
		return "", errors.Wrap(err, "failed to load order")
	}
	if order == nil {
		log.Warn("webhook for order that is not pending, ignoring")
		return OutcomeIgnored, nil
	}

	if !in.Amount.Equal(order.Total) {
		log.Error("webhook amount does not match order total",
			zap.String("amount", in.Amount.String()),
			zap.String("total", order.Total.String()),
		)
		won, err := r.resolve(ctx, order, domain.Resolution{
			Status:                domain.OrderStatusFailed,
			ProviderTransactionID: in.NdsSaleID,
		})
		if err != nil {
			return "", err
		}
		if !won {
			log.Warn("order resolved concurrently before amount mismatch was recorded")
		}
		return OutcomeFailed, errors.NewSecurityMismatch("amount does not match order total", map[string]string{
			"order_id": order.ID,
			"amount":   in.Amount.String(),
		})
	}

	res := domain.Resolution{
		Status:                domain.OrderStatusFailed,
		ProviderTransactionID: in.NdsSaleID,
	}
	if in.ResultCode == 0 {
		res.Status = domain.OrderStatusCompleted
		res.ProviderConfirmationCode = in.ConfirmationCode
	}

	won, err := r.resolve(ctx, order, res)
	if err != nil {
		return "", err
	}
	if !won {
		log.Info("order already resolved by a concurrent notification")
		return OutcomeIgnored, nil
	}

	log.Info("order resolved by webhook",
		zap.String("status", string(res.Status)),
		zap.Int("result_code", in.ResultCode),
	)
	return Outcome(res.Status), nil
}

// resolve performs the conditional update and publishes the result if this
// call made the transition.
func (r *Reconciler) resolve(ctx context.Context, order *domain.Order, res domain.Resolution) (bool, error) {
	won, err := r.repo.ResolvePending(ctx, order.ID, res)
	if err != nil {
		return false, errors.Wrap(err, "failed to resolve order")
	}
	if !won {
		return false, nil
	}

	if err := order.Resolve(res); err == nil {
		publishResolved(ctx, r.publisher, r.log, order)
	}
	return true, nil
}

func (r *Reconciler) verifySale(ctx context.Context, in WebhookInput) (WebhookInput, error) {
	sale, err := r.gateway.GetSale(ctx, in.SaleID)
	if err != nil {
		if errors.Is(err, errors.CodeUpstream) {
			return in, err
		}
		return in, errors.NewUpstream("failed to verify sale with payment provider", err)
	}

	if !strings.EqualFold(sale.SaleID, in.SaleID) {
		r.log.WithContext(ctx).Error("verified sale id does not match webhook",
			zap.String("webhook_sale_id", in.SaleID),
			zap.String("verified_sale_id", sale.SaleID),
		)
		return in, errors.NewSecurityMismatch("sale id mismatch", map[string]string{
			"order_id": in.SaleID,
		})
	}

	return WebhookInput{
		SaleID:           in.SaleID,
		ResultCode:       sale.ResultCode,
		ConfirmationCode: sale.ConfirmationCode,
		NdsSaleID:        sale.NdsSaleID,
		Amount:           sale.Amount,
	}, nil
}

func publishResolved(ctx context.Context, publisher ports.EventPublisher, log *logger.Logger, order *domain.Order) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishOrderResolved(ctx, order); err != nil {
		log.WithContext(ctx).Error("failed to publish order resolved event",
			zap.Error(err),
			zap.String("order_id", order.ID),
		)
	}
}
