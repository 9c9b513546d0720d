package application

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore/internal/orders/domain"
	"bookstore/internal/orders/ports"
	"bookstore/pkg/errors"
	"bookstore/pkg/logger"
)

func seedPending(t *testing.T, repo *MockOrderRepository) *domain.Order {
	t.Helper()
	uc := NewOrderUseCase(repo, nil, nil, &HostedFieldsInitiator{}, logger.NewNop())
	out, err := uc.CreatePendingOrder(context.Background(), danaInput())
	require.NoError(t, err)
	return out.Order
}

func successWebhook(id string) WebhookInput {
	return WebhookInput{
		SaleID:           id,
		ResultCode:       0,
		ConfirmationCode: "C1",
		NdsSaleID:        "N1",
		Amount:           decimal.NewFromInt(50),
	}
}

func TestReconcile_SuccessIsIdempotent(t *testing.T) {
	// Arrange
	repo := NewMockOrderRepository()
	publisher := &MockEventPublisher{}
	order := seedPending(t, repo)
	r := NewReconciler(repo, publisher, nil, false, logger.NewNop())

	// Act
	first, err1 := r.Reconcile(context.Background(), successWebhook(order.ID))
	afterFirst := *repo.get(order.ID)
	second, err2 := r.Reconcile(context.Background(), successWebhook(order.ID))
	afterSecond := *repo.get(order.ID)

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, OutcomeCompleted, first)
	assert.Equal(t, OutcomeIgnored, second)
	assert.Equal(t, domain.OrderStatusCompleted, afterFirst.Status)
	assert.Equal(t, "N1", afterFirst.ProviderTransactionID)
	assert.Equal(t, "C1", afterFirst.ProviderConfirmationCode)
	assert.Equal(t, afterFirst.Status, afterSecond.Status)
	assert.Equal(t, afterFirst.UpdatedAt, afterSecond.UpdatedAt)
	assert.Equal(t, []domain.OrderStatus{domain.OrderStatusCompleted}, publisher.resolved)
}

func TestReconcile_NonZeroResultFails(t *testing.T) {
	repo := NewMockOrderRepository()
	order := seedPending(t, repo)
	r := NewReconciler(repo, nil, nil, false, logger.NewNop())
	in := successWebhook(order.ID)
	in.ResultCode = 3

	outcome, err := r.Reconcile(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	stored := repo.get(order.ID)
	assert.Equal(t, domain.OrderStatusFailed, stored.Status)
	assert.Equal(t, "N1", stored.ProviderTransactionID)
	assert.Empty(t, stored.ProviderConfirmationCode)
}

func TestReconcile_AmountMismatchForcesFailed(t *testing.T) {
	// Arrange
	repo := NewMockOrderRepository()
	order := seedPending(t, repo)
	r := NewReconciler(repo, nil, nil, false, logger.NewNop())
	in := successWebhook(order.ID)
	in.Amount = decimal.NewFromInt(999)

	// Act
	outcome, err := r.Reconcile(context.Background(), in)

	// Assert
	assert.True(t, errors.Is(err, errors.CodeSecurityMismatch))
	assert.Equal(t, OutcomeFailed, outcome)
	stored := repo.get(order.ID)
	assert.Equal(t, domain.OrderStatusFailed, stored.Status)
	assert.Equal(t, "N1", stored.ProviderTransactionID)
	assert.Empty(t, stored.ProviderConfirmationCode)
}

func TestReconcile_AmountComparesNumerically(t *testing.T) {
	repo := NewMockOrderRepository()
	order := seedPending(t, repo)
	r := NewReconciler(repo, nil, nil, false, logger.NewNop())
	in := successWebhook(order.ID)
	in.Amount = decimal.RequireFromString("50.00")

	outcome, err := r.Reconcile(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestReconcile_InvalidSaleIDTouchesNothing(t *testing.T) {
	repo := NewMockOrderRepository()
	order := seedPending(t, repo)
	r := NewReconciler(repo, nil, nil, false, logger.NewNop())

	_, err := r.Reconcile(context.Background(), successWebhook("12345"))

	assert.True(t, errors.Is(err, errors.CodeValidation))
	assert.Equal(t, domain.OrderStatusPending, repo.get(order.ID).Status)
}

func TestReconcile_UnknownOrderIsIgnored(t *testing.T) {
	r := NewReconciler(NewMockOrderRepository(), nil, nil, false, logger.NewNop())

	outcome, err := r.Reconcile(context.Background(), successWebhook("0b6f2a8e-59b5-4a3c-9f66-0d2a4c1b7e11"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestReconcile_ConcurrentDeliveriesResolveOnce(t *testing.T) {
	// Arrange
	repo := NewMockOrderRepository()
	publisher := &MockEventPublisher{}
	order := seedPending(t, repo)
	r := NewReconciler(repo, publisher, nil, false, logger.NewNop())

	// Act
	var wg sync.WaitGroup
	outcomes := make([]Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = r.Reconcile(context.Background(), successWebhook(order.ID))
		}(i)
	}
	wg.Wait()

	// Assert
	completed := 0
	for _, o := range outcomes {
		if o == OutcomeCompleted {
			completed++
		} else {
			assert.Equal(t, OutcomeIgnored, o)
		}
	}
	assert.Equal(t, 1, completed)
	assert.Len(t, publisher.resolved, 1)
}

func TestReconcile_VerifiedSaleOverridesPayload(t *testing.T) {
	// Arrange
	repo := NewMockOrderRepository()
	order := seedPending(t, repo)
	gateway := &MockPaymentGateway{sale: &ports.SaleRecord{
		SaleID:           order.ID,
		ResultCode:       7,
		NdsSaleID:        "N-verified",
		Amount:           decimal.NewFromInt(50),
		ConfirmationCode: "",
	}}
	r := NewReconciler(repo, nil, gateway, true, logger.NewNop())

	// Act: the payload claims success, the processor says declined
	outcome, err := r.Reconcile(context.Background(), successWebhook(order.ID))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, "N-verified", repo.get(order.ID).ProviderTransactionID)
}

func TestReconcile_VerifiedSaleIDMismatch(t *testing.T) {
	repo := NewMockOrderRepository()
	order := seedPending(t, repo)
	gateway := &MockPaymentGateway{sale: &ports.SaleRecord{SaleID: "someone-else", Amount: decimal.NewFromInt(50)}}
	r := NewReconciler(repo, nil, gateway, true, logger.NewNop())

	_, err := r.Reconcile(context.Background(), successWebhook(order.ID))

	assert.True(t, errors.Is(err, errors.CodeSecurityMismatch))
	assert.Equal(t, domain.OrderStatusPending, repo.get(order.ID).Status)
}

func TestReconcile_VerificationFailureLeavesPending(t *testing.T) {
	repo := NewMockOrderRepository()
	order := seedPending(t, repo)
	gateway := &MockPaymentGateway{saleErr: stderrors.New("timeout")}
	r := NewReconciler(repo, nil, gateway, true, logger.NewNop())

	_, err := r.Reconcile(context.Background(), successWebhook(order.ID))

	assert.True(t, errors.Is(err, errors.CodeUpstream))
	assert.Equal(t, domain.OrderStatusPending, repo.get(order.ID).Status)
}

func TestReconciler_VerifiesNeedsGateway(t *testing.T) {
	repo := NewMockOrderRepository()

	assert.True(t, NewReconciler(repo, nil, &MockPaymentGateway{}, true, logger.NewNop()).Verifies())
	assert.False(t, NewReconciler(repo, nil, &MockPaymentGateway{}, false, logger.NewNop()).Verifies())
	assert.False(t, NewReconciler(repo, nil, nil, true, logger.NewNop()).Verifies())
}
