package application

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"bookstore/internal/orders/domain"
	"bookstore/internal/orders/ports"
	"bookstore/pkg/errors"
)

// Payment methods, one per deployment.
const (
	MethodIframe       = "iframe"
	MethodRedirect     = "redirect"
	MethodBankTransfer = "bank_transfer"
)

// MinPaymentReferenceLength is the shortest bank-transfer reference accepted.
const MinPaymentReferenceLength = 5

// BankAccount is where bank-transfer students send money.
type BankAccount struct {
	AccountName   string
	BankName      string
	Branch        string
	AccountNumber string
}

func (b BankAccount) configured() bool {
	return b.AccountName != "" && b.BankName != "" && b.Branch != "" && b.AccountNumber != ""
}

// PaymentInstructions tells the client how to pay for a new order.
type PaymentInstructions struct {
	Method      string
	Amount      decimal.Decimal
	SaleLink    string
	CallbackURL string
	Bank        *BankAccount
}

// PaymentInitiator is one way of getting a pending order paid.
type PaymentInitiator interface {
	// Method names the strategy
	Method() string
	// Provider is recorded on orders created with this strategy
	Provider() string
	// Preflight rejects a request before anything is stored
	Preflight(input CreateOrderInput) error
	// Initiate prepares payment for a stored pending order
	Initiate(ctx context.Context, order *domain.Order) (*PaymentInstructions, error)
}

// PaymentURLs derives the processor-facing URLs from the public base URL.
type PaymentURLs struct {
	BaseURL string
}

// Callback is where the processor posts payment results.
func (u PaymentURLs) Callback() string {
	return u.BaseURL + "/api/v1/payments/webhook"
}

// Success is where the student lands after paying.
func (u PaymentURLs) Success(orderID string) string {
	return u.BaseURL + "/payment/success?orderId=" + orderID
}

// Failure is where the student lands after a declined payment.
func (u PaymentURLs) Failure(orderID string) string {
	return u.BaseURL + "/payment/failure?orderId=" + orderID
}

// HostedFieldsInitiator leaves the payment page to the client, which embeds
// the processor's iframe for the returned order id.
type HostedFieldsInitiator struct {
	URLs PaymentURLs
}

// Method returns MethodIframe.
func (h *HostedFieldsInitiator) Method() string { return MethodIframe }

// Provider returns the processor recorded on iframe orders.
func (h *HostedFieldsInitiator) Provider() string { return domain.ProviderNedarimPlus }

// Preflight always passes; the iframe needs no server credentials.
func (h *HostedFieldsInitiator) Preflight(CreateOrderInput) error { return nil }

// Initiate returns the amount and the webhook URL the iframe reports to.
func (h *HostedFieldsInitiator) Initiate(_ context.Context, order *domain.Order) (*PaymentInstructions, error) {
	return &PaymentInstructions{
		Method:      MethodIframe,
		Amount:      order.Total,
		CallbackURL: h.URLs.Callback(),
	}, nil
}

// SaleLinkInitiator asks the processor for a hosted sale page and returns its link.
type SaleLinkInitiator struct {
	Gateway ports.PaymentGateway
	// Configured is false when the processor API credentials are missing.
	Configured bool
	URLs       PaymentURLs
}

// Method returns MethodRedirect.
func (s *SaleLinkInitiator) Method() string { return MethodRedirect }

// Provider returns the processor recorded on redirect orders.
func (s *SaleLinkInitiator) Provider() string { return domain.ProviderNedarimPlus }

// Preflight fails when the processor API is not configured.
func (s *SaleLinkInitiator) Preflight(CreateOrderInput) error {
	if !s.Configured || s.Gateway == nil {
		return errors.NewConfiguration("payment provider is not configured")
	}
	return nil
}

// Initiate creates the sale page for order. Processor failures are upstream
// errors and leave the order pending.
func (s *SaleLinkInitiator) Initiate(ctx context.Context, order *domain.Order) (*PaymentInstructions, error) {
	link, err := s.Gateway.CreateSaleLink(ctx, ports.SaleLinkRequest{
		SaleID:      order.ID,
		Amount:      order.Total,
		FullName:    order.StudentName,
		SuccessURL:  s.URLs.Success(order.ID),
		FailureURL:  s.URLs.Failure(order.ID),
		CallbackURL: s.URLs.Callback(),
	})
	if err != nil {
		if errors.Is(err, errors.CodeUpstream) || errors.Is(err, errors.CodeConfiguration) {
			return nil, err
		}
		return nil, errors.NewUpstream("failed to create payment link", err)
	}

	return &PaymentInstructions{
		Method:   MethodRedirect,
		Amount:   order.Total,
		SaleLink: link,
	}, nil
}

// BankTransferInitiator shows the school's account. An admin confirms
// receipt later through the resolve operation.
type BankTransferInitiator struct {
	Account BankAccount
}

// Method returns MethodBankTransfer.
func (b *BankTransferInitiator) Method() string { return MethodBankTransfer }

// Provider returns the provider recorded on bank-transfer orders.
func (b *BankTransferInitiator) Provider() string { return domain.ProviderBankTransfer }

// Preflight requires a payment reference and complete account details.
func (b *BankTransferInitiator) Preflight(input CreateOrderInput) error {
	if utf8.RuneCountInString(strings.TrimSpace(input.PaymentReference)) < MinPaymentReferenceLength {
		return domain.ErrPaymentReference
	}
	if !b.Account.configured() {
		return errors.NewConfiguration("bank account details are not configured")
	}
	return nil
}

// Initiate returns the account the student transfers to.
func (b *BankTransferInitiator) Initiate(_ context.Context, order *domain.Order) (*PaymentInstructions, error) {
	account := b.Account
	return &PaymentInstructions{
		Method: MethodBankTransfer,
		Amount: order.Total,
		Bank:   &account,
	}, nil
}

// PaymentSettings selects and configures the deployment's strategy.
type PaymentSettings struct {
	Method            string
	Gateway           ports.PaymentGateway
	GatewayConfigured bool
	URLs              PaymentURLs
	Bank              BankAccount
}

// NewPaymentInitiator returns the strategy named by settings.Method.
func NewPaymentInitiator(settings PaymentSettings) (PaymentInitiator, error) {
	switch settings.Method {
	case MethodIframe, "":
		return &HostedFieldsInitiator{URLs: settings.URLs}, nil
	case MethodRedirect:
		return &SaleLinkInitiator{
			Gateway:    settings.Gateway,
			Configured: settings.GatewayConfigured,
			URLs:       settings.URLs,
		}, nil
	case MethodBankTransfer:
		return &BankTransferInitiator{Account: settings.Bank}, nil
	}
	return nil, errors.NewConfiguration("unknown payment strategy " + settings.Method)
}
