// Package storefront is the student-facing client of the bookstore API: it
// places orders, builds the gateway payment page URL and waits for the
// payment result.
package storefront

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookstore/internal/orders/domain"
	apperrors "bookstore/pkg/errors"
	"bookstore/pkg/logger"
	"bookstore/pkg/middleware"
)

// Client talks to the bookstore HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client. tlsConfig may be nil.
func NewClient(baseURL string, tlsConfig *tls.Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// BankAccount is where a bank-transfer payment goes.
type BankAccount struct {
	AccountName   string `json:"accountName"`
	BankName      string `json:"bankName"`
	Branch        string `json:"branch"`
	AccountNumber string `json:"accountNumber"`
}

// Payment is the server's answer to how an order should be paid.
type Payment struct {
	Method      string          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	SaleLink    string          `json:"saleLink,omitempty"`
	CallbackURL string          `json:"callbackUrl,omitempty"`
	Bank        *BankAccount    `json:"bank,omitempty"`
}

// PlacedOrder is a freshly created pending order.
type PlacedOrder struct {
	OrderID string  `json:"orderId"`
	Payment Payment `json:"payment"`
}

// Amounts are sent as JSON numbers.
type cartItem struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	GroupID  string  `json:"groupId,omitempty"`
}

type createOrderBody struct {
	StudentName      string     `json:"studentName"`
	Cart             []cartItem `json:"cart"`
	Total            float64    `json:"total"`
	PaymentReference string     `json:"paymentReference,omitempty"`
}

// CreateOrder submits the cart and returns the new order id with payment
// instructions. The cart total is computed here.
func (c *Client) CreateOrder(ctx context.Context, studentName string, cart *domain.Cart, paymentReference string) (*PlacedOrder, error) {
	items := cart.Items()
	body := createOrderBody{
		StudentName:      studentName,
		Cart:             make([]cartItem, len(items)),
		Total:            cart.Total().InexactFloat64(),
		PaymentReference: paymentReference,
	}
	for i, item := range items {
		body.Cart[i] = cartItem{
			ID:       item.BookID,
			Title:    item.Title,
			Author:   item.Author,
			Price:    item.Price.InexactFloat64(),
			Quantity: item.Quantity,
			GroupID:  item.GroupID,
		}
	}

	var placed PlacedOrder
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", body, &placed); err != nil {
		return nil, err
	}
	if placed.OrderID == "" {
		return nil, apperrors.NewUpstream("server returned no order id", nil)
	}
	return &placed, nil
}

// OrderStatus returns the current status of an order.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	path := "/api/v1/orders/status?orderId=" + url.QueryEscape(orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	status, ok := domain.ParseOrderStatus(resp.Status)
	if !ok {
		return "", apperrors.NewUpstream("unknown order status "+resp.Status, nil)
	}
	return status, nil
}

// Catalog fetches the book list.
func (c *Client) Catalog(ctx context.Context) ([]domain.Book, error) {
	var resp []struct {
		ID      int             `json:"id"`
		Title   string          `json:"title"`
		Author  string          `json:"author"`
		Price   decimal.Decimal `json:"price"`
		GroupID string          `json:"groupId"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/catalog", nil, &resp); err != nil {
		return nil, err
	}

	books := make([]domain.Book, len(resp))
	for i, b := range resp {
		books[i] = domain.Book{ID: b.ID, Title: b.Title, Author: b.Author, Price: b.Price, GroupID: b.GroupID}
	}
	return books, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternal("failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternal("failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	traceID := logger.GetTraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	req.Header.Set(middleware.TraceIDHeader, traceID)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewUpstream("bookstore API unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.NewUpstream("failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewUpstream("malformed response from bookstore API", err)
	}
	return nil
}

// decodeError turns the server's error envelope back into an AppError.
func decodeError(status int, data []byte) error {
	var envelope apperrors.ErrorResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Code != "" {
		return &apperrors.AppError{
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
			Details: envelope.Error.Details,
		}
	}

	msg := fmt.Sprintf("bookstore API responded with status %d", status)
	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{Code: apperrors.CodeNotFound, Message: msg}
	case status >= 500:
		return apperrors.NewUpstream(msg, nil)
	default:
		return apperrors.NewValidation(msg, nil)
	}
}
