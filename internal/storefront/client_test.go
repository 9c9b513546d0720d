package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bookstore/internal/orders/adapters"
	"bookstore/internal/orders/application"
	"bookstore/internal/orders/domain"
	"bookstore/internal/orders/infrastructure"
	"bookstore/pkg/db"
	apperrors "bookstore/pkg/errors"
	"bookstore/pkg/logger"
	"bookstore/pkg/middleware"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, adapters.Migrate(conn))

	log := logger.NewNop()
	repo := adapters.NewGormOrderRepository(db.Static{DB: conn})
	initiator := &application.HostedFieldsInitiator{URLs: application.PaymentURLs{BaseURL: "https://shop.example"}}
	handler := infrastructure.NewHTTPHandler(
		application.NewOrderUseCase(repo, nil, nil, initiator, log),
		application.NewReconciler(repo, nil, nil, false, log),
		application.NewAdminUseCase(repo, nil, nil, "pw", log),
		nil,
		log,
	)

	r := gin.New()
	r.Use(middleware.TraceID(), middleware.ErrorHandler(log))
	handler.RegisterRoutes(r.Group("/api/v1"))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func postWebhook(t *testing.T, server *httptest.Server, body map[string]interface{}) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/api/v1/payments/webhook", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func danaCart(t *testing.T, client *Client) *domain.Cart {
	t.Helper()
	books, err := client.Catalog(context.Background())
	require.NoError(t, err)

	cart := &domain.Cart{}
	for _, b := range books {
		if b.ID == 5 {
			cart.Toggle(b)
		}
	}
	require.Equal(t, 1, cart.Len())
	return cart
}

func TestCheckout_Dana(t *testing.T) {
	// Arrange
	server := newAPIServer(t)
	client := NewClient(server.URL, nil, time.Second)
	ctx := context.Background()

	// Act
	placed, err := client.CreateOrder(ctx, "Dana", danaCart(t, client), "")
	require.NoError(t, err)

	status := postWebhook(t, server, map[string]interface{}{
		"SaleId": placed.OrderID, "ResultCode": 0, "Amount": "50", "NdsSaleId": "N1",
	})
	poller := &Poller{Interval: 5 * time.Millisecond, Timeout: time.Second, Fetcher: client}
	outcome, err := poller.Wait(ctx, placed.OrderID)

	// Assert
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, application.MethodIframe, placed.Payment.Method)
	assert.True(t, placed.Payment.Amount.Equal(domain.Catalog()[4].Price))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
}

func TestCheckout_AmountMismatch(t *testing.T) {
	server := newAPIServer(t)
	client := NewClient(server.URL, nil, time.Second)
	ctx := context.Background()
	placed, err := client.CreateOrder(ctx, "Dana", danaCart(t, client), "")
	require.NoError(t, err)

	status := postWebhook(t, server, map[string]interface{}{
		"SaleId": placed.OrderID, "ResultCode": 0, "Amount": "999",
	})
	got, err := client.OrderStatus(ctx, placed.OrderID)

	assert.GreaterOrEqual(t, status, 400)
	assert.Less(t, status, 500)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, got)
}

func TestCheckout_NoWebhookIsUnresolved(t *testing.T) {
	server := newAPIServer(t)
	client := NewClient(server.URL, nil, time.Second)
	ctx := context.Background()
	placed, err := client.CreateOrder(ctx, "Dana", danaCart(t, client), "")
	require.NoError(t, err)

	poller := &Poller{Interval: 5 * time.Millisecond, Timeout: 40 * time.Millisecond, Fetcher: client}
	outcome, err := poller.Wait(ctx, placed.OrderID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeUnresolved, outcome)
}

func TestClient_DecodesServerErrors(t *testing.T) {
	server := newAPIServer(t)
	client := NewClient(server.URL, nil, time.Second)

	_, err := client.CreateOrder(context.Background(), "Dana", &domain.Cart{}, "")
	_, statusErr := client.OrderStatus(context.Background(), "not-an-id")

	assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "got %v", err)
	assert.True(t, apperrors.Is(statusErr, apperrors.CodeValidation), "got %v", statusErr)
}

func TestClient_UnreachableIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(server.URL, nil, time.Second)

	_, err := client.OrderStatus(context.Background(), "x")

	assert.True(t, apperrors.Is(err, apperrors.CodeUpstream), "got %v", err)
}
