package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore/internal/orders/ports"
	apperrors "bookstore/pkg/errors"
	"bookstore/pkg/logger"
)

func TestNedarimGateway_CreateSaleLink(t *testing.T) {
	// Arrange
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/CreateSaleLink", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ResultCode":0,"ResultMessage":"","SaleLink":"https://pay.example/s/1"}`))
	}))
	defer server.Close()
	gateway := NewNedarimGateway(server.URL, "api-name", "api-pass", server.Client(), logger.NewNop())

	// Act
	link, err := gateway.CreateSaleLink(context.Background(), ports.SaleLinkRequest{
		SaleID:      "order-1",
		Amount:      decimal.NewFromInt(50),
		FullName:    "Dana",
		SuccessURL:  "https://shop/payment/success",
		FailureURL:  "https://shop/payment/failure",
		CallbackURL: "https://shop/api/v1/payments/webhook",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/s/1", link)
	assert.Equal(t, "api-name", got["ApiName"])
	assert.Equal(t, "order-1", got["SaleId"])
	assert.Equal(t, float64(50), got["Amount"])
	assert.Equal(t, false, got["PayWhatYouWant"])
	assert.Equal(t, "https://shop/api/v1/payments/webhook", got["CallBackUrl"])
}

func TestNedarimGateway_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "http error", status: http.StatusServiceUnavailable, body: "down", wantMsg: "status 503"},
		{name: "refused", status: http.StatusOK, body: `{"ResultCode":5,"ResultMessage":"bad amount"}`, wantMsg: "bad amount"},
		{name: "malformed", status: http.StatusOK, body: `<html>`, wantMsg: "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()
			gateway := NewNedarimGateway(server.URL, "n", "p", server.Client(), logger.NewNop())

			_, err := gateway.CreateSaleLink(context.Background(), ports.SaleLinkRequest{SaleID: "x", Amount: decimal.NewFromInt(1)})

			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeUpstream))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNedarimGateway_MissingCredentials(t *testing.T) {
	gateway := NewNedarimGateway("http://unused", "", "", nil, logger.NewNop())

	_, err := gateway.GetSale(context.Background(), "x")

	assert.True(t, apperrors.Is(err, apperrors.CodeConfiguration))
}

func TestNedarimGateway_GetSale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/GetSaleById", r.URL.Path)
		_, _ = w.Write([]byte(`{"SaleId":"order-1","ResultCode":"0","ConfirmationCode":"C1","NdsSaleId":"N1","Amount":"50.00"}`))
	}))
	defer server.Close()
	gateway := NewNedarimGateway(server.URL, "n", "p", server.Client(), logger.NewNop())

	sale, err := gateway.GetSale(context.Background(), "order-1")

	require.NoError(t, err)
	assert.Equal(t, "order-1", sale.SaleID)
	assert.Equal(t, 0, sale.ResultCode)
	assert.Equal(t, "N1", sale.NdsSaleID)
	assert.True(t, sale.Amount.Equal(decimal.NewFromInt(50)))
}
