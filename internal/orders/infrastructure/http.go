package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookstore/internal/orders/application"
	"bookstore/internal/orders/domain"
	"bookstore/pkg/errors"
	"bookstore/pkg/logger"
	"bookstore/pkg/middleware"
)

// Warmer opens the store handle ahead of the first real request.
type Warmer interface {
	Warm(ctx context.Context) error
}

// HTTPHandler handles HTTP requests for orders, payments and admin tools
type HTTPHandler struct {
	orders     *application.OrderUseCase
	reconciler *application.Reconciler
	admin      *application.AdminUseCase
	warmer     Warmer
	log        *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler. warmer may be nil.
func NewHTTPHandler(
	orders *application.OrderUseCase,
	reconciler *application.Reconciler,
	admin *application.AdminUseCase,
	warmer Warmer,
	log *logger.Logger,
) *HTTPHandler {
	RegisterValidators()
	return &HTTPHandler{
		orders:     orders,
		reconciler: reconciler,
		admin:      admin,
		warmer:     warmer,
		log:        log,
	}
}

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags to gin's validator:
// "orderid" accepts a well-formed order identifier.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("orderid", func(fl validator.FieldLevel) bool {
				return domain.ValidateOrderID(fl.Field().String()) == nil
			})
		}
	})
}

// RegisterRoutes registers the API routes
func (h *HTTPHandler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("/status", h.GetOrderStatus)
	}

	r.POST("/payments/webhook", h.PaymentWebhook)
	r.GET("/catalog", h.Catalog)
	r.POST("/warm-up", h.WarmUp)

	admin := r.Group("/admin")
	{
		admin.POST("/orders", h.ListOrders)
		admin.POST("/orders/remove-book", h.RemoveBook)
		admin.POST("/orders/delete", h.DeleteOrder)
		admin.POST("/orders/resolve", h.ResolveOrder)
		admin.POST("/reports/books", h.BookReport)
	}
}

// CartItemRequest is one cart line as the storefront sends it
type CartItemRequest struct {
	ID       int     `json:"id" binding:"required,gt=0"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Price    float64 `json:"price" binding:"gte=0"`
	Quantity int     `json:"quantity" binding:"gte=0"`
	GroupID  string  `json:"groupId"`
}

// CreateOrderRequest is the request body for creating an order
type CreateOrderRequest struct {
	StudentName      string            `json:"studentName" binding:"required"`
	Cart             []CartItemRequest `json:"cart" binding:"required,min=1,dive"`
	Total            float64           `json:"total" binding:"required,gt=0"`
	PaymentReference string            `json:"paymentReference"`
}

// BankAccountResponse is shown to students paying by transfer
type BankAccountResponse struct {
	AccountName   string `json:"accountName"`
	BankName      string `json:"bankName"`
	Branch        string `json:"branch"`
	AccountNumber string `json:"accountNumber"`
}

// PaymentResponse tells the client how to pay
type PaymentResponse struct {
	Method      string               `json:"method"`
	Amount      float64              `json:"amount"`
	SaleLink    string               `json:"saleLink,omitempty"`
	CallbackURL string               `json:"callbackUrl,omitempty"`
	Bank        *BankAccountResponse `json:"bank,omitempty"`
}

// CreateOrderResponse is the response body for a new order
type CreateOrderResponse struct {
	OrderID string          `json:"orderId"`
	Payment PaymentResponse `json:"payment"`
	TraceID string          `json:"trace_id,omitempty"`
}

// CreateOrder handles POST /orders
func (h *HTTPHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidation("invalid request body", err.Error()))
		return
	}

	cart := make([]domain.LineItem, len(req.Cart))
	for i, item := range req.Cart {
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		cart[i] = domain.LineItem{
			BookID:   item.ID,
			Title:    item.Title,
			Author:   item.Author,
			Price:    decimal.NewFromFloat(item.Price),
			Quantity: qty,
			GroupID:  item.GroupID,
		}
	}

	output, err := h.orders.CreatePendingOrder(c.Request.Context(), application.CreateOrderInput{
		StudentName:      req.StudentName,
		Cart:             cart,
		Total:            decimal.NewFromFloat(req.Total),
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, CreateOrderResponse{
		OrderID: output.Order.ID,
		Payment: toPaymentResponse(output.Payment),
		TraceID: c.GetString(middleware.TraceIDKey),
	})
}

// StatusQuery is the query string of the poll endpoint
type StatusQuery struct {
	OrderID string `form:"orderId" binding:"required,orderid"`
}

// GetOrderStatus handles GET /orders/status?orderId=
func (h *HTTPHandler) GetOrderStatus(c *gin.Context) {
	var q StatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.Error(errors.NewValidation("a valid orderId is required", nil))
		return
	}

	status, err := h.orders.GetOrderStatus(c.Request.Context(), q.OrderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// WebhookRequest is the processor's notification. Any field may arrive as a
// JSON number, a JSON string or a form value.
type WebhookRequest struct {
	SaleID           LooseScalar `json:"SaleId" form:"SaleId"`
	ResultCode       LooseScalar `json:"ResultCode" form:"ResultCode"`
	ResultMessage    LooseScalar `json:"ResultMessage" form:"ResultMessage"`
	ConfirmationCode LooseScalar `json:"ConfirmationCode" form:"ConfirmationCode"`
	NdsSaleID        LooseScalar `json:"NdsSaleId" form:"NdsSaleId"`
	Amount           LooseScalar `json:"Amount" form:"Amount"`
}

// saleIDOnly picks the SaleId out of a notification whose other fields
// could not be decoded.
type saleIDOnly struct {
	SaleID LooseScalar `json:"SaleId"`
}

// LooseScalar keeps any JSON value as text; numbers are parsed later so a
// bad value does not hide the SaleId.
type LooseScalar string

// UnmarshalJSON unquotes strings and keeps everything else verbatim.
func (n *LooseScalar) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = LooseScalar(s)
		return nil
	}
	if string(b) == "null" {
		*n = ""
		return nil
	}
	*n = LooseScalar(b)
	return nil
}

// String returns the value with surrounding whitespace removed.
func (n LooseScalar) String() string {
	return strings.TrimSpace(string(n))
}

// Int parses the value as an integer.
func (n LooseScalar) Int() (int, error) {
	return strconv.Atoi(n.String())
}

// Decimal parses the value as a decimal amount.
func (n LooseScalar) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(n.String())
}

// bindWebhook decodes the notification. JSON bodies are cached so the SaleId
// can still be read when the full decode fails.
func bindWebhook(c *gin.Context, req *WebhookRequest) error {
	if c.ContentType() == binding.MIMEJSON {
		return c.ShouldBindBodyWith(req, binding.JSON)
	}
	return c.ShouldBind(req)
}

func recoverSaleID(c *gin.Context) string {
	if c.ContentType() == binding.MIMEJSON {
		var only saleIDOnly
		if err := c.ShouldBindBodyWith(&only, binding.JSON); err != nil {
			return ""
		}
		return only.SaleID.String()
	}
	return strings.TrimSpace(c.PostForm("SaleId"))
}

// PaymentWebhook handles POST /payments/webhook.
//
// The processor gets 200 OK for everything it cannot fix by retrying. Only a
// missing or malformed SaleId, or a notification that contradicts our records,
// is answered with 400.
func (h *HTTPHandler) PaymentWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.log.WithContext(ctx)

	var req WebhookRequest
	if err := bindWebhook(c, &req); err != nil {
		saleID := recoverSaleID(c)
		if domain.ValidateOrderID(saleID) != nil {
			log.Warn("webhook body could not be parsed", zap.Error(err))
			c.String(http.StatusBadRequest, "Bad Request: invalid or missing SaleId")
			return
		}
		log.Error("webhook with undecodable fields acknowledged",
			zap.String("order_id", saleID),
			zap.Error(err),
		)
		c.String(http.StatusOK, "OK")
		return
	}

	saleID := req.SaleID.String()
	if domain.ValidateOrderID(saleID) != nil {
		log.Warn("webhook with invalid SaleId", zap.String("sale_id", saleID))
		c.String(http.StatusBadRequest, "Bad Request: invalid or missing SaleId")
		return
	}

	// verified notifications take result code and amount from the processor
	resultCode, codeErr := req.ResultCode.Int()
	amount, amountErr := req.Amount.Decimal()
	if (codeErr != nil || amountErr != nil) && !h.reconciler.Verifies() {
		log.Error("webhook with malformed ResultCode or Amount",
			zap.String("order_id", saleID),
			zap.String("result_code", string(req.ResultCode)),
			zap.String("amount", string(req.Amount)),
		)
		c.String(http.StatusOK, "OK")
		return
	}

	outcome, err := h.reconciler.Reconcile(ctx, application.WebhookInput{
		SaleID:           saleID,
		ResultCode:       resultCode,
		ConfirmationCode: req.ConfirmationCode.String(),
		NdsSaleID:        req.NdsSaleID.String(),
		Amount:           amount,
	})
	if err != nil {
		if errors.Is(err, errors.CodeSecurityMismatch) || errors.Is(err, errors.CodeValidation) {
			log.Error("webhook rejected", zap.String("order_id", saleID), zap.Error(err))
			c.String(http.StatusBadRequest, "Bad Request: notification does not match order")
			return
		}
		log.Error("webhook processing failed", zap.String("order_id", saleID), zap.Error(err))
		c.String(http.StatusOK, "OK")
		return
	}

	log.Info("webhook processed",
		zap.String("order_id", saleID),
		zap.String("outcome", string(outcome)),
		zap.String("result_message", req.ResultMessage.String()),
	)
	c.String(http.StatusOK, "OK")
}

// BookResponse is one catalog entry
type BookResponse struct {
	ID      int     `json:"id"`
	Title   string  `json:"title"`
	Author  string  `json:"author"`
	Price   float64 `json:"price"`
	GroupID string  `json:"groupId,omitempty"`
}

// Catalog handles GET /catalog
func (h *HTTPHandler) Catalog(c *gin.Context) {
	books := domain.Catalog()
	resp := make([]BookResponse, len(books))
	for i, b := range books {
		resp[i] = BookResponse{
			ID:      b.ID,
			Title:   b.Title,
			Author:  b.Author,
			Price:   b.Price.InexactFloat64(),
			GroupID: b.GroupID,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// WarmUp handles POST /warm-up
func (h *HTTPHandler) WarmUp(c *gin.Context) {
	start := time.Now()
	if h.warmer != nil {
		if err := h.warmer.Warm(c.Request.Context()); err != nil {
			c.Error(errors.NewInternal("failed to open database", err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}

// AdminRequest carries the shared admin password and an optional status filter
type AdminRequest struct {
	Password string `json:"password"`
	Status   string `json:"status"`
}

// RemoveBookRequest is the body of the remove-book endpoint
type RemoveBookRequest struct {
	OrderID  string `json:"orderId" binding:"required"`
	BookID   int    `json:"bookId" binding:"required,gt=0"`
	Password string `json:"password"`
}

// DeleteOrderRequest is the body of the delete endpoint
type DeleteOrderRequest struct {
	OrderID  string `json:"orderId" binding:"required"`
	Password string `json:"password"`
}

// ResolveOrderRequest is the body of the resolve endpoint
type ResolveOrderRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=completed failed"`
	Reference string `json:"reference"`
	Password  string `json:"password"`
}

// LineItemResponse is one cart line of an order
type LineItemResponse struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	GroupID  string  `json:"groupId,omitempty"`
}

// OrderResponse is the full order record shown to admins
type OrderResponse struct {
	ID                       string             `json:"id"`
	StudentName              string             `json:"studentName"`
	Cart                     []LineItemResponse `json:"cart"`
	Total                    float64            `json:"total"`
	Status                   string             `json:"status"`
	PaymentProvider          string             `json:"paymentProvider,omitempty"`
	ProviderTransactionID    string             `json:"providerTransactionId,omitempty"`
	ProviderConfirmationCode string             `json:"providerConfirmationCode,omitempty"`
	PaymentReference         string             `json:"paymentReference,omitempty"`
	CreatedAt                string             `json:"createdAt"`
	UpdatedAt                string             `json:"updatedAt"`
}

// ListOrders handles POST /admin/orders
func (h *HTTPHandler) ListOrders(c *gin.Context) {
	var req AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidation("invalid request body", err.Error()))
		return
	}

	orders, err := h.admin.ListOrders(c.Request.Context(), req.Password, req.Status)
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]OrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveBook handles POST /admin/orders/remove-book
func (h *HTTPHandler) RemoveBook(c *gin.Context) {
	var req RemoveBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidation("invalid request body", err.Error()))
		return
	}

	order, err := h.admin.RemoveLineItem(c.Request.Context(), req.OrderID, req.BookID, req.Password)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Book removed from order",
		"updatedOrder": toOrderResponse(order),
	})
}

// DeleteOrder handles POST /admin/orders/delete
func (h *HTTPHandler) DeleteOrder(c *gin.Context) {
	var req DeleteOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidation("invalid request body", err.Error()))
		return
	}

	if err := h.admin.DeleteOrder(c.Request.Context(), req.OrderID, req.Password); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

// ResolveOrder handles POST /admin/orders/resolve
func (h *HTTPHandler) ResolveOrder(c *gin.Context) {
	var req ResolveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidation("invalid request body", err.Error()))
		return
	}

	order, err := h.admin.ResolvePayment(c.Request.Context(), req.OrderID, req.Status, req.Reference, req.Password)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Order " + string(order.Status),
		"updatedOrder": toOrderResponse(order),
	})
}

// BookSummaryResponse is one row of the per-book report
type BookSummaryResponse struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Quantity     int     `json:"quantity"`
	TotalRevenue float64 `json:"totalRevenue"`
}

// BookReport handles POST /admin/reports/books
func (h *HTTPHandler) BookReport(c *gin.Context) {
	var req AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidation("invalid request body", err.Error()))
		return
	}

	rows, err := h.admin.BookSummary(c.Request.Context(), req.Password, req.Status)
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]BookSummaryResponse, len(rows))
	for i, row := range rows {
		resp[i] = BookSummaryResponse{
			ID:           row.BookID,
			Title:        row.Title,
			Author:       row.Author,
			Quantity:     row.Quantity,
			TotalRevenue: row.TotalRevenue.InexactFloat64(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func toPaymentResponse(p *application.PaymentInstructions) PaymentResponse {
	resp := PaymentResponse{
		Method:      p.Method,
		Amount:      p.Amount.InexactFloat64(),
		SaleLink:    p.SaleLink,
		CallbackURL: p.CallbackURL,
	}
	if p.Bank != nil {
		resp.Bank = &BankAccountResponse{
			AccountName:   p.Bank.AccountName,
			BankName:      p.Bank.BankName,
			Branch:        p.Bank.Branch,
			AccountNumber: p.Bank.AccountNumber,
		}
	}
	return resp
}

func toOrderResponse(o *domain.Order) OrderResponse {
	cart := make([]LineItemResponse, len(o.Cart))
	for i, item := range o.Cart {
		cart[i] = LineItemResponse{
			ID:       item.BookID,
			Title:    item.Title,
			Author:   item.Author,
			Price:    item.Price.InexactFloat64(),
			Quantity: item.Quantity,
			GroupID:  item.GroupID,
		}
	}
	return OrderResponse{
		ID:                       o.ID,
		StudentName:              o.StudentName,
		Cart:                     cart,
		Total:                    o.Total.InexactFloat64(),
		Status:                   string(o.Status),
		PaymentProvider:          o.PaymentProvider,
		ProviderTransactionID:    o.ProviderTransactionID,
		ProviderConfirmationCode: o.ProviderConfirmationCode,
		PaymentReference:         o.PaymentReference,
		CreatedAt:                o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                o.UpdatedAt.Format(time.RFC3339),
	}
}
