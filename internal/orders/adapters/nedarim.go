package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookstore/internal/orders/ports"
	apperrors "bookstore/pkg/errors"
	"bookstore/pkg/logger"
)

// DefaultNedarimBaseURL is the processor's production API root.
const DefaultNedarimBaseURL = "https://www.matara.pro/nedarimplus/V6"

// NedarimGateway is the server-to-server client for the Nedarim Plus API.
type NedarimGateway struct {
	baseURL     string
	apiName     string
	apiPassword string
	client      *http.Client
	log         *logger.Logger
}

// NewNedarimGateway creates the client. A nil httpClient gets a 15s timeout.
func NewNedarimGateway(baseURL, apiName, apiPassword string, httpClient *http.Client, log *logger.Logger) *NedarimGateway {
	if baseURL == "" {
		baseURL = DefaultNedarimBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &NedarimGateway{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiName:     apiName,
		apiPassword: apiPassword,
		client:      httpClient,
		log:         log,
	}
}

type createSaleLinkRequest struct {
	ApiName                   string      `json:"ApiName"`
	ApiPassword               string      `json:"ApiPassword"`
	Amount                    json.Number `json:"Amount"`
	SaleId                    string      `json:"SaleId"`
	PaymentSuccessRedirectUrl string      `json:"PaymentSuccessRedirectUrl"`
	PaymentFailedRedirectUrl  string      `json:"PaymentFailedRedirectUrl"`
	CallBackUrl               string      `json:"CallBackUrl"`
	FullName                  string      `json:"FullName"`
	PayWhatYouWant            bool        `json:"PayWhatYouWant"`
}

type createSaleLinkResponse struct {
	ResultCode    json.Number `json:"ResultCode"`
	ResultMessage string      `json:"ResultMessage"`
	SaleLink      string      `json:"SaleLink"`
}

type getSaleRequest struct {
	ApiName     string `json:"ApiName"`
	ApiPassword string `json:"ApiPassword"`
	SaleId      string `json:"SaleId"`
}

type getSaleResponse struct {
	SaleId           string      `json:"SaleId"`
	ResultCode       json.Number `json:"ResultCode"`
	ConfirmationCode string      `json:"ConfirmationCode"`
	NdsSaleId        string      `json:"NdsSaleId"`
	Amount           json.Number `json:"Amount"`
}

// CreateSaleLink asks the processor for a hosted payment page for one order.
func (g *NedarimGateway) CreateSaleLink(ctx context.Context, req ports.SaleLinkRequest) (string, error) {
	if err := g.checkCredentials(); err != nil {
		return "", err
	}

	var resp createSaleLinkResponse
	err := g.post(ctx, "CreateSaleLink", createSaleLinkRequest{
		ApiName:                   g.apiName,
		ApiPassword:               g.apiPassword,
		Amount:                    json.Number(req.Amount.String()),
		SaleId:                    req.SaleID,
		PaymentSuccessRedirectUrl: req.SuccessURL,
		PaymentFailedRedirectUrl:  req.FailureURL,
		CallBackUrl:               req.CallbackURL,
		FullName:                  req.FullName,
		PayWhatYouWant:            false,
	}, &resp)
	if err != nil {
		return "", err
	}

	code, err := parseResultCode(resp.ResultCode)
	if err != nil {
		return "", apperrors.NewUpstream("payment provider returned malformed result code", err)
	}
	if code != 0 {
		g.log.WithContext(ctx).Error("payment provider refused sale link",
			zap.String("sale_id", req.SaleID),
			zap.Int("result_code", code),
			zap.String("result_message", resp.ResultMessage),
		)
		return "", apperrors.NewUpstream("failed to create payment link: "+resp.ResultMessage, nil)
	}
	if resp.SaleLink == "" {
		return "", apperrors.NewUpstream("payment provider returned no sale link", nil)
	}

	return resp.SaleLink, nil
}

// GetSale fetches the processor's own record of a sale.
func (g *NedarimGateway) GetSale(ctx context.Context, saleID string) (*ports.SaleRecord, error) {
	if err := g.checkCredentials(); err != nil {
		return nil, err
	}

	var resp getSaleResponse
	err := g.post(ctx, "GetSaleById", getSaleRequest{
		ApiName:     g.apiName,
		ApiPassword: g.apiPassword,
		SaleId:      saleID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	code, err := parseResultCode(resp.ResultCode)
	if err != nil {
		return nil, apperrors.NewUpstream("payment provider returned malformed result code", err)
	}
	amount, err := decimal.NewFromString(string(resp.Amount))
	if err != nil {
		return nil, apperrors.NewUpstream("payment provider returned malformed amount", err)
	}

	return &ports.SaleRecord{
		SaleID:           resp.SaleId,
		ResultCode:       code,
		ConfirmationCode: resp.ConfirmationCode,
		NdsSaleID:        resp.NdsSaleId,
		Amount:           amount,
	}, nil
}

func (g *NedarimGateway) checkCredentials() error {
	if g.apiName == "" || g.apiPassword == "" {
		return apperrors.NewConfiguration("payment provider API credentials are not configured")
	}
	return nil
}

func (g *NedarimGateway) post(ctx context.Context, operation string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperrors.NewInternal("failed to encode payment provider request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/"+operation, bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewInternal("failed to build payment provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return apperrors.NewUpstream("payment provider unreachable", err)
	}
	defer resp.Body.Close()

	g.log.WithContext(ctx).Debug("payment provider call",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return apperrors.NewUpstream(fmt.Sprintf("payment provider responded with status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return apperrors.NewUpstream("payment provider returned malformed response", err)
	}
	return nil
}

func parseResultCode(n json.Number) (int, error) {
	if n == "" {
		return 0, fmt.Errorf("missing result code")
	}
	return strconv.Atoi(string(n))
}
