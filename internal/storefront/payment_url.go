package storefront

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"bookstore/internal/orders/application"
	apperrors "bookstore/pkg/errors"
)

// DefaultGatewayURL hosts the embeddable payment page.
const DefaultGatewayURL = "https://www.matara.pro/nedarimplus/V6"

// PaymentPage holds the public gateway values the client embeds in the
// payment page URL.
type PaymentPage struct {
	GatewayURL string
	MosadID    string
	APIValid   string
	// SiteURL is the public base URL of the bookstore
	SiteURL string
}

// BuildPaymentURL returns the iframe URL that charges amount for orderID.
func (p PaymentPage) BuildPaymentURL(orderID, studentName string, amount decimal.Decimal, callbackURL string) (string, error) {
	if p.MosadID == "" || p.APIValid == "" {
		return "", apperrors.NewConfiguration("payment page credentials are not configured")
	}

	gateway := strings.TrimRight(p.GatewayURL, "/")
	if gateway == "" {
		gateway = DefaultGatewayURL
	}
	urls := application.PaymentURLs{BaseURL: strings.TrimRight(p.SiteURL, "/")}
	if callbackURL == "" {
		callbackURL = urls.Callback()
	}

	params := url.Values{}
	params.Set("MosadId", p.MosadID)
	params.Set("ApiValid", p.APIValid)
	params.Set("Amount", amount.String())
	params.Set("SaleId", orderID)
	params.Set("CallBackUrl", callbackURL)
	params.Set("PaymentSuccessRedirectUrl", urls.Success(orderID))
	params.Set("PaymentFailedRedirectUrl", urls.Failure(orderID))
	params.Set("FullName", studentName)
	params.Set("SaleDesc", "רכישת ספרים עבור "+studentName)
	params.Set("PayWhatYouWant", "false")

	return gateway + "/DebitIframe.aspx?" + params.Encode(), nil
}
