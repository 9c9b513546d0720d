// Command checkout places a bookstore order from the terminal and waits for
// the payment result.
//
//	checkout -name "Dana" -books 5
//	checkout -name "Dana" -books 1,2 -reference 99887766
package main

import (
	"context"
	cryptotls "crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"bookstore/internal/orders/application"
	"bookstore/internal/orders/domain"
	"bookstore/internal/storefront"
	"bookstore/pkg/config"
	"bookstore/pkg/logger"
	"bookstore/pkg/tls"
)

// exit codes
const (
	exitCompleted  = 0
	exitFailed     = 1
	exitUnresolved = 2
	exitError      = 3
)

func main() {
	cfg := config.Load()

	name := flag.String("name", "", "student name")
	books := flag.String("books", "", "comma-separated book ids; a second edition from the same group replaces the first")
	reference := flag.String("reference", "", "bank transfer reference")
	apiURL := flag.String("api", cfg.APIBaseURL, "bookstore API base URL")
	listOnly := flag.Bool("list", false, "print the catalog and exit")
	insecure := flag.Bool("insecure", false, "skip TLS verification (development only)")
	flag.Parse()

	log := logger.New("checkout", cfg.LogLevel, "console")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, log, options{
		name:      *name,
		books:     *books,
		reference: *reference,
		apiURL:    *apiURL,
		listOnly:  *listOnly,
		insecure:  *insecure,
	}))
}

type options struct {
	name      string
	books     string
	reference string
	apiURL    string
	listOnly  bool
	insecure  bool
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, opts options) int {
	var tlsConfig *cryptotls.Config
	switch {
	case opts.insecure:
		tlsConfig = tls.InsecureConfig()
	case cfg.TLSCAFile != "":
		c, err := tls.ClientConfig("", "", cfg.TLSCAFile)
		if err != nil {
			log.Error("failed to load CA", zap.Error(err))
			return exitError
		}
		tlsConfig = c
	}
	client := storefront.NewClient(opts.apiURL, tlsConfig, cfg.HTTPTimeout)

	catalog, err := client.Catalog(ctx)
	if err != nil {
		log.Error("failed to load catalog", zap.Error(err))
		return exitError
	}
	if opts.listOnly {
		for _, b := range catalog {
			fmt.Printf("%d\t%s\t%s\t%s\n", b.ID, b.Price.StringFixed(2), b.Title, b.Author)
		}
		return exitCompleted
	}

	cart, err := buildCart(catalog, opts.books)
	if err != nil {
		log.Error("invalid book selection", zap.Error(err))
		return exitError
	}

	placed, err := client.CreateOrder(ctx, opts.name, cart, opts.reference)
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		return exitError
	}
	fmt.Printf("Order %s created, total %s\n", placed.OrderID, placed.Payment.Amount.StringFixed(2))

	switch placed.Payment.Method {
	case application.MethodIframe:
		page := storefront.PaymentPage{
			GatewayURL: cfg.Nedarim.BaseURL,
			MosadID:    cfg.Nedarim.MosadID,
			APIValid:   cfg.Nedarim.APIValid,
			SiteURL:    cfg.PublicBaseURL,
		}
		link, err := page.BuildPaymentURL(placed.OrderID, opts.name, placed.Payment.Amount, placed.Payment.CallbackURL)
		if err != nil {
			log.Error("cannot build payment page URL", zap.Error(err))
			return exitError
		}
		fmt.Println("Pay here:", link)
	case application.MethodRedirect:
		fmt.Println("Pay here:", placed.Payment.SaleLink)
	case application.MethodBankTransfer:
		if b := placed.Payment.Bank; b != nil {
			fmt.Printf("Transfer %s to %s, %s branch %s, account %s\n",
				placed.Payment.Amount.StringFixed(2), b.AccountName, b.BankName, b.Branch, b.AccountNumber)
		}
		fmt.Println("The order is confirmed once the school sees the transfer.")
	}

	poller := &storefront.Poller{
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
		Fetcher:  client,
		Log:      log,
	}
	outcome, err := poller.Wait(ctx, placed.OrderID)
	if err != nil {
		log.Warn("stopped waiting for payment", zap.Error(err))
		return exitUnresolved
	}

	switch outcome {
	case storefront.OutcomeCompleted:
		fmt.Println("Payment received. Thank you!")
		return exitCompleted
	case storefront.OutcomeFailed:
		fmt.Println("Payment failed.")
		return exitFailed
	default:
		fmt.Printf("No payment result yet. Check order %s later.\n", placed.OrderID)
		return exitUnresolved
	}
}

// buildCart toggles each listed id into a cart in order.
func buildCart(catalog []domain.Book, ids string) (*domain.Cart, error) {
	byID := make(map[int]domain.Book, len(catalog))
	for _, b := range catalog {
		byID[b.ID] = b
	}

	cart := &domain.Cart{}
	for _, field := range strings.Split(ids, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("book id %q is not a number", field)
		}
		b, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("no book with id %d", id)
		}
		cart.Toggle(b)
	}
	if cart.Len() == 0 {
		return nil, fmt.Errorf("select at least one book")
	}
	return cart, nil
}
