package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	"bookstore/internal/orders/adapters"
	"bookstore/internal/orders/application"
	"bookstore/internal/orders/infrastructure"
	"bookstore/internal/orders/ports"
	"bookstore/pkg/config"
	"bookstore/pkg/db"
	"bookstore/pkg/events"
	grpcpkg "bookstore/pkg/grpc"
	"bookstore/pkg/logger"
	"bookstore/pkg/middleware"
	"bookstore/pkg/rabbitmq"
	"bookstore/pkg/tls"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log := logger.New(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	log.Info("starting bookstore service", zap.String("payment_strategy", cfg.PaymentStrategy))
	if cfg.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD is not set, admin endpoints will refuse every request")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database is opened on first use (or POST /warm-up) and migrated once
	store := db.NewLazy(func(ctx context.Context) (*gorm.DB, error) {
		return db.NewConnection(ctx, db.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
			Timeout:  cfg.DBTimeout,
		})
	}, adapters.Migrate)
	defer store.Close()

	repo := adapters.NewGormOrderRepository(store)

	// Redis status cache (optional)
	var cache ports.StatusCache
	if cfg.RedisAddr != "" {
		client, err := adapters.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("failed to connect to redis, status cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cache = adapters.NewRedisStatusCache(client, cfg.ServiceName, cfg.StatusCacheTTL)
			log.Info("status cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	// Connect to RabbitMQ (optional)
	var publisher ports.EventPublisher
	rabbitConn, err := rabbitmq.NewConnection(cfg.RabbitMQURL, log)
	if err != nil {
		log.Warn("failed to connect to RabbitMQ, events will be disabled", zap.Error(err))
	} else {
		defer rabbitConn.Close()

		pub, err := rabbitmq.NewPublisher(rabbitConn, events.ExchangeOrders, log)
		if err != nil {
			log.Warn("failed to create publisher", zap.Error(err))
		} else {
			publisher = adapters.NewRabbitMQPublisher(pub, log)
		}

		if cache != nil {
			consumer, err := adapters.NewOrderResolvedConsumer(rabbitConn, repo, cache, log.Named("status-projection"))
			if err != nil {
				log.Warn("failed to create order-resolved consumer", zap.Error(err))
			} else if err := consumer.Start(ctx); err != nil {
				log.Warn("failed to start consumer", zap.Error(err))
			}
		}
	}

	// Payment processor
	gateway := adapters.NewNedarimGateway(
		cfg.Nedarim.BaseURL,
		cfg.Nedarim.APIName,
		cfg.Nedarim.APIPassword,
		&http.Client{Timeout: cfg.HTTPTimeout},
		log.Named("nedarim"),
	)
	initiator, err := application.NewPaymentInitiator(application.PaymentSettings{
		Method:            cfg.PaymentStrategy,
		Gateway:           gateway,
		GatewayConfigured: cfg.Nedarim.ServerConfigured(),
		URLs:              application.PaymentURLs{BaseURL: cfg.PublicBaseURL},
		Bank: application.BankAccount{
			AccountName:   cfg.Bank.AccountName,
			BankName:      cfg.Bank.BankName,
			Branch:        cfg.Bank.Branch,
			AccountNumber: cfg.Bank.AccountNumber,
		},
	})
	if err != nil {
		log.Fatal("invalid payment configuration", zap.Error(err))
	}
	if cfg.WebhookVerify && !cfg.Nedarim.ServerConfigured() {
		log.Warn("WEBHOOK_VERIFY is set but processor API credentials are missing, notifications will not be verified")
	}

	// Initialize use cases
	orderUC := application.NewOrderUseCase(repo, publisher, cache, initiator, log.Named("orders"))
	reconciler := application.NewReconciler(repo, publisher, gateway, cfg.WebhookVerify && cfg.Nedarim.ServerConfigured(), log.Named("webhook"))
	adminUC := application.NewAdminUseCase(repo, publisher, cache, cfg.AdminPassword, log.Named("admin"))

	// HTTP router
	httpHandler := infrastructure.NewHTTPHandler(orderUC, reconciler, adminUC, store, log)
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.TraceID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))
	router.Use(middleware.CORS())

	api := router.Group("/api/v1")
	httpHandler.RegisterRoutes(api)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database_ready": store.Ready()})
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
	}

	go func() {
		log.Info("HTTP server listening on :" + cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	var httpsServer *http.Server
	if cfg.TLSEnabled {
		tlsConfig, err := tls.ServerConfig(cfg.TLSCertFile, cfg.TLSKeyFile, "", false)
		if err != nil {
			log.Fatal("failed to load TLS config", zap.Error(err))
		}
		httpsServer = &http.Server{
			Addr:         ":" + cfg.HTTPSPort,
			Handler:      router,
			TLSConfig:    tlsConfig,
			ReadTimeout:  cfg.HTTPTimeout,
			WriteTimeout: cfg.HTTPTimeout,
		}
		go func() {
			log.Info("HTTPS server listening on :" + cfg.HTTPSPort)
			if err := httpsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				log.Fatal("HTTPS server error", zap.Error(err))
			}
		}()
	}

	// gRPC health endpoint
	grpcServer, healthServer := setupGRPCServer(cfg, log)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen for gRPC", zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening on :" + cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("gRPC server error", zap.Error(err))
		}
	}()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down servers...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", zap.Error(err))
	}
	if httpsServer != nil {
		if err := httpsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTPS shutdown error", zap.Error(err))
		}
	}
	cancel()

	log.Info("servers stopped")
}

func setupGRPCServer(cfg *config.Config, log *logger.Logger) (*grpc.Server, *health.Server) {
	if !cfg.GRPCMTLSEnabled {
		return grpcpkg.NewServer(log, cfg.GRPCTimeout, nil)
	}

	tlsConfig, err := tls.ServerConfig(
		cfg.TLSCertFile,
		cfg.TLSKeyFile,
		cfg.TLSCAFile,
		true, // require client cert
	)
	if err != nil {
		log.Fatal("failed to load TLS config", zap.Error(err))
	}
	log.Info("gRPC mTLS enabled")
	return grpcpkg.NewServer(log, cfg.GRPCTimeout, tlsConfig)
}
