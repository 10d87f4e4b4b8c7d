package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/sorpresa-shop/backend/internal/address"
	"github.com/sorpresa-shop/backend/internal/api"
	"github.com/sorpresa-shop/backend/internal/cart"
	"github.com/sorpresa-shop/backend/internal/catalog"
	"github.com/sorpresa-shop/backend/internal/checkout"
	"github.com/sorpresa-shop/backend/internal/config"
	"github.com/sorpresa-shop/backend/internal/messaging"
	"github.com/sorpresa-shop/backend/internal/orders"
	"github.com/sorpresa-shop/backend/internal/paypal"
	"github.com/sorpresa-shop/backend/internal/recommend"
	"github.com/sorpresa-shop/backend/internal/sales"
	"github.com/sorpresa-shop/backend/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
	}

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewProducer(cfg.KafkaBrokers, "order.captured")
		defer func() { _ = producer.Close() }()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = redisClient.Close() }()
	}

	outboundClient := &http.Client{
		Timeout:   cfg.PayPalTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	recommendClient := &http.Client{
		Timeout:   cfg.RecommendTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	includeDetail := !cfg.IsProduction()

	catalogRepo := catalog.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	addressRepo := address.NewRepository(db)
	salesRepo := sales.NewRepository(db)
	ordersRepo := orders.NewRepository(db)
	checkoutRepo := checkout.NewRepository(db, catalogRepo, salesRepo)

	gateway := paypal.NewClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, outboundClient)
	recommender := recommend.NewClient(cfg.RecommendServiceURL, recommendClient, catalogRepo, redisClient, cfg.RecommendCacheTTL, logger)

	var publisher checkout.Publisher
	if producer != nil {
		publisher = producer
	}
	checkoutService := checkout.NewService(
		checkoutRepo, catalogRepo, addressRepo, cartRepo, gateway, publisher,
		cfg.FrontendURL+"/payment-success", cfg.FrontendURL+"/cart", logger,
	)

	catalogHandler := catalog.NewHandler(catalogRepo, logger, includeDetail)
	cartHandler := cart.NewHandler(cartRepo, recommender, logger, includeDetail)
	checkoutHandler := checkout.NewHandler(checkoutService, logger, includeDetail)
	ordersHandler := orders.NewHandler(ordersRepo, logger, includeDetail)
	salesHandler := sales.NewHandler(salesRepo, logger, includeDetail)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)

	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(api.RequireUser(catalogHandler.HandleCreate)))
	mux.HandleFunc("DELETE /products/{id}", telemetry.WithHTTPRoute(api.RequireUser(catalogHandler.HandleDelete)))

	mux.HandleFunc("POST /cart/add", telemetry.WithHTTPRoute(api.RequireUser(cartHandler.HandleAdd)))
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(api.RequireUser(cartHandler.HandleGet)))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(api.RequireUser(cartHandler.HandleClear)))
	mux.HandleFunc("DELETE /cart/{productId}", telemetry.WithHTTPRoute(api.RequireUser(cartHandler.HandleRemoveItem)))
	mux.HandleFunc("PUT /cart/{productId}", telemetry.WithHTTPRoute(api.RequireUser(cartHandler.HandleSetQuantity)))

	mux.HandleFunc("POST /payments/create-order", telemetry.WithHTTPRoute(api.RequireUser(checkoutHandler.HandleCreateOrder)))
	mux.HandleFunc("POST /payments/capture-order", telemetry.WithHTTPRoute(api.RequireUser(checkoutHandler.HandleCaptureOrder)))

	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(api.RequireUser(ordersHandler.HandleList)))
	mux.HandleFunc("GET /orders/by-status", telemetry.WithHTTPRoute(api.RequireUser(ordersHandler.HandleListByStatus)))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(api.RequireUser(ordersHandler.HandleGet)))
	mux.HandleFunc("GET /orders/{id}/history", telemetry.WithHTTPRoute(api.RequireUser(ordersHandler.HandleHistory)))
	mux.HandleFunc("PUT /orders/{id}/status", telemetry.WithHTTPRoute(api.RequireUser(ordersHandler.HandleUpdateStatus)))

	mux.HandleFunc("GET /sales", telemetry.WithHTTPRoute(api.RequireUser(salesHandler.HandleList)))

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
