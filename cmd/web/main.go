package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/bag"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/checkout"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/email"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/messaging"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/payments"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/products"
	"github.com/chazeldred55-code/boutique-ado-v1/internal/telemetry"
)

const sessionTTL = 7 * 24 * time.Hour

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "web", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("web", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		logger.Error("REDIS_ADDR environment variable is required")
		os.Exit(1)
	}
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() { _ = redisClient.Close() }()

	secretKey := os.Getenv("STRIPE_SECRET_KEY")
	if secretKey == "" {
		logger.Error("STRIPE_SECRET_KEY environment variable is required")
		os.Exit(1)
	}

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	cfg := checkout.Config{
		StripePublicKey:       os.Getenv("STRIPE_PUBLIC_KEY"),
		Currency:              envOr("STRIPE_CURRENCY", "gbp"),
		FreeDeliveryThreshold: decimalEnv(logger, "FREE_DELIVERY_THRESHOLD", "50.00"),
		DeliveryPercentage:    decimalEnv(logger, "STANDARD_DELIVERY_PERCENTAGE", "10"),
		FromEmail:             envOr("DEFAULT_FROM_EMAIL", "boutiqueado@example.com"),
	}

	paymentOpts := []payments.Option{}
	if apiBase := os.Getenv("STRIPE_API_BASE"); apiBase != "" {
		paymentOpts = append(paymentOpts, payments.WithAPIBase(apiBase))
	}
	paymentsClient := payments.NewClient(secretKey, paymentOpts...)

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var orderProducer, paymentProducer *messaging.Producer
	var orderPublisher, paymentPublisher checkout.Publisher
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		orderProducer = messaging.NewProducer(brokers, messaging.TopicOrderPlaced)
		defer func() { _ = orderProducer.Close() }()
		paymentProducer = messaging.NewProducer(brokers, messaging.TopicPaymentEvents)
		defer func() { _ = paymentProducer.Close() }()
		orderPublisher = orderProducer
		paymentPublisher = paymentProducer
	}

	sessions := bag.NewStore(redisClient, sessionTTL)
	catalog := products.NewRepository(db)
	orderRepo := checkout.NewOrderRepository(db)
	emailClient := email.NewClient(emailServiceURL, httpClient)

	handler := checkout.NewHandler(sessions, catalog, paymentsClient, orderRepo, emailClient, orderPublisher, cfg, logger)
	productsHandler := products.NewHandler(catalog, logger)

	signingSecret := os.Getenv("STRIPE_WH_SECRET")
	verifier := payments.NewVerifier(signingSecret)
	webhookHandler := checkout.NewWebhookHandler(signingSecret, verifier.ConstructEvent, paymentPublisher, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(productsHandler.HandleList))
	mux.HandleFunc("GET /products/{productId}", telemetry.WithHTTPRoute(productsHandler.HandleGet))
	mux.HandleFunc("GET /checkout", telemetry.WithHTTPRoute(handler.HandleShow))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(handler.HandleSubmit))
	mux.HandleFunc("GET /checkout/success/{orderNumber}", telemetry.WithHTTPRoute(handler.HandleSuccess))
	mux.HandleFunc("POST /webhook", telemetry.WithHTTPRoute(webhookHandler.HandleWebhook))
	mux.Handle("GET /metrics", metricsHandler)

	port := envOr("PORT", "8080")

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "web",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting checkout web service", "port", port)
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

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// Monetary settings are decimal-normalized at the edge so no binary float
// ever reaches the totals arithmetic.
func decimalEnv(logger *slog.Logger, name, fallback string) decimal.Decimal {
	raw := envOr(name, fallback)
	value, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Error("invalid decimal setting", "name", name, "value", raw, "error", err)
		os.Exit(1)
	}
	return value
}
