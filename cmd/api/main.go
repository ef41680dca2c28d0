// Package main is the entry point for the RecordStack API server.
//
// It loads configuration (resolving secrets through SSM outside local mode),
// opens the database pool, wires the domain services onto the core chassis
// (middleware, routing, health checks), and serves HTTP until a shutdown
// signal arrives.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recordstack/internal/api/handlers"
	"recordstack/internal/auth"
	"recordstack/internal/billing"
	"recordstack/internal/config"
	"recordstack/internal/core"
	"recordstack/internal/db"
	"recordstack/internal/external"
	"recordstack/internal/plans"
	"recordstack/internal/queue"
	"recordstack/internal/quota"
	"recordstack/internal/schema"
	"recordstack/internal/telemetry"
	"recordstack/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// Outside local mode secret references (ssm:// URIs) are resolved through
	// Parameter Store; the region must come straight from the environment
	// because the provider is needed before the config is parsed.
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("recordstack API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	// Repositories.
	profileRepo := db.NewProfileRepository(pool)
	planRepo := db.NewPlanRepository(pool)
	quotaRepo := db.NewQuotaRepository(pool)
	tokenRepo := db.NewTokenRepository(pool)
	customerRepo := db.NewCustomerRepository(pool)
	productRepo := db.NewProductRepository(pool)
	orderRepo := db.NewOrderRepository(pool)
	analyticsRepo := db.NewAnalyticsRepository(pool)
	syslogRepo := db.NewSystemLogRepository(pool)
	subRepo := db.NewSubscriptionRepository(pool)
	objectRepo := db.NewCustomObjectRepository(pool)

	// Domain services.
	registry, err := plans.NewRegistry(planRepo, logger)
	if err != nil {
		return fmt.Errorf("building plan registry: %w", err)
	}
	ledger := quota.NewLedger(quotaRepo, profileRepo, registry, logger)
	limiter := schema.NewLimiter(objectRepo, logger)

	codec := auth.NewAccessTokenCodec(cfg.Auth.SessionKey.Unmask(), cfg.Auth.AccessTokenTTL, types.RealClock{})
	resolver := auth.NewTokenResolver(codec, profileRepo)

	emailTrigger := queue.NewEmailTrigger(
		sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		}),
		cfg.AWS.EmailQueueURL,
		cfg.Email.Enabled,
		logger,
	)

	authSvc := auth.NewService(auth.ServiceConfig{
		Profiles:              profileRepo,
		Tokens:                tokenRepo,
		Notifier:              emailTrigger,
		Quota:                 ledger,
		Hasher:                auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Codec:                 codec,
		Logger:                logger,
		VerificationTokenTTL:  cfg.Auth.VerificationTokenTTL,
		PasswordResetTokenTTL: cfg.Auth.PasswordResetTokenTTL,
	})

	stripeClient := external.NewStripeClient(external.StripeClientConfig{
		SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
		Logger:    logger,
	})
	billingSvc := billing.NewService(subRepo, profileRepo, stripeClient, billing.PriceTable{
		Base:       cfg.Billing.PriceIDBase,
		Pro:        cfg.Billing.PriceIDPro,
		Enterprise: cfg.Billing.PriceIDEnterprise,
		SuccessURL: cfg.Server.DashboardURL + "/billing/success",
		CancelURL:  cfg.Server.DashboardURL + "/billing/cancelled",
	}, types.RealClock{}, logger)
	webhookVerifier := external.NewStripeWebhookVerifier(cfg.Billing.StripeWebhookSecret.Unmask())

	blogClient := external.NewBlogClient(cfg.Content.BlogFeedURL, cfg.Content.Timeout, logger)

	// Build the server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}
	srv.Authenticator = resolver
	srv.Profiles = profileRepo
	srv.Plans = registry
	srv.Ledger = ledger
	srv.SystemLogs = syslogRepo
	srv.HealthProbes = []core.HealthProbe{dbProbe{pool: pool}}

	var collector *telemetry.Collector
	if cfg.Observability.EnableMetrics {
		collector = telemetry.NewCollector(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			logger,
		)
		defer collector.Close()
		srv.Metrics = collector
	}

	// Domain handlers.
	authHandler := handlers.NewAuthHandler(authSvc, srv.Validator, logger)
	accountHandler := handlers.NewAccountHandler(profileRepo, ledger, registry)
	planHandler := handlers.NewPlanHandler(registry, srv.Validator)
	customerHandler := handlers.NewCustomerHandler(customerRepo, ledger, srv.Validator, logger)
	productHandler := handlers.NewProductHandler(productRepo, ledger, srv.Validator, logger)
	orderHandler := handlers.NewOrderHandler(orderRepo, ledger, srv.Validator, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsRepo, ledger, srv.Validator, logger)
	syslogHandler := handlers.NewSystemLogHandler(syslogRepo)
	objectHandler := handlers.NewObjectHandler(limiter, ledger, srv.Validator, logger)
	billingHandler := handlers.NewBillingHandler(billingSvc, srv.Validator, logger)
	blogHandler := handlers.NewBlogHandler(blogClient)
	webhookHandler := handlers.NewStripeWebhookHandler(webhookVerifier, billingSvc, logger)

	srv.APIRouteRegistrars = []func(chi.Router){
		authHandler.RegisterRoutes,
		accountHandler.RegisterRoutes,
		planHandler.RegisterRoutes,
		customerHandler.RegisterRoutes,
		productHandler.RegisterRoutes,
		orderHandler.RegisterRoutes,
		analyticsHandler.RegisterRoutes,
		syslogHandler.RegisterRoutes,
		objectHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
		blogHandler.RegisterRoutes,
	}
	srv.RootRouteRegistrars = []func(chi.Router){
		webhookHandler.RegisterRoutes,
	}
	srv.MountRoutes()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// dbProbe reports database reachability for the health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string { return "database" }

func (p dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
