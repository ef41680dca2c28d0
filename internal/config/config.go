// Package config defines the global configuration structure for the RecordStack platform.
// Configuration is loaded once at process initialization and is immutable thereafter.
// It follows 12-Factor App principles by strictly separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"recordstack/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the RecordStack platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"recordstack-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Auth          AuthConfig
	Billing       BillingConfig
	Email         EmailConfig
	Content       ContentConfig
	Archive       ArchiveConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public URLs for redirects and emails (no trailing slash)
	APIExternalURL string `envconfig:"API_EXTERNAL_URL" validate:"required,url"` // e.g., https://api.recordstack.io
	DashboardURL   string `envconfig:"DASHBOARD_URL" validate:"required,url"`    // e.g., https://app.recordstack.io
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Resource Identifiers
	EmailQueueURL string `envconfig:"SQS_EMAIL_QUEUE" validate:"required,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// AuthConfig holds credential hashing and token lifecycle settings.
type AuthConfig struct {
	// BcryptCost controls password hashing work factor. The default matches
	// bcrypt.DefaultCost; lower it only in tests.
	BcryptCost int `envconfig:"AUTH_BCRYPT_COST" default:"10"`

	SessionKey SecretString `envconfig:"SESSION_KEY" validate:"required,min=32"`

	AccessTokenTTL        time.Duration `envconfig:"AUTH_ACCESS_TOKEN_TTL" default:"24h"`
	VerificationTokenTTL  time.Duration `envconfig:"AUTH_VERIFICATION_TOKEN_TTL" default:"48h"`
	PasswordResetTokenTTL time.Duration `envconfig:"AUTH_PASSWORD_RESET_TOKEN_TTL" default:"1h"`
}

// BillingConfig holds Stripe payment integration credentials and keys.
type BillingConfig struct {
	StripeSecretKey      SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	StripePublishableKey string       `envconfig:"STRIPE_PUBLISHABLE_KEY" validate:"required"`

	// Stripe price IDs per paid tier. A tier with an empty price cannot be
	// purchased through checkout.
	PriceIDBase       string `envconfig:"STRIPE_PRICE_BASE"`
	PriceIDPro        string `envconfig:"STRIPE_PRICE_PRO"`
	PriceIDEnterprise string `envconfig:"STRIPE_PRICE_ENTERPRISE"`
}

// EmailConfig holds email delivery settings for transactional mail (verification,
// password reset). Delivery runs through SES; the Enabled flag is an emergency
// kill switch.
type EmailConfig struct {
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@recordstack.io"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"RecordStack"`
	Enabled     bool   `envconfig:"FEATURE_ENABLE_EMAIL" default:"true"`
}

// ContentConfig holds settings for the upstream blog content source.
type ContentConfig struct {
	// BlogFeedURL is the WordPress REST endpoint listing published posts.
	BlogFeedURL string        `envconfig:"BLOG_FEED_URL" validate:"required,url"`
	Timeout     time.Duration `envconfig:"BLOG_FETCH_TIMEOUT" default:"5s"`
}

// ArchiveConfig holds settings for the system log archiver.
type ArchiveConfig struct {
	// Directory receiving compressed log archives.
	Dir string `envconfig:"ARCHIVE_DIR" default:"/var/lib/recordstack/archive"`
	// Logs older than RetentionAge are archived and purged from the hot table.
	RetentionAge time.Duration `envconfig:"ARCHIVE_RETENTION_AGE" default:"2160h"` // 90 days
	BatchSize    int           `envconfig:"ARCHIVE_BATCH_SIZE" default:"5000"`
}

// SecurityConfig holds security-related configuration including admin access
// and CORS settings.
type SecurityConfig struct {
	AdminAPIKey        SecretString `envconfig:"ADMIN_API_KEY" validate:"required"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Global request rate limit applied per authenticated user, independent
	// of the plan's monthly quota.
	RequestsPerMinute int `envconfig:"RATE_REQUESTS_PER_MINUTE" default:"120"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"RecordStack"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
