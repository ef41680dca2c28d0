package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recordstack/internal/types"
)

// stripeAPIBase is the default Stripe API base URL. Overridable in tests.
const stripeAPIBase = "https://api.stripe.com"

// maxStripeBodyBytes caps decoded Stripe responses.
const maxStripeBodyBytes = 1 << 20

// CheckoutParams describes one hosted checkout session.
type CheckoutParams struct {
	PriceID           string
	CustomerEmail     string
	ClientReferenceID string // the principal's user_id
	Plan              types.PlanTier
	SuccessURL        string
	CancelURL         string
}

// CheckoutSession is the subset of Stripe's session object the service uses.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StripeClientConfig configures a StripeClient.
type StripeClientConfig struct {
	SecretKey string
	BaseURL   string // override for tests; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient talks to the Stripe REST API through BaseClient so billing
// calls share the platform's circuit breaker and retry behavior. Only the
// webhook path uses stripe-go's typed event objects; outbound calls are
// plain form-encoded REST.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a StripeClient with the standard resilience stack.
func NewStripeClient(cfg StripeClientConfig) *StripeClient {
	base := NewBaseClient(
		&http.Client{Timeout: 20 * time.Second},
		"stripe",
		DefaultRetryPolicy(),
		types.ErrCodeUpstreamBilling,
	)
	return NewStripeClientWithBase(base, cfg)
}

// NewStripeClientWithBase creates a StripeClient over a pre-configured
// BaseClient. For tests.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// CreateCheckoutSession opens a subscription-mode checkout session and
// returns the hosted payment page URL.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("client_reference_id", params.ClientReferenceID)
	form.Set("customer_email", params.CustomerEmail)
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("metadata[user_id]", params.ClientReferenceID)
	form.Set("metadata[plan]", string(params.Plan))

	var session CheckoutSession
	if err := c.post(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CancelAtPeriodEnd flags the subscription to lapse instead of renewing.
// The plan downgrade itself lands later via the subscription.deleted webhook.
func (c *StripeClient) CancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error {
	form := url.Values{}
	form.Set("cancel_at_period_end", "true")
	return c.post(ctx, "/v1/subscriptions/"+stripeSubscriptionID, form, nil)
}

func (c *StripeClient) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build stripe request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStripeBodyBytes))
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamBilling,
			"failed to read stripe response", err)
	}

	if resp.StatusCode >= 400 {
		return c.mapStripeError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamBilling,
			"stripe returned malformed JSON", err)
	}
	return nil
}

// stripeErrorBody is Stripe's standard error envelope.
type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) mapStripeError(status int, body []byte) error {
	var parsed stripeErrorBody
	_ = json.Unmarshal(body, &parsed)

	message := parsed.Error.Message
	if message == "" {
		message = fmt.Sprintf("stripe returned %d", status)
	}
	c.logger.Warn("stripe request rejected",
		"status", status, "type", parsed.Error.Type, "code", parsed.Error.Code)

	if status == http.StatusNotFound {
		return types.NewAppError(types.ErrCodeNotFound, message, nil)
	}
	return types.NewAppError(types.ErrCodeUpstreamBilling, message, nil)
}
