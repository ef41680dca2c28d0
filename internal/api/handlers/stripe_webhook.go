package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v82"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// maxWebhookBodySize caps Stripe webhook payloads. They are small in
// practice; the limit guards against abuse on an unauthenticated endpoint.
const maxWebhookBodySize = 64 * 1024

// WebhookVerifier checks a raw payload against its signature header.
// Implemented by external.StripeWebhookVerifier.
type WebhookVerifier interface {
	Verify(payload []byte, sigHeader string) error
}

// WebhookEventApplier applies a verified billing event to local state.
// Implemented by billing.Service.
type WebhookEventApplier interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// StripeWebhookHandler receives asynchronous billing events from Stripe.
// The endpoint carries no access token; authenticity comes from the
// Stripe-Signature header, so the route sits on a policy-bypassed prefix.
type StripeWebhookHandler struct {
	verifier WebhookVerifier
	applier  WebhookEventApplier
	logger   *slog.Logger
}

func NewStripeWebhookHandler(verifier WebhookVerifier, applier WebhookEventApplier, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{verifier: verifier, applier: applier, logger: logger}
}

// RegisterRoutes mounts the webhook endpoint. Registered on the root router
// rather than /api/v1 because the caller is Stripe, not an API client.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidation,
			"failed to read webhook body", err))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeInvalidToken,
			"missing Stripe-Signature header", nil))
		return
	}
	if err := h.verifier.Verify(payload, sigHeader); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature rejected", "error", err)
		core.Error(w, r, err)
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidation,
			"malformed webhook event JSON", err))
		return
	}

	h.logger.InfoContext(r.Context(), "stripe webhook received",
		"event_id", event.ID, "event_type", event.Type)

	if err := h.applier.HandleEvent(r.Context(), &event); err != nil {
		// Acknowledge anyway: retrying a poisoned event forever helps
		// nobody, and the failure is logged for investigation.
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID, "event_type", event.Type, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
