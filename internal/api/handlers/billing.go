package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// BillingService is the subscription lifecycle contract implemented by
// billing.Service on top of Stripe Checkout.
type BillingService interface {
	GetSubscription(ctx context.Context, userID string) (*types.Subscription, error)
	CreateCheckoutSession(ctx context.Context, userID, email string, tier types.PlanTier) (string, error)
	CancelSubscription(ctx context.Context, userID string) error
}

// CheckoutRequest is the request body for POST /billing/checkout.
type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=BASE PRO ENTERPRISE"`
}

// CheckoutResponse carries the hosted payment page URL back to the client.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// BillingHandler serves the billing namespace: the caller's subscription
// state and the checkout/cancel flows around it. Plan changes themselves
// land via the Stripe webhook, not here.
type BillingHandler struct {
	service   BillingService
	validator *core.Validator
	logger    *slog.Logger
}

func NewBillingHandler(service BillingService, validator *core.Validator, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{service: service, validator: validator, logger: logger}
}

// RegisterRoutes mounts billing routes on the provided chi.Router.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/billing", func(r chi.Router) {
		r.Get("/subscription", h.GetSubscription)
		r.Post("/checkout", h.Checkout)
		r.Post("/cancel", h.Cancel)
	})
}

func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	sub, err := h.service.GetSubscription(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, sub)
}

func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	url, err := h.service.CreateCheckoutSession(r.Context(), actor.ID, actor.Email, types.NormalizePlanTier(req.Plan))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "checkout session created",
		"user_id", actor.ID, "plan", req.Plan)
	core.JSON(w, r, http.StatusOK, CheckoutResponse{CheckoutURL: url})
}

func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.service.CancelSubscription(r.Context(), actor.ID); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]string{
		"detail": "subscription will not renew at the end of the current period",
	})
}
