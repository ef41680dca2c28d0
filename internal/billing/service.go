// Package billing manages paid subscriptions: checkout and cancellation
// through Stripe, and the webhook-driven plan transitions that follow.
// The user's plan_name column is only ever written from here (and from
// signup, which assigns FREE).
package billing

import (
	"context"
	"log/slog"
	"time"

	"recordstack/internal/external"
	"recordstack/internal/types"
)

// SubscriptionStore persists subscription rows. Implemented by
// db.SubscriptionRepository.
type SubscriptionStore interface {
	Upsert(ctx context.Context, s *types.Subscription) error
	GetByUserID(ctx context.Context, userID string) (*types.Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*types.Subscription, error)
	UpdateStatus(ctx context.Context, userID string, status types.SubscriptionStatus) error
}

// PlanWriter moves a principal between plan tiers. Implemented by
// db.ProfileRepository.
type PlanWriter interface {
	UpdatePlan(ctx context.Context, userID string, plan types.PlanTier) error
}

// CheckoutGateway opens hosted checkout sessions and flags cancellations.
// Implemented by external.StripeClient.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, params external.CheckoutParams) (*external.CheckoutSession, error)
	CancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error
}

// PriceTable maps paid tiers to Stripe price IDs and carries the redirect
// URLs for the hosted checkout flow.
type PriceTable struct {
	Base       string
	Pro        string
	Enterprise string

	SuccessURL string
	CancelURL  string
}

// PriceFor returns the Stripe price ID for a paid tier. FREE and unknown
// tiers have no price.
func (t PriceTable) PriceFor(tier types.PlanTier) (string, bool) {
	switch tier {
	case types.PlanBase:
		return t.Base, t.Base != ""
	case types.PlanPro:
		return t.Pro, t.Pro != ""
	case types.PlanEnterprise:
		return t.Enterprise, t.Enterprise != ""
	}
	return "", false
}

// Service is the subscription lifecycle service.
type Service struct {
	subs    SubscriptionStore
	plans   PlanWriter
	gateway CheckoutGateway
	prices  PriceTable
	clock   types.Clock
	logger  *slog.Logger
}

func NewService(subs SubscriptionStore, plans PlanWriter, gateway CheckoutGateway, prices PriceTable, clock types.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{subs: subs, plans: plans, gateway: gateway, prices: prices, clock: clock, logger: logger}
}

// GetSubscription returns the caller's subscription row.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*types.Subscription, error) {
	return s.subs.GetByUserID(ctx, userID)
}

// CreateCheckoutSession opens a hosted checkout for the requested paid tier
// and returns the payment page URL. The plan change itself happens when the
// checkout.session.completed webhook arrives.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, email string, tier types.PlanTier) (string, error) {
	priceID, ok := s.prices.PriceFor(tier)
	if !ok {
		return "", types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"no purchasable price for the requested plan", nil,
			map[string]any{"plan": string(tier)})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, external.CheckoutParams{
		PriceID:           priceID,
		CustomerEmail:     email,
		ClientReferenceID: userID,
		Plan:              tier,
		SuccessURL:        s.prices.SuccessURL,
		CancelURL:         s.prices.CancelURL,
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "checkout session opened",
		"user_id", userID, "plan", tier, "session_id", session.ID)
	return session.URL, nil
}

// CancelSubscription flags the caller's subscription to lapse at period end.
// Access continues until ValidTill; the downgrade to FREE lands via webhook.
func (s *Service) CancelSubscription(ctx context.Context, userID string) error {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if sub.Status != types.SubStatusActive {
		return types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"subscription is not active", nil,
			map[string]any{"status": string(sub.Status)})
	}
	if sub.StripeSubscriptionID == "" {
		return types.NewAppError(types.ErrCodeValidation,
			"subscription has no billing provider attachment", nil)
	}

	if err := s.gateway.CancelAtPeriodEnd(ctx, sub.StripeSubscriptionID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "subscription cancellation scheduled",
		"user_id", userID, "valid_till", sub.ValidTill)
	return nil
}

// activatePaid records a paid subscription period and moves the principal
// onto the tier. Used by the checkout-completed and renewal webhook paths.
func (s *Service) activatePaid(ctx context.Context, userID string, tier types.PlanTier, sub *types.Subscription) error {
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return err
	}
	if err := s.plans.UpdatePlan(ctx, userID, tier); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "plan activated", "user_id", userID, "plan", tier)
	return nil
}

// downgradeToFree cancels the subscription row and returns the principal to
// the FREE tier. Existing records and quota state are untouched; the lower
// limits simply apply from the next request on.
func (s *Service) downgradeToFree(ctx context.Context, userID string, status types.SubscriptionStatus) error {
	if err := s.subs.UpdateStatus(ctx, userID, status); err != nil {
		return err
	}
	if err := s.plans.UpdatePlan(ctx, userID, types.PlanFree); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "plan downgraded to FREE", "user_id", userID, "status", status)
	return nil
}

// monthlyPeriod returns [now, now+1 month) in UTC.
func (s *Service) monthlyPeriod() (time.Time, time.Time) {
	now := s.clock.Now().UTC()
	return now, now.AddDate(0, 1, 0)
}
