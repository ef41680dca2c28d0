package billing

import (
	"context"
	"encoding/json"

	stripe "github.com/stripe/stripe-go/v82"

	"recordstack/internal/types"
)

// checkoutSessionPayload is the slice of Stripe's checkout.session object
// this service reads. The session's client_reference_id carries our user_id
// and metadata.plan carries the purchased tier, both set at session creation.
type checkoutSessionPayload struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
}

// invoicePayload is the slice of Stripe's invoice object read on payment
// events.
type invoicePayload struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
}

// subscriptionPayload is the slice of Stripe's subscription object read on
// lifecycle events.
type subscriptionPayload struct {
	ID string `json:"id"`
}

// HandleEvent applies one verified webhook event to local billing state.
// Unhandled event types are ignored. Processing errors are returned for
// logging but the HTTP handler still acknowledges receipt, so Stripe does
// not retry indefinitely against a poisoned event.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case stripe.EventTypeInvoicePaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	case stripe.EventTypeInvoicePaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logger.DebugContext(ctx, "ignoring webhook event", "type", event.Type)
		return nil
	}
}

// handleCheckoutCompleted activates the purchased tier: one subscription row
// per user, overwritten in place, and the profile's plan_name updated.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session checkoutSessionPayload
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return types.NewAppError(types.ErrCodeValidation,
			"malformed checkout.session.completed payload", err)
	}
	if session.ClientReferenceID == "" {
		return types.NewAppError(types.ErrCodeValidation,
			"checkout session carries no client_reference_id", nil)
	}

	tier := types.NormalizePlanTier(session.Metadata["plan"])
	if !tier.Valid() || tier == types.PlanFree {
		return types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"checkout session carries no purchasable plan", nil,
			map[string]any{"plan": session.Metadata["plan"]})
	}

	from, till := s.monthlyPeriod()
	return s.activatePaid(ctx, session.ClientReferenceID, tier, &types.Subscription{
		UserID:               session.ClientReferenceID,
		PlanName:             tier,
		Status:               types.SubStatusActive,
		ValidFrom:            from,
		ValidTill:            till,
		StripeCustomerID:     session.Customer,
		StripeSubscriptionID: session.Subscription,
	})
}

// handlePaymentSucceeded extends the current period on renewal and clears
// any past-due state.
func (s *Service) handlePaymentSucceeded(ctx context.Context, event *stripe.Event) error {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return types.NewAppError(types.ErrCodeValidation,
			"malformed invoice payload", err)
	}
	if invoice.Subscription == "" {
		return nil // one-off invoice, not a subscription renewal
	}

	sub, err := s.subs.GetByStripeSubscriptionID(ctx, invoice.Subscription)
	if err != nil {
		return err
	}

	from, till := s.monthlyPeriod()
	sub.Status = types.SubStatusActive
	sub.ValidFrom = from
	sub.ValidTill = till
	sub.LastPaymentID = invoice.ID
	return s.activatePaid(ctx, sub.UserID, sub.PlanName, sub)
}

// handlePaymentFailed marks the subscription past due. Access stays on the
// paid tier until Stripe gives up and emits subscription.deleted.
func (s *Service) handlePaymentFailed(ctx context.Context, event *stripe.Event) error {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return types.NewAppError(types.ErrCodeValidation,
			"malformed invoice payload", err)
	}
	if invoice.Subscription == "" {
		return nil
	}

	sub, err := s.subs.GetByStripeSubscriptionID(ctx, invoice.Subscription)
	if err != nil {
		return err
	}

	s.logger.WarnContext(ctx, "subscription payment failed",
		"user_id", sub.UserID, "invoice_id", invoice.ID)
	return s.subs.UpdateStatus(ctx, sub.UserID, types.SubStatusPastDue)
}

// handleSubscriptionDeleted returns the principal to the FREE tier.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var payload subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return types.NewAppError(types.ErrCodeValidation,
			"malformed subscription payload", err)
	}

	sub, err := s.subs.GetByStripeSubscriptionID(ctx, payload.ID)
	if err != nil {
		return err
	}
	return s.downgradeToFree(ctx, sub.UserID, types.SubStatusCancelled)
}
