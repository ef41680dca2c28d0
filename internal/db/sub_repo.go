package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// SubscriptionRepository provides data access for the subscriptions table,
// which ties a principal to a paid plan period driven by Stripe.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a new SubscriptionRepository backed by
// the given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subColumns = `s.user_id, s.plan_name, s.status, s.valid_from, s.valid_till,
	s.last_payment_id, s.stripe_customer_id, s.stripe_subscription_id`

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	var lastPayment, stripeCust, stripeSub *string
	err := row.Scan(
		&s.UserID,
		&s.PlanName,
		&s.Status,
		&s.ValidFrom,
		&s.ValidTill,
		&lastPayment,
		&stripeCust,
		&stripeSub,
	)
	if err != nil {
		return nil, err
	}
	if lastPayment != nil {
		s.LastPaymentID = *lastPayment
	}
	if stripeCust != nil {
		s.StripeCustomerID = *stripeCust
	}
	if stripeSub != nil {
		s.StripeSubscriptionID = *stripeSub
	}
	return &s, nil
}

// Upsert inserts or replaces the principal's subscription. One subscription
// row exists per user; plan changes overwrite in place.
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *types.Subscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (user_id, plan_name, status, valid_from, valid_till,
		   last_payment_id, stripe_customer_id, stripe_subscription_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		   plan_name = EXCLUDED.plan_name,
		   status = EXCLUDED.status,
		   valid_from = EXCLUDED.valid_from,
		   valid_till = EXCLUDED.valid_till,
		   last_payment_id = EXCLUDED.last_payment_id,
		   stripe_customer_id = EXCLUDED.stripe_customer_id,
		   stripe_subscription_id = EXCLUDED.stripe_subscription_id`,
		s.UserID,
		s.PlanName,
		s.Status,
		s.ValidFrom,
		s.ValidTill,
		nilIfEmpty(s.LastPaymentID),
		nilIfEmpty(s.StripeCustomerID),
		nilIfEmpty(s.StripeSubscriptionID),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert subscription", err)
	}
	return nil
}

// GetByUserID retrieves the principal's subscription.
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subColumns+` FROM subscriptions s WHERE s.user_id = $1`,
		userID,
	)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// GetByStripeSubscriptionID resolves a subscription from a Stripe webhook
// event payload.
func (r *SubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subColumns+` FROM subscriptions s WHERE s.stripe_subscription_id = $1`,
		stripeSubID,
	)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// UpdateStatus transitions the subscription lifecycle state.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, userID string, status types.SubscriptionStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET status = $1 WHERE user_id = $2`,
		status, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "subscription not found", nil)
	}
	return nil
}
