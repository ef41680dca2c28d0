package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// TokenRepository provides data access for single-use auth tokens: email
// verification and password reset. Both flows share the same shape; the
// table name is the only difference.
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a new TokenRepository backed by the given
// database connection (pool or transaction).
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// CreateVerificationToken stores a fresh email verification token.
func (r *TokenRepository) CreateVerificationToken(ctx context.Context, t *types.EmailVerificationToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO email_verification_tokens (user_id, token, is_used, created_at)
		 VALUES ($1, $2, FALSE, COALESCE($3, NOW()))`,
		t.UserID, t.Token, nilIfZeroTime(t.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store verification token", err)
	}
	return nil
}

// RedeemVerificationToken marks an unused, unexpired verification token used
// and returns its owner. The single guarded UPDATE makes redemption race-free:
// two concurrent redemptions of the same token can only have one winner.
func (r *TokenRepository) RedeemVerificationToken(ctx context.Context, token string, maxAge time.Duration) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx,
		`UPDATE email_verification_tokens
		 SET is_used = TRUE
		 WHERE token = $1 AND is_used = FALSE AND created_at > NOW() - $2::interval
		 RETURNING user_id`,
		token, maxAge,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeInvalidToken,
				"verification token is invalid, expired, or already used", nil)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to redeem verification token", err)
	}
	return userID, nil
}

// CreateResetToken stores a fresh password reset token.
func (r *TokenRepository) CreateResetToken(ctx context.Context, t *types.PasswordResetToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO password_reset_tokens (user_id, token, is_used, created_at)
		 VALUES ($1, $2, FALSE, COALESCE($3, NOW()))`,
		t.UserID, t.Token, nilIfZeroTime(t.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store reset token", err)
	}
	return nil
}

// RedeemResetToken marks an unused, unexpired reset token used and returns
// its owner.
func (r *TokenRepository) RedeemResetToken(ctx context.Context, token string, maxAge time.Duration) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx,
		`UPDATE password_reset_tokens
		 SET is_used = TRUE
		 WHERE token = $1 AND is_used = FALSE AND created_at > NOW() - $2::interval
		 RETURNING user_id`,
		token, maxAge,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeInvalidToken,
				"reset token is invalid, expired, or already used", nil)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to redeem reset token", err)
	}
	return userID, nil
}
