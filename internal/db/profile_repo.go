package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// ProfileRepository provides data access for the user_profiles table, which
// carries both account identity and the per-principal quota state.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository backed by the given
// database connection (pool or transaction).
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `u.user_id, u.email, u.first_name, u.last_name,
	u.organization_name, u.plan_name, u.api_calls_used, u.api_reset_at,
	u.records_used, u.is_email_verified, u.is_active, u.is_admin,
	u.password_hash, u.created_at`

func scanProfile(row pgx.Row) (*types.UserProfile, error) {
	var p types.UserProfile
	var firstName, orgName *string

	err := row.Scan(
		&p.UserID,
		&p.Email,
		&firstName,
		&p.LastName,
		&orgName,
		&p.PlanName,
		&p.APICallsUsed,
		&p.APIResetAt,
		&p.RecordsUsed,
		&p.IsEmailVerified,
		&p.IsActive,
		&p.IsAdmin,
		&p.PasswordHash,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if firstName != nil {
		p.FirstName = *firstName
	}
	if orgName != nil {
		p.OrganizationName = *orgName
	}
	return &p, nil
}

// Create inserts a new user profile. The initial quota window starts one month
// out from creation. Returns DUPLICATE_RESOURCE when the email is taken.
func (r *ProfileRepository) Create(ctx context.Context, p *types.UserProfile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_profiles (user_id, email, first_name, last_name,
		   organization_name, plan_name, api_calls_used, api_reset_at,
		   records_used, is_email_verified, is_active, is_admin,
		   password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, NOW() + INTERVAL '1 month',
		   0, $7, $8, $9, $10, COALESCE($11, NOW()))`,
		p.UserID,
		p.Email,
		nilIfEmpty(p.FirstName),
		p.LastName,
		nilIfEmpty(p.OrganizationName),
		p.PlanName,
		p.IsEmailVerified,
		p.IsActive,
		p.IsAdmin,
		p.PasswordHash,
		nilIfZeroTime(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateResource, "an account with this email already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user profile", err)
	}
	return nil
}

// EnsureQuotaState inserts a default quota row for the principal if one does
// not exist. ON CONFLICT DO NOTHING makes concurrent initialization idempotent.
// Returns true when a new row was created.
func (r *ProfileRepository) EnsureQuotaState(ctx context.Context, userID, email string, plan types.PlanTier) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO user_profiles (user_id, email, last_name, plan_name,
		   api_calls_used, api_reset_at, records_used,
		   is_email_verified, is_active, is_admin, password_hash)
		 VALUES ($1, $2, '', $3, 0, NOW() + INTERVAL '1 month', 0, FALSE, TRUE, FALSE, '')
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, email, plan,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to initialize quota state", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByUserID retrieves a profile by its user ID.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*types.UserProfile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM user_profiles u WHERE u.user_id = $1`,
		userID,
	)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user profile", err)
	}
	return p, nil
}

// GetByEmail retrieves a profile by email, used by the login flow.
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*types.UserProfile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM user_profiles u WHERE u.email = $1`,
		email,
	)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user profile", err)
	}
	return p, nil
}

// UpdatePlan assigns a new plan tier to the principal. Used by the billing
// integration when a subscription changes.
func (r *ProfileRepository) UpdatePlan(ctx context.Context, userID string, plan types.PlanTier) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_profiles SET plan_name = $1 WHERE user_id = $2`,
		plan, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update plan assignment", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
	}
	return nil
}

// MarkEmailVerified flips the verification flag after a token is redeemed.
func (r *ProfileRepository) MarkEmailVerified(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_profiles SET is_email_verified = TRUE WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark email verified", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential after a password reset.
func (r *ProfileRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_profiles SET password_hash = $1 WHERE user_id = $2`,
		hash, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update password", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "user profile not found", nil)
	}
	return nil
}
