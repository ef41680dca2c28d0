package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// QuotaRepository provides the atomic SQL operations behind the quota ledger:
// lazy monthly window reset, conditional API-call consumption, and alive-only
// record counting across the quota-governed entity tables.
type QuotaRepository struct {
	db DBTX
}

// NewQuotaRepository creates a new QuotaRepository backed by the given
// database connection (pool or transaction).
func NewQuotaRepository(db DBTX) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// QuotaWindow is the API-call window snapshot read after a reset attempt.
type QuotaWindow struct {
	PlanName     *types.PlanTier
	APICallsUsed int
	APIResetAt   time.Time
}

// ResetWindowIfElapsed performs the lazy monthly reset in a single guarded
// UPDATE. Only one of any number of concurrent callers wins the reset; the
// guard `NOW() >= api_reset_at` makes the losers no-ops. The current window
// state is then read back and returned.
func (r *QuotaRepository) ResetWindowIfElapsed(ctx context.Context, userID string) (*QuotaWindow, error) {
	_, err := r.db.Exec(ctx,
		`UPDATE user_profiles
		 SET api_calls_used = 0,
		     api_reset_at = NOW() + INTERVAL '1 month'
		 WHERE user_id = $1 AND NOW() >= api_reset_at`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to reset quota window", err)
	}

	var w QuotaWindow
	err = r.db.QueryRow(ctx,
		`SELECT plan_name, api_calls_used, api_reset_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&w.PlanName, &w.APICallsUsed, &w.APIResetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "quota state not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read quota window", err)
	}
	return &w, nil
}

// ConsumeAPICall atomically increments the API-call counter, but only while
// the counter is below the plan limit. The WHERE clause is the entire
// concurrency contract: with K calls remaining and N concurrent consumers,
// exactly K of the N updates match a row. Returns false when the quota was
// already exhausted.
func (r *QuotaRepository) ConsumeAPICall(ctx context.Context, userID string, limit int) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_profiles
		 SET api_calls_used = api_calls_used + 1
		 WHERE user_id = $1 AND api_calls_used < $2`,
		userID, limit,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to consume API call", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ownedCountQueries maps each quota-governed entity type to the alive-row
// count query against its owner column. The owner column differs per table
// and is recorded here explicitly rather than guessed by convention.
var ownedCountQueries = map[types.EntityType]string{
	types.EntityCustomerProfile: `SELECT COUNT(*) FROM customer_profiles
		WHERE created_by = $1 AND is_deleted = FALSE AND is_platform_owned = FALSE`,
	types.EntityProductCatalog: `SELECT COUNT(*) FROM product_catalog
		WHERE created_by = $1 AND is_deleted = FALSE AND is_platform_owned = FALSE`,
	types.EntityOrder: `SELECT COUNT(*) FROM order_transactions
		WHERE created_by = $1 AND is_deleted = FALSE AND is_platform_owned = FALSE`,
	types.EntityUsageAnalytics: `SELECT COUNT(*) FROM feature_usage_analytics
		WHERE created_by = $1 AND is_deleted = FALSE AND is_platform_owned = FALSE`,
}

// QuotaGovernedEntityTypes lists the entity types that count toward the
// record quota, in stable order.
var QuotaGovernedEntityTypes = []types.EntityType{
	types.EntityCustomerProfile,
	types.EntityProductCatalog,
	types.EntityOrder,
	types.EntityUsageAnalytics,
}

// ErrUnknownEntityType is returned when a count is requested for an entity
// type that is not quota-governed.
var ErrUnknownEntityType = errors.New("entity type is not quota-governed")

// CountOwnedRecords returns the number of alive, principal-owned rows for a
// single entity type. Soft-deleted and platform-owned rows never count.
func (r *QuotaRepository) CountOwnedRecords(ctx context.Context, userID string, entity types.EntityType) (int, error) {
	query, ok := ownedCountQueries[entity]
	if !ok {
		return 0, ErrUnknownEntityType
	}

	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB,
			"failed to count records for "+string(entity), err)
	}
	return count, nil
}
