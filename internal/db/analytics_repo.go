package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// AnalyticsRepository provides data access for the feature_usage_analytics table.
type AnalyticsRepository struct {
	db DBTX
}

// NewAnalyticsRepository creates a new AnalyticsRepository backed by the
// given database connection (pool or transaction).
func NewAnalyticsRepository(db DBTX) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

const analyticsColumns = `a.public_id, a.created_by, a.is_platform_owned,
	a.is_deleted, a.deleted_at, a.created_at,
	a.event_id, a.feature_name, a.api_calls_made, a.data_volume_mb,
	a.success_rate, a.throttled, a.client_app, a.event_timestamp`

func scanAnalytics(row pgx.Row) (*types.FeatureUsageAnalytics, error) {
	var a types.FeatureUsageAnalytics
	err := row.Scan(
		&a.PublicID,
		&a.CreatedBy,
		&a.IsPlatformOwned,
		&a.IsDeleted,
		&a.DeletedAt,
		&a.CreatedAt,
		&a.EventID,
		&a.FeatureName,
		&a.APICallsMade,
		&a.DataVolumeMB,
		&a.SuccessRate,
		&a.Throttled,
		&a.ClientApp,
		&a.EventTimestamp,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new usage analytics event owned by the caller.
func (r *AnalyticsRepository) Create(ctx context.Context, a *types.FeatureUsageAnalytics) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO feature_usage_analytics (public_id, created_by, is_platform_owned,
		   event_id, feature_name, api_calls_made, data_volume_mb,
		   success_rate, throttled, client_app, event_timestamp, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()), COALESCE($12, NOW()))`,
		a.PublicID,
		a.CreatedBy,
		a.IsPlatformOwned,
		a.EventID,
		a.FeatureName,
		a.APICallsMade,
		a.DataVolumeMB,
		a.SuccessRate,
		a.Throttled,
		a.ClientApp,
		nilIfZeroTime(a.EventTimestamp),
		nilIfZeroTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateResource,
				"an analytics event with this event_id already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create analytics event", err)
	}
	return nil
}

// GetByPublicID retrieves an alive analytics event visible to the owner.
func (r *AnalyticsRepository) GetByPublicID(ctx context.Context, owner, publicID string) (*types.FeatureUsageAnalytics, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+analyticsColumns+`
		 FROM feature_usage_analytics a
		 WHERE a.public_id = $1 AND a.is_deleted = FALSE
		   AND (a.created_by = $2 OR a.is_platform_owned = TRUE)`,
		publicID, owner,
	)
	a, err := scanAnalytics(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "analytics event not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve analytics event", err)
	}
	return a, nil
}

// List returns a page of alive analytics events visible to the owner plus the
// total visible count, newest event first.
func (r *AnalyticsRepository) List(ctx context.Context, owner string, page types.Page) ([]*types.FeatureUsageAnalytics, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM feature_usage_analytics a
		 WHERE a.is_deleted = FALSE AND (a.created_by = $1 OR a.is_platform_owned = TRUE)`,
		owner,
	).Scan(&total)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count analytics events", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+analyticsColumns+`
		 FROM feature_usage_analytics a
		 WHERE a.is_deleted = FALSE AND (a.created_by = $1 OR a.is_platform_owned = TRUE)
		 ORDER BY a.event_timestamp DESC, a.public_id
		 LIMIT $2 OFFSET $3`,
		owner, page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list analytics events", err)
	}
	defer rows.Close()

	var out []*types.FeatureUsageAnalytics
	for rows.Next() {
		a, err := scanAnalytics(rows)
		if err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan analytics row", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate analytics rows", err)
	}
	return out, total, nil
}

// SoftDelete marks an owned analytics event deleted.
func (r *AnalyticsRepository) SoftDelete(ctx context.Context, owner, publicID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE feature_usage_analytics
		 SET is_deleted = TRUE, deleted_at = NOW()
		 WHERE public_id = $1 AND created_by = $2
		   AND is_deleted = FALSE AND is_platform_owned = FALSE`,
		publicID, owner,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete analytics event", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "analytics event not found", nil)
	}
	return nil
}
