package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// SystemLogRepository provides data access for the system_logs table. Writes
// come from the request-logging middleware and must be cheap; reads serve the
// admin surface and the archiver.
type SystemLogRepository struct {
	db DBTX
}

// NewSystemLogRepository creates a new SystemLogRepository backed by the
// given database connection (pool or transaction).
func NewSystemLogRepository(db DBTX) *SystemLogRepository {
	return &SystemLogRepository{db: db}
}

const syslogColumns = `l.public_id, l.created_by, l.is_platform_owned,
	l.is_deleted, l.deleted_at, l.created_at,
	l.log_id, l.service_name, l.log_level, l.message, l.request_path,
	l.http_status, l.response_time_ms, l.user_ip_address, l.logged_at`

func scanSystemLog(row pgx.Row) (*types.SystemLog, error) {
	var l types.SystemLog
	err := row.Scan(
		&l.PublicID,
		&l.CreatedBy,
		&l.IsPlatformOwned,
		&l.IsDeleted,
		&l.DeletedAt,
		&l.CreatedAt,
		&l.LogID,
		&l.ServiceName,
		&l.Level,
		&l.Message,
		&l.RequestPath,
		&l.HTTPStatus,
		&l.ResponseTimeMS,
		&l.UserIPAddress,
		&l.LoggedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a system log entry. Callers in the request path swallow the
// returned error; audit logging must never fail a request.
func (r *SystemLogRepository) Create(ctx context.Context, l *types.SystemLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO system_logs (public_id, created_by, is_platform_owned,
		   log_id, service_name, log_level, message, request_path,
		   http_status, response_time_ms, user_ip_address, logged_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()), COALESCE($13, NOW()))`,
		l.PublicID,
		l.CreatedBy,
		l.IsPlatformOwned,
		l.LogID,
		l.ServiceName,
		l.Level,
		l.Message,
		l.RequestPath,
		l.HTTPStatus,
		l.ResponseTimeMS,
		nilIfEmpty(l.UserIPAddress),
		nilIfZeroTime(l.LoggedAt),
		nilIfZeroTime(l.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to write system log", err)
	}
	return nil
}

// List returns a page of alive log entries visible to the owner, newest first,
// plus the total visible count.
func (r *SystemLogRepository) List(ctx context.Context, owner string, page types.Page) ([]*types.SystemLog, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM system_logs l
		 WHERE l.is_deleted = FALSE AND (l.created_by = $1 OR l.is_platform_owned = TRUE)`,
		owner,
	).Scan(&total)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count system logs", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+syslogColumns+`
		 FROM system_logs l
		 WHERE l.is_deleted = FALSE AND (l.created_by = $1 OR l.is_platform_owned = TRUE)
		 ORDER BY l.logged_at DESC, l.public_id
		 LIMIT $2 OFFSET $3`,
		owner, page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list system logs", err)
	}
	defer rows.Close()

	var out []*types.SystemLog
	for rows.Next() {
		l, err := scanSystemLog(rows)
		if err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan system log row", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate system log rows", err)
	}
	return out, total, nil
}

// ListOlderThan streams log entries logged before the cutoff, oldest first,
// capped at batchSize. Used by the archiver to drain aged entries.
func (r *SystemLogRepository) ListOlderThan(ctx context.Context, cutoff time.Time, batchSize int) ([]*types.SystemLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+syslogColumns+`
		 FROM system_logs l
		 WHERE l.logged_at < $1
		 ORDER BY l.logged_at ASC, l.public_id
		 LIMIT $2`,
		cutoff, batchSize,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list aged system logs", err)
	}
	defer rows.Close()

	var out []*types.SystemLog
	for rows.Next() {
		l, err := scanSystemLog(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan system log row", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate system log rows", err)
	}
	return out, nil
}

// DeleteByPublicIDs hard-deletes archived log entries. Called by the archiver
// only after the compressed archive has been durably written.
func (r *SystemLogRepository) DeleteByPublicIDs(ctx context.Context, publicIDs []string) (int64, error) {
	if len(publicIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM system_logs WHERE public_id = ANY($1)`,
		publicIDs,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge archived system logs", err)
	}
	return tag.RowsAffected(), nil
}

// GetByPublicID retrieves a single alive log entry visible to the owner.
func (r *SystemLogRepository) GetByPublicID(ctx context.Context, owner, publicID string) (*types.SystemLog, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+syslogColumns+`
		 FROM system_logs l
		 WHERE l.public_id = $1 AND l.is_deleted = FALSE
		   AND (l.created_by = $2 OR l.is_platform_owned = TRUE)`,
		publicID, owner,
	)
	l, err := scanSystemLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "system log not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve system log", err)
	}
	return l, nil
}
