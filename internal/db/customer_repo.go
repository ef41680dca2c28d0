package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// CustomerRepository provides data access for the customer_profiles table.
// Reads are alive-scoped by default: soft-deleted rows are excluded, and
// visibility covers rows owned by the principal plus platform-owned rows.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository creates a new CustomerRepository backed by the given
// database connection (pool or transaction).
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `c.public_id, c.created_by, c.is_platform_owned,
	c.is_deleted, c.deleted_at, c.created_at,
	c.customer_id, c.full_name, c.username, c.email, c.phone_number,
	c.is_email_verified, c.role, c.last_login_ip`

func scanCustomer(row pgx.Row) (*types.CustomerProfile, error) {
	var c types.CustomerProfile
	err := row.Scan(
		&c.PublicID,
		&c.CreatedBy,
		&c.IsPlatformOwned,
		&c.IsDeleted,
		&c.DeletedAt,
		&c.CreatedAt,
		&c.CustomerID,
		&c.FullName,
		&c.Username,
		&c.Email,
		&c.PhoneNumber,
		&c.IsEmailVerified,
		&c.Role,
		&c.LastLoginIP,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new customer profile owned by the caller.
// The (owner, customer_id) pair is unique among alive rows.
func (r *CustomerRepository) Create(ctx context.Context, c *types.CustomerProfile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO customer_profiles (public_id, created_by, is_platform_owned,
		   customer_id, full_name, username, email, phone_number,
		   is_email_verified, role, last_login_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()))`,
		c.PublicID,
		c.CreatedBy,
		c.IsPlatformOwned,
		c.CustomerID,
		c.FullName,
		c.Username,
		c.Email,
		c.PhoneNumber,
		c.IsEmailVerified,
		c.Role,
		c.LastLoginIP,
		nilIfZeroTime(c.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateResource,
				"customer profile already exists for this customer_id", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create customer profile", err)
	}
	return nil
}

// GetByPublicID retrieves an alive customer profile visible to the owner.
func (r *CustomerRepository) GetByPublicID(ctx context.Context, owner, publicID string) (*types.CustomerProfile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+customerColumns+`
		 FROM customer_profiles c
		 WHERE c.public_id = $1 AND c.is_deleted = FALSE
		   AND (c.created_by = $2 OR c.is_platform_owned = TRUE)`,
		publicID, owner,
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "customer profile not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve customer profile", err)
	}
	return c, nil
}

// List returns a page of alive customer profiles visible to the owner, newest
// first, along with the total visible count for the pagination envelope.
func (r *CustomerRepository) List(ctx context.Context, owner string, page types.Page) ([]*types.CustomerProfile, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM customer_profiles c
		 WHERE c.is_deleted = FALSE AND (c.created_by = $1 OR c.is_platform_owned = TRUE)`,
		owner,
	).Scan(&total)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count customer profiles", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+customerColumns+`
		 FROM customer_profiles c
		 WHERE c.is_deleted = FALSE AND (c.created_by = $1 OR c.is_platform_owned = TRUE)
		 ORDER BY c.created_at DESC, c.public_id
		 LIMIT $2 OFFSET $3`,
		owner, page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list customer profiles", err)
	}
	defer rows.Close()

	var out []*types.CustomerProfile
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan customer profile row", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate customer profile rows", err)
	}
	return out, total, nil
}

// Update rewrites the mutable fields of an owned customer profile.
// Platform-owned rows are never writable through the API surface.
func (r *CustomerRepository) Update(ctx context.Context, owner string, c *types.CustomerProfile) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customer_profiles
		 SET full_name = $1, username = $2, email = $3, phone_number = $4,
		     is_email_verified = $5, role = $6, last_login_ip = $7
		 WHERE public_id = $8 AND created_by = $9
		   AND is_deleted = FALSE AND is_platform_owned = FALSE`,
		c.FullName,
		c.Username,
		c.Email,
		c.PhoneNumber,
		c.IsEmailVerified,
		c.Role,
		c.LastLoginIP,
		c.PublicID,
		owner,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateResource,
				"customer profile already exists for this customer_id", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update customer profile", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "customer profile not found", nil)
	}
	return nil
}

// SoftDelete marks an owned customer profile deleted. The row stays in place
// for auditability but leaves the alive count immediately.
func (r *CustomerRepository) SoftDelete(ctx context.Context, owner, publicID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customer_profiles
		 SET is_deleted = TRUE, deleted_at = NOW()
		 WHERE public_id = $1 AND created_by = $2
		   AND is_deleted = FALSE AND is_platform_owned = FALSE`,
		publicID, owner,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete customer profile", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "customer profile not found", nil)
	}
	return nil
}
