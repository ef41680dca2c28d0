package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// OrderRepository provides data access for the order_transactions table.
// Unlike products, order_id uniqueness is global: a payment reference must
// never be reused even after soft deletion.
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new OrderRepository backed by the given
// database connection (pool or transaction).
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `o.public_id, o.created_by, o.is_platform_owned,
	o.is_deleted, o.deleted_at, o.created_at,
	o.order_id, o.order_amount, o.payment_method, o.payment_status,
	o.transaction_reference, o.is_refundable, o.order_date, o.discount_applied`

func scanOrder(row pgx.Row) (*types.OrderTransaction, error) {
	var o types.OrderTransaction
	err := row.Scan(
		&o.PublicID,
		&o.CreatedBy,
		&o.IsPlatformOwned,
		&o.IsDeleted,
		&o.DeletedAt,
		&o.CreatedAt,
		&o.OrderID,
		&o.OrderAmount,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.TransactionReference,
		&o.IsRefundable,
		&o.OrderDate,
		&o.DiscountApplied,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts a new order transaction owned by the caller.
func (r *OrderRepository) Create(ctx context.Context, o *types.OrderTransaction) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO order_transactions (public_id, created_by, is_platform_owned,
		   order_id, order_amount, payment_method, payment_status,
		   transaction_reference, is_refundable, order_date, discount_applied, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()), $11, COALESCE($12, NOW()))`,
		o.PublicID,
		o.CreatedBy,
		o.IsPlatformOwned,
		o.OrderID,
		o.OrderAmount,
		o.PaymentMethod,
		o.PaymentStatus,
		o.TransactionReference,
		o.IsRefundable,
		nilIfZeroTime(o.OrderDate),
		o.DiscountApplied,
		nilIfZeroTime(o.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateResource,
				"an order with this order_id already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create order", err)
	}
	return nil
}

// GetByPublicID retrieves an alive order visible to the owner.
func (r *OrderRepository) GetByPublicID(ctx context.Context, owner, publicID string) (*types.OrderTransaction, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM order_transactions o
		 WHERE o.public_id = $1 AND o.is_deleted = FALSE
		   AND (o.created_by = $2 OR o.is_platform_owned = TRUE)`,
		publicID, owner,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "order not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve order", err)
	}
	return o, nil
}

// List returns a page of alive orders visible to the owner plus the total
// visible count, most recent order first.
func (r *OrderRepository) List(ctx context.Context, owner string, page types.Page) ([]*types.OrderTransaction, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_transactions o
		 WHERE o.is_deleted = FALSE AND (o.created_by = $1 OR o.is_platform_owned = TRUE)`,
		owner,
	).Scan(&total)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count orders", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM order_transactions o
		 WHERE o.is_deleted = FALSE AND (o.created_by = $1 OR o.is_platform_owned = TRUE)
		 ORDER BY o.order_date DESC, o.public_id
		 LIMIT $2 OFFSET $3`,
		owner, page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list orders", err)
	}
	defer rows.Close()

	var out []*types.OrderTransaction
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan order row", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate order rows", err)
	}
	return out, total, nil
}

// UpdateStatus transitions an owned order's payment status and refundability.
// Order amounts and references are immutable once written.
func (r *OrderRepository) UpdateStatus(ctx context.Context, owner, publicID string, status types.PaymentStatus, refundable bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE order_transactions
		 SET payment_status = $1, is_refundable = $2
		 WHERE public_id = $3 AND created_by = $4
		   AND is_deleted = FALSE AND is_platform_owned = FALSE`,
		status, refundable, publicID, owner,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "order not found", nil)
	}
	return nil
}

// SoftDelete marks an owned order deleted.
func (r *OrderRepository) SoftDelete(ctx context.Context, owner, publicID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE order_transactions
		 SET is_deleted = TRUE, deleted_at = NOW()
		 WHERE public_id = $1 AND created_by = $2
		   AND is_deleted = FALSE AND is_platform_owned = FALSE`,
		publicID, owner,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete order", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "order not found", nil)
	}
	return nil
}
