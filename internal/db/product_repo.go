package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// ProductRepository provides data access for the product_catalog table.
type ProductRepository struct {
	db DBTX
}

// NewProductRepository creates a new ProductRepository backed by the given
// database connection (pool or transaction).
func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `p.public_id, p.created_by, p.is_platform_owned,
	p.is_deleted, p.deleted_at, p.created_at,
	p.product_id, p.product_name, p.category, p.price, p.currency,
	p.in_stock, p.stock_count, p.product_rating`

func scanProduct(row pgx.Row) (*types.ProductCatalog, error) {
	var p types.ProductCatalog
	err := row.Scan(
		&p.PublicID,
		&p.CreatedBy,
		&p.IsPlatformOwned,
		&p.IsDeleted,
		&p.DeletedAt,
		&p.CreatedAt,
		&p.ProductID,
		&p.ProductName,
		&p.Category,
		&p.Price,
		&p.Currency,
		&p.InStock,
		&p.StockCount,
		&p.ProductRating,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new catalog entry. A partial unique index on
// (created_by, product_id) WHERE is_deleted = FALSE enforces alive-scoped
// uniqueness, so a deleted product's ID can be reused.
func (r *ProductRepository) Create(ctx context.Context, p *types.ProductCatalog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO product_catalog (public_id, created_by, is_platform_owned,
		   product_id, product_name, category, price, currency,
		   in_stock, stock_count, product_rating, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()))`,
		p.PublicID,
		p.CreatedBy,
		p.IsPlatformOwned,
		p.ProductID,
		p.ProductName,
		p.Category,
		p.Price,
		p.Currency,
		p.InStock,
		p.StockCount,
		p.ProductRating,
		nilIfZeroTime(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateResource,
				"product already exists for this product_id", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create product", err)
	}
	return nil
}

// GetByPublicID retrieves an alive product visible to the owner.
func (r *ProductRepository) GetByPublicID(ctx context.Context, owner, publicID string) (*types.ProductCatalog, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+productColumns+`
		 FROM product_catalog p
		 WHERE p.public_id = $1 AND p.is_deleted = FALSE
		   AND (p.created_by = $2 OR p.is_platform_owned = TRUE)`,
		publicID, owner,
	)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "product not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve product", err)
	}
	return p, nil
}

// List returns a page of alive products visible to the owner plus the total
// visible count.
func (r *ProductRepository) List(ctx context.Context, owner string, page types.Page) ([]*types.ProductCatalog, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM product_catalog p
		 WHERE p.is_deleted = FALSE AND (p.created_by = $1 OR p.is_platform_owned = TRUE)`,
		owner,
	).Scan(&total)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count products", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+productColumns+`
		 FROM product_catalog p
		 WHERE p.is_deleted = FALSE AND (p.created_by = $1 OR p.is_platform_owned = TRUE)
		 ORDER BY p.created_at DESC, p.public_id
		 LIMIT $2 OFFSET $3`,
		owner, page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list products", err)
	}
	defer rows.Close()

	var out []*types.ProductCatalog
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan product row", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate product rows", err)
	}
	return out, total, nil
}

// Update rewrites the mutable fields of an owned product.
func (r *ProductRepository) Update(ctx context.Context, owner string, p *types.ProductCatalog) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE product_catalog
		 SET product_name = $1, category = $2, price = $3, currency = $4,
		     in_stock = $5, stock_count = $6, product_rating = $7
		 WHERE public_id = $8 AND created_by = $9
		   AND is_deleted = FALSE AND is_platform_owned = FALSE`,
		p.ProductName,
		p.Category,
		p.Price,
		p.Currency,
		p.InStock,
		p.StockCount,
		p.ProductRating,
		p.PublicID,
		owner,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update product", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "product not found", nil)
	}
	return nil
}

// SoftDelete marks an owned product deleted.
func (r *ProductRepository) SoftDelete(ctx context.Context, owner, publicID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE product_catalog
		 SET is_deleted = TRUE, deleted_at = NOW()
		 WHERE public_id = $1 AND created_by = $2
		   AND is_deleted = FALSE AND is_platform_owned = FALSE`,
		publicID, owner,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "product not found", nil)
	}
	return nil
}
