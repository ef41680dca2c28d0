package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// CustomObjectRepository provides data access for tenant-defined schemas:
// custom_objects, custom_fields, and custom_object_records with their value
// rows. Field values are stored as (kind, text) pairs; decoding back into
// typed values happens in the schema service.
type CustomObjectRepository struct {
	db DBTX
}

// NewCustomObjectRepository creates a new CustomObjectRepository backed by
// the given database connection (pool or transaction).
func NewCustomObjectRepository(db DBTX) *CustomObjectRepository {
	return &CustomObjectRepository{db: db}
}

const customObjectColumns = `o.id, o.tenant_id, o.name, o.api_name, o.description,
	o.is_active, o.is_system, o.max_records, o.allow_api_access,
	o.created_at, o.updated_at`

func scanCustomObject(row pgx.Row) (*types.CustomObject, error) {
	var o types.CustomObject
	var desc *string
	err := row.Scan(
		&o.ID,
		&o.TenantID,
		&o.Name,
		&o.APIName,
		&desc,
		&o.IsActive,
		&o.IsSystem,
		&o.MaxRecords,
		&o.AllowAPIAccess,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if desc != nil {
		o.Description = *desc
	}
	return &o, nil
}

// CreateObject inserts a new custom object definition. The (tenant, api_name)
// pair is the object's identity; collisions map to DUPLICATE_RESOURCE.
func (r *CustomObjectRepository) CreateObject(ctx context.Context, o *types.CustomObject) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO custom_objects (id, tenant_id, name, api_name, description,
		   is_active, is_system, max_records, allow_api_access, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
		o.ID,
		o.TenantID,
		o.Name,
		o.APIName,
		nilIfEmpty(o.Description),
		o.IsActive,
		o.IsSystem,
		o.MaxRecords,
		o.AllowAPIAccess,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateResource,
				"a custom object with this api_name already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create custom object", err)
	}
	return nil
}

// GetObject retrieves a tenant's custom object by API name.
func (r *CustomObjectRepository) GetObject(ctx context.Context, tenantID, apiName string) (*types.CustomObject, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+customObjectColumns+`
		 FROM custom_objects o
		 WHERE o.tenant_id = $1 AND o.api_name = $2`,
		tenantID, apiName,
	)
	o, err := scanCustomObject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "custom object not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve custom object", err)
	}
	return o, nil
}

// ListObjects returns all of a tenant's custom objects, oldest first.
func (r *CustomObjectRepository) ListObjects(ctx context.Context, tenantID string) ([]*types.CustomObject, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+customObjectColumns+`
		 FROM custom_objects o
		 WHERE o.tenant_id = $1
		 ORDER BY o.created_at ASC`,
		tenantID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list custom objects", err)
	}
	defer rows.Close()

	var out []*types.CustomObject
	for rows.Next() {
		o, err := scanCustomObject(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan custom object row", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate custom object rows", err)
	}
	return out, nil
}

// CountObjects returns how many custom objects the tenant has defined.
// Used by the schema limiter's advisory pre-check.
func (r *CustomObjectRepository) CountObjects(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM custom_objects WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count custom objects", err)
	}
	return count, nil
}

const customFieldColumns = `f.id, f.custom_object_id, f.name, f.api_name, f.data_type,
	f.is_required, f.is_unique, f.is_indexed,
	f.default_value, f.min_value, f.max_value, f.regex, f.created_at`

func scanCustomField(row pgx.Row) (*types.CustomField, error) {
	var f types.CustomField
	err := row.Scan(
		&f.ID,
		&f.CustomObjectID,
		&f.Name,
		&f.APIName,
		&f.DataType,
		&f.IsRequired,
		&f.IsUnique,
		&f.IsIndexed,
		&f.DefaultValue,
		&f.MinValue,
		&f.MaxValue,
		&f.Regex,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateField adds a field declaration to a custom object.
func (r *CustomObjectRepository) CreateField(ctx context.Context, f *types.CustomField) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO custom_fields (id, custom_object_id, name, api_name, data_type,
		   is_required, is_unique, is_indexed, default_value, min_value, max_value,
		   regex, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`,
		f.ID,
		f.CustomObjectID,
		f.Name,
		f.APIName,
		f.DataType,
		f.IsRequired,
		f.IsUnique,
		f.IsIndexed,
		f.DefaultValue,
		f.MinValue,
		f.MaxValue,
		f.Regex,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeDuplicateResource,
				"a field with this api_name already exists on the object", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create custom field", err)
	}
	return nil
}

// ListFields returns the field declarations for a custom object in creation
// order.
func (r *CustomObjectRepository) ListFields(ctx context.Context, objectID string) ([]*types.CustomField, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+customFieldColumns+`
		 FROM custom_fields f
		 WHERE f.custom_object_id = $1
		 ORDER BY f.created_at ASC`,
		objectID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list custom fields", err)
	}
	defer rows.Close()

	var out []*types.CustomField
	for rows.Next() {
		f, err := scanCustomField(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan custom field row", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate custom field rows", err)
	}
	return out, nil
}

// CountFields returns how many fields a custom object declares.
func (r *CustomObjectRepository) CountFields(ctx context.Context, objectID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM custom_fields WHERE custom_object_id = $1`,
		objectID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count custom fields", err)
	}
	return count, nil
}

// CreateRecord inserts a record row plus one value row per field. The record
// and its values are written in a single round trip per value; the caller
// wraps this in a transaction so a partial write never survives.
func (r *CustomObjectRepository) CreateRecord(ctx context.Context, rec *types.CustomObjectRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO custom_object_records (id, tenant_id, object_api_name, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())`,
		rec.ID, rec.TenantID, rec.ObjectAPIName,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create custom record", err)
	}

	for _, v := range rec.Values {
		_, err := r.db.Exec(ctx,
			`INSERT INTO custom_field_values (record_id, field_api_name, kind, value_text)
			 VALUES ($1, $2, $3, $4)`,
			rec.ID, v.FieldAPIName, v.Kind, v.Text(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return types.NewAppError(types.ErrCodeDuplicateResource,
					"duplicate value for unique field "+v.FieldAPIName, err)
			}
			return types.NewAppError(types.ErrCodeInternalDB,
				"failed to store value for field "+v.FieldAPIName, err)
		}
	}
	return nil
}

// CountRecords returns how many records exist for a tenant's object.
func (r *CustomObjectRepository) CountRecords(ctx context.Context, tenantID, objectAPIName string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM custom_object_records
		 WHERE tenant_id = $1 AND object_api_name = $2`,
		tenantID, objectAPIName,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count custom records", err)
	}
	return count, nil
}

// ListRecords returns a page of records for a tenant's object with their
// stored (kind, text) values attached, plus the total count.
func (r *CustomObjectRepository) ListRecords(ctx context.Context, tenantID, objectAPIName string, page types.Page) ([]*types.CustomObjectRecord, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM custom_object_records
		 WHERE tenant_id = $1 AND object_api_name = $2`,
		tenantID, objectAPIName,
	).Scan(&total)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count custom records", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.tenant_id, r.object_api_name, r.created_at, r.updated_at
		 FROM custom_object_records r
		 WHERE r.tenant_id = $1 AND r.object_api_name = $2
		 ORDER BY r.created_at DESC, r.id
		 LIMIT $3 OFFSET $4`,
		tenantID, objectAPIName, page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list custom records", err)
	}
	defer rows.Close()

	var out []*types.CustomObjectRecord
	for rows.Next() {
		var rec types.CustomObjectRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.ObjectAPIName, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan custom record row", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate custom record rows", err)
	}

	for _, rec := range out {
		values, err := r.listRecordValues(ctx, rec.ID)
		if err != nil {
			return nil, 0, err
		}
		rec.Values = values
	}
	return out, total, nil
}

// listRecordValues loads and decodes the stored values for one record.
func (r *CustomObjectRepository) listRecordValues(ctx context.Context, recordID string) ([]types.FieldValue, error) {
	rows, err := r.db.Query(ctx,
		`SELECT field_api_name, kind, value_text
		 FROM custom_field_values
		 WHERE record_id = $1
		 ORDER BY field_api_name`,
		recordID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load record values", err)
	}
	defer rows.Close()

	var values []types.FieldValue
	for rows.Next() {
		var apiName, text string
		var kind types.FieldDataType
		if err := rows.Scan(&apiName, &kind, &text); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan record value row", err)
		}
		fv, err := types.DecodeFieldValue(apiName, kind, text)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB,
				"stored value for field "+apiName+" is corrupt", err)
		}
		values = append(values, fv)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate record value rows", err)
	}
	return values, nil
}
