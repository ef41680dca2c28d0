package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recordstack/internal/types"
)

// PlanRepository provides data access for the plans catalog table.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository creates a new PlanRepository backed by the given database
// connection (pool or transaction).
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

// planColumns defines the standard set of columns selected for plan queries.
// Used consistently across all query methods to avoid column drift.
const planColumns = `p.name, p.allowed_namespaces, p.monthly_api_limit,
	p.max_records, p.max_records_per_query,
	p.can_create_records, p.can_update_records, p.can_delete_records,
	p.can_create_custom_objects,
	p.max_custom_objects, p.max_fields_per_object, p.max_records_per_object,
	p.allow_filters, p.allow_sorting, p.allow_bulk_operations,
	p.page_size, p.max_page_size`

// scanPlan scans a single plan row. The columns must match the order defined
// in planColumns.
func scanPlan(row pgx.Row) (*types.Plan, error) {
	var plan types.Plan
	err := row.Scan(
		&plan.Name,
		&plan.AllowedNamespaces,
		&plan.MonthlyAPILimit,
		&plan.MaxRecords,
		&plan.MaxRecordsPerQuery,
		&plan.CanCreateRecords,
		&plan.CanUpdateRecords,
		&plan.CanDeleteRecords,
		&plan.CanCreateCustomObjects,
		&plan.MaxCustomObjects,
		&plan.MaxFieldsPerObject,
		&plan.MaxRecordsPerObject,
		&plan.AllowFilters,
		&plan.AllowSorting,
		&plan.AllowBulkOperations,
		&plan.PageSize,
		&plan.MaxPageSize,
	)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByName retrieves a plan by its tier name.
func (r *PlanRepository) GetByName(ctx context.Context, name types.PlanTier) (*types.Plan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans p WHERE p.name = $1`,
		name,
	)

	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFound, "plan not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan", err)
	}
	return plan, nil
}

// List returns all plans in tier order (FREE, BASE, PRO, ENTERPRISE).
func (r *PlanRepository) List(ctx context.Context) ([]*types.Plan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+planColumns+`
		 FROM plans p
		 ORDER BY array_position(ARRAY['FREE','BASE','PRO','ENTERPRISE'], p.name)`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plans", err)
	}
	defer rows.Close()

	var plans []*types.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan row", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate plan rows", err)
	}
	return plans, nil
}

// Upsert inserts or fully replaces a plan row. Admin authorization is
// enforced by the plans service; the repository only persists.
func (r *PlanRepository) Upsert(ctx context.Context, plan *types.Plan) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO plans (name, allowed_namespaces, monthly_api_limit,
		   max_records, max_records_per_query,
		   can_create_records, can_update_records, can_delete_records,
		   can_create_custom_objects,
		   max_custom_objects, max_fields_per_object, max_records_per_object,
		   allow_filters, allow_sorting, allow_bulk_operations,
		   page_size, max_page_size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (name) DO UPDATE SET
		   allowed_namespaces = EXCLUDED.allowed_namespaces,
		   monthly_api_limit = EXCLUDED.monthly_api_limit,
		   max_records = EXCLUDED.max_records,
		   max_records_per_query = EXCLUDED.max_records_per_query,
		   can_create_records = EXCLUDED.can_create_records,
		   can_update_records = EXCLUDED.can_update_records,
		   can_delete_records = EXCLUDED.can_delete_records,
		   can_create_custom_objects = EXCLUDED.can_create_custom_objects,
		   max_custom_objects = EXCLUDED.max_custom_objects,
		   max_fields_per_object = EXCLUDED.max_fields_per_object,
		   max_records_per_object = EXCLUDED.max_records_per_object,
		   allow_filters = EXCLUDED.allow_filters,
		   allow_sorting = EXCLUDED.allow_sorting,
		   allow_bulk_operations = EXCLUDED.allow_bulk_operations,
		   page_size = EXCLUDED.page_size,
		   max_page_size = EXCLUDED.max_page_size`,
		plan.Name,
		plan.AllowedNamespaces,
		plan.MonthlyAPILimit,
		plan.MaxRecords,
		plan.MaxRecordsPerQuery,
		plan.CanCreateRecords,
		plan.CanUpdateRecords,
		plan.CanDeleteRecords,
		plan.CanCreateCustomObjects,
		plan.MaxCustomObjects,
		plan.MaxFieldsPerObject,
		plan.MaxRecordsPerObject,
		plan.AllowFilters,
		plan.AllowSorting,
		plan.AllowBulkOperations,
		plan.PageSize,
		plan.MaxPageSize,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert plan", err)
	}
	return nil
}

// Delete always fails. Plan rows anchor historical billing and quota state,
// so removal is rejected unconditionally regardless of caller privileges.
func (r *PlanRepository) Delete(_ context.Context, name types.PlanTier) error {
	return types.NewAppError(types.ErrCodePlanDeleteForbidden,
		"plans cannot be deleted: "+string(name), nil)
}
