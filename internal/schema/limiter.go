// Package schema manages tenant-defined custom objects: plan-limited object
// and field creation, and typed validation of record values against the
// declared field schema.
package schema

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"recordstack/internal/types"
)

// ObjectStore is the persistence surface the limiter needs, satisfied by
// db.CustomObjectRepository.
type ObjectStore interface {
	CreateObject(ctx context.Context, o *types.CustomObject) error
	GetObject(ctx context.Context, tenantID, apiName string) (*types.CustomObject, error)
	ListObjects(ctx context.Context, tenantID string) ([]*types.CustomObject, error)
	CountObjects(ctx context.Context, tenantID string) (int, error)

	CreateField(ctx context.Context, f *types.CustomField) error
	ListFields(ctx context.Context, objectID string) ([]*types.CustomField, error)
	CountFields(ctx context.Context, objectID string) (int, error)

	CreateRecord(ctx context.Context, rec *types.CustomObjectRecord) error
	CountRecords(ctx context.Context, tenantID, objectAPIName string) (int, error)
	ListRecords(ctx context.Context, tenantID, objectAPIName string, page types.Page) ([]*types.CustomObjectRecord, int, error)
}

// Limiter enforces the per-plan schema limits. The limit checks are
// read-then-decide: two racing creations can both pass the count check, so
// the counts are advisory caps, not hard invariants.
type Limiter struct {
	store  ObjectStore
	logger *slog.Logger
}

func NewLimiter(store ObjectStore, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// apiNamePattern constrains object and field API names to safe URL and
// column identifiers.
var apiNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// reservedAPINames are the built-in entity namespaces; a custom object may
// not shadow them.
var reservedAPINames = map[string]bool{
	"customer_profiles":       true,
	"product_catalog":         true,
	"order_transactions":      true,
	"system_logs":             true,
	"feature_usage_analytics": true,
}

// CanCreateCustomObject checks the plan flag and the tenant's current object
// count against the plan limit. Admission requires count strictly below the
// limit, so the creation that follows lands at most at the cap.
func (l *Limiter) CanCreateCustomObject(ctx context.Context, tenantID string, plan *types.Plan) error {
	if !plan.CanCreateCustomObjects {
		return types.NewAppErrorWithDetails(types.ErrCodeCapabilityDenied,
			"plan does not permit creating custom objects", nil, map[string]any{
				"current_plan": string(plan.Name),
			})
	}
	count, err := l.store.CountObjects(ctx, tenantID)
	if err != nil {
		return err
	}
	if count >= plan.MaxCustomObjects {
		return types.NewAppErrorWithDetails(types.ErrCodeObjectLimitExceeded,
			"custom object limit reached for plan", nil, map[string]any{
				"current_plan":  string(plan.Name),
				"limit":         plan.MaxCustomObjects,
				"current_count": count,
			})
	}
	return nil
}

// CanAddField checks the object's field count against the plan limit.
func (l *Limiter) CanAddField(ctx context.Context, obj *types.CustomObject, plan *types.Plan) error {
	count, err := l.store.CountFields(ctx, obj.ID)
	if err != nil {
		return err
	}
	if count >= plan.MaxFieldsPerObject {
		return types.NewAppErrorWithDetails(types.ErrCodeFieldLimitExceeded,
			"custom field limit reached for plan", nil, map[string]any{
				"current_plan":  string(plan.Name),
				"limit":         plan.MaxFieldsPerObject,
				"current_count": count,
				"object":        obj.APIName,
			})
	}
	return nil
}

// CreateObject runs the limit pre-check, validates the API name, and
// persists the object.
func (l *Limiter) CreateObject(ctx context.Context, tenantID string, plan *types.Plan, obj *types.CustomObject) error {
	if err := l.CanCreateCustomObject(ctx, tenantID, plan); err != nil {
		return err
	}
	if err := validateAPIName(obj.APIName); err != nil {
		return err
	}
	obj.ID = uuid.NewString()
	obj.TenantID = tenantID
	obj.IsActive = true
	if obj.MaxRecords <= 0 || obj.MaxRecords > plan.MaxRecordsPerObject {
		obj.MaxRecords = plan.MaxRecordsPerObject
	}
	if err := l.store.CreateObject(ctx, obj); err != nil {
		return err
	}
	l.logger.Info("custom object created",
		"tenant_id", tenantID, "api_name", obj.APIName)
	return nil
}

// AddField runs the limit pre-check, validates the field declaration, and
// persists it on the object.
func (l *Limiter) AddField(ctx context.Context, tenantID, objectAPIName string, plan *types.Plan, field *types.CustomField) error {
	obj, err := l.store.GetObject(ctx, tenantID, objectAPIName)
	if err != nil {
		return err
	}
	if err := l.CanAddField(ctx, obj, plan); err != nil {
		return err
	}
	if err := validateFieldDeclaration(field); err != nil {
		return err
	}
	field.ID = uuid.NewString()
	field.CustomObjectID = obj.ID
	if err := l.store.CreateField(ctx, field); err != nil {
		return err
	}
	l.logger.Info("custom field added",
		"tenant_id", tenantID, "object", objectAPIName, "field", field.APIName)
	return nil
}

// GetObject resolves a tenant's object by API name.
func (l *Limiter) GetObject(ctx context.Context, tenantID, apiName string) (*types.CustomObject, error) {
	return l.store.GetObject(ctx, tenantID, apiName)
}

// ListObjects returns the tenant's objects.
func (l *Limiter) ListObjects(ctx context.Context, tenantID string) ([]*types.CustomObject, error) {
	return l.store.ListObjects(ctx, tenantID)
}

// ListFields returns the declared fields of an object.
func (l *Limiter) ListFields(ctx context.Context, tenantID, objectAPIName string) ([]*types.CustomField, error) {
	obj, err := l.store.GetObject(ctx, tenantID, objectAPIName)
	if err != nil {
		return nil, err
	}
	return l.store.ListFields(ctx, obj.ID)
}

func validateAPIName(apiName string) error {
	if !apiNamePattern.MatchString(apiName) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"api_name must start with a letter and contain only lowercase letters, digits and underscores", nil,
			map[string]any{"api_name": apiName})
	}
	if reservedAPINames[apiName] {
		return types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"api_name is reserved", nil, map[string]any{"api_name": apiName})
	}
	return nil
}

func validateFieldDeclaration(field *types.CustomField) error {
	if err := validateAPIName(field.APIName); err != nil {
		return err
	}
	if !field.DataType.Valid() {
		return types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"unknown field data type", nil, map[string]any{
				"field":     field.APIName,
				"data_type": string(field.DataType),
			})
	}
	if field.Regex != nil {
		if _, err := regexp.Compile(*field.Regex); err != nil {
			return types.NewAppErrorWithDetails(types.ErrCodeValidation,
				"field regex does not compile", err, map[string]any{
					"field": field.APIName,
				})
		}
	}
	if field.MinValue != nil && field.MaxValue != nil && field.MinValue.GreaterThan(*field.MaxValue) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"min_value exceeds max_value", nil, map[string]any{
				"field": field.APIName,
			})
	}
	return nil
}
