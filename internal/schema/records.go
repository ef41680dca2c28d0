package schema

import (
	"context"
	"errors"
	"net/mail"
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"recordstack/internal/types"
)

// CreateRecord validates raw client values against the object's declared
// fields and persists a record. Every field is checked and every failure is
// reported by field name; a bad value never aborts validation of the rest.
// The per-object record cap is an advisory pre-check like the schema limits.
func (l *Limiter) CreateRecord(ctx context.Context, tenantID, objectAPIName string, plan *types.Plan, raw map[string]string) (*types.CustomObjectRecord, error) {
	obj, err := l.store.GetObject(ctx, tenantID, objectAPIName)
	if err != nil {
		return nil, err
	}
	fields, err := l.store.ListFields(ctx, obj.ID)
	if err != nil {
		return nil, err
	}

	count, err := l.store.CountRecords(ctx, tenantID, objectAPIName)
	if err != nil {
		return nil, err
	}
	recordCap := obj.MaxRecords
	if recordCap <= 0 || recordCap > plan.MaxRecordsPerObject {
		recordCap = plan.MaxRecordsPerObject
	}
	if count >= recordCap {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeRecordLimitExceeded,
			"record limit reached for this object", nil, map[string]any{
				"current_plan":  string(plan.Name),
				"object":        objectAPIName,
				"limit":         recordCap,
				"current_count": count,
			})
	}

	values, fieldErrs := validateValues(fields, raw)
	if len(fieldErrs) > 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"one or more field values are invalid", nil, map[string]any{
				"field_errors": fieldErrs,
			})
	}

	rec := &types.CustomObjectRecord{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		ObjectAPIName: objectAPIName,
		Values:        values,
	}
	if err := l.store.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords pages through a tenant's records for one object.
func (l *Limiter) ListRecords(ctx context.Context, tenantID, objectAPIName string, page types.Page) ([]*types.CustomObjectRecord, int, error) {
	return l.store.ListRecords(ctx, tenantID, objectAPIName, page)
}

// validateValues checks every raw value against its field declaration and
// collects one error message per failing field. Unknown field names fail.
// Required fields with no submitted value fail. Successfully parsed values
// are then checked against the field's declared constraints.
func validateValues(fields []*types.CustomField, raw map[string]string) ([]types.FieldValue, map[string]string) {
	declared := make(map[string]*types.CustomField, len(fields))
	for _, f := range fields {
		declared[f.APIName] = f
	}

	fieldErrs := make(map[string]string)
	for name := range raw {
		if _, ok := declared[name]; !ok {
			fieldErrs[name] = "no such field on this object"
		}
	}

	values := make([]types.FieldValue, 0, len(fields))
	for _, field := range fields {
		rawValue, submitted := raw[field.APIName]
		if !submitted || rawValue == "" {
			if field.DefaultValue != nil {
				rawValue = *field.DefaultValue
			} else if field.IsRequired {
				fieldErrs[field.APIName] = "this field is required"
				continue
			} else {
				continue
			}
		}

		fv, err := types.ParseFieldValue(*field, rawValue)
		if err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) {
				fieldErrs[field.APIName] = appErr.Message
			} else {
				fieldErrs[field.APIName] = "invalid value"
			}
			continue
		}
		if msg := checkConstraints(field, fv, rawValue); msg != "" {
			fieldErrs[field.APIName] = msg
			continue
		}
		values = append(values, fv)
	}
	return values, fieldErrs
}

// checkConstraints applies the field's declarative constraints to a parsed
// value. Returns an empty string when the value passes.
func checkConstraints(field *types.CustomField, fv types.FieldValue, rawValue string) string {
	if field.DataType == types.FieldEmail {
		if _, err := mail.ParseAddress(rawValue); err != nil {
			return "expected a valid email address"
		}
	}

	if field.Regex != nil {
		re, err := regexp.Compile(*field.Regex)
		if err == nil && !re.MatchString(rawValue) {
			return "value does not match the required pattern"
		}
	}

	var numeric decimal.Decimal
	var isNumeric bool
	if n, ok := fv.Integer(); ok {
		numeric, isNumeric = decimal.NewFromInt(n), true
	} else if d, ok := fv.Decimal(); ok {
		numeric, isNumeric = d, true
	}
	if isNumeric {
		if field.MinValue != nil && numeric.LessThan(*field.MinValue) {
			return "value is below the minimum of " + field.MinValue.String()
		}
		if field.MaxValue != nil && numeric.GreaterThan(*field.MaxValue) {
			return "value is above the maximum of " + field.MaxValue.String()
		}
	}
	return ""
}
