package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Date and datetime layouts accepted for custom field values.
const (
	FieldDateLayout     = "2006-01-02"
	FieldDatetimeLayout = time.RFC3339
)

// booleanOnSentinel is the form-submission marker accepted as true for
// BOOLEAN fields. Anything else parses as false.
const booleanOnSentinel = "on"

// FieldValue holds exactly one typed payload for one custom field: a type tag
// plus a single value, validated against the field's declared data type at
// construction. Use ParseFieldValue to build one from raw client input.
type FieldValue struct {
	FieldAPIName string
	Kind         FieldDataType

	str     string
	integer int64
	dec     decimal.Decimal
	boolean bool
	ts      time.Time
	raw     json.RawMessage
}

// ParseFieldValue validates raw client input against the field's declared data
// type and constructs a tagged FieldValue. A value that cannot be parsed fails
// this specific field with a VALIDATION_ERROR naming it; the caller collects
// per-field errors rather than aborting silently.
//
// Parsing rules: STRING, EMAIL, DATE, DATETIME and JSON validate then pass the
// payload through; INTEGER requires a base-10 integer; DECIMAL parses with
// shopspring/decimal (precision bounds are the field's min/max constraints,
// checked separately); BOOLEAN is true only for the explicit "on" sentinel.
func ParseFieldValue(field CustomField, raw string) (FieldValue, error) {
	fv := FieldValue{FieldAPIName: field.APIName, Kind: field.DataType}

	switch field.DataType {
	case FieldString, FieldEmail:
		fv.str = raw

	case FieldInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return FieldValue{}, fieldParseError(field.APIName, "expected an integer", err)
		}
		fv.integer = n

	case FieldDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return FieldValue{}, fieldParseError(field.APIName, "expected a decimal number", err)
		}
		fv.dec = d

	case FieldBoolean:
		fv.boolean = raw == booleanOnSentinel

	case FieldDate:
		t, err := time.Parse(FieldDateLayout, raw)
		if err != nil {
			return FieldValue{}, fieldParseError(field.APIName, "expected a date (YYYY-MM-DD)", err)
		}
		fv.ts = t

	case FieldDatetime:
		t, err := time.Parse(FieldDatetimeLayout, raw)
		if err != nil {
			return FieldValue{}, fieldParseError(field.APIName, "expected an RFC 3339 datetime", err)
		}
		fv.ts = t

	case FieldJSON:
		if !json.Valid([]byte(raw)) {
			return FieldValue{}, fieldParseError(field.APIName, "expected valid JSON", nil)
		}
		fv.raw = json.RawMessage(raw)

	default:
		return FieldValue{}, fieldParseError(field.APIName, fmt.Sprintf("unknown data type %q", field.DataType), nil)
	}

	return fv, nil
}

func fieldParseError(apiName, msg string, err error) *AppError {
	return NewAppErrorWithDetails(ErrCodeValidation, msg, err, map[string]any{
		"field": apiName,
	})
}

// String returns the payload for STRING and EMAIL values.
func (v FieldValue) String() (string, bool) {
	ok := v.Kind == FieldString || v.Kind == FieldEmail
	return v.str, ok
}

// Integer returns the payload for INTEGER values.
func (v FieldValue) Integer() (int64, bool) {
	return v.integer, v.Kind == FieldInteger
}

// Decimal returns the payload for DECIMAL values.
func (v FieldValue) Decimal() (decimal.Decimal, bool) {
	return v.dec, v.Kind == FieldDecimal
}

// Boolean returns the payload for BOOLEAN values.
func (v FieldValue) Boolean() (bool, bool) {
	return v.boolean, v.Kind == FieldBoolean
}

// Time returns the payload for DATE and DATETIME values.
func (v FieldValue) Time() (time.Time, bool) {
	ok := v.Kind == FieldDate || v.Kind == FieldDatetime
	return v.ts, ok
}

// JSON returns the payload for JSON values.
func (v FieldValue) JSON() (json.RawMessage, bool) {
	return v.raw, v.Kind == FieldJSON
}

// Text renders the payload in its canonical textual form, which is also the
// storage encoding: one (kind, text) pair per value row.
func (v FieldValue) Text() string {
	switch v.Kind {
	case FieldString, FieldEmail:
		return v.str
	case FieldInteger:
		return fmt.Sprintf("%d", v.integer)
	case FieldDecimal:
		return v.dec.String()
	case FieldBoolean:
		if v.boolean {
			return "true"
		}
		return "false"
	case FieldDate:
		return v.ts.Format(FieldDateLayout)
	case FieldDatetime:
		return v.ts.Format(FieldDatetimeLayout)
	case FieldJSON:
		return string(v.raw)
	}
	return ""
}

// DecodeFieldValue reconstructs a FieldValue from its storage encoding.
// The stored text is trusted to have been produced by Text(), so decode
// failures indicate corruption and are surfaced as internal errors.
func DecodeFieldValue(apiName string, kind FieldDataType, text string) (FieldValue, error) {
	switch kind {
	case FieldBoolean:
		fv := FieldValue{FieldAPIName: apiName, Kind: kind, boolean: text == "true"}
		return fv, nil
	case FieldString, FieldEmail:
		return FieldValue{FieldAPIName: apiName, Kind: kind, str: text}, nil
	}

	fv, err := ParseFieldValue(CustomField{APIName: apiName, DataType: kind}, text)
	if err != nil {
		return FieldValue{}, NewAppError(ErrCodeInternalUnexpected,
			fmt.Sprintf("stored value for field %q does not match declared type %s", apiName, kind), err)
	}
	return fv, nil
}

// MarshalJSON renders the value as {"field_api_name": ..., "data_type": ..., "value": ...}.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case FieldString, FieldEmail:
		payload = v.str
	case FieldInteger:
		payload = v.integer
	case FieldDecimal:
		payload = v.dec.String()
	case FieldBoolean:
		payload = v.boolean
	case FieldDate:
		payload = v.ts.Format(FieldDateLayout)
	case FieldDatetime:
		payload = v.ts.Format(FieldDatetimeLayout)
	case FieldJSON:
		payload = v.raw
	}
	return json.Marshal(struct {
		FieldAPIName string        `json:"field_api_name"`
		DataType     FieldDataType `json:"data_type"`
		Value        any           `json:"value"`
	}{v.FieldAPIName, v.Kind, payload})
}
