package schema

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/types"
)

// seedInvoiceObject creates an "invoices" object with a representative field
// set: a required string, a bounded decimal, a date, a boolean and an email.
func seedInvoiceObject(t *testing.T, limiter *Limiter, plan *types.Plan) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, limiter.CreateObject(ctx, "tenant_1", plan,
		&types.CustomObject{APIName: "invoices"}))

	minV := decimal.NewFromInt(0)
	maxV := decimal.NewFromInt(10000)
	fields := []*types.CustomField{
		{APIName: "payer", DataType: types.FieldString, IsRequired: true},
		{APIName: "amount", DataType: types.FieldDecimal, MinValue: &minV, MaxValue: &maxV},
		{APIName: "due_date", DataType: types.FieldDate},
		{APIName: "paid", DataType: types.FieldBoolean},
		{APIName: "contact", DataType: types.FieldEmail},
	}
	for _, f := range fields {
		require.NoError(t, limiter.AddField(ctx, "tenant_1", "invoices", plan, f))
	}
}

func TestCreateRecord_ValidValues(t *testing.T) {
	limiter, store := testLimiter()
	plan := freePlan()
	seedInvoiceObject(t, limiter, plan)

	rec, err := limiter.CreateRecord(context.Background(), "tenant_1", "invoices", plan,
		map[string]string{
			"payer":    "Acme Corp",
			"amount":   "99.50",
			"due_date": "2026-09-15",
			"paid":     "on",
			"contact":  "billing@acme.example",
		})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.ID)
	assert.Len(t, rec.Values, 5)
	assert.Len(t, store.records["tenant_1/invoices"], 1)
}

func TestCreateRecord_CollectsAllFieldErrors(t *testing.T) {
	limiter, _ := testLimiter()
	plan := freePlan()
	seedInvoiceObject(t, limiter, plan)

	_, err := limiter.CreateRecord(context.Background(), "tenant_1", "invoices", plan,
		map[string]string{
			"amount":   "not-a-number",
			"due_date": "15/09/2026",
			"contact":  "not-an-email",
			"ghost":    "x",
		})
	appErr := assertCode(t, err, types.ErrCodeValidation)

	fieldErrs, ok := appErr.Details["field_errors"].(map[string]string)
	require.True(t, ok)
	// Every failing field is reported, including the missing required one
	// and the undeclared one.
	assert.Len(t, fieldErrs, 5)
	assert.Contains(t, fieldErrs, "payer")
	assert.Contains(t, fieldErrs, "amount")
	assert.Contains(t, fieldErrs, "due_date")
	assert.Contains(t, fieldErrs, "contact")
	assert.Contains(t, fieldErrs, "ghost")
}

func TestCreateRecord_NumericBounds(t *testing.T) {
	limiter, _ := testLimiter()
	plan := freePlan()
	seedInvoiceObject(t, limiter, plan)
	ctx := context.Background()

	_, err := limiter.CreateRecord(ctx, "tenant_1", "invoices", plan,
		map[string]string{"payer": "Acme", "amount": "-1"})
	appErr := assertCode(t, err, types.ErrCodeValidation)
	fieldErrs := appErr.Details["field_errors"].(map[string]string)
	assert.Contains(t, fieldErrs["amount"], "below the minimum")

	_, err = limiter.CreateRecord(ctx, "tenant_1", "invoices", plan,
		map[string]string{"payer": "Acme", "amount": "10000.01"})
	appErr = assertCode(t, err, types.ErrCodeValidation)
	fieldErrs = appErr.Details["field_errors"].(map[string]string)
	assert.Contains(t, fieldErrs["amount"], "above the maximum")
}

func TestCreateRecord_OptionalFieldsMayBeOmitted(t *testing.T) {
	limiter, _ := testLimiter()
	plan := freePlan()
	seedInvoiceObject(t, limiter, plan)

	rec, err := limiter.CreateRecord(context.Background(), "tenant_1", "invoices", plan,
		map[string]string{"payer": "Acme"})
	require.NoError(t, err)
	assert.Len(t, rec.Values, 1)
}

func TestCreateRecord_DefaultValueApplied(t *testing.T) {
	limiter, _ := testLimiter()
	plan := freePlan()
	ctx := context.Background()
	require.NoError(t, limiter.CreateObject(ctx, "tenant_1", plan,
		&types.CustomObject{APIName: "tickets"}))

	dflt := "open"
	require.NoError(t, limiter.AddField(ctx, "tenant_1", "tickets", plan,
		&types.CustomField{APIName: "status", DataType: types.FieldString, DefaultValue: &dflt}))

	rec, err := limiter.CreateRecord(ctx, "tenant_1", "tickets", plan, map[string]string{})
	require.NoError(t, err)
	require.Len(t, rec.Values, 1)
	assert.Equal(t, "open", rec.Values[0].Text())
}

func TestCreateRecord_RecordCap(t *testing.T) {
	limiter, _ := testLimiter()
	plan := freePlan()
	plan.MaxRecordsPerObject = 2
	ctx := context.Background()
	require.NoError(t, limiter.CreateObject(ctx, "tenant_1", plan,
		&types.CustomObject{APIName: "notes"}))
	require.NoError(t, limiter.AddField(ctx, "tenant_1", "notes", plan,
		&types.CustomField{APIName: "body", DataType: types.FieldString}))

	for i := 0; i < 2; i++ {
		_, err := limiter.CreateRecord(ctx, "tenant_1", "notes", plan,
			map[string]string{"body": "hello"})
		require.NoError(t, err)
	}

	_, err := limiter.CreateRecord(ctx, "tenant_1", "notes", plan,
		map[string]string{"body": "overflow"})
	appErr := assertCode(t, err, types.ErrCodeRecordLimitExceeded)
	assert.Equal(t, 2, appErr.Details["limit"])
	assert.Equal(t, 2, appErr.Details["current_count"])
}

func TestCreateRecord_RegexConstraint(t *testing.T) {
	limiter, _ := testLimiter()
	plan := freePlan()
	ctx := context.Background()
	require.NoError(t, limiter.CreateObject(ctx, "tenant_1", plan,
		&types.CustomObject{APIName: "assets"}))

	pattern := `^AST-\d{4}$`
	require.NoError(t, limiter.AddField(ctx, "tenant_1", "assets", plan,
		&types.CustomField{APIName: "tag", DataType: types.FieldString, Regex: &pattern}))

	_, err := limiter.CreateRecord(ctx, "tenant_1", "assets", plan,
		map[string]string{"tag": "asset-1"})
	appErr := assertCode(t, err, types.ErrCodeValidation)
	fieldErrs := appErr.Details["field_errors"].(map[string]string)
	assert.Contains(t, fieldErrs["tag"], "pattern")

	rec, err := limiter.CreateRecord(ctx, "tenant_1", "assets", plan,
		map[string]string{"tag": "AST-0042"})
	require.NoError(t, err)
	assert.Equal(t, "AST-0042", rec.Values[0].Text())
}
