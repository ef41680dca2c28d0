package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/schema"
	"recordstack/internal/types"
)

type fakeObjectStore struct {
	objects []*types.CustomObject
	fields  []*types.CustomField
	records []*types.CustomObjectRecord
}

func (f *fakeObjectStore) CreateObject(_ context.Context, o *types.CustomObject) error {
	f.objects = append(f.objects, o)
	return nil
}

func (f *fakeObjectStore) GetObject(_ context.Context, tenantID, apiName string) (*types.CustomObject, error) {
	for _, o := range f.objects {
		if o.TenantID == tenantID && o.APIName == apiName {
			return o, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFound, "custom object not found", nil)
}

func (f *fakeObjectStore) ListObjects(_ context.Context, tenantID string) ([]*types.CustomObject, error) {
	var out []*types.CustomObject
	for _, o := range f.objects {
		if o.TenantID == tenantID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeObjectStore) CountObjects(ctx context.Context, tenantID string) (int, error) {
	objects, _ := f.ListObjects(ctx, tenantID)
	return len(objects), nil
}

func (f *fakeObjectStore) CreateField(_ context.Context, fld *types.CustomField) error {
	f.fields = append(f.fields, fld)
	return nil
}

func (f *fakeObjectStore) ListFields(_ context.Context, objectID string) ([]*types.CustomField, error) {
	var out []*types.CustomField
	for _, fld := range f.fields {
		if fld.CustomObjectID == objectID {
			out = append(out, fld)
		}
	}
	return out, nil
}

func (f *fakeObjectStore) CountFields(ctx context.Context, objectID string) (int, error) {
	fields, _ := f.ListFields(ctx, objectID)
	return len(fields), nil
}

func (f *fakeObjectStore) CreateRecord(_ context.Context, rec *types.CustomObjectRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeObjectStore) CountRecords(_ context.Context, tenantID, objectAPIName string) (int, error) {
	n := 0
	for _, rec := range f.records {
		if rec.TenantID == tenantID && rec.ObjectAPIName == objectAPIName {
			n++
		}
	}
	return n, nil
}

func (f *fakeObjectStore) ListRecords(_ context.Context, tenantID, objectAPIName string, page types.Page) ([]*types.CustomObjectRecord, int, error) {
	var out []*types.CustomObjectRecord
	for _, rec := range f.records {
		if rec.TenantID == tenantID && rec.ObjectAPIName == objectAPIName {
			out = append(out, rec)
		}
	}
	return out, len(out), nil
}

func builderPlan() *types.Plan {
	plan := proPlan()
	plan.CanCreateCustomObjects = true
	plan.MaxCustomObjects = 10
	plan.MaxFieldsPerObject = 20
	plan.MaxRecordsPerObject = 1000
	return plan
}

func objectTestHandler(store *fakeObjectStore, quota *quotaRecorder) *ObjectHandler {
	limiter := schema.NewLimiter(store, testLogger())
	return NewObjectHandler(limiter, quota, testValidator(), testLogger())
}

func validObjectBody() map[string]any {
	return map[string]any{
		"name":             "Support Tickets",
		"api_name":         "support_tickets",
		"description":      "per-customer support tickets",
		"allow_api_access": true,
	}
}

func TestObjectCreate(t *testing.T) {
	store := &fakeObjectStore{}
	h := objectTestHandler(store, &quotaRecorder{})
	router := newTestRouter(testActor(), builderPlan(), h.RegisterRoutes)

	rec := doJSON(t, router, http.MethodPost, "/objects", validObjectBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.objects, 1)
	assert.Equal(t, "support_tickets", store.objects[0].APIName)
	assert.Equal(t, "user-1", store.objects[0].TenantID)
}

// An authenticated principal whose plan reference is still unset must be
// refused up front, not crash inside the limit checks. Admins hit this path
// because they skip the plan-gated policy stages.
func TestObjectCreate_NoPlanResolved(t *testing.T) {
	store := &fakeObjectStore{}
	h := objectTestHandler(store, &quotaRecorder{})
	admin := testActor()
	admin.IsAdmin = true
	router := newTestRouter(admin, nil, h.RegisterRoutes)

	rec := doJSON(t, router, http.MethodPost, "/objects", validObjectBody())
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NO_PLAN_ASSIGNED", errorCode(t, rec))
	assert.Empty(t, store.objects)
}

func TestRecordCreate_NoPlanResolved(t *testing.T) {
	store := &fakeObjectStore{}
	quota := &quotaRecorder{}
	h := objectTestHandler(store, quota)
	router := newTestRouter(testActor(), nil, h.RegisterRoutes)

	rec := doJSON(t, router, http.MethodPost, "/objects/support_tickets/records",
		map[string]any{"subject": "printer on fire"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NO_PLAN_ASSIGNED", errorCode(t, rec))
	assert.Zero(t, quota.calls)
	assert.Empty(t, store.records)
}
