package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/types"
)

type fakeAccountStore struct {
	profile *types.UserProfile
}

func (f *fakeAccountStore) GetByUserID(_ context.Context, userID string) (*types.UserProfile, error) {
	if f.profile == nil || f.profile.UserID != userID {
		return nil, types.NewAppError(types.ErrCodeNotFound, "account not found", nil)
	}
	return f.profile, nil
}

type fakeRecordCounter struct {
	count int
}

func (f *fakeRecordCounter) CountOwnedRecords(context.Context, string) int { return f.count }

type fakePlanResolver struct {
	plan *types.Plan
}

func (f *fakePlanResolver) Resolve(_ context.Context, name types.PlanTier) (*types.Plan, error) {
	if f.plan == nil || f.plan.Name != name {
		return nil, types.NewAppError(types.ErrCodeNotFound, "plan not found", nil)
	}
	return f.plan, nil
}

func TestAccountUsage(t *testing.T) {
	tier := types.PlanPro
	resetAt := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeAccountStore{profile: &types.UserProfile{
		UserID:          "user-1",
		Email:           "casey@example.com",
		PlanName:        &tier,
		APICallsUsed:    1200,
		APIResetAt:      resetAt,
		IsEmailVerified: true,
	}}
	h := NewAccountHandler(store, &fakeRecordCounter{count: 37}, &fakePlanResolver{plan: proPlan()})
	router := newTestRouter(testActor(), proPlan(), h.RegisterRoutes)

	rec := doJSON(t, router, http.MethodGet, "/account/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var usage UsageResponse
	decodeBody(t, rec, &usage)
	assert.Equal(t, "PRO", usage.Plan)
	assert.Equal(t, 1200, usage.APICallsUsed)
	assert.Equal(t, 100_000, usage.MonthlyAPILimit)
	assert.True(t, resetAt.Equal(usage.APIResetAt))
	assert.Equal(t, 37, usage.RecordsUsed)
	assert.True(t, usage.EmailVerified)
}

func TestAccountUsage_NoPlanAssigned(t *testing.T) {
	store := &fakeAccountStore{profile: &types.UserProfile{UserID: "user-1"}}
	h := NewAccountHandler(store, &fakeRecordCounter{}, &fakePlanResolver{})
	router := newTestRouter(testActor(), nil, h.RegisterRoutes)

	rec := doJSON(t, router, http.MethodGet, "/account/usage", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NO_PLAN_ASSIGNED", errorCode(t, rec))
}

func TestAccountMe_HidesSensitiveFields(t *testing.T) {
	tier := types.PlanFree
	store := &fakeAccountStore{profile: &types.UserProfile{
		UserID:       "user-1",
		Email:        "casey@example.com",
		PlanName:     &tier,
		PasswordHash: "$2a$10$secret",
		IsAdmin:      true,
	}}
	h := NewAccountHandler(store, &fakeRecordCounter{}, &fakePlanResolver{})
	router := newTestRouter(testActor(), nil, h.RegisterRoutes)

	rec := doJSON(t, router, http.MethodGet, "/account/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "casey@example.com", body["email"])
	assert.NotContains(t, body, "password_hash")
	assert.NotContains(t, body, "is_admin")
}
