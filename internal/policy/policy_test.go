package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/plans"
	"recordstack/internal/types"
)

func planByTier(t *testing.T, tier types.PlanTier) *types.Plan {
	t.Helper()
	for _, p := range plans.Defaults() {
		if p.Name == tier {
			return p
		}
	}
	t.Fatalf("no default plan for tier %s", tier)
	return nil
}

func activeActor() *types.Actor {
	return &types.Actor{ID: "user_1", Email: "u@example.com", IsActive: true, EmailVerified: true}
}

func appCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestBypassed(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/admin", true},
		{"/admin/plans", true},
		{"/accounts/login", true},
		{"/static/css/site.css", true},
		{"/health", true},
		{"/metrics", true},
		{"/webhooks/stripe", true},
		{"/api/v1/customer-profiles", false},
		{"/administrator", false},
		{"/", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bypassed(tt.path), "path %s", tt.path)
	}
}

func TestEngine_Unauthenticated(t *testing.T) {
	engine := NewEngine()

	err := engine.Evaluate(&Request{Actor: nil, Namespace: "customer-profiles", Method: "GET"})
	assert.Equal(t, types.ErrCodeAuthRequired, appCode(t, err))

	err = engine.Evaluate(&Request{Actor: &types.Actor{}, Namespace: "customer-profiles", Method: "GET"})
	assert.Equal(t, types.ErrCodeAuthRequired, appCode(t, err))
}

func TestEngine_InactiveAccount(t *testing.T) {
	engine := NewEngine()
	actor := activeActor()
	actor.IsActive = false

	err := engine.Evaluate(&Request{
		Actor:     actor,
		Plan:      planByTier(t, types.PlanPro),
		Namespace: "customer-profiles",
		Method:    "GET",
	})
	assert.Equal(t, types.ErrCodeAccountInactive, appCode(t, err))
}

func TestEngine_NoPlan(t *testing.T) {
	engine := NewEngine()

	err := engine.Evaluate(&Request{
		Actor:     activeActor(),
		Plan:      nil,
		Namespace: "customer-profiles",
		Method:    "GET",
	})
	assert.Equal(t, types.ErrCodeNoPlanAssigned, appCode(t, err))
}

func TestEngine_NamespaceMatrix(t *testing.T) {
	engine := NewEngine()
	tests := []struct {
		tier      types.PlanTier
		namespace string
		wantCode  types.ErrorCode // empty means admit
	}{
		{types.PlanFree, "customer-profiles", ""},
		{types.PlanFree, "product-catalog", ""},
		{types.PlanFree, "order-transactions", types.ErrCodeNamespaceNotAllowed},
		{types.PlanFree, "usage-analytics", types.ErrCodeNamespaceNotAllowed},
		{types.PlanBase, "order-transactions", ""},
		{types.PlanBase, "usage-analytics", types.ErrCodeNamespaceNotAllowed},
		{types.PlanPro, "usage-analytics", ""},
		{types.PlanEnterprise, "usage-analytics", ""},
	}
	for _, tt := range tests {
		err := engine.Evaluate(&Request{
			Actor:     activeActor(),
			Plan:      planByTier(t, tt.tier),
			Namespace: tt.namespace,
			Method:    "GET",
		})
		if tt.wantCode == "" {
			assert.NoError(t, err, "%s on %s", tt.tier, tt.namespace)
		} else {
			assert.Equal(t, tt.wantCode, appCode(t, err), "%s on %s", tt.tier, tt.namespace)
		}
	}
}

func TestEngine_MethodMatrix(t *testing.T) {
	engine := NewEngine()
	tests := []struct {
		tier     types.PlanTier
		method   string
		wantCode types.ErrorCode
	}{
		{types.PlanFree, "GET", ""},
		{types.PlanFree, "HEAD", ""},
		{types.PlanFree, "POST", types.ErrCodeReadOnlyPlan},
		{types.PlanFree, "PUT", types.ErrCodeReadOnlyPlan},
		{types.PlanFree, "DELETE", types.ErrCodeReadOnlyPlan},
		{types.PlanBase, "POST", ""},
		{types.PlanBase, "PATCH", ""},
		{types.PlanBase, "DELETE", types.ErrCodeCapabilityDenied},
		{types.PlanPro, "DELETE", ""},
		{types.PlanEnterprise, "DELETE", ""},
	}
	for _, tt := range tests {
		err := engine.Evaluate(&Request{
			Actor:     activeActor(),
			Plan:      planByTier(t, tt.tier),
			Namespace: "customer-profiles",
			Method:    tt.method,
		})
		if tt.wantCode == "" {
			assert.NoError(t, err, "%s %s", tt.tier, tt.method)
		} else {
			assert.Equal(t, tt.wantCode, appCode(t, err), "%s %s", tt.tier, tt.method)
		}
	}
}

// The free tier is read-only by tier, not by capability flags. A FREE row
// edited to carry write capabilities must still be refused writes.
func TestEngine_FreeTierReadOnlyDespiteWriteFlags(t *testing.T) {
	engine := NewEngine()
	plan := planByTier(t, types.PlanFree)
	plan.CanCreateRecords = true
	plan.CanUpdateRecords = true

	err := engine.Evaluate(&Request{
		Actor:     activeActor(),
		Plan:      plan,
		Namespace: "customer-profiles",
		Method:    "POST",
	})
	assert.Equal(t, types.ErrCodeReadOnlyPlan, appCode(t, err))
}

func TestEngine_UngatedNamespaceSkipsPlanStages(t *testing.T) {
	engine := NewEngine()

	// An authenticated active user with no plan can still reach surfaces
	// outside the plan-gated entity namespaces.
	err := engine.Evaluate(&Request{
		Actor:     activeActor(),
		Plan:      nil,
		Namespace: "objects",
		Method:    "POST",
	})
	assert.NoError(t, err)

	assert.True(t, NamespaceGated("customer-profiles"))
	assert.False(t, NamespaceGated("objects"))
	assert.False(t, NamespaceGated("auth"))
}

func TestEngine_UnsupportedMethod(t *testing.T) {
	engine := NewEngine()
	err := engine.Evaluate(&Request{
		Actor:     activeActor(),
		Plan:      planByTier(t, types.PlanEnterprise),
		Namespace: "customer-profiles",
		Method:    "TRACE",
	})
	assert.Equal(t, types.ErrCodeValidation, appCode(t, err))
}

func TestEngine_AdminBypass(t *testing.T) {
	engine := NewEngine()
	admin := &types.Actor{ID: "user_admin", IsAdmin: true, IsActive: false}

	// Admins skip every stage past authentication, even with a nil plan
	// and an inactive flag.
	err := engine.Evaluate(&Request{
		Actor:     admin,
		Plan:      nil,
		Namespace: "usage-analytics",
		Method:    "DELETE",
	})
	assert.NoError(t, err)
}

func TestEngine_StageOrder(t *testing.T) {
	engine := NewEngine()
	assert.Equal(t, []string{
		"authenticated",
		"active_account",
		"namespace_allowed",
		"method_allowed",
		"capability_allowed",
	}, engine.Stages())
}

func TestRequiresVerifiedEmail(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", false},
		{"/blogs", false},
		{"/blogs/some-post", false},
		{"/accounts/login", false},
		{"/accounts/verify-email", false},
		{"/static/app.js", false},
		{"/health", false},
		{"/api/v1/customer-profiles", false},
		{"/dashboard", true},
		{"/dashboard/objects", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiresVerifiedEmail(tt.path), "path %s", tt.path)
	}
}
