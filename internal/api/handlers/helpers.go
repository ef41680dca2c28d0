// Package handlers contains the HTTP handler implementations for the
// RecordStack API. Each handler declares local interfaces for its
// dependencies and registers its own routes on the /api/v1 router.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"recordstack/internal/types"
)

// RecordQuotaEnforcer gates record-producing writes on the principal's
// total alive record count.
type RecordQuotaEnforcer interface {
	EnforceRecordQuota(ctx context.Context, userID string, plan *types.Plan, incoming int) error
}

// resolvePage reads page and page_size from the query string and applies
// the plan's paging policy. An explicit page_size above the plan maximum
// is rejected rather than silently clamped.
func resolvePage(r *http.Request, plan *types.Plan) (types.Page, error) {
	page := types.Page{Number: 1, Size: types.DefaultPageSize}
	if plan != nil {
		page.Size = plan.PageSize
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return types.Page{}, types.NewAppErrorWithDetails(types.ErrCodeValidation,
				"page must be a positive integer", err, map[string]any{"page": raw})
		}
		page.Number = n
	}

	if raw := r.URL.Query().Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return types.Page{}, types.NewAppErrorWithDetails(types.ErrCodeValidation,
				"page_size must be a positive integer", err, map[string]any{"page_size": raw})
		}
		if plan != nil && n > plan.MaxPageSize {
			return types.Page{}, types.NewAppErrorWithDetails(types.ErrCodeValidation,
				"page_size exceeds the maximum allowed by your plan", nil, map[string]any{
					"page_size":     n,
					"max_page_size": plan.MaxPageSize,
					"current_plan":  string(plan.Name),
				})
		}
		page.Size = n
	}
	return page, nil
}

// planTier returns the tier to echo in list envelopes.
func planTier(plan *types.Plan) types.PlanTier {
	if plan == nil {
		return types.PlanFree
	}
	return plan.Name
}

// requestIdentity pulls the authenticated principal and resolved plan off
// the request context. The policy middleware guarantees both are present
// for plan-gated namespaces, so a missing actor is an internal error.
func requestIdentity(r *http.Request) (types.Actor, *types.Plan, error) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		return types.Actor{}, nil, types.NewAppError(types.ErrCodeAuthRequired,
			"authentication required", nil)
	}
	plan, _ := types.GetPlan(r.Context())
	return actor, plan, nil
}

// requirePlan is requestIdentity for handlers that consult plan limits or
// capabilities. The plan reference on a profile is nullable transiently, and
// admins skip the plan-gated policy stages, so the context can legitimately
// carry no plan here.
func requirePlan(r *http.Request) (types.Actor, *types.Plan, error) {
	actor, plan, err := requestIdentity(r)
	if err != nil {
		return types.Actor{}, nil, err
	}
	if plan == nil {
		return types.Actor{}, nil, types.NewAppError(types.ErrCodeNoPlanAssigned,
			"no plan is assigned to this account", nil)
	}
	return actor, plan, nil
}
