// Package plans implements the plan registry: resolution of plan tiers to
// their limit sets, with an in-process cache in front of the database, and
// the admin-gated mutation surface.
package plans

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"recordstack/internal/types"
)

// cacheTTL bounds how stale a cached plan may be after an admin edit. Plan
// rows change rarely, so five minutes of staleness is acceptable.
const cacheTTL = 5 * time.Minute

// planCost is the fixed ristretto cost per cached plan. There are at most a
// handful of plans, so cost accounting is nominal.
const planCost = 1

// PlanStore is the persistence interface the registry needs, satisfied by
// db.PlanRepository.
type PlanStore interface {
	GetByName(ctx context.Context, name types.PlanTier) (*types.Plan, error)
	List(ctx context.Context) ([]*types.Plan, error)
	Upsert(ctx context.Context, plan *types.Plan) error
	Delete(ctx context.Context, name types.PlanTier) error
}

// Registry resolves plan tiers to their limit sets. Reads go through a
// ristretto cache; writes invalidate it.
type Registry struct {
	store  PlanStore
	cache  *ristretto.Cache[string, *types.Plan]
	logger *slog.Logger
}

// NewRegistry creates a plan registry backed by the given store.
func NewRegistry(store PlanStore, logger *slog.Logger) (*Registry, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *types.Plan]{
		NumCounters: 64, // ~10x the expected handful of plan rows
		MaxCost:     16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Registry{store: store, cache: cache, logger: logger}, nil
}

// Resolve returns the plan for a tier name. Unknown names normalize through
// the legacy alias table first ("DEVELOPER" resolves as PRO). A tier that
// normalizes cleanly but has no row is an operator error, reported as
// INVALID_PLAN_CONFIGURATION rather than NOT_FOUND so callers do not confuse
// it with a missing user resource.
func (r *Registry) Resolve(ctx context.Context, name types.PlanTier) (*types.Plan, error) {
	tier := types.NormalizePlanTier(string(name))
	if !tier.Valid() {
		return nil, types.NewAppError(types.ErrCodeInvalidPlanConfig,
			"unknown plan tier: "+string(name), nil)
	}

	if plan, ok := r.cache.Get(string(tier)); ok {
		return plan, nil
	}

	plan, err := r.store.GetByName(ctx, tier)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFound {
			r.logger.Error("plan tier has no catalog row", "plan", tier)
			return nil, types.NewAppError(types.ErrCodeInvalidPlanConfig,
				"plan is not configured: "+string(tier), err)
		}
		return nil, err
	}

	r.cache.SetWithTTL(string(tier), plan, planCost, cacheTTL)
	return plan, nil
}

// List returns all plans, bypassing the cache. Used by the admin surface
// where staleness is not acceptable.
func (r *Registry) List(ctx context.Context) ([]*types.Plan, error) {
	return r.store.List(ctx)
}

// Save upserts a plan. Only administrators may mutate the catalog; the actor
// check lives here so every call path is covered, not just the HTTP handler.
func (r *Registry) Save(ctx context.Context, actor *types.Actor, plan *types.Plan) error {
	if actor == nil || !actor.IsAdmin {
		return types.NewAppError(types.ErrCodePermissionDenied,
			"only administrators may modify plans", nil)
	}

	plan.Name = types.NormalizePlanTier(string(plan.Name))
	if !plan.Name.Valid() {
		return types.NewAppError(types.ErrCodeValidation,
			"unknown plan tier: "+string(plan.Name), nil)
	}
	if err := validatePlan(plan); err != nil {
		return err
	}

	if err := r.store.Upsert(ctx, plan); err != nil {
		return err
	}
	r.cache.Del(string(plan.Name))
	r.logger.Info("plan updated", "plan", plan.Name, "actor", actor.ID)
	return nil
}

// Delete always fails, regardless of the actor. Plan rows anchor historical
// quota and billing state.
func (r *Registry) Delete(ctx context.Context, _ *types.Actor, name types.PlanTier) error {
	return r.store.Delete(ctx, name)
}

// validatePlan rejects limit sets that would misbehave downstream.
func validatePlan(plan *types.Plan) error {
	switch {
	case plan.MonthlyAPILimit < 0:
		return types.NewAppError(types.ErrCodeValidation, "monthly_api_limit must be non-negative", nil)
	case plan.MaxRecords < 0:
		return types.NewAppError(types.ErrCodeValidation, "max_records must be non-negative", nil)
	case plan.PageSize <= 0:
		return types.NewAppError(types.ErrCodeValidation, "page_size must be positive", nil)
	case plan.MaxPageSize < plan.PageSize:
		return types.NewAppError(types.ErrCodeValidation, "max_page_size must be at least page_size", nil)
	case len(plan.AllowedNamespaces) == 0:
		return types.NewAppError(types.ErrCodeValidation, "allowed_namespaces must not be empty", nil)
	}
	return nil
}
