// Package quota implements the per-principal quota ledger: the monthly
// API-call window with lazy atomic reset, conditional consumption, and the
// record-count quota across the quota-governed entity registry.
package quota

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"recordstack/internal/db"
	"recordstack/internal/types"
)

// Store is the persistence surface the ledger needs, satisfied by
// db.QuotaRepository plus the EnsureQuotaState half of db.ProfileRepository.
type Store interface {
	ResetWindowIfElapsed(ctx context.Context, userID string) (*db.QuotaWindow, error)
	ConsumeAPICall(ctx context.Context, userID string, limit int) (bool, error)
	CountOwnedRecords(ctx context.Context, userID string, entity types.EntityType) (int, error)
}

// StateInitializer creates missing quota state rows idempotently.
type StateInitializer interface {
	EnsureQuotaState(ctx context.Context, userID, email string, plan types.PlanTier) (bool, error)
}

// PlanResolver resolves a tier name to its limit set.
type PlanResolver interface {
	Resolve(ctx context.Context, name types.PlanTier) (*types.Plan, error)
}

// Ledger coordinates quota decisions. It owns no state beyond a singleflight
// group; every decision is anchored in the database so multiple API
// processes stay consistent.
type Ledger struct {
	store    Store
	profiles StateInitializer
	plans    PlanResolver
	logger   *slog.Logger

	// initGroup collapses concurrent first-touch initializations for the
	// same principal into one INSERT.
	initGroup singleflight.Group
}

// NewLedger creates a quota ledger.
func NewLedger(store Store, profiles StateInitializer, plans PlanResolver, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:    store,
		profiles: profiles,
		plans:    plans,
		logger:   logger,
	}
}

// GetOrInitQuotaState makes sure a quota row exists for the principal,
// defaulting to the FREE plan. Safe under arbitrary concurrency: in-process
// racers collapse via singleflight, cross-process racers via
// INSERT ... ON CONFLICT DO NOTHING.
func (l *Ledger) GetOrInitQuotaState(ctx context.Context, userID, email string) error {
	_, err, _ := l.initGroup.Do(userID, func() (any, error) {
		created, err := l.profiles.EnsureQuotaState(ctx, userID, email, types.PlanFree)
		if err != nil {
			return nil, err
		}
		if created {
			l.logger.Info("initialized quota state", "user_id", userID, "plan", types.PlanFree)
		}
		return nil, nil
	})
	return err
}

// Admission is the outcome of AdmitAPICall, carried to the consume step so
// the limit is not re-resolved after the handler runs.
type Admission struct {
	Plan    *types.Plan
	Used    int
	ResetAt time.Time
}

// AdmitAPICall decides whether the principal may start an API call. It first
// performs the lazy window reset (a guarded UPDATE that only one concurrent
// caller wins), then compares the post-reset counter against the plan limit.
// Admission does NOT increment; consumption happens after the handler
// succeeds.
//
// A missing plan assignment denies with NO_PLAN_ASSIGNED; an unknown or
// unconfigured plan denies with INVALID_PLAN_CONFIGURATION. Neither is ever
// treated as unlimited.
func (l *Ledger) AdmitAPICall(ctx context.Context, userID string) (*Admission, error) {
	w, err := l.store.ResetWindowIfElapsed(ctx, userID)
	if err != nil {
		return nil, err
	}

	if w.PlanName == nil {
		return nil, types.NewAppError(types.ErrCodeNoPlanAssigned,
			"no plan is assigned to this account", nil)
	}

	plan, err := l.plans.Resolve(ctx, *w.PlanName)
	if err != nil {
		return nil, err
	}

	if w.APICallsUsed >= plan.MonthlyAPILimit {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeRateLimitExceeded,
			"monthly API call limit reached", nil, map[string]any{
				"current_plan": string(plan.Name),
				"limit":        plan.MonthlyAPILimit,
				"reset_at":     w.APIResetAt.UTC().Format(time.RFC3339),
			})
	}

	return &Admission{Plan: plan, Used: w.APICallsUsed, ResetAt: w.APIResetAt}, nil
}

// ConsumeAPICall burns one API-call unit after a successful handler run. The
// conditional UPDATE guarantees the counter never exceeds the limit: with K
// units remaining and N concurrent consumers, exactly min(K, N) succeed.
// Returning false means a concurrent consumer took the last unit between
// admission and now; the caller's response has already been produced, so the
// loss is logged, not surfaced.
func (l *Ledger) ConsumeAPICall(ctx context.Context, userID string, adm *Admission) bool {
	ok, err := l.store.ConsumeAPICall(ctx, userID, adm.Plan.MonthlyAPILimit)
	if err != nil {
		l.logger.Error("failed to consume API call", "user_id", userID, "error", err)
		return false
	}
	if !ok {
		l.logger.Warn("quota exhausted between admission and consume", "user_id", userID)
	}
	return ok
}

// CountOwnedRecords sums the principal's alive record counts across all
// quota-governed entity types. A per-type failure is logged and skipped so
// one broken table cannot lock a tenant out of every write; the returned
// count is then a lower bound, which errs on the side of admitting.
func (l *Ledger) CountOwnedRecords(ctx context.Context, userID string) int {
	total := 0
	for _, entity := range db.QuotaGovernedEntityTypes {
		count, err := l.store.CountOwnedRecords(ctx, userID, entity)
		if err != nil {
			l.logger.Error("skipping record count for entity type",
				"entity", entity, "user_id", userID, "error", err)
			continue
		}
		total += count
	}
	return total
}

// EnforceRecordQuota denies a write that would push the principal's total
// alive record count past the plan's maximum. The check is read-then-decide:
// two concurrent writers can both pass and land one row over the limit. That
// window is accepted; the quota is advisory capacity control, not a ledger
// of money.
func (l *Ledger) EnforceRecordQuota(ctx context.Context, userID string, plan *types.Plan, incoming int) error {
	current := l.CountOwnedRecords(ctx, userID)
	if current+incoming > plan.MaxRecords {
		return types.NewAppErrorWithDetails(types.ErrCodeRecordLimitExceeded,
			"record limit reached for plan", nil, map[string]any{
				"current_plan":  string(plan.Name),
				"limit":         plan.MaxRecords,
				"current_count": current,
			})
	}
	return nil
}
