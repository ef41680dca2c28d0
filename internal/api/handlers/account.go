package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// AccountProfileStore reads the caller's own profile row.
type AccountProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*types.UserProfile, error)
}

// RecordCounter totals the caller's alive records across entity tables.
type RecordCounter interface {
	CountOwnedRecords(ctx context.Context, userID string) int
}

// AccountPlanResolver resolves a tier to its plan definition.
type AccountPlanResolver interface {
	Resolve(ctx context.Context, name types.PlanTier) (*types.Plan, error)
}

// UsageResponse is the body of GET /account/usage: the caller's live quota
// position against the plan's limits.
type UsageResponse struct {
	Plan            string    `json:"plan"`
	APICallsUsed    int       `json:"api_calls_used"`
	MonthlyAPILimit int       `json:"monthly_api_limit"`
	APIResetAt      time.Time `json:"api_reset_at"`
	RecordsUsed     int       `json:"records_used"`
	MaxRecords      int       `json:"max_records"`
	EmailVerified   bool      `json:"email_verified"`
}

// AccountHandler serves the account namespace: self-service views of the
// caller's own profile and quota consumption.
type AccountHandler struct {
	profiles AccountProfileStore
	records  RecordCounter
	plans    AccountPlanResolver
}

func NewAccountHandler(profiles AccountProfileStore, records RecordCounter, plans AccountPlanResolver) *AccountHandler {
	return &AccountHandler{profiles: profiles, records: records, plans: plans}
}

// RegisterRoutes mounts account routes on the provided chi.Router.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/account", func(r chi.Router) {
		r.Get("/me", h.Me)
		r.Get("/usage", h.Usage)
	})
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	profile, err := h.profiles.GetByUserID(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, profile)
}

func (h *AccountHandler) Usage(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	profile, err := h.profiles.GetByUserID(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if profile.PlanName == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNoPlanAssigned,
			"no plan assigned to this account", nil))
		return
	}

	plan, err := h.plans.Resolve(r.Context(), *profile.PlanName)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, UsageResponse{
		Plan:            string(plan.Name),
		APICallsUsed:    profile.APICallsUsed,
		MonthlyAPILimit: plan.MonthlyAPILimit,
		APIResetAt:      profile.APIResetAt,
		RecordsUsed:     h.records.CountOwnedRecords(r.Context(), actor.ID),
		MaxRecords:      plan.MaxRecords,
		EmailVerified:   profile.IsEmailVerified,
	})
}
