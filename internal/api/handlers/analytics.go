package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// AnalyticsRepo is the data access contract for feature usage analytics events.
type AnalyticsRepo interface {
	Create(ctx context.Context, a *types.FeatureUsageAnalytics) error
	GetByPublicID(ctx context.Context, owner, publicID string) (*types.FeatureUsageAnalytics, error)
	List(ctx context.Context, owner string, page types.Page) ([]*types.FeatureUsageAnalytics, int, error)
	SoftDelete(ctx context.Context, owner, publicID string) error
}

// CreateAnalyticsRequest is the request body for POST /usage-analytics.
// Events are append-only; there is no update surface.
type CreateAnalyticsRequest struct {
	FeatureName    string    `json:"feature_name" validate:"required,max=100"`
	APICallsMade   int       `json:"api_calls_made" validate:"gte=0"`
	DataVolumeMB   float64   `json:"data_volume_mb" validate:"gte=0"`
	SuccessRate    float64   `json:"success_rate" validate:"gte=0,lte=100"`
	Throttled      bool      `json:"throttled"`
	ClientApp      string    `json:"client_app" validate:"omitempty,max=100"`
	EventTimestamp time.Time `json:"event_timestamp"`
}

// AnalyticsHandler serves the usage-analytics namespace.
type AnalyticsHandler struct {
	repo      AnalyticsRepo
	quota     RecordQuotaEnforcer
	validator *core.Validator
	logger    *slog.Logger
}

func NewAnalyticsHandler(repo AnalyticsRepo, quota RecordQuotaEnforcer, validator *core.Validator, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{repo: repo, quota: quota, validator: validator, logger: logger}
}

// RegisterRoutes mounts usage-analytics routes on the provided chi.Router.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/usage-analytics", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{public_id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
		})
	})
}

func (h *AnalyticsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, plan, err := requirePlan(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateAnalyticsRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.quota.EnforceRecordQuota(r.Context(), actor.ID, plan, 1); err != nil {
		core.Error(w, r, err)
		return
	}

	eventTime := req.EventTimestamp
	if eventTime.IsZero() {
		eventTime = time.Now().UTC()
	}
	event := &types.FeatureUsageAnalytics{
		OwnedRecord: types.OwnedRecord{
			PublicID:  types.NewPublicID(),
			CreatedBy: actor.ID,
		},
		EventID:        uuid.NewString(),
		FeatureName:    req.FeatureName,
		APICallsMade:   req.APICallsMade,
		DataVolumeMB:   req.DataVolumeMB,
		SuccessRate:    req.SuccessRate,
		Throttled:      req.Throttled,
		ClientApp:      req.ClientApp,
		EventTimestamp: eventTime,
	}
	if err := h.repo.Create(r.Context(), event); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "usage analytics event recorded",
		"public_id", event.PublicID, "feature", event.FeatureName, "owner", actor.ID)
	core.JSON(w, r, http.StatusCreated, event)
}

func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	event, err := h.repo.GetByPublicID(r.Context(), actor.ID, chi.URLParam(r, "public_id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, event)
}

func (h *AnalyticsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, plan, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	page, err := resolvePage(r, plan)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	events, total, err := h.repo.List(r.Context(), actor.ID, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if events == nil {
		events = []*types.FeatureUsageAnalytics{}
	}
	core.JSON(w, r, http.StatusOK,
		types.NewPaginatedResponse(planTier(plan), total, page, r.URL.Path, events))
}

func (h *AnalyticsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.repo.SoftDelete(r.Context(), actor.ID, chi.URLParam(r, "public_id")); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
