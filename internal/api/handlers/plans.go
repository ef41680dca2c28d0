package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// PlanRegistry is the plan catalog contract implemented by plans.Registry.
// Save enforces admin and Delete always fails; the handler does not repeat
// those checks.
type PlanRegistry interface {
	List(ctx context.Context) ([]*types.Plan, error)
	Resolve(ctx context.Context, name types.PlanTier) (*types.Plan, error)
	Save(ctx context.Context, actor *types.Actor, plan *types.Plan) error
	Delete(ctx context.Context, actor *types.Actor, name types.PlanTier) error
}

// PlanHandler serves the plan catalog. Reads are open to any authenticated
// caller so clients can render tier comparisons; writes are admin-only.
type PlanHandler struct {
	registry  PlanRegistry
	validator *core.Validator
}

func NewPlanHandler(registry PlanRegistry, validator *core.Validator) *PlanHandler {
	return &PlanHandler{registry: registry, validator: validator}
}

// RegisterRoutes mounts plan catalog routes on the provided chi.Router.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Route("/plans", func(r chi.Router) {
		r.Get("/", h.List)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Upsert)
			r.Delete("/", h.Delete)
		})
	})
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.registry.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"results": plans, "count": len(plans)})
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := types.NormalizePlanTier(chi.URLParam(r, "name"))
	plan, err := h.registry.Resolve(r.Context(), name)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, plan)
}

func (h *PlanHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var plan types.Plan
	if err := core.DecodeJSON(w, r, &plan); err != nil {
		core.Error(w, r, err)
		return
	}
	plan.Name = types.NormalizePlanTier(chi.URLParam(r, "name"))

	if err := h.registry.Save(r.Context(), &actor, &plan); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, plan)
}

func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	name := types.NormalizePlanTier(chi.URLParam(r, "name"))
	if err := h.registry.Delete(r.Context(), &actor, name); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
