package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// SystemLogRepo is the read surface for the system-logs namespace. Writes go
// through the logging middleware only, so the handler exposes no mutations.
type SystemLogRepo interface {
	GetByPublicID(ctx context.Context, owner, publicID string) (*types.SystemLog, error)
	List(ctx context.Context, owner string, page types.Page) ([]*types.SystemLog, int, error)
}

// SystemLogHandler serves the system-logs namespace.
type SystemLogHandler struct {
	repo SystemLogRepo
}

func NewSystemLogHandler(repo SystemLogRepo) *SystemLogHandler {
	return &SystemLogHandler{repo: repo}
}

// RegisterRoutes mounts system-log routes on the provided chi.Router.
func (h *SystemLogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/system-logs", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{public_id}", h.Get)
	})
}

func (h *SystemLogHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	entry, err := h.repo.GetByPublicID(r.Context(), actor.ID, chi.URLParam(r, "public_id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, entry)
}

func (h *SystemLogHandler) List(w http.ResponseWriter, r *http.Request) {
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

	entries, total, err := h.repo.List(r.Context(), actor.ID, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if entries == nil {
		entries = []*types.SystemLog{}
	}
	core.JSON(w, r, http.StatusOK,
		types.NewPaginatedResponse(planTier(plan), total, page, r.URL.Path, entries))
}
