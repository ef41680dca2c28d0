package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// CustomerRepo is the data access contract for customer profile records.
// Mirrors the concrete db.CustomerRepository methods used by this handler.
type CustomerRepo interface {
	Create(ctx context.Context, c *types.CustomerProfile) error
	GetByPublicID(ctx context.Context, owner, publicID string) (*types.CustomerProfile, error)
	List(ctx context.Context, owner string, page types.Page) ([]*types.CustomerProfile, int, error)
	Update(ctx context.Context, owner string, c *types.CustomerProfile) error
	SoftDelete(ctx context.Context, owner, publicID string) error
}

// CreateCustomerRequest is the request body for POST /customer-profiles.
type CreateCustomerRequest struct {
	CustomerID      string             `json:"user_id" validate:"required,max=64"`
	FullName        string             `json:"full_name" validate:"required,max=200"`
	Username        string             `json:"username" validate:"required,max=100"`
	Email           string             `json:"email" validate:"required,email"`
	PhoneNumber     string             `json:"phone_number" validate:"omitempty,max=32"`
	IsEmailVerified bool               `json:"is_email_verified"`
	Role            types.CustomerRole `json:"role" validate:"required,oneof=QA USER DEVELOPER 'PRODUCT MANAGER' 'TEAM LEAD'"`
	LastLoginIP     string             `json:"last_login_ip" validate:"omitempty,ip"`
}

// UpdateCustomerRequest is the request body for PUT /customer-profiles/{public_id}.
type UpdateCustomerRequest struct {
	FullName        string             `json:"full_name" validate:"required,max=200"`
	Username        string             `json:"username" validate:"required,max=100"`
	Email           string             `json:"email" validate:"required,email"`
	PhoneNumber     string             `json:"phone_number" validate:"omitempty,max=32"`
	IsEmailVerified bool               `json:"is_email_verified"`
	Role            types.CustomerRole `json:"role" validate:"required,oneof=QA USER DEVELOPER 'PRODUCT MANAGER' 'TEAM LEAD'"`
	LastLoginIP     string             `json:"last_login_ip" validate:"omitempty,ip"`
}

// CustomerHandler serves the customer-profiles namespace.
type CustomerHandler struct {
	repo      CustomerRepo
	quota     RecordQuotaEnforcer
	validator *core.Validator
	logger    *slog.Logger
}

func NewCustomerHandler(repo CustomerRepo, quota RecordQuotaEnforcer, validator *core.Validator, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{repo: repo, quota: quota, validator: validator, logger: logger}
}

// RegisterRoutes mounts customer-profile routes on the provided chi.Router.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/customer-profiles", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{public_id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, plan, err := requirePlan(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateCustomerRequest
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

	customer := &types.CustomerProfile{
		OwnedRecord: types.OwnedRecord{
			PublicID:  types.NewPublicID(),
			CreatedBy: actor.ID,
		},
		CustomerID:      req.CustomerID,
		FullName:        req.FullName,
		Username:        req.Username,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		IsEmailVerified: req.IsEmailVerified,
		Role:            req.Role,
		LastLoginIP:     req.LastLoginIP,
	}
	if err := h.repo.Create(r.Context(), customer); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "customer profile created",
		"public_id", customer.PublicID, "owner", actor.ID)
	core.JSON(w, r, http.StatusCreated, customer)
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	customer, err := h.repo.GetByPublicID(r.Context(), actor.ID, chi.URLParam(r, "public_id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, customer)
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
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

	customers, total, err := h.repo.List(r.Context(), actor.ID, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if customers == nil {
		customers = []*types.CustomerProfile{}
	}
	core.JSON(w, r, http.StatusOK,
		types.NewPaginatedResponse(planTier(plan), total, page, r.URL.Path, customers))
}

func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateCustomerRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	publicID := chi.URLParam(r, "public_id")
	customer := &types.CustomerProfile{
		OwnedRecord:     types.OwnedRecord{PublicID: publicID},
		FullName:        req.FullName,
		Username:        req.Username,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		IsEmailVerified: req.IsEmailVerified,
		Role:            req.Role,
		LastLoginIP:     req.LastLoginIP,
	}
	if err := h.repo.Update(r.Context(), actor.ID, customer); err != nil {
		core.Error(w, r, err)
		return
	}

	updated, err := h.repo.GetByPublicID(r.Context(), actor.ID, publicID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, updated)
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
