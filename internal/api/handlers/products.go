package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// ProductRepo is the data access contract for product catalog entries.
type ProductRepo interface {
	Create(ctx context.Context, p *types.ProductCatalog) error
	GetByPublicID(ctx context.Context, owner, publicID string) (*types.ProductCatalog, error)
	List(ctx context.Context, owner string, page types.Page) ([]*types.ProductCatalog, int, error)
	Update(ctx context.Context, owner string, p *types.ProductCatalog) error
	SoftDelete(ctx context.Context, owner, publicID string) error
}

// CreateProductRequest is the request body for POST /product-catalog.
type CreateProductRequest struct {
	ProductID     string          `json:"product_id" validate:"required,max=64"`
	ProductName   string          `json:"product_name" validate:"required,max=200"`
	Category      string          `json:"category" validate:"required,max=100"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	Currency      types.Currency  `json:"currency" validate:"required,oneof=INR USD EUR"`
	InStock       bool            `json:"in_stock"`
	StockCount    int             `json:"stock_count" validate:"gte=0"`
	ProductRating float64         `json:"product_rating" validate:"gte=0,lte=5"`
}

// UpdateProductRequest is the request body for PUT /product-catalog/{public_id}.
// The product_id is part of the record's identity and cannot be changed.
type UpdateProductRequest struct {
	ProductName   string          `json:"product_name" validate:"required,max=200"`
	Category      string          `json:"category" validate:"required,max=100"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	Currency      types.Currency  `json:"currency" validate:"required,oneof=INR USD EUR"`
	InStock       bool            `json:"in_stock"`
	StockCount    int             `json:"stock_count" validate:"gte=0"`
	ProductRating float64         `json:"product_rating" validate:"gte=0,lte=5"`
}

// ProductHandler serves the product-catalog namespace.
type ProductHandler struct {
	repo      ProductRepo
	quota     RecordQuotaEnforcer
	validator *core.Validator
	logger    *slog.Logger
}

func NewProductHandler(repo ProductRepo, quota RecordQuotaEnforcer, validator *core.Validator, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{repo: repo, quota: quota, validator: validator, logger: logger}
}

// RegisterRoutes mounts product-catalog routes on the provided chi.Router.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/product-catalog", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{public_id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, plan, err := requirePlan(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateProductRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Price.IsNegative() {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"price cannot be negative", nil, map[string]any{"price": req.Price.String()}))
		return
	}

	if err := h.quota.EnforceRecordQuota(r.Context(), actor.ID, plan, 1); err != nil {
		core.Error(w, r, err)
		return
	}

	product := &types.ProductCatalog{
		OwnedRecord: types.OwnedRecord{
			PublicID:  types.NewPublicID(),
			CreatedBy: actor.ID,
		},
		ProductID:     req.ProductID,
		ProductName:   req.ProductName,
		Category:      req.Category,
		Price:         req.Price,
		Currency:      req.Currency,
		InStock:       req.InStock,
		StockCount:    req.StockCount,
		ProductRating: req.ProductRating,
	}
	if err := h.repo.Create(r.Context(), product); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "product created",
		"public_id", product.PublicID, "owner", actor.ID)
	core.JSON(w, r, http.StatusCreated, product)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	product, err := h.repo.GetByPublicID(r.Context(), actor.ID, chi.URLParam(r, "public_id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, product)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
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

	products, total, err := h.repo.List(r.Context(), actor.ID, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if products == nil {
		products = []*types.ProductCatalog{}
	}
	core.JSON(w, r, http.StatusOK,
		types.NewPaginatedResponse(planTier(plan), total, page, r.URL.Path, products))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateProductRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	publicID := chi.URLParam(r, "public_id")
	product := &types.ProductCatalog{
		OwnedRecord:   types.OwnedRecord{PublicID: publicID},
		ProductName:   req.ProductName,
		Category:      req.Category,
		Price:         req.Price,
		Currency:      req.Currency,
		InStock:       req.InStock,
		StockCount:    req.StockCount,
		ProductRating: req.ProductRating,
	}
	if err := h.repo.Update(r.Context(), actor.ID, product); err != nil {
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

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
