package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"recordstack/internal/core"
	"recordstack/internal/types"
)

// OrderRepo is the data access contract for order transactions.
type OrderRepo interface {
	Create(ctx context.Context, o *types.OrderTransaction) error
	GetByPublicID(ctx context.Context, owner, publicID string) (*types.OrderTransaction, error)
	List(ctx context.Context, owner string, page types.Page) ([]*types.OrderTransaction, int, error)
	UpdateStatus(ctx context.Context, owner, publicID string, status types.PaymentStatus, refundable bool) error
	SoftDelete(ctx context.Context, owner, publicID string) error
}

// CreateOrderRequest is the request body for POST /order-transactions.
type CreateOrderRequest struct {
	OrderID              string              `json:"order_id" validate:"required,max=64"`
	OrderAmount          decimal.Decimal     `json:"order_amount" validate:"required"`
	PaymentMethod        types.PaymentMethod `json:"payment_method" validate:"required,oneof=CARD UPI NET_BANKING"`
	PaymentStatus        types.PaymentStatus `json:"payment_status" validate:"required,oneof=SUCCESS FAILED PENDING"`
	TransactionReference string              `json:"transaction_reference" validate:"omitempty,max=128"`
	IsRefundable         bool                `json:"is_refundable"`
	OrderDate            time.Time           `json:"order_date"`
	DiscountApplied      float64             `json:"discount_applied" validate:"gte=0,lte=100"`
}

// UpdateOrderStatusRequest is the request body for PATCH /order-transactions/{public_id}.
// Orders are immutable after creation except for their settlement state.
type UpdateOrderStatusRequest struct {
	PaymentStatus types.PaymentStatus `json:"payment_status" validate:"required,oneof=SUCCESS FAILED PENDING"`
	IsRefundable  bool                `json:"is_refundable"`
}

// OrderHandler serves the order-transactions namespace.
type OrderHandler struct {
	repo      OrderRepo
	quota     RecordQuotaEnforcer
	validator *core.Validator
	logger    *slog.Logger
}

func NewOrderHandler(repo OrderRepo, quota RecordQuotaEnforcer, validator *core.Validator, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{repo: repo, quota: quota, validator: validator, logger: logger}
}

// RegisterRoutes mounts order-transaction routes on the provided chi.Router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/order-transactions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{public_id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.UpdateStatus)
			r.Delete("/", h.Delete)
		})
	})
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, plan, err := requirePlan(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateOrderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.OrderAmount.IsNegative() {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"order_amount cannot be negative", nil, map[string]any{"order_amount": req.OrderAmount.String()}))
		return
	}

	if err := h.quota.EnforceRecordQuota(r.Context(), actor.ID, plan, 1); err != nil {
		core.Error(w, r, err)
		return
	}

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now().UTC()
	}
	order := &types.OrderTransaction{
		OwnedRecord: types.OwnedRecord{
			PublicID:  types.NewPublicID(),
			CreatedBy: actor.ID,
		},
		OrderID:              req.OrderID,
		OrderAmount:          req.OrderAmount,
		PaymentMethod:        req.PaymentMethod,
		PaymentStatus:        req.PaymentStatus,
		TransactionReference: req.TransactionReference,
		IsRefundable:         req.IsRefundable,
		OrderDate:            orderDate,
		DiscountApplied:      req.DiscountApplied,
	}
	if err := h.repo.Create(r.Context(), order); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "order transaction created",
		"public_id", order.PublicID, "owner", actor.ID, "status", order.PaymentStatus)
	core.JSON(w, r, http.StatusCreated, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	order, err := h.repo.GetByPublicID(r.Context(), actor.ID, chi.URLParam(r, "public_id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
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

	orders, total, err := h.repo.List(r.Context(), actor.ID, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if orders == nil {
		orders = []*types.OrderTransaction{}
	}
	core.JSON(w, r, http.StatusOK,
		types.NewPaginatedResponse(planTier(plan), total, page, r.URL.Path, orders))
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateOrderStatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	publicID := chi.URLParam(r, "public_id")
	if err := h.repo.UpdateStatus(r.Context(), actor.ID, publicID, req.PaymentStatus, req.IsRefundable); err != nil {
		core.Error(w, r, err)
		return
	}

	order, err := h.repo.GetByPublicID(r.Context(), actor.ID, publicID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
