package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"recordstack/internal/core"
	"recordstack/internal/schema"
	"recordstack/internal/types"
)

// CreateObjectRequest is the request body for POST /objects.
type CreateObjectRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	APIName        string `json:"api_name" validate:"required,max=63"`
	Description    string `json:"description" validate:"omitempty,max=1000"`
	MaxRecords     int    `json:"max_records" validate:"gte=0"`
	AllowAPIAccess bool   `json:"allow_api_access"`
}

// CreateFieldRequest is the request body for POST /objects/{api_name}/fields.
type CreateFieldRequest struct {
	Name         string              `json:"name" validate:"required,max=200"`
	APIName      string              `json:"api_name" validate:"required,max=63"`
	DataType     types.FieldDataType `json:"data_type" validate:"required"`
	IsRequired   bool                `json:"is_required"`
	IsUnique     bool                `json:"is_unique"`
	IsIndexed    bool                `json:"is_indexed"`
	DefaultValue *string             `json:"default_value,omitempty"`
	MinValue     *decimal.Decimal    `json:"min_value,omitempty"`
	MaxValue     *decimal.Decimal    `json:"max_value,omitempty"`
	Regex        *string             `json:"regex,omitempty"`
}

// ObjectHandler serves the objects namespace: tenant-defined schemas, their
// fields, and their records. Limit enforcement and value type-checking live
// in the schema package; the handler is transport only.
type ObjectHandler struct {
	limiter   *schema.Limiter
	quota     RecordQuotaEnforcer
	validator *core.Validator
	logger    *slog.Logger
}

func NewObjectHandler(limiter *schema.Limiter, quota RecordQuotaEnforcer, validator *core.Validator, logger *slog.Logger) *ObjectHandler {
	return &ObjectHandler{limiter: limiter, quota: quota, validator: validator, logger: logger}
}

// RegisterRoutes mounts custom object routes on the provided chi.Router.
func (h *ObjectHandler) RegisterRoutes(r chi.Router) {
	r.Route("/objects", func(r chi.Router) {
		r.Post("/", h.CreateObject)
		r.Get("/", h.ListObjects)

		r.Route("/{api_name}", func(r chi.Router) {
			r.Get("/", h.GetObject)
			r.Post("/fields", h.AddField)
			r.Get("/fields", h.ListFields)
			r.Post("/records", h.CreateRecord)
			r.Get("/records", h.ListRecords)
		})
	})
}

func (h *ObjectHandler) CreateObject(w http.ResponseWriter, r *http.Request) {
	actor, plan, err := requirePlan(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateObjectRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	obj := &types.CustomObject{
		Name:           req.Name,
		APIName:        req.APIName,
		Description:    req.Description,
		MaxRecords:     req.MaxRecords,
		AllowAPIAccess: req.AllowAPIAccess,
	}
	if err := h.limiter.CreateObject(r.Context(), actor.ID, plan, obj); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "custom object created",
		"api_name", obj.APIName, "tenant", actor.ID)
	core.JSON(w, r, http.StatusCreated, obj)
}

func (h *ObjectHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	obj, err := h.limiter.GetObject(r.Context(), actor.ID, chi.URLParam(r, "api_name"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, obj)
}

func (h *ObjectHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	objects, err := h.limiter.ListObjects(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if objects == nil {
		objects = []*types.CustomObject{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"results": objects, "count": len(objects)})
}

func (h *ObjectHandler) AddField(w http.ResponseWriter, r *http.Request) {
	actor, plan, err := requirePlan(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateFieldRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	field := &types.CustomField{
		Name:         req.Name,
		APIName:      req.APIName,
		DataType:     req.DataType,
		IsRequired:   req.IsRequired,
		IsUnique:     req.IsUnique,
		IsIndexed:    req.IsIndexed,
		DefaultValue: req.DefaultValue,
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		Regex:        req.Regex,
	}
	objectAPIName := chi.URLParam(r, "api_name")
	if err := h.limiter.AddField(r.Context(), actor.ID, objectAPIName, plan, field); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "custom field added",
		"object", objectAPIName, "field", field.APIName, "tenant", actor.ID)
	core.JSON(w, r, http.StatusCreated, field)
}

func (h *ObjectHandler) ListFields(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestIdentity(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	fields, err := h.limiter.ListFields(r.Context(), actor.ID, chi.URLParam(r, "api_name"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if fields == nil {
		fields = []*types.CustomField{}
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"results": fields, "count": len(fields)})
}

func (h *ObjectHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	actor, plan, err := requirePlan(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	// Record values arrive as strings and are typed against the object's
	// field declarations by the schema layer.
	var raw map[string]string
	if err := core.DecodeJSON(w, r, &raw); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.quota.EnforceRecordQuota(r.Context(), actor.ID, plan, 1); err != nil {
		core.Error(w, r, err)
		return
	}

	objectAPIName := chi.URLParam(r, "api_name")
	record, err := h.limiter.CreateRecord(r.Context(), actor.ID, objectAPIName, plan, raw)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "custom object record created",
		"object", objectAPIName, "record_id", record.ID, "tenant", actor.ID)
	core.JSON(w, r, http.StatusCreated, record)
}

func (h *ObjectHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
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

	records, total, err := h.limiter.ListRecords(r.Context(), actor.ID, chi.URLParam(r, "api_name"), page)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if records == nil {
		records = []*types.CustomObjectRecord{}
	}
	core.JSON(w, r, http.StatusOK,
		types.NewPaginatedResponse(planTier(plan), total, page, r.URL.Path, records))
}
