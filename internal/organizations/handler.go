package organizations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Handler manages organization endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/toggle-active", h.toggleActive)
}

type orgResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(o *Organization) orgResponse {
	return orgResponse{ID: o.ID, Name: o.Name, Slug: o.Slug, IsActive: o.IsActive, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt}
}

// list returns every tenant for super-admins; tenant users only ever
// see their own organization.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	if p == nil {
		shared.RespondError(w, http.StatusUnauthorized, string(authz.ReasonUnauthenticated), "Unauthenticated")
		return
	}

	if !p.SuperAdmin() {
		orgID, ok := p.Tenant()
		if !ok {
			shared.WriteJSON(w, http.StatusOK, map[string]any{"data": []orgResponse{}, "total": 0})
			return
		}
		o, err := h.service.Get(r.Context(), orgID)
		if err != nil {
			h.logger.Error("load own organization", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
			return
		}
		shared.WriteJSON(w, http.StatusOK, map[string]any{"data": []orgResponse{toResponse(o)}, "total": 1})
		return
	}

	orgs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list organizations", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return
	}
	data := make([]orgResponse, 0, len(orgs))
	for i := range orgs {
		data = append(data, toResponse(&orgs[i]))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"data": data, "total": len(data)})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	o, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionView, authz.Target{Type: authz.ResourceOrganization, OrganizationID: &o.ID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(o))
}

type createRequest struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"omitempty,min=1"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionCreate, authz.Target{Type: authz.ResourceOrganization})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}

	var req createRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), actorID(p), req.Name, req.Slug)
	if err != nil {
		h.respondServiceError(w, "create organization", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

type updateRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1"`
	Slug *string `json:"slug" validate:"omitempty,min=1"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	o, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionUpdate, authz.Target{Type: authz.ResourceOrganization, OrganizationID: &o.ID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}

	var req updateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), actorID(p), o.ID, UpdateParams{Name: req.Name, Slug: req.Slug})
	if err != nil {
		h.respondServiceError(w, "update organization", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	o, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionDelete, authz.Target{Type: authz.ResourceOrganization, OrganizationID: &o.ID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	if err := h.service.Delete(r.Context(), actorID(p), o.ID); err != nil {
		h.respondServiceError(w, "delete organization", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"message": "Organization deleted"})
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request) {
	o, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionManage, authz.Target{Type: authz.ResourceOrganization, OrganizationID: &o.ID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	updated, err := h.service.SetActive(r.Context(), actorID(p), o.ID, !o.IsActive)
	if err != nil {
		h.respondServiceError(w, "toggle organization active", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) (*Organization, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", "organization id must be an integer")
		return nil, false
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, "not_found", "Organization not found")
			return nil, false
		}
		h.logger.Error("fetch organization", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return nil, false
	}
	return o, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		shared.RespondError(w, http.StatusNotFound, "not_found", "Organization not found")
		return
	}
	if errors.Is(err, shared.ErrConflict) {
		shared.RespondError(w, http.StatusConflict, "conflict", "Slug is already in use")
		return
	}
	h.logger.Error(logMsg, slog.Any("error", err))
	shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
}

func actorID(p authz.Principal) int64 {
	if user, ok := p.(authz.UserPrincipal); ok {
		return user.ID
	}
	return 0
}
