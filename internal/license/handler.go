package license

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

// Handler wires HTTP endpoints for license management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers license routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/activate", h.activate)
	r.Post("/{id}/suspend", h.suspend)
	r.Post("/{id}/renew", h.renew)
	r.Post("/{id}/regenerate-key", h.regenerateKey)
}

type licenseResponse struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	EdgeServerID   *int64     `json:"edge_server_id"`
	Plan           string     `json:"plan"`
	LicenseKey     string     `json:"license_key"`
	Status         string     `json:"status"`
	MaxCameras     int        `json:"max_cameras"`
	TrialEndsAt    *time.Time `json:"trial_ends_at"`
	ActivatedAt    *time.Time `json:"activated_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toResponse(l *License) licenseResponse {
	return licenseResponse{
		ID:             l.ID,
		OrganizationID: l.OrganizationID,
		EdgeServerID:   l.EdgeServerID,
		Plan:           l.Plan,
		LicenseKey:     l.LicenseKey,
		Status:         string(l.Status),
		MaxCameras:     l.MaxCameras,
		TrialEndsAt:    l.TrialEndsAt,
		ActivatedAt:    l.ActivatedAt,
		ExpiresAt:      l.ExpiresAt,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

// list scopes results by caller: super-admins see everything and may
// filter by organization, tenant users see their own organization, and
// organization-less users get an empty page.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	if p == nil {
		shared.RespondError(w, http.StatusUnauthorized, string(authz.ReasonUnauthenticated), "Unauthenticated")
		return
	}

	filter := ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Plan:   r.URL.Query().Get("plan"),
	}
	if p.SuperAdmin() {
		if raw := r.URL.Query().Get("organization_id"); raw != "" {
			orgID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				shared.RespondError(w, http.StatusBadRequest, "invalid_request", "organization_id must be an integer")
				return
			}
			filter.OrganizationID = &orgID
		}
	} else {
		orgID, ok := p.Tenant()
		if !ok {
			shared.WriteJSON(w, http.StatusOK, map[string]any{"data": []licenseResponse{}, "total": 0})
			return
		}
		filter.OrganizationID = &orgID
	}

	licenses, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list licenses", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, len(licenses))

	start := (pagination.Page - 1) * pagination.PerPage
	if start > len(licenses) {
		start = len(licenses)
	}
	end := start + pagination.PerPage
	if end > len(licenses) {
		end = len(licenses)
	}
	data := make([]licenseResponse, 0, end-start)
	for i := start; i < end; i++ {
		data = append(data, toResponse(&licenses[i]))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"data":        data,
		"total":       pagination.Total,
		"page":        pagination.Page,
		"per_page":    pagination.PerPage,
		"total_pages": pagination.TotalPages,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	l, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionView, authz.Target{Type: authz.ResourceLicense, OrganizationID: &l.OrganizationID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(l))
}

type createRequest struct {
	OrganizationID int64      `json:"organization_id" validate:"required"`
	Plan           string     `json:"plan" validate:"required"`
	Status         string     `json:"status" validate:"omitempty,oneof=active trial"`
	MaxCameras     int        `json:"max_cameras" validate:"omitempty,min=0"`
	TrialEndsAt    *time.Time `json:"trial_ends_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionCreate, authz.Target{Type: authz.ResourceLicense})
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

	created, err := h.service.Create(r.Context(), actorID(p), CreateParams{
		OrganizationID: req.OrganizationID,
		Plan:           req.Plan,
		Status:         Status(req.Status),
		MaxCameras:     req.MaxCameras,
		TrialEndsAt:    req.TrialEndsAt,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		h.logger.Error("create license", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

type updateRequest struct {
	Plan        *string    `json:"plan" validate:"omitempty,min=1"`
	MaxCameras  *int       `json:"max_cameras" validate:"omitempty,min=0"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	l, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionUpdate, authz.Target{Type: authz.ResourceLicense, OrganizationID: &l.OrganizationID})
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

	updated, err := h.service.Update(r.Context(), actorID(p), l.ID, UpdateParams{
		Plan:        req.Plan,
		MaxCameras:  req.MaxCameras,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		h.respondServiceError(w, "update license", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	l, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionDelete, authz.Target{Type: authz.ResourceLicense, OrganizationID: &l.OrganizationID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	if err := h.service.Delete(r.Context(), actorID(p), l.ID); err != nil {
		h.respondServiceError(w, "delete license", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"message": "License deleted"})
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "activate license", func(p authz.Principal, id int64) (*License, error) {
		return h.service.Activate(r.Context(), actorID(p), id)
	})
}

func (h *Handler) suspend(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "suspend license", func(p authz.Principal, id int64) (*License, error) {
		return h.service.Suspend(r.Context(), actorID(p), id)
	})
}

type renewRequest struct {
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	h.lifecycle(w, r, "renew license", func(p authz.Principal, id int64) (*License, error) {
		return h.service.Renew(r.Context(), actorID(p), id, req.ExpiresAt)
	})
}

func (h *Handler) regenerateKey(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "regenerate license key", func(p authz.Principal, id int64) (*License, error) {
		return h.service.RegenerateKey(r.Context(), actorID(p), id)
	})
}

// lifecycle shares the manage-action plumbing of the state transition
// endpoints, which are all super-admin-only by policy.
func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, logMsg string, op func(authz.Principal, int64) (*License, error)) {
	l, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionManage, authz.Target{Type: authz.ResourceLicense, OrganizationID: &l.OrganizationID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	updated, err := op(p, l.ID)
	if err != nil {
		h.respondServiceError(w, logMsg, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) (*License, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", "license id must be an integer")
		return nil, false
	}
	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, "not_found", "License not found")
			return nil, false
		}
		h.logger.Error("fetch license", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return nil, false
	}
	return l, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		shared.RespondError(w, http.StatusNotFound, "not_found", "License not found")
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
