package cameras

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

// Handler manages camera endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers camera routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/status", h.reportStatus)
}

type cameraResponse struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	EdgeServerID   *int64     `json:"edge_server_id"`
	Name           string     `json:"name"`
	StreamURL      string     `json:"stream_url"`
	Location       string     `json:"location"`
	IsOnline       bool       `json:"is_online"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toResponse(c *Camera) cameraResponse {
	return cameraResponse{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		EdgeServerID:   c.EdgeServerID,
		Name:           c.Name,
		StreamURL:      c.StreamURL,
		Location:       c.Location,
		IsOnline:       c.IsOnline,
		LastSeenAt:     c.LastSeenAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	if p == nil {
		shared.RespondError(w, http.StatusUnauthorized, string(authz.ReasonUnauthenticated), "Unauthenticated")
		return
	}

	filter := ListFilter{OnlineOnly: r.URL.Query().Get("online") == "true"}
	if raw := r.URL.Query().Get("edge_server_id"); raw != "" {
		edgeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			shared.RespondError(w, http.StatusBadRequest, "invalid_request", "edge_server_id must be an integer")
			return
		}
		filter.EdgeServerID = &edgeID
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
			shared.WriteJSON(w, http.StatusOK, map[string]any{"data": []cameraResponse{}, "total": 0})
			return
		}
		filter.OrganizationID = &orgID
	}

	cams, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list cameras", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, len(cams))

	start := (pagination.Page - 1) * pagination.PerPage
	if start > len(cams) {
		start = len(cams)
	}
	end := start + pagination.PerPage
	if end > len(cams) {
		end = len(cams)
	}
	data := make([]cameraResponse, 0, end-start)
	for i := start; i < end; i++ {
		data = append(data, toResponse(&cams[i]))
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
	c, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionView, authz.Target{Type: authz.ResourceCamera, OrganizationID: &c.OrganizationID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(c))
}

type createRequest struct {
	OrganizationID *int64 `json:"organization_id"`
	EdgeServerID   *int64 `json:"edge_server_id"`
	Name           string `json:"name" validate:"required"`
	StreamURL      string `json:"stream_url" validate:"required"`
	Location       string `json:"location"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())

	var req createRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	// Tenant principals register cameras in their own organization;
	// super-admins must name one explicitly.
	var orgID int64
	if p != nil && !p.SuperAdmin() {
		tenant, ok := p.Tenant()
		if !ok {
			shared.RespondError(w, http.StatusForbidden, string(authz.ReasonCrossTenant), "Organization not found or not accessible")
			return
		}
		orgID = tenant
	} else if req.OrganizationID != nil {
		orgID = *req.OrganizationID
	} else {
		shared.RespondError(w, http.StatusUnprocessableEntity, "validation_failed", "organization_id is required")
		return
	}

	decision := authz.Authorize(p, authz.ActionCreate, authz.Target{Type: authz.ResourceCamera, OrganizationID: &orgID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}

	created, err := h.service.Create(r.Context(), actorID(p), CreateParams{
		OrganizationID: orgID,
		EdgeServerID:   req.EdgeServerID,
		Name:           req.Name,
		StreamURL:      req.StreamURL,
		Location:       req.Location,
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			shared.RespondError(w, http.StatusUnprocessableEntity, "quota_exceeded", "Licensed camera limit reached")
			return
		}
		h.logger.Error("create camera", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

type updateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1"`
	StreamURL    *string `json:"stream_url" validate:"omitempty,min=1"`
	Location     *string `json:"location"`
	EdgeServerID *int64  `json:"edge_server_id"`
	ClearEdge    bool    `json:"clear_edge"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	c, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionUpdate, authz.Target{Type: authz.ResourceCamera, OrganizationID: &c.OrganizationID})
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

	updated, err := h.service.Update(r.Context(), actorID(p), c.ID, UpdateParams{
		Name:         req.Name,
		StreamURL:    req.StreamURL,
		Location:     req.Location,
		EdgeServerID: req.EdgeServerID,
		ClearEdge:    req.ClearEdge,
	})
	if err != nil {
		h.respondServiceError(w, "update camera", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	c, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionDelete, authz.Target{Type: authz.ResourceCamera, OrganizationID: &c.OrganizationID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	if err := h.service.Delete(r.Context(), actorID(p), c.ID); err != nil {
		h.respondServiceError(w, "delete camera", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"message": "Camera deleted"})
}

type statusRequest struct {
	Online bool `json:"online"`
}

// reportStatus accepts online state from edge devices or tenant users.
func (h *Handler) reportStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionUpdate, authz.Target{Type: authz.ResourceCamera, OrganizationID: &c.OrganizationID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}

	var req statusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	updated, err := h.service.ReportStatus(r.Context(), c.ID, req.Online)
	if err != nil {
		h.respondServiceError(w, "report camera status", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) (*Camera, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", "camera id must be an integer")
		return nil, false
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, "not_found", "Camera not found")
			return nil, false
		}
		h.logger.Error("fetch camera", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return nil, false
	}
	return c, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		shared.RespondError(w, http.StatusNotFound, "not_found", "Camera not found")
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
