package edges

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

// Handler manages edge server endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers management routes for edge servers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.register)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

// MountDeviceRoutes registers routes called by the appliances
// themselves, authenticated with signed requests.
func (h *Handler) MountDeviceRoutes(r chi.Router) {
	r.Post("/heartbeat", h.heartbeat)
}

type edgeResponse struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	LicenseID      *int64     `json:"license_id"`
	Name           string     `json:"name"`
	EdgeID         string     `json:"edge_id"`
	EdgeKey        string     `json:"edge_key"`
	Location       string     `json:"location"`
	Hostname       string     `json:"hostname"`
	Online         bool       `json:"online"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// registrationResponse is the only payload that ever carries the
// secret.
type registrationResponse struct {
	edgeResponse
	EdgeSecret string `json:"edge_secret"`
}

func toResponse(e *EdgeServer) edgeResponse {
	return edgeResponse{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		LicenseID:      e.LicenseID,
		Name:           e.Name,
		EdgeID:         e.EdgeID,
		EdgeKey:        e.EdgeKey,
		Location:       e.Location,
		Hostname:       e.Hostname,
		Online:         e.Online,
		LastSeenAt:     e.LastSeenAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	if p == nil {
		shared.RespondError(w, http.StatusUnauthorized, string(authz.ReasonUnauthenticated), "Unauthenticated")
		return
	}

	filter := ListFilter{}
	switch r.URL.Query().Get("status") {
	case "online":
		filter.OnlineOnly = true
	case "offline":
		filter.OfflineOnly = true
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
			shared.WriteJSON(w, http.StatusOK, map[string]any{"data": []edgeResponse{}, "total": 0})
			return
		}
		filter.OrganizationID = &orgID
	}

	servers, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list edge servers", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, len(servers))

	start := (pagination.Page - 1) * pagination.PerPage
	if start > len(servers) {
		start = len(servers)
	}
	end := start + pagination.PerPage
	if end > len(servers) {
		end = len(servers)
	}
	data := make([]edgeResponse, 0, end-start)
	for i := start; i < end; i++ {
		data = append(data, toResponse(&servers[i]))
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
	e, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionView, authz.Target{Type: authz.ResourceEdgeServer, OrganizationID: &e.OrganizationID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(e))
}

type registerRequest struct {
	OrganizationID *int64 `json:"organization_id"`
	Name           string `json:"name" validate:"required"`
	LicenseID      *int64 `json:"license_id"`
	Location       string `json:"location"`
	Hostname       string `json:"hostname"`
}

// register provisions an appliance. Only organization managers and
// super-admins may do this; the response is the one place the HMAC
// secret is ever revealed.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())

	var req registerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

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

	decision := authz.Authorize(p, authz.ActionManage, authz.Target{Type: authz.ResourceEdgeServer, OrganizationID: &orgID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}

	created, err := h.service.Register(r.Context(), actorID(p), RegisterParams{
		OrganizationID: orgID,
		Name:           req.Name,
		LicenseID:      req.LicenseID,
		Location:       req.Location,
		Hostname:       req.Hostname,
	})
	if err != nil {
		h.respondServiceError(w, "register edge server", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, registrationResponse{
		edgeResponse: toResponse(created),
		EdgeSecret:   created.EdgeSecret,
	})
}

type updateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1"`
	Location     *string `json:"location"`
	Hostname     *string `json:"hostname"`
	LicenseID    *int64  `json:"license_id"`
	ClearLicense bool    `json:"clear_license"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	e, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionManage, authz.Target{Type: authz.ResourceEdgeServer, OrganizationID: &e.OrganizationID})
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

	updated, err := h.service.Update(r.Context(), actorID(p), e.ID, UpdateParams{
		Name:         req.Name,
		Location:     req.Location,
		Hostname:     req.Hostname,
		LicenseID:    req.LicenseID,
		ClearLicense: req.ClearLicense,
	})
	if err != nil {
		h.respondServiceError(w, "update edge server", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	e, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionDelete, authz.Target{Type: authz.ResourceEdgeServer, OrganizationID: &e.OrganizationID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	if err := h.service.Delete(r.Context(), actorID(p), e.ID); err != nil {
		h.respondServiceError(w, "delete edge server", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"message": "Edge server deleted"})
}

type heartbeatRequest struct {
	Hostname string `json:"hostname"`
}

// heartbeat is called by the appliance itself; the device identity
// comes from the verified request signature, never from the payload.
func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	device, ok := p.(authz.DevicePrincipal)
	if !ok {
		shared.RespondError(w, http.StatusUnauthorized, string(authz.ReasonUnauthenticated), "Signed device request required")
		return
	}

	var req heartbeatRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	updated, err := h.service.Heartbeat(r.Context(), device.EdgeServerID, req.Hostname)
	if err != nil {
		h.respondServiceError(w, "edge heartbeat", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"online":       updated.Online,
		"last_seen_at": updated.LastSeenAt,
	})
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) (*EdgeServer, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", "edge server id must be an integer")
		return nil, false
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, "not_found", "Edge server not found")
			return nil, false
		}
		h.logger.Error("fetch edge server", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return nil, false
	}
	return e, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		shared.RespondError(w, http.StatusNotFound, "not_found", "Edge server not found")
	case errors.Is(err, ErrLicenseMismatch):
		shared.RespondError(w, http.StatusForbidden, "license_mismatch", err.Error())
	case errors.Is(err, ErrLicenseBound):
		shared.RespondError(w, http.StatusConflict, "license_bound", err.Error())
	case errors.Is(err, shared.ErrConflict):
		shared.RespondError(w, http.StatusConflict, "conflict", "Edge server already exists")
	default:
		h.logger.Error(logMsg, slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
	}
}

func actorID(p authz.Principal) int64 {
	if user, ok := p.(authz.UserPrincipal); ok {
		return user.ID
	}
	return 0
}
