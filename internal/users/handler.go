package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/roles"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/toggle-active", h.toggleActive)
}

type userResponse struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	RoleLabel      string    `json:"role_label"`
	OrganizationID *int64    `json:"organization_id"`
	IsSuperAdmin   bool      `json:"is_super_admin"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toResponse(u *User) userResponse {
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		RoleLabel:      roles.Label(u.Role),
		OrganizationID: u.OrganizationID,
		IsSuperAdmin:   u.IsSuperAdmin,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// list scopes results the same way licenses do: super-admins see all
// and may filter, tenant users see their organization only.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	if p == nil {
		shared.RespondError(w, http.StatusUnauthorized, string(authz.ReasonUnauthenticated), "Unauthenticated")
		return
	}

	filter := ListFilter{Role: r.URL.Query().Get("role")}
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
			shared.WriteJSON(w, http.StatusOK, map[string]any{"data": []userResponse{}, "total": 0})
			return
		}
		filter.OrganizationID = &orgID
	}

	users, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, len(users))

	start := (pagination.Page - 1) * pagination.PerPage
	if start > len(users) {
		start = len(users)
	}
	end := start + pagination.PerPage
	if end > len(users) {
		end = len(users)
	}
	data := make([]userResponse, 0, end-start)
	for i := start; i < end; i++ {
		data = append(data, toResponse(&users[i]))
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
	u, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionView, authz.Target{Type: authz.ResourceUser, OrganizationID: u.OrganizationID, UserID: u.ID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(u))
}

type createRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name" validate:"required"`
	Password       string `json:"password" validate:"required,min=8"`
	Role           string `json:"role" validate:"required"`
	OrganizationID *int64 `json:"organization_id"`
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

	// Non-super-admins create accounts inside their own tenant only.
	orgID := req.OrganizationID
	if p != nil && !p.SuperAdmin() {
		tenant, ok := p.Tenant()
		if !ok {
			shared.RespondError(w, http.StatusForbidden, string(authz.ReasonCrossTenant), "Organization not found or not accessible")
			return
		}
		orgID = &tenant
	}

	decision := authz.Authorize(p, authz.ActionCreate, authz.Target{Type: authz.ResourceUser, OrganizationID: orgID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	if !h.canAssignRole(w, p, req.Role) {
		return
	}

	created, err := h.service.Create(r.Context(), actorID(p), CreateParams{
		Email:          req.Email,
		Name:           req.Name,
		Password:       req.Password,
		Role:           req.Role,
		OrganizationID: orgID,
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			shared.RespondError(w, http.StatusConflict, "conflict", "Email is already registered")
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(created))
}

type updateRequest struct {
	Email *string `json:"email" validate:"omitempty,email"`
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Role  *string `json:"role" validate:"omitempty,min=1"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	u, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionUpdate, authz.Target{Type: authz.ResourceUser, OrganizationID: u.OrganizationID, UserID: u.ID})
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
	if req.Role != nil {
		// Self-service profile updates never change roles.
		if user, isUser := p.(authz.UserPrincipal); isUser && user.ID == u.ID && !user.SuperAdmin() {
			shared.RespondError(w, http.StatusForbidden, string(authz.ReasonRole), "You cannot change your own role")
			return
		}
		if !h.canAssignRole(w, p, *req.Role) {
			return
		}
	}

	updated, err := h.service.Update(r.Context(), actorID(p), u.ID, UpdateParams{
		Email: req.Email,
		Name:  req.Name,
		Role:  req.Role,
	})
	if err != nil {
		h.respondServiceError(w, "update user", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	u, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionDelete, authz.Target{Type: authz.ResourceUser, OrganizationID: u.OrganizationID, UserID: u.ID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	if err := h.service.Delete(r.Context(), actorID(p), u.ID); err != nil {
		h.respondServiceError(w, "delete user", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request) {
	u, ok := h.fetch(w, r)
	if !ok {
		return
	}
	p := authz.PrincipalFromContext(r.Context())
	decision := authz.Authorize(p, authz.ActionManage, authz.Target{Type: authz.ResourceUser, OrganizationID: u.OrganizationID, UserID: u.ID})
	if !decision.Allowed {
		authz.RespondDecision(w, decision)
		return
	}
	updated, err := h.service.SetActive(r.Context(), actorID(p), u.ID, !u.IsActive)
	if err != nil {
		h.respondServiceError(w, "toggle user active", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated))
}

// canAssignRole enforces the role ceiling: nobody hands out a rank
// above their own, and super_admin is never assignable through this
// API.
func (h *Handler) canAssignRole(w http.ResponseWriter, p authz.Principal, requested string) bool {
	normalized := roles.Normalize(requested)
	if normalized == roles.SuperAdmin {
		shared.RespondError(w, http.StatusForbidden, string(authz.ReasonRole), "The super_admin role cannot be assigned")
		return false
	}
	if p != nil && !p.SuperAdmin() {
		if user, ok := p.(authz.UserPrincipal); ok && roles.Rank(string(normalized)) > roles.Rank(user.Role) {
			shared.RespondError(w, http.StatusForbidden, string(authz.ReasonRole), "You cannot assign a role above your own")
			return false
		}
	}
	return true
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) (*User, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "invalid_request", "user id must be an integer")
		return nil, false
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusNotFound, "not_found", "User not found")
			return nil, false
		}
		h.logger.Error("fetch user", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
		return nil, false
	}
	return u, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		shared.RespondError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	if errors.Is(err, shared.ErrConflict) {
		shared.RespondError(w, http.StatusConflict, "conflict", "Email is already registered")
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
