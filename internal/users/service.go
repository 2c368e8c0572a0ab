package users

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/argus-vms/argus-cloud/internal/roles"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Service handles user administration rules.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns users matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, error) {
	return s.repo.List(ctx, filter)
}

// Get fetches one user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// CreateParams describes a new user account.
type CreateParams struct {
	Email          string
	Name           string
	Password       string
	Role           string
	OrganizationID *int64
}

// Create provisions a user. Legacy role names are normalized before
// storage so lookups never see an alias.
func (s *Service) Create(ctx context.Context, actorID int64, p CreateParams) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, &User{
		Email:          p.Email,
		Name:           p.Name,
		PasswordHash:   string(hash),
		Role:           string(roles.Normalize(p.Role)),
		OrganizationID: p.OrganizationID,
		IsActive:       true,
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "user.create", created)
	return created, nil
}

// UpdateParams carries mutable account fields.
type UpdateParams struct {
	Email *string
	Name  *string
	Role  *string
}

// Update applies partial changes to an account.
func (s *Service) Update(ctx context.Context, actorID, id int64, p UpdateParams) (*User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = string(roles.Normalize(*p.Role))
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "user.update", u)
	return u, nil
}

// SetActive flips the account's active flag. Deactivated accounts lose
// their sessions at the identity middleware on the next request.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) (*User, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	action := "user.deactivate"
	if active {
		action = "user.activate"
	}
	s.recordAudit(ctx, actorID, action, u)
	return u, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "user.delete", u)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, u *User) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{"email": u.Email, "role": u.Role}
	if u.OrganizationID != nil {
		meta["organization_id"] = *u.OrganizationID
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(u.ID, 10),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("record user audit", slog.Any("error", err))
	}
}
