package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials. Inactive accounts
// fail the same way as wrong passwords so the response never reveals
// which part was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ResolvePrincipal rebuilds the request principal for a session user.
// Deactivated accounts lose their principal immediately, not at next
// login.
func (s *Service) ResolvePrincipal(ctx context.Context, userID int64) (authz.UserPrincipal, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return authz.UserPrincipal{}, err
	}
	if !user.IsActive {
		return authz.UserPrincipal{}, errors.New("user inactive")
	}
	return authz.UserPrincipal{
		ID:             user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
		IsSuperAdmin:   user.IsSuperAdmin,
		IsActive:       user.IsActive,
	}, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
