package license

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Service wraps license lifecycle rules around the repository.
type Service struct {
	repo      Repository
	audit     *shared.AuditLogger
	logger    *slog.Logger
	graceDays int
	now       func() time.Time
}

// NewService constructs a Service. graceDays falls back to the platform
// default when non-positive.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger, graceDays int) *Service {
	if graceDays <= 0 {
		graceDays = DefaultGracePeriodDays
	}
	return &Service{repo: repo, audit: audit, logger: logger, graceDays: graceDays, now: time.Now}
}

// GracePeriodDays exposes the configured grace window.
func (s *Service) GracePeriodDays() int {
	return s.graceDays
}

// List returns licenses matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]License, error) {
	return s.repo.List(ctx, filter)
}

// Get fetches one license.
func (s *Service) Get(ctx context.Context, id int64) (*License, error) {
	return s.repo.Get(ctx, id)
}

// CreateParams describes a new license.
type CreateParams struct {
	OrganizationID int64
	Plan           string
	Status         Status
	MaxCameras     int
	TrialEndsAt    *time.Time
	ExpiresAt      *time.Time
}

// Create issues a new license with a fresh key. Status may be active or
// trial; anything else collapses to active.
func (s *Service) Create(ctx context.Context, actorID int64, p CreateParams) (*License, error) {
	status := p.Status
	if status != StatusTrial {
		status = StatusActive
	}
	created, err := s.repo.Create(ctx, &License{
		OrganizationID: p.OrganizationID,
		Plan:           p.Plan,
		LicenseKey:     uuid.NewString(),
		Status:         status,
		MaxCameras:     p.MaxCameras,
		TrialEndsAt:    p.TrialEndsAt,
		ExpiresAt:      p.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "license.create", created)
	return created, nil
}

// UpdateParams carries mutable license fields.
type UpdateParams struct {
	Plan        *string
	MaxCameras  *int
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// Update applies partial changes to a license.
func (s *Service) Update(ctx context.Context, actorID, id int64, p UpdateParams) (*License, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Plan != nil {
		l.Plan = *p.Plan
	}
	if p.MaxCameras != nil {
		l.MaxCameras = *p.MaxCameras
	}
	if p.ClearExpiry {
		l.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		l.ExpiresAt = p.ExpiresAt
	}
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "license.update", l)
	return l, nil
}

// Delete removes a license.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "license.delete", l)
	return nil
}

// Activate forces a license back to active and stamps activation time.
func (s *Service) Activate(ctx context.Context, actorID, id int64) (*License, error) {
	return s.transition(ctx, actorID, id, "license.activate", func(l *License) {
		now := s.now()
		l.Status = StatusActive
		l.ActivatedAt = &now
	})
}

// Suspend forces a license to suspended without touching expiry.
func (s *Service) Suspend(ctx context.Context, actorID, id int64) (*License, error) {
	return s.transition(ctx, actorID, id, "license.suspend", func(l *License) {
		l.Status = StatusSuspended
	})
}

// Renew sets a new expiry and forces the license active, clearing any
// prior expired state.
func (s *Service) Renew(ctx context.Context, actorID, id int64, newExpiry time.Time) (*License, error) {
	return s.transition(ctx, actorID, id, "license.renew", func(l *License) {
		l.ExpiresAt = &newExpiry
		l.Status = StatusActive
	})
}

// RegenerateKey replaces the license key with a fresh one.
func (s *Service) RegenerateKey(ctx context.Context, actorID, id int64) (*License, error) {
	return s.transition(ctx, actorID, id, "license.regenerate_key", func(l *License) {
		l.LicenseKey = uuid.NewString()
	})
}

func (s *Service) transition(ctx context.Context, actorID, id int64, action string, apply func(*License)) (*License, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(l)
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, action, l)
	return l, nil
}

// OrganizationHasAccess decides whether the tenant currently holds a
// valid license. The boundary is recomputed here on every call so a
// request landing between expiry and the next sweep run is still
// decided correctly.
func (s *Service) OrganizationHasAccess(ctx context.Context, organizationID int64) (bool, error) {
	return s.repo.HasAccessGranting(ctx, organizationID, GraceBoundary(s.now(), s.graceDays))
}

// CameraLimit returns the largest camera cap among the tenant's
// access-granting licenses. Zero means unlimited, either because no cap
// is configured or because no license currently grants access.
func (s *Service) CameraLimit(ctx context.Context, organizationID int64) (int, error) {
	licenses, err := s.repo.List(ctx, ListFilter{OrganizationID: &organizationID, Status: StatusActive})
	if err != nil {
		return 0, err
	}
	limit := 0
	for i := range licenses {
		if !licenses[i].GrantsAccess(s.now(), s.graceDays) {
			continue
		}
		if licenses[i].MaxCameras > limit {
			limit = licenses[i].MaxCameras
		}
	}
	return limit, nil
}

// SweepExpired demotes licenses expired beyond the grace period. Safe
// to re-run: already expired rows no longer match.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireOverdue(ctx, GraceBoundary(s.now(), s.graceDays))
	if err != nil {
		return 0, err
	}
	for _, l := range expired {
		if s.logger != nil {
			s.logger.Info("deactivated expired license",
				slog.Int64("license_id", l.ID),
				slog.Int64("organization_id", l.OrganizationID),
				slog.Time("expires_at", *l.ExpiresAt))
		}
		s.recordAudit(ctx, 0, "license.expire", &l)
	}
	return len(expired), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, l *License) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{"organization_id": l.OrganizationID, "status": string(l.Status)}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "license",
		EntityID: strconv.FormatInt(l.ID, 10),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("record license audit", slog.Any("error", err))
	}
}
