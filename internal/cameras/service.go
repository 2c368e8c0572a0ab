package cameras

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/argus-vms/argus-cloud/internal/shared"
)

// ErrQuotaExceeded is returned when a tenant hits its licensed camera
// cap.
var ErrQuotaExceeded = errors.New("camera quota exceeded")

// QuotaSource reports the licensed camera cap for a tenant. Zero means
// unlimited.
type QuotaSource interface {
	CameraLimit(ctx context.Context, organizationID int64) (int, error)
}

// Service handles camera management rules.
type Service struct {
	repo   Repository
	quota  QuotaSource
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance. quota may be nil to disable cap
// enforcement.
func NewService(repo Repository, quota QuotaSource, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, quota: quota, audit: audit, logger: logger}
}

// List returns cameras matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Camera, error) {
	return s.repo.List(ctx, filter)
}

// Get fetches one camera.
func (s *Service) Get(ctx context.Context, id int64) (*Camera, error) {
	return s.repo.Get(ctx, id)
}

// CreateParams describes a new camera.
type CreateParams struct {
	OrganizationID int64
	EdgeServerID   *int64
	Name           string
	StreamURL      string
	Location       string
}

// Create registers a camera, enforcing the licensed cap when one is
// configured.
func (s *Service) Create(ctx context.Context, actorID int64, p CreateParams) (*Camera, error) {
	if s.quota != nil {
		limit, err := s.quota.CameraLimit(ctx, p.OrganizationID)
		if err != nil {
			return nil, err
		}
		if limit > 0 {
			count, err := s.repo.CountByOrganization(ctx, p.OrganizationID)
			if err != nil {
				return nil, err
			}
			if count >= limit {
				return nil, ErrQuotaExceeded
			}
		}
	}
	created, err := s.repo.Create(ctx, &Camera{
		OrganizationID: p.OrganizationID,
		EdgeServerID:   p.EdgeServerID,
		Name:           p.Name,
		StreamURL:      p.StreamURL,
		Location:       p.Location,
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "camera.create", created)
	return created, nil
}

// UpdateParams carries mutable camera fields.
type UpdateParams struct {
	Name         *string
	StreamURL    *string
	Location     *string
	EdgeServerID *int64
	ClearEdge    bool
}

// Update applies partial changes to a camera.
func (s *Service) Update(ctx context.Context, actorID, id int64, p UpdateParams) (*Camera, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.StreamURL != nil {
		c.StreamURL = *p.StreamURL
	}
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.ClearEdge {
		c.EdgeServerID = nil
	} else if p.EdgeServerID != nil {
		c.EdgeServerID = p.EdgeServerID
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "camera.update", c)
	return c, nil
}

// ReportStatus records online state from the edge.
func (s *Service) ReportStatus(ctx context.Context, id int64, online bool) (*Camera, error) {
	if err := s.repo.SetOnline(ctx, id, online); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a camera.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "camera.delete", c)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, c *Camera) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "camera",
		EntityID: strconv.FormatInt(c.ID, 10),
		Meta:     map[string]any{"organization_id": c.OrganizationID, "name": c.Name},
	}); err != nil && s.logger != nil {
		s.logger.Warn("record camera audit", slog.Any("error", err))
	}
}
