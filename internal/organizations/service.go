package organizations

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Service handles organization administration.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns all organizations.
func (s *Service) List(ctx context.Context) ([]Organization, error) {
	return s.repo.List(ctx)
}

// Get fetches one organization.
func (s *Service) Get(ctx context.Context, id int64) (*Organization, error) {
	return s.repo.Get(ctx, id)
}

// Create provisions a tenant. The slug defaults to a lowercased,
// hyphenated form of the name.
func (s *Service) Create(ctx context.Context, actorID int64, name, slug string) (*Organization, error) {
	if slug == "" {
		slug = slugify(name)
	}
	created, err := s.repo.Create(ctx, &Organization{Name: name, Slug: slug, IsActive: true})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "organization.create", created)
	return created, nil
}

// UpdateParams carries mutable organization fields.
type UpdateParams struct {
	Name *string
	Slug *string
}

// Update applies partial changes to an organization.
func (s *Service) Update(ctx context.Context, actorID, id int64, p UpdateParams) (*Organization, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		o.Name = *p.Name
	}
	if p.Slug != nil {
		o.Slug = *p.Slug
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "organization.update", o)
	return o, nil
}

// SetActive flips the tenant's active flag.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) (*Organization, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	action := "organization.deactivate"
	if active {
		action = "organization.activate"
	}
	s.recordAudit(ctx, actorID, action, o)
	return o, nil
}

// Delete removes a tenant.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "organization.delete", o)
	return nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, o *Organization) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "organization",
		EntityID: strconv.FormatInt(o.ID, 10),
		Meta:     map[string]any{"name": o.Name, "slug": o.Slug},
	}); err != nil && s.logger != nil {
		s.logger.Warn("record organization audit", slog.Any("error", err))
	}
}
