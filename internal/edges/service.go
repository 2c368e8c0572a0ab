package edges

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/argus-vms/argus-cloud/internal/shared"
)

// ErrLicenseMismatch is returned when a license belongs to a different
// organization than the edge server.
var ErrLicenseMismatch = errors.New("license does not belong to this organization")

// ErrLicenseBound is returned when a license is already attached to
// another edge server.
var ErrLicenseBound = errors.New("license is already bound to another edge server")

// LicenseLink is the slice of license state the edge module needs for
// binding.
type LicenseLink struct {
	ID             int64
	OrganizationID int64
	BoundEdgeID    *int64
}

// LicenseDirectory resolves and binds licenses to edge servers. nil
// disables license binding entirely.
type LicenseDirectory interface {
	Find(ctx context.Context, id int64) (*LicenseLink, error)
	FirstAvailable(ctx context.Context, organizationID int64) (*LicenseLink, error)
	BindEdge(ctx context.Context, licenseID int64, edgeServerID *int64) error
}

// Service handles edge server registration and lifecycle.
type Service struct {
	repo     Repository
	licenses LicenseDirectory
	audit    *shared.AuditLogger
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, licenses LicenseDirectory, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, licenses: licenses, audit: audit, logger: logger}
}

// List returns edge servers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]EdgeServer, error) {
	return s.repo.List(ctx, filter)
}

// Get fetches one edge server.
func (s *Service) Get(ctx context.Context, id int64) (*EdgeServer, error) {
	return s.repo.Get(ctx, id)
}

// RegisterParams describes a new edge server.
type RegisterParams struct {
	OrganizationID int64
	Name           string
	LicenseID      *int64
	Location       string
	Hostname       string
}

// Register provisions an edge server and mints its HMAC credentials.
// The secret is stored and returned here; read endpoints never expose
// it again. When no license is named, the first unbound active license
// of the tenant is attached automatically.
func (s *Service) Register(ctx context.Context, actorID int64, p RegisterParams) (*EdgeServer, error) {
	if p.LicenseID != nil && s.licenses != nil {
		if err := s.checkLicense(ctx, *p.LicenseID, p.OrganizationID, 0); err != nil {
			return nil, err
		}
	}

	created, err := s.repo.Create(ctx, &EdgeServer{
		OrganizationID: p.OrganizationID,
		LicenseID:      p.LicenseID,
		Name:           p.Name,
		EdgeID:         uuid.NewString(),
		EdgeKey:        NewEdgeKey(),
		EdgeSecret:     NewEdgeSecret(),
		Location:       p.Location,
		Hostname:       p.Hostname,
	})
	if err != nil {
		return nil, err
	}

	if s.licenses != nil {
		if created.LicenseID != nil {
			if err := s.licenses.BindEdge(ctx, *created.LicenseID, &created.ID); err != nil {
				return nil, err
			}
		} else if available, err := s.licenses.FirstAvailable(ctx, p.OrganizationID); err == nil && available != nil {
			created.LicenseID = &available.ID
			if err := s.repo.Update(ctx, created); err != nil {
				return nil, err
			}
			if err := s.licenses.BindEdge(ctx, available.ID, &created.ID); err != nil {
				return nil, err
			}
		}
	}

	s.recordAudit(ctx, actorID, "edge_server.register", created)
	return created, nil
}

// UpdateParams carries mutable edge server fields.
type UpdateParams struct {
	Name         *string
	Location     *string
	Hostname     *string
	LicenseID    *int64
	ClearLicense bool
}

// Update applies partial changes, rebinding the license when it moves.
func (s *Service) Update(ctx context.Context, actorID, id int64, p UpdateParams) (*EdgeServer, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Hostname != nil {
		e.Hostname = *p.Hostname
	}
	switch {
	case p.ClearLicense:
		if e.LicenseID != nil && s.licenses != nil {
			if err := s.licenses.BindEdge(ctx, *e.LicenseID, nil); err != nil {
				return nil, err
			}
		}
		e.LicenseID = nil
	case p.LicenseID != nil:
		if s.licenses != nil {
			if err := s.checkLicense(ctx, *p.LicenseID, e.OrganizationID, e.ID); err != nil {
				return nil, err
			}
			if e.LicenseID != nil && *e.LicenseID != *p.LicenseID {
				if err := s.licenses.BindEdge(ctx, *e.LicenseID, nil); err != nil {
					return nil, err
				}
			}
			if err := s.licenses.BindEdge(ctx, *p.LicenseID, &e.ID); err != nil {
				return nil, err
			}
		}
		e.LicenseID = p.LicenseID
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "edge_server.update", e)
	return e, nil
}

// Heartbeat marks the calling device online.
func (s *Service) Heartbeat(ctx context.Context, id int64, hostname string) (*EdgeServer, error) {
	if err := s.repo.Heartbeat(ctx, id, hostname); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// MarkStaleOffline flags edges silent for longer than threshold as
// offline. Returns how many rows changed.
func (s *Service) MarkStaleOffline(ctx context.Context, threshold time.Duration) (int64, error) {
	return s.repo.MarkStaleOffline(ctx, time.Now().Add(-threshold))
}

// Delete removes an edge server, releasing its license.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.LicenseID != nil && s.licenses != nil {
		if err := s.licenses.BindEdge(ctx, *e.LicenseID, nil); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "edge_server.delete", e)
	return nil
}

func (s *Service) checkLicense(ctx context.Context, licenseID, organizationID, selfID int64) error {
	link, err := s.licenses.Find(ctx, licenseID)
	if err != nil {
		return err
	}
	if link.OrganizationID != organizationID {
		return ErrLicenseMismatch
	}
	if link.BoundEdgeID != nil && *link.BoundEdgeID != selfID {
		return ErrLicenseBound
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, e *EdgeServer) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "edge_server",
		EntityID: strconv.FormatInt(e.ID, 10),
		Meta:     map[string]any{"organization_id": e.OrganizationID, "name": e.Name},
	}); err != nil && s.logger != nil {
		s.logger.Warn("record edge server audit", slog.Any("error", err))
	}
}
