package edges

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/argus-vms/argus-cloud/internal/edgeauth"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// PGRepository implements Repository using PostgreSQL. It also serves
// as the credential store for signed edge requests.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const edgeColumns = `id, organization_id, license_id, name, edge_id, edge_key, edge_secret, location, hostname, online, last_seen_at, created_at, updated_at`

func scanEdge(row pgx.Row) (*EdgeServer, error) {
	var e EdgeServer
	if err := row.Scan(&e.ID, &e.OrganizationID, &e.LicenseID, &e.Name, &e.EdgeID, &e.EdgeKey, &e.EdgeSecret, &e.Location, &e.Hostname, &e.Online, &e.LastSeenAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// List returns edge servers matching the filter, most recently seen
// first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]EdgeServer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+edgeColumns+`
		FROM edge_servers
		WHERE ($1::bigint IS NULL OR organization_id = $1)
		  AND (NOT $2::bool OR online)
		  AND (NOT $3::bool OR NOT online)
		ORDER BY last_seen_at DESC NULLS LAST, id DESC`,
		filter.OrganizationID, filter.OnlineOnly, filter.OfflineOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []EdgeServer
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *e)
	}
	return servers, rows.Err()
}

// Get fetches one edge server.
func (r *PGRepository) Get(ctx context.Context, id int64) (*EdgeServer, error) {
	return scanEdge(r.pool.QueryRow(ctx, `SELECT `+edgeColumns+` FROM edge_servers WHERE id = $1`, id))
}

// FindByKey resolves the credential view used by request verification.
func (r *PGRepository) FindByKey(ctx context.Context, edgeKey string) (*edgeauth.Device, error) {
	e, err := scanEdge(r.pool.QueryRow(ctx, `SELECT `+edgeColumns+` FROM edge_servers WHERE edge_key = $1`, edgeKey))
	if err != nil {
		return nil, err
	}
	return &edgeauth.Device{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EdgeKey:        e.EdgeKey,
		EdgeSecret:     e.EdgeSecret,
	}, nil
}

// Create inserts an edge server with its credentials.
func (r *PGRepository) Create(ctx context.Context, e *EdgeServer) (*EdgeServer, error) {
	created, err := scanEdge(r.pool.QueryRow(ctx, `
		INSERT INTO edge_servers (organization_id, license_id, name, edge_id, edge_key, edge_secret, location, hostname, online, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, NOW(), NOW())
		RETURNING `+edgeColumns,
		e.OrganizationID, e.LicenseID, e.Name, e.EdgeID, e.EdgeKey, e.EdgeSecret, e.Location, e.Hostname))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, shared.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

// Update persists mutable edge server fields.
func (r *PGRepository) Update(ctx context.Context, e *EdgeServer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE edge_servers
		SET name = $2, location = $3, hostname = $4, license_id = $5, updated_at = NOW()
		WHERE id = $1`,
		e.ID, e.Name, e.Location, e.Hostname, e.LicenseID)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Heartbeat marks the edge online and refreshes last_seen_at.
func (r *PGRepository) Heartbeat(ctx context.Context, id int64, hostname string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE edge_servers
		SET online = true, last_seen_at = NOW(), hostname = COALESCE(NULLIF($2, ''), hostname), updated_at = NOW()
		WHERE id = $1`,
		id, hostname)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkStaleOffline flags online edges whose last heartbeat predates
// seenBefore. Edges that never checked in count as stale too.
func (r *PGRepository) MarkStaleOffline(ctx context.Context, seenBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE edge_servers
		SET online = false, updated_at = NOW()
		WHERE online AND (last_seen_at IS NULL OR last_seen_at < $1)`,
		seenBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes an edge server.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM edge_servers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var (
	_ Repository     = (*PGRepository)(nil)
	_ edgeauth.Store = (*PGRepository)(nil)
)
