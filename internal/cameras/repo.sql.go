package cameras

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/argus-vms/argus-cloud/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const cameraColumns = `id, organization_id, edge_server_id, name, stream_url, location, is_online, last_seen_at, created_at, updated_at`

func scanCamera(row pgx.Row) (*Camera, error) {
	var c Camera
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.EdgeServerID, &c.Name, &c.StreamURL, &c.Location, &c.IsOnline, &c.LastSeenAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns cameras matching the filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Camera, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+cameraColumns+`
		FROM cameras
		WHERE ($1::bigint IS NULL OR organization_id = $1)
		  AND ($2::bigint IS NULL OR edge_server_id = $2)
		  AND (NOT $3::bool OR is_online)
		ORDER BY id DESC`,
		filter.OrganizationID, filter.EdgeServerID, filter.OnlineOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cams []Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cams = append(cams, *c)
	}
	return cams, rows.Err()
}

// CountByOrganization returns the number of cameras in a tenant.
func (r *PGRepository) CountByOrganization(ctx context.Context, organizationID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cameras WHERE organization_id = $1`, organizationID).Scan(&count)
	return count, err
}

// Get fetches one camera.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Camera, error) {
	return scanCamera(r.pool.QueryRow(ctx, `SELECT `+cameraColumns+` FROM cameras WHERE id = $1`, id))
}

// Create inserts a camera.
func (r *PGRepository) Create(ctx context.Context, c *Camera) (*Camera, error) {
	return scanCamera(r.pool.QueryRow(ctx, `
		INSERT INTO cameras (organization_id, edge_server_id, name, stream_url, location, is_online, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, NOW(), NOW())
		RETURNING `+cameraColumns,
		c.OrganizationID, c.EdgeServerID, c.Name, c.StreamURL, c.Location))
}

// Update persists mutable camera fields.
func (r *PGRepository) Update(ctx context.Context, c *Camera) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cameras
		SET name = $2, stream_url = $3, location = $4, edge_server_id = $5, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.StreamURL, c.Location, c.EdgeServerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetOnline records stream status reported by the edge.
func (r *PGRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cameras SET is_online = $2, last_seen_at = NOW(), updated_at = NOW() WHERE id = $1`, id, online)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a camera.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
