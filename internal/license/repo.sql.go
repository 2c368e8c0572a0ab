package license

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/argus-vms/argus-cloud/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for licenses.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const licenseColumns = `id, organization_id, edge_server_id, plan, license_key, status, max_cameras, trial_ends_at, activated_at, expires_at, created_at, updated_at`

func scanLicense(row pgx.Row) (*License, error) {
	var l License
	if err := row.Scan(&l.ID, &l.OrganizationID, &l.EdgeServerID, &l.Plan, &l.LicenseKey, &l.Status, &l.MaxCameras, &l.TrialEndsAt, &l.ActivatedAt, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// List returns licenses matching the filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses
		WHERE ($1::bigint IS NULL OR organization_id = $1)
		AND ($2::text = '' OR status = $2)
		AND ($3::text = '' OR plan = $3)
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, filter.OrganizationID, string(filter.Status), filter.Plan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var licenses []License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, *l)
	}
	return licenses, rows.Err()
}

// Get fetches one license by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (*License, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id)
	l, err := scanLicense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// Create inserts a new license row.
func (r *PGRepository) Create(ctx context.Context, l *License) (*License, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO licenses
		(organization_id, edge_server_id, plan, license_key, status, max_cameras, trial_ends_at, activated_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING `+licenseColumns,
		l.OrganizationID, l.EdgeServerID, l.Plan, l.LicenseKey, l.Status, l.MaxCameras, l.TrialEndsAt, l.ActivatedAt, l.ExpiresAt)
	return scanLicense(row)
}

// Update persists mutable license fields.
func (r *PGRepository) Update(ctx context.Context, l *License) error {
	tag, err := r.pool.Exec(ctx, `UPDATE licenses SET
		edge_server_id = $2, plan = $3, license_key = $4, status = $5, max_cameras = $6,
		trial_ends_at = $7, activated_at = $8, expires_at = $9, updated_at = NOW()
		WHERE id = $1`,
		l.ID, l.EdgeServerID, l.Plan, l.LicenseKey, l.Status, l.MaxCameras, l.TrialEndsAt, l.ActivatedAt, l.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a license row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// HasAccessGranting checks for an active license valid past the grace
// boundary. The predicate mirrors License.GrantsAccess.
func (r *PGRepository) HasAccessGranting(ctx context.Context, organizationID int64, boundary time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM licenses
		WHERE organization_id = $1 AND status = $2
		AND (expires_at IS NULL OR expires_at > $3)
	)`, organizationID, StatusActive, boundary).Scan(&exists)
	return exists, err
}

// ExpireOverdue transitions overdue active licenses to expired. The
// status filter keeps the sweep idempotent under re-runs and safe to
// run concurrently with live access checks.
func (r *PGRepository) ExpireOverdue(ctx context.Context, boundary time.Time) ([]License, error) {
	rows, err := r.pool.Query(ctx, `UPDATE licenses
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3
		RETURNING `+licenseColumns, StatusExpired, StatusActive, boundary)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var expired []License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *l)
	}
	return expired, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
