package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akave-ai/nbstreamer/internal/model"
)

// ErrTenantExists is returned by Create for a duplicate id.
var ErrTenantExists = errors.New("tenant already exists")

// TenantRepository persists and reads registered tenants.
type TenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository returns a TenantRepository using the given pool.
func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

// Create inserts a tenant and sets CreatedAt.
func (r *TenantRepository) Create(ctx context.Context, t *model.Tenant) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (id, description)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at`,
		t.ID,
		t.Description,
	).Scan(&t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTenantExists
	}
	return err
}

// List returns all tenants ordered by id.
func (r *TenantRepository) List(ctx context.Context) ([]model.Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, created_at
		FROM tenants
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Tenant, error) {
		var t model.Tenant
		err := row.Scan(&t.ID, &t.Description, &t.CreatedAt)
		return t, err
	})
}

// Delete removes a tenant. It reports whether a row was deleted.
func (r *TenantRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
