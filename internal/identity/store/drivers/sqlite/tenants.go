package sqlite

import (
	"context"
	"fmt"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/pkg/idx"
)

type tenantRepo struct {
	q queryer
}

func (r *tenantRepo) Create(ctx context.Context, tenant *domain.Tenant) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, industry, plan_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tenant.ID.String(), tenant.Name, tenant.Slug, tenant.Industry,
		tenant.PlanID.String(), encodeTime(tenant.CreatedAt),
	)
	return mapErr(err)
}

func (r *tenantRepo) GetByID(ctx context.Context, id idx.ID) (*domain.Tenant, error) {
	return r.get(ctx, `WHERE id = ?`, id.String())
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return r.get(ctx, `WHERE slug = ?`, slug)
}

func (r *tenantRepo) get(ctx context.Context, where string, arg any) (*domain.Tenant, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, slug, industry, plan_id, created_at FROM tenants `+where, arg)

	var (
		tenant        domain.Tenant
		id, planID    string
		createdAt     string
	)
	err := row.Scan(&id, &tenant.Name, &tenant.Slug, &tenant.Industry, &planID, &createdAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if tenant.ID, err = idx.Parse(id); err != nil {
		return nil, fmt.Errorf("tenant id: %w", err)
	}
	if tenant.PlanID, err = idx.Parse(planID); err != nil {
		return nil, fmt.Errorf("tenant plan id: %w", err)
	}
	if tenant.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("tenant created_at: %w", err)
	}
	return &tenant, nil
}
