package sqlite

import (
	"context"
	"fmt"

	"github.com/orgstack/identity/internal/identity/domain"
	"github.com/orgstack/identity/pkg/idx"
)

type planRepo struct {
	q queryer
}

func (r *planRepo) GetByID(ctx context.Context, id idx.ID) (*domain.Plan, error) {
	return r.get(ctx, `WHERE id = ?`, id.String())
}

func (r *planRepo) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	return r.get(ctx, `WHERE name = ?`, name)
}

func (r *planRepo) get(ctx context.Context, where string, arg any) (*domain.Plan, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, max_users, has_payments FROM plans `+where, arg)

	var (
		plan domain.Plan
		id   string
	)
	err := row.Scan(&id, &plan.Name, &plan.MaxUsers, &plan.HasPayments)
	if err != nil {
		return nil, mapErr(err)
	}
	if plan.ID, err = idx.Parse(id); err != nil {
		return nil, fmt.Errorf("plan id: %w", err)
	}
	return &plan, nil
}
