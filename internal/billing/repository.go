package billing

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort defines data access for subscriptions.
type RepositoryPort interface {
	ActivePlan(ctx context.Context, tenantID uuid.UUID) (*Plan, error)
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ActivePlan fetches the tenant's active subscription. Returns
// shared.ErrNotFound when the tenant has no active plan.
func (r *PGRepository) ActivePlan(ctx context.Context, tenantID uuid.UUID) (*Plan, error) {
	var (
		plan     = Plan{TenantID: tenantID}
		features []byte
		limits   []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT code, features, limits FROM subscriptions
WHERE tenant_id=$1 AND status='ACTIVE' ORDER BY started_at DESC LIMIT 1`, tenantID).
		Scan(&plan.Code, &features, &limits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &plan.Features); err != nil {
			return nil, err
		}
	}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &plan.Limits); err != nil {
			return nil, err
		}
	}
	return &plan, nil
}

var _ RepositoryPort = (*PGRepository)(nil)
