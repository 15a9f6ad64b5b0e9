package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantDecision is one row of the role-grant audit trail: who asked for
// what, and how the engine ruled.
type GrantDecision struct {
	ID       int64
	ActorID  int64
	TargetID int64
	Role     string
	TenantID uuid.UUID
	Allowed  bool
	Reason   string
	Message  string
	At       time.Time
}

// DecisionRecorder persists grant decisions for later review.
type DecisionRecorder struct {
	pool *pgxpool.Pool
}

// NewDecisionRecorder constructs DecisionRecorder.
func NewDecisionRecorder(pool *pgxpool.Pool) *DecisionRecorder {
	return &DecisionRecorder{pool: pool}
}

// Record writes a decision entry to the database.
func (r *DecisionRecorder) Record(ctx context.Context, d GrantDecision) error {
	if r == nil {
		return errors.New("decision recorder not initialised")
	}
	if d.ActorID == 0 {
		return errors.New("grant decision requires actor")
	}
	if d.Role == "" {
		return errors.New("grant decision requires role")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO grant_decisions (actor_id, target_id, role, tenant_id, allowed, reason, message, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`, d.insertArgs()...)
	return err
}

// insertArgs maps optional fields to SQL NULL: a nil tenant id means a
// global-scope decision, and a zero At defers the timestamp to the
// database clock. Passing the zero time.Time directly would store year 1.
func (d GrantDecision) insertArgs() []any {
	var tenant any
	if d.TenantID != uuid.Nil {
		tenant = d.TenantID
	}
	var at any
	if !d.At.IsZero() {
		at = d.At
	}
	return []any{d.ActorID, d.TargetID, d.Role, tenant, d.Allowed, d.Reason, d.Message, at}
}

// ListForTarget returns the decisions recorded against one user.
func (r *DecisionRecorder) ListForTarget(ctx context.Context, targetID int64) ([]GrantDecision, error) {
	if r == nil {
		return nil, errors.New("decision recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, actor_id, target_id, role, COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid), allowed, reason, message, at
FROM grant_decisions WHERE target_id=$1 ORDER BY at ASC`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var decisions []GrantDecision
	for rows.Next() {
		var d GrantDecision
		if err := rows.Scan(&d.ID, &d.ActorID, &d.TargetID, &d.Role, &d.TenantID, &d.Allowed, &d.Reason, &d.Message, &d.At); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}
