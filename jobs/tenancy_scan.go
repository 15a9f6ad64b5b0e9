package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/authz"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PlanSource resolves a tenant's subscription feature set.
type PlanSource interface {
	PlanFor(ctx context.Context, tenantID uuid.UUID) (*authz.PlanFeatureSet, error)
}

// TenancyAuditJob sweeps stored role assignments looking for footprints the
// grant-time checks should have prevented, plus tenants whose active seat
// count exceeds their subscription limit.
type TenancyAuditJob struct {
	Pool    *pgxpool.Pool
	Plans   PlanSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewTenancyAuditJob initialises the footprint sweep handler.
func NewTenancyAuditJob(pool *pgxpool.Pool, plans PlanSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *TenancyAuditJob {
	return &TenancyAuditJob{
		Pool:    pool,
		Plans:   plans,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the tenancy audit logic.
func (j *TenancyAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("tenancy audit: handler not configured")
	}
	var payload TenancyAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 500
	}

	start := j.now()
	tracker := j.metrics().Track(TaskTenancyAudit)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("batch_size", payload.BatchSize))
	logger.Info("starting tenancy audit")

	users, violations, err := j.sweepFootprints(ctx, payload.BatchSize)
	if err != nil {
		resultErr = err
		logger.Error("footprint sweep failed", slog.Any("error", err))
		return resultErr
	}

	overruns, err := j.checkSeatLimits(ctx)
	if err != nil {
		resultErr = err
		logger.Error("seat limit check failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed tenancy audit",
		slog.Int("users", users),
		slog.Int("violations", violations),
		slog.Int("seat_overruns", overruns),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// sweepFootprints pages over every user holding an active company role and
// audits the full assignment set for each.
func (j *TenancyAuditJob) sweepFootprints(ctx context.Context, batchSize int) (int, int, error) {
	if j.Pool == nil {
		return 0, 0, errors.New("tenancy audit: pool not configured")
	}
	users := 0
	violationCount := 0
	var cursor int64
	for {
		rows, err := j.Pool.Query(ctx, `SELECT DISTINCT user_id FROM role_assignments
WHERE is_active AND scope_kind = 'COMPANY' AND user_id > $1
ORDER BY user_id ASC LIMIT $2`, cursor, batchSize)
		if err != nil {
			return users, violationCount, err
		}
		ids := make([]int64, 0, batchSize)
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return users, violationCount, err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return users, violationCount, err
		}
		if len(ids) == 0 {
			return users, violationCount, nil
		}

		for _, userID := range ids {
			assignments, err := j.loadAssignments(ctx, userID)
			if err != nil {
				return users, violationCount, err
			}
			found, err := authz.AuditFootprint(assignments)
			if err != nil {
				// Unknown role identifiers in storage are data corruption,
				// not a reason to abort the whole sweep.
				j.logger().Error("footprint audit failed",
					slog.Int64("user_id", userID),
					slog.Any("error", err),
				)
				continue
			}
			users++
			for _, violation := range found {
				violationCount++
				j.logger().Warn("tenancy violation detected",
					slog.Int64("user_id", userID),
					slog.String("kind", string(violation.Code)),
					slog.String("detail", violation.Message),
				)
				j.metrics().AddViolations(string(violation.Code), "", 1)
			}
		}
		cursor = ids[len(ids)-1]
	}
}

func (j *TenancyAuditJob) loadAssignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error) {
	rows, err := j.Pool.Query(ctx, `SELECT scope_kind, tenant_id, role, is_active, granted_at, granted_by
FROM role_assignments WHERE user_id=$1 ORDER BY granted_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []authz.RoleAssignment
	for rows.Next() {
		var (
			kind     string
			tenantID *uuid.UUID
			role     string
			a        authz.RoleAssignment
		)
		if err := rows.Scan(&kind, &tenantID, &role, &a.IsActive, &a.GrantedAt, &a.GrantedBy); err != nil {
			return nil, err
		}
		a.Role = authz.RoleID(role)
		a.Scope = authz.GlobalScope()
		if authz.ScopeKind(kind) == authz.ScopeCompany && tenantID != nil {
			a.Scope = authz.CompanyScope(*tenantID)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// checkSeatLimits compares each tenant's active company-role headcount
// against the seat limit on its subscription plan.
func (j *TenancyAuditJob) checkSeatLimits(ctx context.Context) (int, error) {
	if j.Plans == nil {
		return 0, nil
	}
	rows, err := j.Pool.Query(ctx, `SELECT tenant_id, COUNT(DISTINCT user_id) FROM role_assignments
WHERE is_active AND scope_kind = 'COMPANY' GROUP BY tenant_id`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type seatCount struct {
		tenantID uuid.UUID
		seats    int64
	}
	var counts []seatCount
	for rows.Next() {
		var entry seatCount
		if err := rows.Scan(&entry.tenantID, &entry.seats); err != nil {
			return 0, err
		}
		counts = append(counts, entry)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	overruns := 0
	for _, entry := range counts {
		plan, err := j.Plans.PlanFor(ctx, entry.tenantID)
		if err != nil {
			return overruns, err
		}
		limit, ok := plan.Limit(authz.LimitSeats)
		if !ok || entry.seats <= limit {
			continue
		}
		overruns++
		j.logger().Warn("seat limit exceeded",
			slog.String("tenant_id", entry.tenantID.String()),
			slog.Int64("seats", entry.seats),
			slog.Int64("limit", limit),
		)
		j.metrics().AddViolations("SEAT_LIMIT_EXCEEDED", entry.tenantID.String(), 1)
	}
	return overruns, nil
}

func (j *TenancyAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTenancyAudit))
	}
	return slog.Default().With(slog.String("job", TaskTenancyAudit))
}

func (j *TenancyAuditJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *TenancyAuditJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
