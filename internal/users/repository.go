package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/authz"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort defines data access methods for users and their role
// assignments.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListAssignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error)
	InsertAssignment(ctx context.Context, userID int64, assignment authz.RoleAssignment) error
	DeactivateAssignment(ctx context.Context, userID int64, role authz.RoleID, tenantID uuid.UUID) error
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetUser fetches a user by id.
func (r *PGRepository) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, is_active, created_at, updated_at
FROM users WHERE id=$1`, id).
		Scan(&user.ID, &user.Email, &user.Name, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// ListAssignments returns the full role-assignment snapshot for one user,
// oldest grant first so tie-breaks stay stable across reads.
func (r *PGRepository) ListAssignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT scope_kind, tenant_id, role, is_active, granted_at, granted_by
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
		)
		assignment := authz.RoleAssignment{}
		if err := rows.Scan(&kind, &tenantID, &role, &assignment.IsActive, &assignment.GrantedAt, &assignment.GrantedBy); err != nil {
			return nil, err
		}
		assignment.Role = authz.RoleID(role)
		assignment.Scope = authz.GlobalScope()
		if authz.ScopeKind(kind) == authz.ScopeCompany {
			if tenantID == nil {
				return nil, fmt.Errorf("users: assignment for user %d has company scope without tenant", userID)
			}
			assignment.Scope = authz.CompanyScope(*tenantID)
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// InsertAssignment stores a new active grant. A unique-index collision on
// (user_id, tenant_id) with an active row maps to httpx.ErrConflict.
func (r *PGRepository) InsertAssignment(ctx context.Context, userID int64, assignment authz.RoleAssignment) error {
	var tenant any
	if assignment.Scope.Kind == authz.ScopeCompany {
		tenant = assignment.Scope.TenantID
	}
	grantedAt := assignment.GrantedAt
	if grantedAt.IsZero() {
		grantedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO role_assignments (user_id, scope_kind, tenant_id, role, is_active, granted_at, granted_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		userID, string(assignment.Scope.Kind), tenant, string(assignment.Role), assignment.IsActive, grantedAt, assignment.GrantedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: user %d already holds an active role in this scope", httpx.ErrConflict, userID)
		}
		return err
	}
	return nil
}

// DeactivateAssignment revokes an active grant. tenantID is uuid.Nil for
// global roles.
func (r *PGRepository) DeactivateAssignment(ctx context.Context, userID int64, role authz.RoleID, tenantID uuid.UUID) error {
	var tag pgconn.CommandTag
	var err error
	if tenantID == uuid.Nil {
		tag, err = r.pool.Exec(ctx, `UPDATE role_assignments SET is_active=FALSE
WHERE user_id=$1 AND role=$2 AND tenant_id IS NULL AND is_active`, userID, string(role))
	} else {
		tag, err = r.pool.Exec(ctx, `UPDATE role_assignments SET is_active=FALSE
WHERE user_id=$1 AND role=$2 AND tenant_id=$3 AND is_active`, userID, string(role), tenantID)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*PGRepository)(nil)
