package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/authz"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PlanSource resolves a tenant's subscription feature set.
type PlanSource interface {
	PlanFor(ctx context.Context, tenantID uuid.UUID) (*authz.PlanFeatureSet, error)
}

// DecisionSink records grant decisions for audit.
type DecisionSink interface {
	Record(ctx context.Context, decision shared.GrantDecision) error
}

// DecisionMetrics counts engine verdicts.
type DecisionMetrics interface {
	ObserveDecision(allowed bool, reason string)
}

// Service orchestrates role management: it fetches the immutable snapshots
// the engine needs, runs the validation chain and persists allowed grants.
type Service struct {
	repo      RepositoryPort
	plans     PlanSource
	decisions DecisionSink
	metrics   DecisionMetrics
}

// NewService builds Service instance. decisions and metrics may be nil.
func NewService(repo RepositoryPort, plans PlanSource, decisions DecisionSink, metrics DecisionMetrics) *Service {
	return &Service{repo: repo, plans: plans, decisions: decisions, metrics: metrics}
}

// AssignRole grants (role, scope) to the target user on behalf of the
// actor. Denials are returned as Decision values; errors indicate bad
// input or infrastructure failure.
func (s *Service) AssignRole(ctx context.Context, actorID, targetID int64, role authz.RoleID, scope authz.Scope) (authz.Decision, error) {
	target, err := s.repo.GetUser(ctx, targetID)
	if err != nil {
		return authz.Decision{}, err
	}
	if !target.IsActive {
		return authz.Decision{}, shared.ErrNotFound
	}

	actor, err := s.repo.ListAssignments(ctx, actorID)
	if err != nil {
		return authz.Decision{}, err
	}

	decision, err := authz.CanAssignRole(actor, role, scope)
	if err != nil {
		return authz.Decision{}, err
	}
	if decision.Allowed && scope.Kind == authz.ScopeCompany {
		footprint, err := s.repo.ListAssignments(ctx, targetID)
		if err != nil {
			return authz.Decision{}, err
		}
		decision, err = authz.CanHaveMultiCompanyRole(footprint, role, scope.TenantID)
		if err != nil {
			return authz.Decision{}, err
		}
	}

	s.observe(ctx, actorID, targetID, role, scope, decision)
	if !decision.Allowed {
		return decision, nil
	}

	assignment := authz.RoleAssignment{
		Scope:     scope,
		Role:      role,
		IsActive:  true,
		GrantedBy: actorID,
	}
	if err := s.repo.InsertAssignment(ctx, targetID, assignment); err != nil {
		return authz.Decision{}, err
	}
	return decision, nil
}

// RevokeRole deactivates a grant. The actor needs the same standing as for
// assigning the role in that scope.
func (s *Service) RevokeRole(ctx context.Context, actorID, targetID int64, role authz.RoleID, scope authz.Scope) (authz.Decision, error) {
	actor, err := s.repo.ListAssignments(ctx, actorID)
	if err != nil {
		return authz.Decision{}, err
	}
	decision, err := authz.CanAssignRole(actor, role, scope)
	if err != nil {
		return authz.Decision{}, err
	}
	if !decision.Allowed {
		return decision, nil
	}
	if err := s.repo.DeactivateAssignment(ctx, targetID, role, scope.TenantID); err != nil {
		return authz.Decision{}, err
	}
	return decision, nil
}

// Assignments returns the stored role snapshot for a user.
func (s *Service) Assignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error) {
	return s.repo.ListAssignments(ctx, userID)
}

// AssignableRoles lists the company roles the actor may grant in a tenant.
func (s *Service) AssignableRoles(ctx context.Context, actorID int64, tenantID uuid.UUID) ([]authz.RoleID, error) {
	actor, err := s.repo.ListAssignments(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return authz.AssignableRolesFor(actor, tenantID)
}

// AssignableTenants lists the tenants where the actor may grant roles.
func (s *Service) AssignableTenants(ctx context.Context, actorID int64) (authz.TenantSet, error) {
	actor, err := s.repo.ListAssignments(ctx, actorID)
	if err != nil {
		return authz.TenantSet{}, err
	}
	return authz.TenantsWhereActorMayAssign(actor)
}

// Permissions computes the actor's effective permission set. Global role
// holders get the full set; company role holders get their per-tenant role
// narrowed by the tenant's plan. No role anywhere yields an empty set.
func (s *Service) Permissions(ctx context.Context, userID int64, tenantID uuid.UUID) (authz.PermissionSet, error) {
	actor, err := s.repo.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role, ok := authz.ActorContext(actor).ActiveGlobalRole(); ok {
		return authz.PermissionsFor(role, nil)
	}
	if tenantID == uuid.Nil {
		return authz.PermissionSet{}, nil
	}
	role, held, err := authz.ActorContext(actor).HighestRoleIn(tenantID)
	if err != nil {
		return nil, err
	}
	if !held {
		return authz.PermissionSet{}, nil
	}
	var plan *authz.PlanFeatureSet
	if s.plans != nil {
		plan, err = s.plans.PlanFor(ctx, tenantID)
		if err != nil {
			return nil, err
		}
	}
	return authz.PermissionsFor(role, plan)
}

func (s *Service) observe(ctx context.Context, actorID, targetID int64, role authz.RoleID, scope authz.Scope, decision authz.Decision) {
	if s.metrics != nil {
		s.metrics.ObserveDecision(decision.Allowed, string(decision.Reason))
	}
	if s.decisions != nil {
		_ = s.decisions.Record(ctx, shared.GrantDecision{
			ActorID:  actorID,
			TargetID: targetID,
			Role:     string(role),
			TenantID: scope.TenantID,
			Allowed:  decision.Allowed,
			Reason:   string(decision.Reason),
			Message:  decision.Message,
		})
	}
}
