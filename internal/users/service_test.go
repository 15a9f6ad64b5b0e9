package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/authz"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/users"
	_ "github.com/meridian-erp/meridian-erp/testing"
)

var (
	tenantOne = uuid.MustParse("3e9c5f41-8e3d-4d64-ad01-6a7b8c9d0e1f")
	tenantTwo = uuid.MustParse("4fad6052-9f4e-4e75-be12-7b8c9d0e1f20")
)

type stubRepo struct {
	assignments map[int64][]authz.RoleAssignment
	inactive    map[int64]bool
	inserted    []authz.RoleAssignment
	insertedFor []int64
	deactivated int
}

func (s *stubRepo) GetUser(ctx context.Context, id int64) (users.User, error) {
	return users.User{ID: id, IsActive: !s.inactive[id]}, nil
}

func (s *stubRepo) ListAssignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error) {
	return s.assignments[userID], nil
}

func (s *stubRepo) InsertAssignment(ctx context.Context, userID int64, assignment authz.RoleAssignment) error {
	s.inserted = append(s.inserted, assignment)
	s.insertedFor = append(s.insertedFor, userID)
	return nil
}

func (s *stubRepo) DeactivateAssignment(ctx context.Context, userID int64, role authz.RoleID, tenantID uuid.UUID) error {
	s.deactivated++
	return nil
}

type stubPlans struct {
	plan *authz.PlanFeatureSet
}

func (s *stubPlans) PlanFor(ctx context.Context, tenantID uuid.UUID) (*authz.PlanFeatureSet, error) {
	return s.plan, nil
}

type decisionSpy struct {
	recorded []shared.GrantDecision
}

func (s *decisionSpy) Record(ctx context.Context, decision shared.GrantDecision) error {
	s.recorded = append(s.recorded, decision)
	return nil
}

func active(role authz.RoleID, scope authz.Scope) authz.RoleAssignment {
	return authz.RoleAssignment{
		Scope:     scope,
		Role:      role,
		IsActive:  true,
		GrantedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		GrantedBy: 99,
	}
}

func TestAssignRolePersistsAllowedGrant(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{
		1: {active(authz.RoleCompanyAdmin, authz.CompanyScope(tenantOne))},
	}}
	spy := &decisionSpy{}
	svc := users.NewService(repo, &stubPlans{}, spy, nil)

	decision, err := svc.AssignRole(context.Background(), 1, 2, authz.RoleManager, authz.CompanyScope(tenantOne))
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Len(t, repo.inserted, 1)
	require.Equal(t, int64(2), repo.insertedFor[0])
	require.Equal(t, authz.RoleManager, repo.inserted[0].Role)
	require.Equal(t, int64(1), repo.inserted[0].GrantedBy)
	require.True(t, repo.inserted[0].IsActive)

	require.Len(t, spy.recorded, 1)
	require.True(t, spy.recorded[0].Allowed)
	require.Equal(t, string(authz.RoleManager), spy.recorded[0].Role)
}

func TestAssignRoleDeniedNothingPersisted(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{
		1: {active(authz.RoleManager, authz.CompanyScope(tenantOne))},
	}}
	spy := &decisionSpy{}
	svc := users.NewService(repo, &stubPlans{}, spy, nil)

	decision, err := svc.AssignRole(context.Background(), 1, 2, authz.RoleCompanyAdmin, authz.CompanyScope(tenantOne))
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, authz.ReasonInsufficientPrivilege, decision.Reason)
	require.Empty(t, repo.inserted)
	require.Len(t, spy.recorded, 1)
	require.False(t, spy.recorded[0].Allowed)
}

func TestAssignRoleChecksTargetFootprint(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{
		1: {active(authz.RoleSuperAdmin, authz.GlobalScope())},
		2: {active(authz.RoleViewer, authz.CompanyScope(tenantOne))},
	}}
	svc := users.NewService(repo, &stubPlans{}, nil, nil)

	// SuperAdmin passes the grant check, but the target's single-tenant
	// Viewer role blocks the cross-company assignment.
	decision, err := svc.AssignRole(context.Background(), 1, 2, authz.RoleEmployee, authz.CompanyScope(tenantTwo))
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, authz.ReasonSingleTenancyViolation, decision.Reason)
	require.Empty(t, repo.inserted)
}

func TestAssignRoleUnknownRoleIsError(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{}}
	svc := users.NewService(repo, &stubPlans{}, nil, nil)

	_, err := svc.AssignRole(context.Background(), 1, 2, authz.RoleID("founder"), authz.CompanyScope(tenantOne))
	var unknown *authz.UnknownRoleError
	require.ErrorAs(t, err, &unknown)
	require.Empty(t, repo.inserted)
}

func TestAssignRoleInactiveTarget(t *testing.T) {
	repo := &stubRepo{
		assignments: map[int64][]authz.RoleAssignment{
			1: {active(authz.RoleCompanyAdmin, authz.CompanyScope(tenantOne))},
		},
		inactive: map[int64]bool{2: true},
	}
	svc := users.NewService(repo, &stubPlans{}, nil, nil)

	_, err := svc.AssignRole(context.Background(), 1, 2, authz.RoleViewer, authz.CompanyScope(tenantOne))
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.inserted)
}

func TestRevokeRoleRequiresStanding(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{
		1: {active(authz.RoleEmployee, authz.CompanyScope(tenantOne))},
	}}
	svc := users.NewService(repo, &stubPlans{}, nil, nil)

	decision, err := svc.RevokeRole(context.Background(), 1, 2, authz.RoleViewer, authz.CompanyScope(tenantOne))
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Zero(t, repo.deactivated)

	repo.assignments[1] = []authz.RoleAssignment{active(authz.RoleCompanyAdmin, authz.CompanyScope(tenantOne))}
	decision, err = svc.RevokeRole(context.Background(), 1, 2, authz.RoleViewer, authz.CompanyScope(tenantOne))
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 1, repo.deactivated)
}

func TestPermissionsUsePlanForCompanyRoles(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{
		7: {active(authz.RoleManager, authz.CompanyScope(tenantOne))},
	}}
	plans := &stubPlans{plan: &authz.PlanFeatureSet{Features: map[authz.FeatureKey]bool{
		authz.FeatureReporting: false,
	}}}
	svc := users.NewService(repo, plans, nil, nil)

	perms, err := svc.Permissions(context.Background(), 7, tenantOne)
	require.NoError(t, err)
	require.True(t, perms.Has(shared.PermRolesAssign))
	require.False(t, perms.Has(shared.PermReportingDashboardView))
}

func TestPermissionsGlobalRoleIgnoresTenant(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{
		8: {active(authz.RoleSystemAdmin, authz.GlobalScope())},
	}}
	svc := users.NewService(repo, &stubPlans{}, nil, nil)

	perms, err := svc.Permissions(context.Background(), 8, uuid.Nil)
	require.NoError(t, err)
	require.True(t, perms.Has(shared.PermUsersEdit))
}

func TestPermissionsEmptyWithoutRole(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{}}
	svc := users.NewService(repo, &stubPlans{}, nil, nil)

	perms, err := svc.Permissions(context.Background(), 9, tenantOne)
	require.NoError(t, err)
	require.Empty(t, perms.List())
}

func TestAssignableTenantsForAdminSpan(t *testing.T) {
	repo := &stubRepo{assignments: map[int64][]authz.RoleAssignment{
		3: {
			active(authz.RoleCompanyAdmin, authz.CompanyScope(tenantOne)),
			active(authz.RoleViewer, authz.CompanyScope(tenantTwo)),
		},
	}}
	svc := users.NewService(repo, &stubPlans{}, nil, nil)

	set, err := svc.AssignableTenants(context.Background(), 3)
	require.NoError(t, err)
	require.False(t, set.All)
	require.True(t, set.Contains(tenantOne))
	require.False(t, set.Contains(tenantTwo))
}
