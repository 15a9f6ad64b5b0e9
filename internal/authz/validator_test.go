package authz

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	tenantOne   = uuid.MustParse("0b6f2c1e-5b0a-4a31-9a7e-2d3f4a5b6c7d")
	tenantTwo   = uuid.MustParse("1c7a3d2f-6c1b-4b42-8b8f-3e4a5b6c7d8e")
	tenantThree = uuid.MustParse("2d8b4e30-7d2c-4c53-9c90-4f5b6c7d8e9f")
)

func grant(role RoleID, scope Scope) RoleAssignment {
	return RoleAssignment{
		Scope:     scope,
		Role:      role,
		IsActive:  true,
		GrantedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		GrantedBy: 1,
	}
}

func TestSuperAdminAssignsAnything(t *testing.T) {
	actor := ActorContext{grant(RoleSuperAdmin, GlobalScope())}
	targets := []struct {
		role  RoleID
		scope Scope
	}{
		{RoleSystemAdmin, GlobalScope()},
		{RoleSuperAdmin, GlobalScope()},
		{RoleCompanyAdmin, CompanyScope(tenantOne)},
		{RoleViewer, CompanyScope(tenantTwo)},
	}
	for _, target := range targets {
		decision, err := CanAssignRole(actor, target.role, target.scope)
		if err != nil {
			t.Fatalf("CanAssignRole(%s): %v", target.role, err)
		}
		if !decision.Allowed {
			t.Fatalf("SuperAdmin denied granting %s: %s", target.role, decision.Message)
		}
	}
}

func TestInactiveSuperAdminDoesNotBypass(t *testing.T) {
	assignment := grant(RoleSuperAdmin, GlobalScope())
	assignment.IsActive = false
	decision, err := CanAssignRole(ActorContext{assignment}, RoleSystemAdmin, GlobalScope())
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("inactive SuperAdmin assignment still granted global roles")
	}
	if decision.Reason != ReasonGlobalRoleRestricted {
		t.Fatalf("unexpected reason %s", decision.Reason)
	}
}

func TestOnlySuperAdminGrantsGlobalRoles(t *testing.T) {
	actors := []ActorContext{
		{grant(RoleSystemAdmin, GlobalScope())},
		{grant(RoleCompanyAdmin, CompanyScope(tenantOne))},
		{},
	}
	for _, actor := range actors {
		decision, err := CanAssignRole(actor, RoleSystemAdmin, GlobalScope())
		if err != nil {
			t.Fatalf("CanAssignRole: %v", err)
		}
		if decision.Allowed {
			t.Fatalf("non-SuperAdmin actor granted a global role")
		}
		if decision.Reason != ReasonGlobalRoleRestricted {
			t.Fatalf("unexpected reason %s", decision.Reason)
		}
	}
}

func TestCompanyScopeRequiresTenantID(t *testing.T) {
	actor := ActorContext{grant(RoleCompanyAdmin, CompanyScope(tenantOne))}
	decision, err := CanAssignRole(actor, RoleManager, Scope{Kind: ScopeCompany})
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if decision.Allowed || decision.Reason != ReasonMissingCompanyContext {
		t.Fatalf("expected MissingCompanyContext denial, got %+v", decision)
	}
}

func TestCompanyAdminGrants(t *testing.T) {
	actor := ActorContext{grant(RoleCompanyAdmin, CompanyScope(tenantOne))}

	decision, err := CanAssignRole(actor, RoleManager, CompanyScope(tenantOne))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("CompanyAdmin denied granting Manager: %s", decision.Message)
	}

	decision, err = CanAssignRole(actor, RoleCompanyAdmin, CompanyScope(tenantOne))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("CompanyAdmin granted a peer CompanyAdmin")
	}
	if decision.Reason != ReasonInsufficientPrivilege {
		t.Fatalf("unexpected reason %s", decision.Reason)
	}
	if !strings.Contains(decision.Message, "Company Admin cannot assign Company Admin") {
		t.Fatalf("expected self-escalation message, got %q", decision.Message)
	}
}

func TestManagerGrants(t *testing.T) {
	actor := ActorContext{grant(RoleManager, CompanyScope(tenantOne))}

	decision, err := CanAssignRole(actor, RoleEmployee, CompanyScope(tenantOne))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("Manager denied granting Employee: %s", decision.Message)
	}

	decision, err = CanAssignRole(actor, RoleCompanyAdmin, CompanyScope(tenantOne))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("Manager granted CompanyAdmin")
	}
	if !strings.Contains(decision.Message, "Manager cannot assign Company Admin") {
		t.Fatalf("unexpected message %q", decision.Message)
	}
}

func TestEmployeeHasNoAssignmentRights(t *testing.T) {
	actor := ActorContext{grant(RoleEmployee, CompanyScope(tenantOne))}
	decision, err := CanAssignRole(actor, RoleViewer, CompanyScope(tenantOne))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("Employee granted a role")
	}
	if !strings.Contains(decision.Message, "no assignment rights") {
		t.Fatalf("unexpected message %q", decision.Message)
	}
}

func TestRolesAreTenantLocal(t *testing.T) {
	// CompanyAdmin in tenant one confers nothing in tenant two.
	actor := ActorContext{grant(RoleCompanyAdmin, CompanyScope(tenantOne))}
	decision, err := CanAssignRole(actor, RoleViewer, CompanyScope(tenantTwo))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("role leaked across tenants")
	}
	if decision.Reason != ReasonNoRoleInCompany {
		t.Fatalf("unexpected reason %s", decision.Reason)
	}
}

func TestHighestRoleWinsOnDuplicates(t *testing.T) {
	// Duplicate active roles in one tenant should not happen upstream but
	// must resolve deterministically to the highest level.
	actor := ActorContext{
		grant(RoleViewer, CompanyScope(tenantOne)),
		grant(RoleCompanyAdmin, CompanyScope(tenantOne)),
		grant(RoleEmployee, CompanyScope(tenantOne)),
	}
	decision, err := CanAssignRole(actor, RoleManager, CompanyScope(tenantOne))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("highest role not selected: %s", decision.Message)
	}
}

func TestCanAssignRoleIdempotent(t *testing.T) {
	actor := ActorContext{grant(RoleManager, CompanyScope(tenantOne))}
	first, err := CanAssignRole(actor, RoleCompanyAdmin, CompanyScope(tenantOne))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	second, err := CanAssignRole(actor, RoleCompanyAdmin, CompanyScope(tenantOne))
	if err != nil {
		t.Fatalf("CanAssignRole: %v", err)
	}
	if first != second {
		t.Fatalf("identical inputs produced %+v then %+v", first, second)
	}
}

func TestCanAssignRoleUnknownTarget(t *testing.T) {
	actor := ActorContext{grant(RoleSuperAdmin, GlobalScope())}
	if _, err := CanAssignRole(actor, RoleID("ceo"), CompanyScope(tenantOne)); err == nil {
		t.Fatalf("expected hard failure for unknown role identifier")
	}
}

func TestAssignableRolesFor(t *testing.T) {
	super := ActorContext{grant(RoleSuperAdmin, GlobalScope())}
	roles, err := AssignableRolesFor(super, tenantOne)
	if err != nil {
		t.Fatalf("AssignableRolesFor: %v", err)
	}
	if len(roles) != 4 {
		t.Fatalf("SuperAdmin should see all four company roles, got %v", roles)
	}

	manager := ActorContext{grant(RoleManager, CompanyScope(tenantOne))}
	roles, err = AssignableRolesFor(manager, tenantOne)
	if err != nil {
		t.Fatalf("AssignableRolesFor: %v", err)
	}
	if len(roles) != 2 || roles[0] != RoleEmployee || roles[1] != RoleViewer {
		t.Fatalf("Manager assignable set = %v", roles)
	}

	roles, err = AssignableRolesFor(manager, tenantTwo)
	if err != nil {
		t.Fatalf("AssignableRolesFor: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected empty set outside the actor's tenant, got %v", roles)
	}
}

func TestTenantsWhereActorMayAssign(t *testing.T) {
	super := ActorContext{grant(RoleSuperAdmin, GlobalScope())}
	set, err := TenantsWhereActorMayAssign(super)
	if err != nil {
		t.Fatalf("TenantsWhereActorMayAssign: %v", err)
	}
	if !set.All {
		t.Fatalf("SuperAdmin should receive the wildcard tenant set")
	}
	if !set.Contains(tenantThree) {
		t.Fatalf("wildcard set must contain every tenant")
	}

	actor := ActorContext{
		grant(RoleCompanyAdmin, CompanyScope(tenantOne)),
		grant(RoleEmployee, CompanyScope(tenantTwo)),
		grant(RoleCompanyAdmin, CompanyScope(tenantThree)),
	}
	set, err = TenantsWhereActorMayAssign(actor)
	if err != nil {
		t.Fatalf("TenantsWhereActorMayAssign: %v", err)
	}
	if set.All {
		t.Fatalf("non-SuperAdmin received the wildcard set")
	}
	if !set.Contains(tenantOne) || !set.Contains(tenantThree) {
		t.Fatalf("missing admin tenants: %v", set.List())
	}
	if set.Contains(tenantTwo) {
		t.Fatalf("Employee tenant should confer no assignment rights")
	}
}

func TestDenialReasonWithoutRole(t *testing.T) {
	msg := DenialReason(nil, RoleManager, tenantOne)
	if !strings.Contains(msg, "no active role") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(RoleCompanyAdmin); got != "Company Admin" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := DisplayName(RoleViewer); got != "Viewer" {
		t.Fatalf("DisplayName = %q", got)
	}
}

func TestConcurrentDenialsKeepMessagesIntact(t *testing.T) {
	actor := ActorContext{grant(RoleCompanyAdmin, CompanyScope(tenantOne))}
	const want = "Company Admin cannot assign Company Admin: peer admins must be granted by a Super Admin"

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				decision, err := CanAssignRole(actor, RoleCompanyAdmin, CompanyScope(tenantOne))
				if err != nil {
					t.Errorf("CanAssignRole: %v", err)
					return
				}
				if decision.Allowed {
					t.Error("CompanyAdmin granted a peer admin")
					return
				}
				if decision.Message != want {
					t.Errorf("denial message = %q", decision.Message)
					return
				}
				if got := DisplayName(RoleSystemAdmin); got != "System Admin" {
					t.Errorf("DisplayName = %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
