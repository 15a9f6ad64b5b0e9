package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName renders a role id as a human-readable label, e.g.
// COMPANY_ADMIN becomes "Company Admin". A Caser carries transform state,
// so each call builds its own to keep concurrent checks race-free.
func DisplayName(role RoleID) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(string(role)), "_", " "))
}

// CanAssignRole decides whether the actor may grant targetRole in scope.
// The check order is fixed: SuperAdmin bypass, global-scope lockout,
// tenant id presence, per-tenant role lookup, assignable-table membership.
// Denials come back as Decision values; only an unknown role identifier is
// an error.
func CanAssignRole(actor ActorContext, targetRole RoleID, scope Scope) (Decision, error) {
	if _, err := LevelOf(targetRole); err != nil {
		return Decision{}, err
	}
	if actor.hasActiveGlobalRole(RoleSuperAdmin) {
		return Allow(), nil
	}
	if scope.Kind == ScopeGlobal {
		return Deny(ReasonGlobalRoleRestricted, "only Super Admin may grant global roles"), nil
	}
	if scope.TenantID == uuid.Nil {
		return Deny(ReasonMissingCompanyContext, "company role grants require a company id"), nil
	}
	actorRole, held, err := highestCompanyRole(actor, scope.TenantID)
	if err != nil {
		return Decision{}, err
	}
	if !held {
		return Deny(ReasonNoRoleInCompany, DenialReason(nil, targetRole, scope.TenantID)), nil
	}
	if canGrant(actorRole, targetRole) {
		return Allow(), nil
	}
	return Deny(ReasonInsufficientPrivilege, DenialReason(&actorRole, targetRole, scope.TenantID)), nil
}

// AssignableRolesFor returns the company roles the actor may currently
// grant in the given tenant. SuperAdmins may grant every company role;
// everyone else is bound to the assignable table of their highest role in
// that tenant, or nothing when they hold no role there.
func AssignableRolesFor(actor ActorContext, tenantID uuid.UUID) ([]RoleID, error) {
	if actor.hasActiveGlobalRole(RoleSuperAdmin) {
		return CompanyRoles(), nil
	}
	if tenantID == uuid.Nil {
		return nil, nil
	}
	actorRole, held, err := highestCompanyRole(actor, tenantID)
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, nil
	}
	return AssignableRolesOf(actorRole)
}

// TenantsWhereActorMayAssign returns the tenants in which the actor can
// grant at least one role. SuperAdmins receive the wildcard set; otherwise
// only tenants where the actor holds CompanyAdmin or Manager count, since
// Employee and Viewer confer no assignment rights.
func TenantsWhereActorMayAssign(actor ActorContext) (TenantSet, error) {
	if actor.hasActiveGlobalRole(RoleSuperAdmin) {
		return TenantSet{All: true}, nil
	}
	ids := make(map[uuid.UUID]struct{})
	for _, assignment := range actor {
		if !assignment.IsActive || assignment.Scope.Kind != ScopeCompany {
			continue
		}
		if _, err := LevelOf(assignment.Role); err != nil {
			return TenantSet{}, err
		}
		if assignment.Role == RoleCompanyAdmin || assignment.Role == RoleManager {
			ids[assignment.Scope.TenantID] = struct{}{}
		}
	}
	return TenantSet{IDs: ids}, nil
}

// DenialReason formats a human-readable explanation for a denied company
// grant. actorRole is nil when the actor holds no role in the tenant. The
// CompanyAdmin-to-CompanyAdmin case is the self-escalation guard: a peer
// grant would create an admin of equal privilege outside the actor's
// control.
func DenialReason(actorRole *RoleID, targetRole RoleID, tenantID uuid.UUID) string {
	if actorRole == nil {
		return fmt.Sprintf("no active role in company %s", tenantID)
	}
	switch *actorRole {
	case RoleEmployee, RoleViewer:
		return fmt.Sprintf("%s has no assignment rights", DisplayName(*actorRole))
	case RoleCompanyAdmin:
		if targetRole == RoleCompanyAdmin {
			return "Company Admin cannot assign Company Admin: peer admins must be granted by a Super Admin"
		}
	}
	return fmt.Sprintf("%s cannot assign %s", DisplayName(*actorRole), DisplayName(targetRole))
}

// highestCompanyRole selects the actor's active company role in the tenant
// with the numerically highest level. Duplicate active roles per tenant are
// not guaranteed impossible upstream, so ties keep the first-encountered
// assignment to stay deterministic.
func highestCompanyRole(actor ActorContext, tenantID uuid.UUID) (RoleID, bool, error) {
	var (
		best      RoleID
		bestLevel int
		held      bool
	)
	for _, assignment := range actor {
		if !assignment.IsActive || assignment.Scope.Kind != ScopeCompany || assignment.Scope.TenantID != tenantID {
			continue
		}
		level, err := LevelOf(assignment.Role)
		if err != nil {
			return "", false, err
		}
		if !held || level > bestLevel {
			best = assignment.Role
			bestLevel = level
			held = true
		}
	}
	return best, held, nil
}
