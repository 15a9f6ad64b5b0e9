package authz

import (
	"time"

	"github.com/google/uuid"
)

// ScopeKind distinguishes platform-wide assignments from company ones.
type ScopeKind string

const (
	// ScopeGlobal marks an assignment that applies across all tenants.
	ScopeGlobal ScopeKind = "GLOBAL"
	// ScopeCompany marks an assignment bound to a single tenant.
	ScopeCompany ScopeKind = "COMPANY"
)

// Scope locates a role assignment. TenantID is uuid.Nil for global scope.
type Scope struct {
	Kind     ScopeKind
	TenantID uuid.UUID
}

// GlobalScope returns the platform-wide scope.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// CompanyScope returns a scope bound to the given tenant.
func CompanyScope(tenantID uuid.UUID) Scope {
	return Scope{Kind: ScopeCompany, TenantID: tenantID}
}

// RoleAssignment is an immutable snapshot of one role held by a user. The
// engine only reads these; persistence belongs to the caller.
type RoleAssignment struct {
	Scope     Scope
	Role      RoleID
	IsActive  bool
	GrantedAt time.Time
	GrantedBy int64
}

// ActorContext is the full set of assignments held by the acting user,
// assembled per authorization check.
type ActorContext []RoleAssignment

// ReasonCode identifies a denial cause in a machine-matchable way so the
// calling layer can localize messages.
type ReasonCode string

const (
	// ReasonGlobalRoleRestricted denies global grants by non-SuperAdmins.
	ReasonGlobalRoleRestricted ReasonCode = "GLOBAL_ROLE_RESTRICTED"
	// ReasonMissingCompanyContext denies company operations without a tenant id.
	ReasonMissingCompanyContext ReasonCode = "MISSING_COMPANY_CONTEXT"
	// ReasonNoRoleInCompany denies actors holding no active role in the tenant.
	ReasonNoRoleInCompany ReasonCode = "NO_ROLE_IN_COMPANY"
	// ReasonInsufficientPrivilege denies grants outside the actor's assignable set.
	ReasonInsufficientPrivilege ReasonCode = "INSUFFICIENT_PRIVILEGE"
	// ReasonDuplicateRoleInTenant denies a second active role in one tenant.
	ReasonDuplicateRoleInTenant ReasonCode = "DUPLICATE_ROLE_IN_TENANT"
	// ReasonSingleTenancyViolation denies spreading a single-tenant role.
	ReasonSingleTenancyViolation ReasonCode = "SINGLE_TENANCY_VIOLATION"
	// ReasonTenancySpanIncompatible denies incompatible multi-tenant footprints.
	ReasonTenancySpanIncompatible ReasonCode = "TENANCY_SPAN_INCOMPATIBLE"
)

// Decision is the outcome of a validation check. Denials are values, not
// errors; Reason and Message are empty on allow.
type Decision struct {
	Allowed bool
	Reason  ReasonCode
	Message string
}

// Allow returns a positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a negative decision with its reason code and message.
func Deny(reason ReasonCode, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// TenantSet enumerates tenant ids, or all of them when All is set.
type TenantSet struct {
	All bool
	IDs map[uuid.UUID]struct{}
}

// Contains reports whether the set covers the given tenant.
func (s TenantSet) Contains(id uuid.UUID) bool {
	if s.All {
		return true
	}
	_, ok := s.IDs[id]
	return ok
}

// List returns the enumerated tenant ids. Empty when All is set.
func (s TenantSet) List() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.IDs))
	for id := range s.IDs {
		out = append(out, id)
	}
	return out
}

// hasActiveGlobalRole reports whether the actor holds the given global role
// in an active assignment.
func (a ActorContext) hasActiveGlobalRole(role RoleID) bool {
	for _, assignment := range a {
		if assignment.IsActive && assignment.Scope.Kind == ScopeGlobal && assignment.Role == role {
			return true
		}
	}
	return false
}

// ActiveGlobalRole returns the highest-level active global role held.
func (a ActorContext) ActiveGlobalRole() (RoleID, bool) {
	var (
		best      RoleID
		bestLevel int
		held      bool
	)
	for _, assignment := range a {
		if !assignment.IsActive || assignment.Scope.Kind != ScopeGlobal {
			continue
		}
		level, ok := roleLevels[assignment.Role]
		if !ok {
			continue
		}
		if !held || level > bestLevel {
			best = assignment.Role
			bestLevel = level
			held = true
		}
	}
	return best, held
}

// HighestRoleIn returns the actor's highest active company role in the
// given tenant.
func (a ActorContext) HighestRoleIn(tenantID uuid.UUID) (RoleID, bool, error) {
	return highestCompanyRole(a, tenantID)
}
