package authz

import (
	"fmt"

	"github.com/google/uuid"
)

// CanHaveMultiCompanyRole decides whether granting newRole in tenantID is
// compatible with the target user's existing role footprint. Employee and
// Viewer are single-tenant by design; CompanyAdmin may span tenants as
// CompanyAdmin or Manager; Manager may span only as Manager.
func CanHaveMultiCompanyRole(existing []RoleAssignment, newRole RoleID, tenantID uuid.UUID) (Decision, error) {
	if _, err := LevelOf(newRole); err != nil {
		return Decision{}, err
	}
	if !IsCompanyRole(newRole) {
		return Decision{}, ErrNotCompanyRole
	}
	if tenantID == uuid.Nil {
		return Deny(ReasonMissingCompanyContext, "company role grants require a company id"), nil
	}

	active := activeCompanyAssignments(existing)
	if len(active) == 0 {
		return Allow(), nil
	}
	for _, assignment := range active {
		if _, err := LevelOf(assignment.Role); err != nil {
			return Decision{}, err
		}
		if assignment.Scope.TenantID == tenantID {
			return Deny(ReasonDuplicateRoleInTenant,
				fmt.Sprintf("user already holds %s in company %s; revoke it before assigning a new role", DisplayName(assignment.Role), tenantID)), nil
		}
	}

	// The first active assignment anchors the footprint class.
	anchor := active[0].Role
	switch anchor {
	case RoleEmployee, RoleViewer:
		return Deny(ReasonSingleTenancyViolation,
			fmt.Sprintf("%s is a single-tenant role; revoke it before assigning roles in another company", DisplayName(anchor))), nil
	case RoleCompanyAdmin:
		if newRole == RoleCompanyAdmin || newRole == RoleManager {
			return Allow(), nil
		}
	case RoleManager:
		if newRole == RoleManager {
			return Allow(), nil
		}
	}
	return Deny(ReasonTenancySpanIncompatible,
		fmt.Sprintf("%s holders cannot take %s in another company", DisplayName(anchor), DisplayName(newRole))), nil
}

// FootprintViolation describes one breach of the tenancy invariant found in
// a user's stored assignments.
type FootprintViolation struct {
	Code    ReasonCode
	Message string
}

// AuditFootprint inspects a user's assignments for states the grant-time
// checks should have prevented: more than one active role per tenant,
// single-tenant roles held alongside anything else, and spans containing
// roles outside the CompanyAdmin/Manager class.
func AuditFootprint(existing []RoleAssignment) ([]FootprintViolation, error) {
	active := activeCompanyAssignments(existing)
	if len(active) <= 1 {
		return nil, nil
	}

	var violations []FootprintViolation
	byTenant := make(map[uuid.UUID]int, len(active))
	singleTenantRoles := 0
	for _, assignment := range active {
		if _, err := LevelOf(assignment.Role); err != nil {
			return nil, err
		}
		byTenant[assignment.Scope.TenantID]++
		if assignment.Role == RoleEmployee || assignment.Role == RoleViewer {
			singleTenantRoles++
		}
	}
	for tenantID, count := range byTenant {
		if count > 1 {
			violations = append(violations, FootprintViolation{
				Code:    ReasonDuplicateRoleInTenant,
				Message: fmt.Sprintf("%d active roles in company %s", count, tenantID),
			})
		}
	}
	if singleTenantRoles > 0 {
		violations = append(violations, FootprintViolation{
			Code:    ReasonSingleTenancyViolation,
			Message: "single-tenant role held alongside other active assignments",
		})
	} else {
		for _, assignment := range active {
			if assignment.Role != RoleCompanyAdmin && assignment.Role != RoleManager {
				violations = append(violations, FootprintViolation{
					Code:    ReasonTenancySpanIncompatible,
					Message: fmt.Sprintf("%s is not a multi-tenant capable role", DisplayName(assignment.Role)),
				})
			}
		}
	}
	return violations, nil
}

func activeCompanyAssignments(assignments []RoleAssignment) []RoleAssignment {
	active := make([]RoleAssignment, 0, len(assignments))
	for _, assignment := range assignments {
		if assignment.IsActive && assignment.Scope.Kind == ScopeCompany {
			active = append(active, assignment)
		}
	}
	return active
}
