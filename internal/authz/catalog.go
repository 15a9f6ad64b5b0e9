// Package authz implements the role-hierarchy authorization engine: the
// role catalog, permission calculation, grant validation and multi-tenancy
// constraints. Every function is pure and safe for concurrent use; inputs
// are immutable snapshots fetched by the caller.
package authz

import (
	"errors"
	"fmt"
)

// RoleID enumerates the closed set of platform roles. Values outside this
// union are rejected with UnknownRoleError, never coerced.
type RoleID string

const (
	// RoleSuperAdmin is the unrestricted platform operator role.
	RoleSuperAdmin RoleID = "SUPER_ADMIN"
	// RoleSystemAdmin is a platform-wide operations role below SuperAdmin.
	RoleSystemAdmin RoleID = "SYSTEM_ADMIN"
	// RoleCompanyAdmin administers a single company.
	RoleCompanyAdmin RoleID = "COMPANY_ADMIN"
	// RoleManager manages staff within a company.
	RoleManager RoleID = "MANAGER"
	// RoleEmployee is a regular company member.
	RoleEmployee RoleID = "EMPLOYEE"
	// RoleViewer has read-only access within a company.
	RoleViewer RoleID = "VIEWER"
)

// UnknownRoleError reports an identifier outside the closed role union.
type UnknownRoleError struct {
	Role RoleID
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("authz: unknown role %q", string(e.Role))
}

// ErrNotCompanyRole indicates a company-scoped operation received a global role.
var ErrNotCompanyRole = errors.New("authz: role is not company scoped")

var roleLevels = map[RoleID]int{
	RoleSuperAdmin:   100,
	RoleSystemAdmin:  90,
	RoleCompanyAdmin: 50,
	RoleManager:      40,
	RoleEmployee:     30,
	RoleViewer:       20,
}

// assignableRoles maps each company role to the company roles it may grant.
// A role never appears in its own set and every entry sits strictly below
// the granting role's level.
var assignableRoles = map[RoleID][]RoleID{
	RoleCompanyAdmin: {RoleManager, RoleEmployee, RoleViewer},
	RoleManager:      {RoleEmployee, RoleViewer},
	RoleEmployee:     {},
	RoleViewer:       {},
}

// LevelOf returns the privilege level for a role.
func LevelOf(role RoleID) (int, error) {
	level, ok := roleLevels[role]
	if !ok {
		return 0, &UnknownRoleError{Role: role}
	}
	return level, nil
}

// IsGlobalRole reports whether the role applies platform-wide.
func IsGlobalRole(role RoleID) bool {
	return role == RoleSuperAdmin || role == RoleSystemAdmin
}

// IsCompanyRole reports whether the role is scoped to a single company.
func IsCompanyRole(role RoleID) bool {
	_, ok := assignableRoles[role]
	return ok
}

// Roles returns every role in the catalog ordered by descending level.
func Roles() []RoleID {
	return []RoleID{RoleSuperAdmin, RoleSystemAdmin, RoleCompanyAdmin, RoleManager, RoleEmployee, RoleViewer}
}

// CompanyRoles returns the company-scoped roles ordered by descending level.
func CompanyRoles() []RoleID {
	return []RoleID{RoleCompanyAdmin, RoleManager, RoleEmployee, RoleViewer}
}

// AssignableRolesOf returns the company roles a granting company role may
// assign, ordered by descending level. Global roles are rejected with
// ErrNotCompanyRole; SuperAdmin grants are handled by the validator, not
// this table.
func AssignableRolesOf(granting RoleID) ([]RoleID, error) {
	if _, err := LevelOf(granting); err != nil {
		return nil, err
	}
	grants, ok := assignableRoles[granting]
	if !ok {
		return nil, ErrNotCompanyRole
	}
	out := make([]RoleID, len(grants))
	copy(out, grants)
	return out, nil
}

// canGrant reports whether granting appears in the assignable table with
// target as a member. Both roles must already be validated.
func canGrant(granting, target RoleID) bool {
	for _, role := range assignableRoles[granting] {
		if role == target {
			return true
		}
	}
	return false
}
