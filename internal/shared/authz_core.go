package shared

// Core platform permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView   = "roles.view"
	PermRolesAssign = "roles.assign"

	PermPermissionsView = "permissions.view"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesAssign,
		PermPermissionsView,
	}
}
