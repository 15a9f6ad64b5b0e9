package shared

// Directory permissions declared for company and employee records.
const (
	PermDirectoryCompanyView  = "directory.company.view"
	PermDirectoryCompanyEdit  = "directory.company.edit"
	PermDirectoryEmployeeView = "directory.employee.view"
	PermDirectoryEmployeeEdit = "directory.employee.edit"
)

// DirectoryScopes lists all permissions related to the directory module.
func DirectoryScopes() []string {
	return []string{
		PermDirectoryCompanyView,
		PermDirectoryCompanyEdit,
		PermDirectoryEmployeeView,
		PermDirectoryEmployeeEdit,
	}
}
