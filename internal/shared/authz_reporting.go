package shared

// Reporting permissions declared for dashboards and exports.
const (
	PermReportingDashboardView = "reporting.dashboard.view"
	PermReportingExportCSV     = "reporting.export.csv"
	PermReportingExportPDF     = "reporting.export.pdf"
)

// ReportingScopes lists all permissions related to the reporting module.
func ReportingScopes() []string {
	return []string{
		PermReportingDashboardView,
		PermReportingExportCSV,
		PermReportingExportPDF,
	}
}
