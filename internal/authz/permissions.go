package authz

import (
	"sort"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// FeatureKey identifies a subscription-plan feature flag.
type FeatureKey string

// LimitKey identifies a subscription-plan numeric limit.
type LimitKey string

const (
	// FeatureReporting unlocks dashboards.
	FeatureReporting FeatureKey = "reporting"
	// FeatureExports unlocks CSV/PDF exports.
	FeatureExports FeatureKey = "exports"
	// FeatureBillingPortal unlocks the billing views.
	FeatureBillingPortal FeatureKey = "billing_portal"

	// LimitSeats caps active company-role holders per tenant.
	LimitSeats LimitKey = "seats"
	// LimitCompanies caps companies under one subscription.
	LimitCompanies LimitKey = "companies"
)

// PlanFeatureSet is the read-only feature/limit snapshot of a tenant's
// subscription, owned by the billing subsystem.
type PlanFeatureSet struct {
	Features map[FeatureKey]bool
	Limits   map[LimitKey]int64
}

// Enabled reports whether the plan has the feature switched on.
func (p *PlanFeatureSet) Enabled(key FeatureKey) bool {
	if p == nil {
		return false
	}
	return p.Features[key]
}

// Limit returns the configured limit and whether it is set.
func (p *PlanFeatureSet) Limit(key LimitKey) (int64, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p.Limits[key]
	return v, ok
}

// PermissionSet is a set of permission identifiers.
type PermissionSet map[string]struct{}

// Has reports membership.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// List returns the permissions in sorted order.
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s))
	for perm := range s {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

// companyRolePermissions holds the role-base permission set per company
// role. Sets are cumulative going up the hierarchy.
var companyRolePermissions = map[RoleID][]string{
	RoleViewer: {
		shared.PermDirectoryCompanyView,
		shared.PermDirectoryEmployeeView,
		shared.PermReportingDashboardView,
	},
	RoleEmployee: {
		shared.PermDirectoryCompanyView,
		shared.PermDirectoryEmployeeView,
		shared.PermDirectoryEmployeeEdit,
		shared.PermReportingDashboardView,
		shared.PermReportingExportCSV,
	},
	RoleManager: {
		shared.PermDirectoryCompanyView,
		shared.PermDirectoryEmployeeView,
		shared.PermDirectoryEmployeeEdit,
		shared.PermReportingDashboardView,
		shared.PermReportingExportCSV,
		shared.PermReportingExportPDF,
		shared.PermUsersView,
		shared.PermRolesView,
		shared.PermRolesAssign,
		shared.PermBillingInvoiceView,
	},
	RoleCompanyAdmin: {
		shared.PermDirectoryCompanyView,
		shared.PermDirectoryCompanyEdit,
		shared.PermDirectoryEmployeeView,
		shared.PermDirectoryEmployeeEdit,
		shared.PermReportingDashboardView,
		shared.PermReportingExportCSV,
		shared.PermReportingExportPDF,
		shared.PermUsersView,
		shared.PermUsersEdit,
		shared.PermRolesView,
		shared.PermRolesAssign,
		shared.PermPermissionsView,
		shared.PermBillingPlanView,
		shared.PermBillingInvoiceView,
		shared.PermBillingInvoiceExport,
	},
}

// permissionFeatureGates maps a permission to the plan feature that must be
// enabled before a company role may exercise it. A permission absent from
// this map is granted unconditionally; that default is deliberate and
// covered by tests.
var permissionFeatureGates = map[string]FeatureKey{
	shared.PermReportingDashboardView: FeatureReporting,
	shared.PermReportingExportCSV:     FeatureExports,
	shared.PermReportingExportPDF:     FeatureExports,
	shared.PermBillingPlanView:        FeatureBillingPortal,
	shared.PermBillingInvoiceView:     FeatureBillingPortal,
	shared.PermBillingInvoiceExport:   FeatureExports,
}

// AllPermissions returns the full platform permission set.
func AllPermissions() PermissionSet {
	set := make(PermissionSet)
	for _, group := range [][]string{
		shared.CoreScopes(),
		shared.DirectoryScopes(),
		shared.BillingScopes(),
		shared.ReportingScopes(),
	} {
		for _, perm := range group {
			set[perm] = struct{}{}
		}
	}
	return set
}

// PermissionsFor derives the concrete permission set for a role. Global
// roles receive the unrestricted set regardless of plan. Company roles get
// their base set intersected with the plan's feature flags; a nil plan
// applies no narrowing.
func PermissionsFor(role RoleID, plan *PlanFeatureSet) (PermissionSet, error) {
	if _, err := LevelOf(role); err != nil {
		return nil, err
	}
	if IsGlobalRole(role) {
		return AllPermissions(), nil
	}
	base := companyRolePermissions[role]
	set := make(PermissionSet, len(base))
	for _, perm := range base {
		if plan != nil {
			if gate, gated := permissionFeatureGates[perm]; gated && !plan.Enabled(gate) {
				continue
			}
		}
		set[perm] = struct{}{}
	}
	return set, nil
}
