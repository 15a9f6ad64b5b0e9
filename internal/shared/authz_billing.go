package shared

// Billing permissions declared for subscription and invoice views.
const (
	PermBillingPlanView      = "billing.plan.view"
	PermBillingInvoiceView   = "billing.invoice.view"
	PermBillingInvoiceExport = "billing.invoice.export"
)

// BillingScopes lists all permissions related to the billing module.
func BillingScopes() []string {
	return []string{
		PermBillingPlanView,
		PermBillingInvoiceView,
		PermBillingInvoiceExport,
	}
}
