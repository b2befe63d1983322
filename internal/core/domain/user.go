package domain

// Actor roles known to the billing core. User records themselves live in an
// external system; only the role strings matter here.
const (
	RoleSuperAdmin = "super_admin"
	RoleManagement = "management"
	RoleManager    = "manager"
	RoleEmployee   = "employee"
)

// CanCreateInvoices reports whether a role may create invoices.
func CanCreateInvoices(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleManagement, RoleManager:
		return true
	}
	return false
}
