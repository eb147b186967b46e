package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin      = "admin"      // client-side administrator
	RoleManager    = "manager"    // collections team lead
	RoleCollector  = "collector"  // triggers calls, works accounts
	RoleAnalyst    = "analyst"    // read-only reporting access
	RoleSuperAdmin = "super_admin"
	RoleCompliance = "compliance" // hidden role, opt-in only
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleCompliance }
