package auth

// Operator role constants.
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// WriteRoles returns roles that can modify policies.
func WriteRoles() []string {
	return []string{RoleAdmin}
}
