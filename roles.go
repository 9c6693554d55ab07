package auth

// Role is the user's role
type Role string

const (
	// RoleAdmin is satisfied only by admin claims
	RoleAdmin Role = "admin"
	// RoleUser is satisfied by non-admin claims. Admins need RoleAdmin listed
	// alongside it
	RoleUser Role = "user"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// SatisfiedBy reports whether claim holds this role
func (r Role) SatisfiedBy(claim *IdentityClaim) bool {
	if claim == nil {
		return false
	}
	switch r {
	case RoleAdmin:
		return claim.IsAdmin
	case RoleUser:
		return !claim.IsAdmin
	default:
		return false
	}
}

// HasAnyRole is true when roles is empty or claim satisfies at least one
func HasAnyRole(claim *IdentityClaim, roles ...Role) bool {
	if claim == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if role.SatisfiedBy(claim) {
			return true
		}
	}
	return false
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
