package enums

import "fmt"

// Role is the account-level permission role. The set is closed.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleMember   Role = "member"
	RoleMerchant Role = "merchant"
)

var validRoles = []Role{
	RoleAdmin,
	RoleMember,
	RoleMerchant,
}

// AllRoles returns every known role.
func AllRoles() []Role {
	out := make([]Role, len(validRoles))
	copy(out, validRoles)
	return out
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsAllowed reports whether role is a member of allowed. Unknown roles are
// never allowed, even when the set is empty.
func IsAllowed(role Role, allowed []Role) bool {
	if !role.IsValid() {
		return false
	}
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
