package domain

import "fmt"

// Role partitions the portal's users. Every user has exactly one role and
// the API surface is segregated by it.
type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a role received over the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleProvider, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Scopes returns the coarse permission set implied by the role. Derived,
// never stored.
func (r Role) Scopes() []string {
	switch r {
	case RoleAdmin:
		return []string{"portal.read", "portal.write", "portal.admin"}
	case RoleProvider:
		return []string{"portal.read", "portal.write"}
	case RolePatient:
		return []string{"portal.read"}
	default:
		return nil
	}
}

func (r Role) String() string { return string(r) }
