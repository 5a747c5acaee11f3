// Package rbac implements the viewer < operator < admin role hierarchy.
package rbac

import (
	"fmt"
	"strings"
)

// Role is one of the ordered access tiers.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Roles lists every role from lowest to highest rank.
func Roles() []Role {
	return []Role{RoleViewer, RoleOperator, RoleAdmin}
}

// Rank returns the position of the role in the hierarchy, or -1 for unknown roles.
func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 0
	case RoleOperator:
		return 1
	case RoleAdmin:
		return 2
	default:
		return -1
	}
}

// Valid reports whether the role is part of the hierarchy.
func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// ParseRole normalises raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("rbac: unknown role %q", raw)
	}
	return role, nil
}

// Principal describes the authenticated actor.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

// Authenticated reports whether the principal carries an identity and a known role.
func (p Principal) Authenticated() bool {
	return p.UserID > 0 && p.Username != "" && p.Role.Valid()
}

// Can reports whether the principal may act at the given role level.
func (p Principal) Can(required Role) bool {
	return Authorize(p, required) == Allowed
}

// Decision is the outcome of an authorization check.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Authorize compares the principal's rank with the required rank.
func Authorize(p Principal, required Role) Decision {
	if !p.Authenticated() || !required.Valid() {
		return Denied
	}
	if p.Role.Rank() >= required.Rank() {
		return Allowed
	}
	return Denied
}

func (r Role) String() string { return string(r) }
