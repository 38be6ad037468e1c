package rbac

import (
	"fmt"
	"strings"
)

// Role is the closed set of tenant roles. It is resolved once per request by
// the tenant context middleware and passed through as this type everywhere;
// raw role strings never travel past the resolver.
type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleAdmin      Role = "ADMIN"
	RoleStaff      Role = "STAFF"
	RoleAccountant Role = "ACCOUNTANT"
)

// ParseRole normalizes a stored role value. Unknown or empty values resolve
// to the least-privileged role so inconsistent legacy data fails closed.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	case RoleAccountant:
		return RoleAccountant
	default:
		return RoleStaff
	}
}

// Rank orders roles for comparisons: OWNER > ADMIN > STAFF/ACCOUNTANT.
func Rank(r Role) int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	default:
		return 1
	}
}

// Operation identifies a guarded mutation or read.
type Operation string

const (
	OpCRMRead   Operation = "crm.read"
	OpCRMCreate Operation = "crm.create"
	OpCRMUpdate Operation = "crm.update"
	OpCRMDelete Operation = "crm.delete"
	OpMemberAdd Operation = "member.add"
)

// allowedRoles is the policy table for operations that depend only on the
// actor's role. Membership removal needs the target's role too and is
// handled by AllowMemberRemoval.
var allowedRoles = map[Operation][]Role{
	OpCRMRead:   {RoleOwner, RoleAdmin, RoleStaff, RoleAccountant},
	OpCRMCreate: {RoleOwner, RoleAdmin, RoleAccountant},
	OpCRMUpdate: {RoleOwner, RoleAdmin, RoleStaff, RoleAccountant},
	OpCRMDelete: {RoleOwner, RoleAdmin},
	OpMemberAdd: {RoleOwner, RoleAdmin},
}

// Allow reports whether the role may perform the operation, with a
// human-readable reason on denial. It is a total function with no side
// effects; unknown operations are denied.
func Allow(role Role, op Operation) (bool, string) {
	roles, ok := allowedRoles[op]
	if !ok {
		return false, fmt.Sprintf("Permission denied. Unknown operation %q.", op)
	}
	for _, r := range roles {
		if r == role {
			return true, ""
		}
	}
	return false, fmt.Sprintf("Permission denied. Role %s may not perform %s.", role, op)
}

// AllowMemberRemoval decides whether actor may remove a membership held by
// target. A member may never remove their own membership. ADMIN may remove
// STAFF and ACCOUNTANT members but not OWNER or ADMIN members; OWNER may
// remove anyone but themselves.
func AllowMemberRemoval(actor, target Role, self bool) (bool, string) {
	if self {
		return false, "Permission denied. You cannot remove your own membership."
	}
	switch actor {
	case RoleOwner:
		return true, ""
	case RoleAdmin:
		if target == RoleOwner || target == RoleAdmin {
			return false, fmt.Sprintf("Permission denied. ADMIN may not remove a %s member.", target)
		}
		return true, ""
	default:
		return false, fmt.Sprintf("Permission denied. Role %s may not remove members.", actor)
	}
}
