package authz

import "slices"

// Principal is the authenticated caller as seen by the policy: an opaque
// identity plus the role names carried in its access token.
type Principal struct {
	ID    string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

const AdminRole = "Admin"

// Operation classifies what a request wants to do with a resource.
// The *Own kinds are scoped to resources the caller owns; the *Any kinds
// and AdminOnly are reserved for administrators.
type Operation int

const (
	ReadOwn Operation = iota
	ReadAny
	WriteOwn
	WriteAny
	DeleteOwn
	DeleteAny
	AdminOnly
)

func (op Operation) String() string {
	switch op {
	case ReadOwn:
		return "read-own"
	case ReadAny:
		return "read-any"
	case WriteOwn:
		return "write-own"
	case WriteAny:
		return "write-any"
	case DeleteOwn:
		return "delete-own"
	case DeleteAny:
		return "delete-any"
	case AdminOnly:
		return "admin-only"
	default:
		return "unknown"
	}
}

type Decision int

const (
	Deny Decision = iota
	Allow
)

// Authorize decides whether principal p may perform op on a resource owned
// by resourceOwnerID. An empty owner id stands for a create or collection
// scope where ownership is implied to be the principal itself.
//
// Admins may do anything. Everyone else is limited to the *Own operations,
// and only against their own resources. Pure decision, no I/O; callers map
// a Deny on an existing resource to 404, never 403, so a lookup cannot be
// used to probe which ids exist.
func Authorize(p Principal, op Operation, resourceOwnerID string) Decision {
	if p.HasRole(AdminRole) {
		return Allow
	}

	switch op {
	case ReadOwn, WriteOwn, DeleteOwn:
		if resourceOwnerID == "" || resourceOwnerID == p.ID {
			return Allow
		}
	}

	return Deny
}
