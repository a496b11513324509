// Package policy decides whether a principal may perform an operation.
//
// The engine is a pure function of the Action it is given: no I/O, no mutable
// state, safe for concurrent use without synchronization. Authorization fails
// closed: an action with no matching rule is denied, never an error.
package policy

import "fmt"

// Result is the outcome of a policy check: permitted, or denied with a
// human-readable reason. There are no partial or conditional results.
type Result struct {
	permitted bool
	reason    string
}

// Permitted returns an affirmative result.
func Permitted() Result {
	return Result{permitted: true}
}

// Denied returns a negative result with the given reason.
func Denied(reason string) Result {
	return Result{reason: reason}
}

// IsPermitted reports whether the action may proceed.
func (r Result) IsPermitted() bool {
	return r.permitted
}

// Reason returns the denial reason, empty when permitted.
func (r Result) Reason() string {
	return r.reason
}

// Engine decides whether an action may proceed. Implementations must be
// total: every Action variant maps to exactly one Result.
type Engine interface {
	Check(action Action) Result
}

// Default is the standard policy: administrator actions require membership of
// the relevant permission, and user self-service actions are permitted
// unconditionally since authentication already established identity and the
// operation only affects the caller's own resources.
type Default struct{}

// NewDefault creates the default policy engine.
func NewDefault() *Default {
	return &Default{}
}

// Check implements Engine.
func (*Default) Check(action Action) Result {
	switch a := action.(type) {
	case AdminActionAdminCreate:
		return requirePermission(a.Admin, PermAdminCreate)
	case AdminActionAdminDelete:
		return requirePermission(a.Admin, PermAdminDelete)
	case AdminActionAdminRead:
		return requirePermission(a.Admin, PermAdminRead)
	case AdminActionAuditRead:
		return requirePermission(a.Admin, PermAuditRead)
	case AdminActionUserCreate:
		return requirePermission(a.Admin, PermUserCreate)
	case AdminActionUserDelete:
		return requirePermission(a.Admin, PermUserDelete)
	case AdminActionUserRead:
		return requirePermission(a.Admin, PermUserRead)
	case AdminActionUserUpdate:
		return requirePermission(a.Admin, PermUserWrite)
	case AdminActionUserBanCreate:
		return requirePermission(a.Admin, PermUserBan)
	case AdminActionUserBanDelete:
		return requirePermission(a.Admin, PermUserBan)
	case AdminActionUserEmailAdd:
		return requirePermission(a.Admin, PermEmailWrite)
	case AdminActionUserEmailRemove:
		return requirePermission(a.Admin, PermEmailWrite)

	case UserActionEmailAddBegin,
		UserActionEmailAddPermit,
		UserActionEmailAddDeny,
		UserActionEmailRemoveBegin,
		UserActionEmailRemovePermit,
		UserActionEmailRemoveDeny,
		UserActionPasswordUpdate,
		UserActionRealNameUpdate,
		UserActionSelf:
		return Permitted()

	default:
		// Fail closed for any variant without a rule.
		return Denied("operation not permitted")
	}
}

func requirePermission(admin Admin, p Permission) Result {
	if admin.Permissions.Implies(p) {
		return Permitted()
	}
	return Denied(fmt.Sprintf("the %s permission is required", p))
}
