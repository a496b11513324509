package policy

import "github.com/google/uuid"

// Admin identifies an acting administrator for authorization purposes. It
// carries exactly the data needed to decide: who is acting, and what they
// hold. Actions are transient and never persisted.
type Admin struct {
	ID          uuid.UUID
	Permissions PermissionSet
}

// User identifies an acting end user for authorization purposes.
type User struct {
	ID uuid.UUID
}

// Action is the closed union of authorizable operations. Each variant carries
// the acting principal; the engine dispatches exhaustively on the variant.
type Action interface {
	isAction()
}

// Administrative actions.

type AdminActionAdminCreate struct{ Admin Admin }
type AdminActionAdminDelete struct{ Admin Admin }
type AdminActionAdminRead struct{ Admin Admin }
type AdminActionAuditRead struct{ Admin Admin }
type AdminActionUserCreate struct{ Admin Admin }
type AdminActionUserDelete struct{ Admin Admin }
type AdminActionUserRead struct{ Admin Admin }
type AdminActionUserUpdate struct{ Admin Admin }
type AdminActionUserBanCreate struct{ Admin Admin }
type AdminActionUserBanDelete struct{ Admin Admin }
type AdminActionUserEmailAdd struct{ Admin Admin }
type AdminActionUserEmailRemove struct{ Admin Admin }

func (AdminActionAdminCreate) isAction()     {}
func (AdminActionAdminDelete) isAction()     {}
func (AdminActionAdminRead) isAction()       {}
func (AdminActionAuditRead) isAction()       {}
func (AdminActionUserCreate) isAction()      {}
func (AdminActionUserDelete) isAction()      {}
func (AdminActionUserRead) isAction()        {}
func (AdminActionUserUpdate) isAction()      {}
func (AdminActionUserBanCreate) isAction()   {}
func (AdminActionUserBanDelete) isAction()   {}
func (AdminActionUserEmailAdd) isAction()    {}
func (AdminActionUserEmailRemove) isAction() {}

// User self-service actions.

type UserActionEmailAddBegin struct{ User User }
type UserActionEmailAddPermit struct{ User User }
type UserActionEmailAddDeny struct{ User User }
type UserActionEmailRemoveBegin struct{ User User }
type UserActionEmailRemovePermit struct{ User User }
type UserActionEmailRemoveDeny struct{ User User }
type UserActionPasswordUpdate struct{ User User }
type UserActionRealNameUpdate struct{ User User }
type UserActionSelf struct{ User User }

func (UserActionEmailAddBegin) isAction()     {}
func (UserActionEmailAddPermit) isAction()    {}
func (UserActionEmailAddDeny) isAction()      {}
func (UserActionEmailRemoveBegin) isAction()  {}
func (UserActionEmailRemovePermit) isAction() {}
func (UserActionEmailRemoveDeny) isAction()   {}
func (UserActionPasswordUpdate) isAction()    {}
func (UserActionRealNameUpdate) isAction()    {}
func (UserActionSelf) isAction()              {}
