package v1

import (
	"time"

	"github.com/google/uuid"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
)

// Command and response types for API version 1. Commands are opaque typed
// values to the execution pipeline; the transport decodes them before the
// executor runs.

type CommandLogin struct {
	UserName string `json:"user_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ResponseLogin struct {
	Session string     `json:"session"`
	User    PublicUser `json:"user"`
}

type CommandLogout struct{}

type ResponseLogout struct{}

type CommandUserSelf struct{}

type ResponseUserSelf struct {
	User           PublicUser `json:"user"`
	DisplayMessage string     `json:"display_message,omitempty"`
}

type CommandEmailAddBegin struct {
	Email string `json:"email" binding:"required"`
}

type ResponseEmailAddBegin struct{}

type CommandEmailAddPermit struct {
	Token string `json:"token" binding:"required"`
}

type ResponseEmailAddPermit struct{}

type CommandEmailAddDeny struct {
	Token string `json:"token" binding:"required"`
}

type ResponseEmailAddDeny struct{}

type CommandEmailRemoveBegin struct {
	Email string `json:"email" binding:"required"`
}

type ResponseEmailRemoveBegin struct{}

type CommandEmailRemovePermit struct {
	Token string `json:"token" binding:"required"`
}

type ResponseEmailRemovePermit struct{}

type CommandEmailRemoveDeny struct {
	Token string `json:"token" binding:"required"`
}

type ResponseEmailRemoveDeny struct{}

type CommandRealNameUpdate struct {
	RealName string `json:"real_name" binding:"required"`
}

type ResponseRealNameUpdate struct {
	User PublicUser `json:"user"`
}

type CommandPasswordUpdate struct {
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

type ResponsePasswordUpdate struct{}

type CommandPasswordResetBegin struct {
	Email string `json:"email" binding:"required"`
}

type ResponsePasswordResetBegin struct{}

type CommandPasswordResetConfirm struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

type ResponsePasswordResetConfirm struct{}

type CommandAdminLogin struct {
	UserName string `json:"user_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ResponseAdminLogin struct {
	Session string      `json:"session"`
	Admin   PublicAdmin `json:"admin"`
}

type CommandAdminUserCreate struct {
	IdName   string `json:"id_name" binding:"required"`
	RealName string `json:"real_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ResponseAdminUserCreate struct {
	User PublicUser `json:"user"`
}

type CommandAdminUserRead struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type ResponseAdminUserRead struct {
	User PublicUser `json:"user"`
}

type CommandAdminUserSearch struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type ResponseAdminUserSearch struct {
	Users []PublicUser `json:"users"`
}

type CommandAdminUserUpdate struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	RealName string    `json:"real_name" binding:"required"`
}

type ResponseAdminUserUpdate struct {
	User PublicUser `json:"user"`
}

type CommandAdminUserDelete struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type ResponseAdminUserDelete struct{}

type CommandAdminUserBanCreate struct {
	UserID  uuid.UUID  `json:"user_id" binding:"required"`
	Reason  string     `json:"reason" binding:"required"`
	Expires *time.Time `json:"expires,omitempty"`
}

type ResponseAdminUserBanCreate struct{}

type CommandAdminUserBanDelete struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type ResponseAdminUserBanDelete struct{}

type CommandAdminEmailAdd struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Email  string    `json:"email" binding:"required"`
}

type ResponseAdminEmailAdd struct {
	User PublicUser `json:"user"`
}

type CommandAdminEmailRemove struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Email  string    `json:"email" binding:"required"`
}

type ResponseAdminEmailRemove struct {
	User PublicUser `json:"user"`
}

type CommandAdminAuditRead struct {
	From    time.Time  `json:"from" binding:"required"`
	To      time.Time  `json:"to" binding:"required"`
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`
	Limit   int        `json:"limit"`
}

type ResponseAdminAuditRead struct {
	Events []AuditEvent `json:"events"`
}

type CommandAdminAdminCreate struct {
	IdName      string   `json:"id_name" binding:"required"`
	RealName    string   `json:"real_name" binding:"required"`
	Email       string   `json:"email" binding:"required"`
	Password    string   `json:"password" binding:"required"`
	Permissions []string `json:"permissions"`
}

type ResponseAdminAdminCreate struct {
	Admin PublicAdmin `json:"admin"`
}

type CommandAdminAdminRead struct {
	AdminID uuid.UUID `json:"admin_id" binding:"required"`
}

type ResponseAdminAdminRead struct {
	Admin PublicAdmin `json:"admin"`
}

type CommandAdminAdminDelete struct {
	AdminID uuid.UUID `json:"admin_id" binding:"required"`
}

type ResponseAdminAdminDelete struct{}

// PublicUser is the externally visible projection of a user account. It
// never carries the password hash.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	IdName    string    `json:"id_name"`
	RealName  string    `json:"real_name"`
	Emails    []string  `json:"emails"`
	Created   time.Time `json:"created"`
	LastLogin time.Time `json:"last_login"`
	Banned    bool      `json:"banned"`
}

// PublicAdmin is the externally visible projection of an admin account.
type PublicAdmin struct {
	ID          uuid.UUID `json:"id"`
	IdName      string    `json:"id_name"`
	RealName    string    `json:"real_name"`
	Email       string    `json:"email"`
	Permissions []string  `json:"permissions"`
}

// AuditEvent is the externally visible projection of an audit record.
type AuditEvent struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"time"`
	OwnerID uuid.UUID `json:"owner_id"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
}

func publicUser(u *domain.User) PublicUser {
	return PublicUser{
		ID:        u.ID,
		IdName:    u.IdName,
		RealName:  u.RealName,
		Emails:    u.Emails,
		Created:   u.Created,
		LastLogin: u.LastLogin,
		Banned:    u.Ban != nil,
	}
}

func publicAdmin(a *domain.Admin) PublicAdmin {
	return PublicAdmin{
		ID:          a.ID,
		IdName:      a.IdName,
		RealName:    a.RealName,
		Email:       a.Email,
		Permissions: a.Permissions,
	}
}
