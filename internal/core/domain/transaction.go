package domain

import "context"

// Role selects the database privilege level a transaction runs under.
type Role int

const (
	// RoleNone is for unauthenticated flows (login, password reset).
	RoleNone Role = iota
	// RoleUser is for end-user self-service operations.
	RoleUser
	// RoleAdmin is for administrative operations.
	RoleAdmin
)

// Transaction is one database transaction, exclusively owned by the request
// that opened it. Handlers read and write only through its typed query
// capabilities; commit and rollback belong to the transport layer that drives
// the request.
type Transaction interface {
	Users() UserQueries
	Admins() AdminQueries
	Emails() EmailQueries
	Audit() AuditQueries

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
