package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Email verification operations.
const (
	EmailOpAdd    = "EMAIL_ADD"
	EmailOpRemove = "EMAIL_REMOVE"
)

// EmailVerification is a pending email add/remove confirmation. The token is
// the secret mailed to the address being verified.
type EmailVerification struct {
	Token     string
	UserID    uuid.UUID
	Email     string
	Operation string
	Expires   time.Time
}

// PasswordReset is a pending password reset confirmation.
type PasswordReset struct {
	Token   string
	UserID  uuid.UUID
	Expires time.Time
}

// EmailQueries is the verification-token capability of a transaction.
// Lookups return (nil, nil) when no record matches.
type EmailQueries interface {
	CreateVerification(ctx context.Context, v EmailVerification) error
	GetVerification(ctx context.Context, token string) (*EmailVerification, error)
	DeleteVerification(ctx context.Context, token string) error

	CreatePasswordReset(ctx context.Context, r PasswordReset) error
	GetPasswordReset(ctx context.Context, token string) (*PasswordReset, error)
	DeletePasswordReset(ctx context.Context, token string) error
}
