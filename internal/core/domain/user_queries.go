package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ban blocks a user from logging in. A nil Expires means the ban is
// permanent.
type Ban struct {
	Reason  string
	Expires *time.Time
}

// User is a user account record.
type User struct {
	ID           uuid.UUID
	IdName       string
	RealName     string
	Emails       []string
	PasswordHash string
	Created      time.Time
	LastLogin    time.Time
	Ban          *Ban
}

// UserCreate holds the fields needed to create a user account.
type UserCreate struct {
	IdName       string
	RealName     string
	Email        string
	PasswordHash string
}

// UserQueries is the users capability of a transaction. Lookups return
// (nil, nil) when no record matches.
type UserQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByName(ctx context.Context, idName string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	Create(ctx context.Context, create UserCreate) (uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Search(ctx context.Context, query string, limit int) ([]User, error)

	UpdateRealName(ctx context.Context, id uuid.UUID, realName string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	AddEmail(ctx context.Context, id uuid.UUID, email string) error
	RemoveEmail(ctx context.Context, id uuid.UUID, email string) error

	BanCreate(ctx context.Context, id uuid.UUID, ban Ban) error
	BanDelete(ctx context.Context, id uuid.UUID) error
}
