package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Admin is an administrator account record. Permissions holds the granted
// permission names; expansion of implied permissions happens at session
// resolution, not here.
type Admin struct {
	ID           uuid.UUID
	IdName       string
	RealName     string
	Email        string
	PasswordHash string
	Permissions  []string
	Created      time.Time
	LastLogin    time.Time
}

// AdminCreate holds the fields needed to create an administrator.
type AdminCreate struct {
	IdName       string
	RealName     string
	Email        string
	PasswordHash string
	Permissions  []string
}

// AdminQueries is the admins capability of a transaction. Lookups return
// (nil, nil) when no record matches.
type AdminQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	GetByName(ctx context.Context, idName string) (*Admin, error)

	Create(ctx context.Context, create AdminCreate) (uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error

	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}
