package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one record in the append-only audit log.
type AuditEvent struct {
	ID      int64
	Time    time.Time
	OwnerID uuid.UUID
	Type    string
	Message string
}

// AuditSearch selects audit events by time range and optional owner.
type AuditSearch struct {
	From    time.Time
	To      time.Time
	OwnerID *uuid.UUID
	Limit   int
}

// AuditQueries is the audit-log capability of a transaction.
type AuditQueries interface {
	Put(ctx context.Context, at time.Time, owner uuid.UUID, eventType, message string) error
	Search(ctx context.Context, search AuditSearch) ([]AuditEvent, error)
}
