package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
)

// pgxAuditQueries implements domain.AuditQueries over a pgx transaction.
type pgxAuditQueries struct {
	tx pgx.Tx
}

func (q *pgxAuditQueries) Put(ctx context.Context, at time.Time, owner uuid.UUID, eventType, message string) error {
	_, err := q.tx.Exec(ctx,
		`INSERT INTO audit (time, owner_id, type, message) VALUES ($1, $2, $3, $4)`,
		at, owner, eventType, message)
	if err != nil {
		return storageError("put audit event", err)
	}
	return nil
}

func (q *pgxAuditQueries) Search(ctx context.Context, search domain.AuditSearch) ([]domain.AuditEvent, error) {
	limit := search.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	var (
		rows pgx.Rows
		err  error
	)
	if search.OwnerID != nil {
		rows, err = q.tx.Query(ctx,
			`SELECT id, time, owner_id, type, message FROM audit
			 WHERE time >= $1 AND time <= $2 AND owner_id = $3
			 ORDER BY time LIMIT $4`,
			search.From, search.To, *search.OwnerID, limit)
	} else {
		rows, err = q.tx.Query(ctx,
			`SELECT id, time, owner_id, type, message FROM audit
			 WHERE time >= $1 AND time <= $2
			 ORDER BY time LIMIT $3`,
			search.From, search.To, limit)
	}
	if err != nil {
		return nil, storageError("search audit", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var ev domain.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.Time, &ev.OwnerID, &ev.Type, &ev.Message); err != nil {
			return nil, storageError("scan audit event", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("search audit", err)
	}
	return events, nil
}
