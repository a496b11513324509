package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
)

// pgxAdminQueries implements domain.AdminQueries over a pgx transaction.
type pgxAdminQueries struct {
	tx pgx.Tx
}

const adminColumns = `
	id, id_name, real_name, email, password_hash, permissions, created, last_login
`

func (q *pgxAdminQueries) getBy(ctx context.Context, where string, arg any) (*domain.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE ` + where

	var admin domain.Admin
	err := q.tx.QueryRow(ctx, query, arg).Scan(
		&admin.ID, &admin.IdName, &admin.RealName, &admin.Email,
		&admin.PasswordHash, &admin.Permissions, &admin.Created, &admin.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError("get admin", err)
	}
	return &admin, nil
}

func (q *pgxAdminQueries) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	return q.getBy(ctx, "id = $1", id)
}

func (q *pgxAdminQueries) GetByName(ctx context.Context, idName string) (*domain.Admin, error) {
	return q.getBy(ctx, "id_name = $1", idName)
}

func (q *pgxAdminQueries) Create(ctx context.Context, create domain.AdminCreate) (uuid.UUID, error) {
	id := uuid.New()
	_, err := q.tx.Exec(ctx,
		`INSERT INTO admins
		   (id, id_name, real_name, email, password_hash, permissions, created, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		id, create.IdName, create.RealName, create.Email,
		create.PasswordHash, create.Permissions)
	if err != nil {
		return uuid.Nil, storageError("create admin", err)
	}
	return id, nil
}

func (q *pgxAdminQueries) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := q.tx.Exec(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return storageError("delete admin", err)
	}
	return nil
}

func (q *pgxAdminQueries) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.tx.Exec(ctx,
		`UPDATE admins SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return storageError("update admin last login", err)
	}
	return nil
}
