package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
)

// pgxUserQueries implements domain.UserQueries over a pgx transaction.
type pgxUserQueries struct {
	tx pgx.Tx
}

const userColumns = `
	u.id, u.id_name, u.real_name, u.password_hash, u.created, u.last_login,
	b.reason, b.expires
`

const userFrom = `
	FROM users u
	LEFT JOIN user_bans b ON b.user_id = u.id
`

func (q *pgxUserQueries) getBy(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + userFrom + ` WHERE ` + where

	var (
		user       domain.User
		banReason  *string
		banExpires *time.Time
	)
	err := q.tx.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.IdName, &user.RealName, &user.PasswordHash,
		&user.Created, &user.LastLogin, &banReason, &banExpires,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError("get user", err)
	}

	if banReason != nil {
		user.Ban = &domain.Ban{Reason: *banReason, Expires: banExpires}
	}

	emails, err := q.emailsOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Emails = emails
	return &user, nil
}

func (q *pgxUserQueries) emailsOf(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := q.tx.Query(ctx,
		`SELECT email FROM user_emails WHERE user_id = $1 ORDER BY email`, id)
	if err != nil {
		return nil, storageError("list user emails", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, storageError("scan user email", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list user emails", err)
	}
	return emails, nil
}

func (q *pgxUserQueries) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return q.getBy(ctx, "u.id = $1", id)
}

func (q *pgxUserQueries) GetByName(ctx context.Context, idName string) (*domain.User, error) {
	return q.getBy(ctx, "u.id_name = $1", idName)
}

func (q *pgxUserQueries) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return q.getBy(ctx,
		"u.id = (SELECT user_id FROM user_emails WHERE email = $1)", email)
}

func (q *pgxUserQueries) Create(ctx context.Context, create domain.UserCreate) (uuid.UUID, error) {
	id := uuid.New()
	_, err := q.tx.Exec(ctx,
		`INSERT INTO users (id, id_name, real_name, password_hash, created, last_login)
		 VALUES ($1, $2, $3, $4, now(), now())`,
		id, create.IdName, create.RealName, create.PasswordHash)
	if err != nil {
		return uuid.Nil, storageError("create user", err)
	}

	_, err = q.tx.Exec(ctx,
		`INSERT INTO user_emails (user_id, email) VALUES ($1, $2)`,
		id, create.Email)
	if err != nil {
		return uuid.Nil, storageError("create user email", err)
	}
	return id, nil
}

func (q *pgxUserQueries) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := q.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return storageError("delete user", err)
	}
	return nil
}

func (q *pgxUserQueries) Search(ctx context.Context, query string, limit int) ([]domain.User, error) {
	rows, err := q.tx.Query(ctx,
		`SELECT `+userColumns+userFrom+`
		 WHERE u.id_name ILIKE '%' || $1 || '%'
		    OR u.real_name ILIKE '%' || $1 || '%'
		 ORDER BY u.id_name
		 LIMIT $2`,
		query, limit)
	if err != nil {
		return nil, storageError("search users", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			user       domain.User
			banReason  *string
			banExpires *time.Time
		)
		err := rows.Scan(
			&user.ID, &user.IdName, &user.RealName, &user.PasswordHash,
			&user.Created, &user.LastLogin, &banReason, &banExpires,
		)
		if err != nil {
			return nil, storageError("scan user", err)
		}
		if banReason != nil {
			user.Ban = &domain.Ban{Reason: *banReason, Expires: banExpires}
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("search users", err)
	}

	for i := range users {
		emails, err := q.emailsOf(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Emails = emails
	}
	return users, nil
}

func (q *pgxUserQueries) UpdateRealName(ctx context.Context, id uuid.UUID, realName string) error {
	_, err := q.tx.Exec(ctx,
		`UPDATE users SET real_name = $2 WHERE id = $1`, id, realName)
	if err != nil {
		return storageError("update real name", err)
	}
	return nil
}

func (q *pgxUserQueries) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := q.tx.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return storageError("update password", err)
	}
	return nil
}

func (q *pgxUserQueries) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.tx.Exec(ctx,
		`UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return storageError("update last login", err)
	}
	return nil
}

func (q *pgxUserQueries) AddEmail(ctx context.Context, id uuid.UUID, email string) error {
	_, err := q.tx.Exec(ctx,
		`INSERT INTO user_emails (user_id, email) VALUES ($1, $2)`, id, email)
	if err != nil {
		return storageError("add email", err)
	}
	return nil
}

func (q *pgxUserQueries) RemoveEmail(ctx context.Context, id uuid.UUID, email string) error {
	_, err := q.tx.Exec(ctx,
		`DELETE FROM user_emails WHERE user_id = $1 AND email = $2`, id, email)
	if err != nil {
		return storageError("remove email", err)
	}
	return nil
}

func (q *pgxUserQueries) BanCreate(ctx context.Context, id uuid.UUID, ban domain.Ban) error {
	_, err := q.tx.Exec(ctx,
		`INSERT INTO user_bans (user_id, reason, expires) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET reason = $2, expires = $3`,
		id, ban.Reason, ban.Expires)
	if err != nil {
		return storageError("create ban", err)
	}
	return nil
}

func (q *pgxUserQueries) BanDelete(ctx context.Context, id uuid.UUID) error {
	_, err := q.tx.Exec(ctx, `DELETE FROM user_bans WHERE user_id = $1`, id)
	if err != nil {
		return storageError("delete ban", err)
	}
	return nil
}
