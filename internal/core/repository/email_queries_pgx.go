package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
)

// pgxEmailQueries implements domain.EmailQueries over a pgx transaction.
type pgxEmailQueries struct {
	tx pgx.Tx
}

func (q *pgxEmailQueries) CreateVerification(ctx context.Context, v domain.EmailVerification) error {
	_, err := q.tx.Exec(ctx,
		`INSERT INTO email_verifications (token, user_id, email, operation, expires)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.Token, v.UserID, v.Email, v.Operation, v.Expires)
	if err != nil {
		return storageError("create email verification", err)
	}
	return nil
}

func (q *pgxEmailQueries) GetVerification(ctx context.Context, token string) (*domain.EmailVerification, error) {
	var v domain.EmailVerification
	err := q.tx.QueryRow(ctx,
		`SELECT token, user_id, email, operation, expires
		 FROM email_verifications WHERE token = $1`, token).
		Scan(&v.Token, &v.UserID, &v.Email, &v.Operation, &v.Expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError("get email verification", err)
	}
	return &v, nil
}

func (q *pgxEmailQueries) DeleteVerification(ctx context.Context, token string) error {
	_, err := q.tx.Exec(ctx,
		`DELETE FROM email_verifications WHERE token = $1`, token)
	if err != nil {
		return storageError("delete email verification", err)
	}
	return nil
}

func (q *pgxEmailQueries) CreatePasswordReset(ctx context.Context, r domain.PasswordReset) error {
	_, err := q.tx.Exec(ctx,
		`INSERT INTO password_resets (token, user_id, expires) VALUES ($1, $2, $3)`,
		r.Token, r.UserID, r.Expires)
	if err != nil {
		return storageError("create password reset", err)
	}
	return nil
}

func (q *pgxEmailQueries) GetPasswordReset(ctx context.Context, token string) (*domain.PasswordReset, error) {
	var r domain.PasswordReset
	err := q.tx.QueryRow(ctx,
		`SELECT token, user_id, expires FROM password_resets WHERE token = $1`, token).
		Scan(&r.Token, &r.UserID, &r.Expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError("get password reset", err)
	}
	return &r, nil
}

func (q *pgxEmailQueries) DeletePasswordReset(ctx context.Context, token string) error {
	_, err := q.tx.Exec(ctx, `DELETE FROM password_resets WHERE token = $1`, token)
	if err != nil {
		return storageError("delete password reset", err)
	}
	return nil
}
