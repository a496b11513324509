// Package repository implements the transaction query capabilities over pgx.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
	"github.com/io7m-com/idstore-sub007/internal/errs"
)

// roleNames maps privilege roles onto database roles created by the schema.
var roleNames = map[domain.Role]string{
	domain.RoleNone:  "idstore_none",
	domain.RoleUser:  "idstore_user",
	domain.RoleAdmin: "idstore_admin",
}

// PgxTransaction implements domain.Transaction over a pgx transaction.
type PgxTransaction struct {
	tx   pgx.Tx
	role domain.Role
}

// Begin opens a transaction on the pool and switches to the database role
// matching the requested privilege level.
func Begin(ctx context.Context, pool *pgxpool.Pool, role domain.Role) (*PgxTransaction, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, storageError("begin transaction", err)
	}

	if name, ok := roleNames[role]; ok {
		if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+name); err != nil {
			_ = tx.Rollback(ctx)
			return nil, storageError("set role", err)
		}
	}

	return &PgxTransaction{tx: tx, role: role}, nil
}

// Users returns the users capability.
func (t *PgxTransaction) Users() domain.UserQueries {
	return &pgxUserQueries{tx: t.tx}
}

// Admins returns the admins capability.
func (t *PgxTransaction) Admins() domain.AdminQueries {
	return &pgxAdminQueries{tx: t.tx}
}

// Emails returns the verification-token capability.
func (t *PgxTransaction) Emails() domain.EmailQueries {
	return &pgxEmailQueries{tx: t.tx}
}

// Audit returns the audit-log capability.
func (t *PgxTransaction) Audit() domain.AuditQueries {
	return &pgxAuditQueries{tx: t.tx}
}

// Commit commits the transaction.
func (t *PgxTransaction) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return storageError("commit", err)
	}
	return nil
}

// Rollback rolls the transaction back. Rolling back an already-finished
// transaction is a no-op.
func (t *PgxTransaction) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return storageError("rollback", err)
	}
	return nil
}

// storageError converts a pgx error into a typed StorageError with a stable
// code and diagnostic attributes. SQL text never enters the attribute map.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}

	code := errs.CodeSQLError
	attrs := map[string]string{"operation": op}
	remediation := "Retry the operation later."

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			code = errs.CodeSQLUnique
			remediation = "Use a value that is not already in use."
		case "23503":
			code = errs.CodeSQLForeignKey
			remediation = "Ensure the referenced record exists."
		}
		if pgErr.ConstraintName != "" {
			attrs["constraint"] = pgErr.ConstraintName
		}
		if pgErr.TableName != "" {
			attrs["table"] = pgErr.TableName
		}
	}

	return &errs.StorageError{
		Code:        code,
		Message:     fmt.Sprintf("%s failed", op),
		Attributes:  attrs,
		Remediation: remediation,
		Cause:       err,
	}
}
