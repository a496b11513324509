package v1

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/io7m-com/idstore-sub007/internal/command"
	"github.com/io7m-com/idstore-sub007/internal/core/domain"
	"github.com/io7m-com/idstore-sub007/internal/errs"
	"github.com/io7m-com/idstore-sub007/internal/i18n"
	"github.com/io7m-com/idstore-sub007/internal/policy"
	"github.com/io7m-com/idstore-sub007/middleware"
)

// RealNameUpdate changes the caller's own real name.
func (s *Service) RealNameUpdate(ctx context.Context, cctx *command.Context, cmd CommandRealNameUpdate) (*ResponseRealNameUpdate, error) {
	ctx, span := middleware.StartSpan(ctx, "account.real_name_update", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}
	actor := policy.User{ID: sess.PrincipalID()}
	if err := cctx.SecurityCheck(policy.UserActionRealNameUpdate{User: actor}); err != nil {
		return nil, err
	}

	if cmd.RealName == "" {
		return nil, errs.Validationf("real name cannot be empty")
	}

	tx := cctx.Transaction()
	if err := tx.Users().UpdateRealName(ctx, sess.PrincipalID(), cmd.RealName); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update real name: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), sess.PrincipalID(), auditUserUpdated, "real name changed"); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	user, err := tx.Users().GetByID(ctx, sess.PrincipalID())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}
	return &ResponseRealNameUpdate{User: publicUser(user)}, nil
}

// PasswordUpdate changes the caller's own password.
func (s *Service) PasswordUpdate(ctx context.Context, cctx *command.Context, cmd CommandPasswordUpdate) (*ResponsePasswordUpdate, error) {
	ctx, span := middleware.StartSpan(ctx, "account.password_update", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}
	actor := policy.User{ID: sess.PrincipalID()}
	if err := cctx.SecurityCheck(policy.UserActionPasswordUpdate{User: actor}); err != nil {
		return nil, err
	}

	if err := s.checkPassword(cmd.Password, cmd.PasswordConfirm); err != nil {
		return nil, err
	}

	hash, err := hashPassword(cmd.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx := cctx.Transaction()
	if err := tx.Users().UpdatePassword(ctx, sess.PrincipalID(), hash); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update password: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), sess.PrincipalID(), auditPasswordUpdated, ""); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponsePasswordUpdate{}, nil
}

// PasswordResetBegin starts an unauthenticated password reset. The response
// is identical whether or not the address matched an account.
func (s *Service) PasswordResetBegin(ctx context.Context, cctx *command.Context, cmd CommandPasswordResetBegin) (*ResponsePasswordResetBegin, error) {
	ctx, span := middleware.StartSpan(ctx, "account.password_reset_begin", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if !s.resetLimiter.IsAllowedByRateLimit(ctx, cctx.RemoteHost(), cmd.Email, opPasswordReset) {
		middleware.RateLimitDenials.WithLabelValues(opPasswordReset).Inc()
		return nil, rateLimited(opPasswordReset)
	}

	if err := validEmail(cmd.Email); err != nil {
		return nil, err
	}

	tx := cctx.Transaction()
	user, err := tx.Users().GetByEmail(ctx, cmd.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query email: %w", err)
	}
	if user == nil {
		// Do not reveal whether the address is registered.
		span.AddEvent("reset.unknown_address")
		return &ResponsePasswordResetBegin{}, nil
	}

	token := randomToken()
	reset := domain.PasswordReset{
		Token:   token,
		UserID:  user.ID,
		Expires: cctx.Now().Add(s.resetExpiry),
	}
	if err := tx.Emails().CreatePasswordReset(ctx, reset); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create password reset: %w", err)
	}

	if err := s.mail.SendPasswordReset(ctx, cmd.Email, token); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Audit().Put(ctx, cctx.Now(), user.ID, auditPasswordResetBegun, ""); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponsePasswordResetBegin{}, nil
}

// PasswordResetConfirm completes a password reset with the mailed token.
func (s *Service) PasswordResetConfirm(ctx context.Context, cctx *command.Context, cmd CommandPasswordResetConfirm) (*ResponsePasswordResetConfirm, error) {
	ctx, span := middleware.StartSpan(ctx, "account.password_reset_confirm", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if err := s.checkPassword(cmd.Password, cmd.PasswordConfirm); err != nil {
		return nil, err
	}

	tx := cctx.Transaction()
	reset, err := tx.Emails().GetPasswordReset(ctx, cmd.Token)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query password reset: %w", err)
	}
	if reset == nil || reset.Expires.Before(cctx.Now()) {
		return nil, &errs.CodedError{
			Code:      errs.CodeResetFailed,
			MessageID: i18n.MsgPasswordResetFailed,
		}
	}

	hash, err := hashPassword(cmd.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := tx.Users().UpdatePassword(ctx, reset.UserID, hash); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update password: %w", err)
	}
	if err := tx.Emails().DeletePasswordReset(ctx, cmd.Token); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("delete password reset: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), reset.UserID, auditPasswordUpdated, "via reset"); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponsePasswordResetConfirm{}, nil
}
