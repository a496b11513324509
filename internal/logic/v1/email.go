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

func emailVerificationFailed() error {
	return &errs.CodedError{
		Code:      errs.CodeEmailVerifFailed,
		MessageID: i18n.MsgEmailVerificationBad,
	}
}

// EmailAddBegin starts the verification flow that adds an email address to
// the caller's account. The token travels by mail; nothing changes on the
// account until the token is confirmed.
func (s *Service) EmailAddBegin(ctx context.Context, cctx *command.Context, cmd CommandEmailAddBegin) (*ResponseEmailAddBegin, error) {
	ctx, span := middleware.StartSpan(ctx, "account.email_add_begin", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}
	actor := policy.User{ID: sess.PrincipalID()}
	if err := cctx.SecurityCheck(policy.UserActionEmailAddBegin{User: actor}); err != nil {
		return nil, err
	}

	if err := validEmail(cmd.Email); err != nil {
		return nil, err
	}

	if !s.verifyLimiter.IsAllowedByRateLimit(ctx, cctx.RemoteHost(), sess.PrincipalID().String(), opEmailVerification) {
		middleware.RateLimitDenials.WithLabelValues(opEmailVerification).Inc()
		return nil, rateLimited(opEmailVerification)
	}

	tx := cctx.Transaction()
	existing, err := tx.Users().GetByEmail(ctx, cmd.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query email: %w", err)
	}
	if existing != nil {
		return nil, errs.Validationf("email address %q is already in use", cmd.Email)
	}

	token := randomToken()
	verification := domain.EmailVerification{
		Token:     token,
		UserID:    sess.PrincipalID(),
		Email:     cmd.Email,
		Operation: domain.EmailOpAdd,
		Expires:   cctx.Now().Add(s.verificationExpiry),
	}
	if err := tx.Emails().CreateVerification(ctx, verification); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create verification: %w", err)
	}

	if err := s.mail.SendVerification(ctx, cmd.Email, token, domain.EmailOpAdd); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Audit().Put(ctx, cctx.Now(), sess.PrincipalID(), auditEmailAddBegun, cmd.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponseEmailAddBegin{}, nil
}

// verificationFor fetches a verification token and checks ownership,
// operation, and expiry. All failure modes collapse into one error so the
// response does not reveal which part was wrong.
func (s *Service) verificationFor(
	ctx context.Context,
	cctx *command.Context,
	token, operation string,
	owner policy.User,
) (*domain.EmailVerification, error) {
	v, err := cctx.Transaction().Emails().GetVerification(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("query verification: %w", err)
	}
	if v == nil || v.Operation != operation || v.UserID != owner.ID || v.Expires.Before(cctx.Now()) {
		return nil, emailVerificationFailed()
	}
	return v, nil
}

// EmailAddPermit completes an email-add flow with the mailed token.
func (s *Service) EmailAddPermit(ctx context.Context, cctx *command.Context, cmd CommandEmailAddPermit) (*ResponseEmailAddPermit, error) {
	ctx, span := middleware.StartSpan(ctx, "account.email_add_permit", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}
	actor := policy.User{ID: sess.PrincipalID()}
	if err := cctx.SecurityCheck(policy.UserActionEmailAddPermit{User: actor}); err != nil {
		return nil, err
	}

	v, err := s.verificationFor(ctx, cctx, cmd.Token, domain.EmailOpAdd, actor)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tx := cctx.Transaction()
	if err := tx.Users().AddEmail(ctx, v.UserID, v.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("add email: %w", err)
	}
	if err := tx.Emails().DeleteVerification(ctx, cmd.Token); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("delete verification: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), v.UserID, auditEmailAdded, v.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	sess.SetDisplayMessage(cctx.FormatMessage(i18n.MsgNoticeEmailAdded, nil))
	return &ResponseEmailAddPermit{}, nil
}

// EmailAddDeny rejects an email-add flow with the mailed token.
func (s *Service) EmailAddDeny(ctx context.Context, cctx *command.Context, cmd CommandEmailAddDeny) (*ResponseEmailAddDeny, error) {
	ctx, span := middleware.StartSpan(ctx, "account.email_add_deny", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}
	actor := policy.User{ID: sess.PrincipalID()}
	if err := cctx.SecurityCheck(policy.UserActionEmailAddDeny{User: actor}); err != nil {
		return nil, err
	}

	v, err := s.verificationFor(ctx, cctx, cmd.Token, domain.EmailOpAdd, actor)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tx := cctx.Transaction()
	if err := tx.Emails().DeleteVerification(ctx, cmd.Token); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("delete verification: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), v.UserID, auditEmailAddDenied, v.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponseEmailAddDeny{}, nil
}

// EmailRemoveBegin starts the verification flow that removes an email
// address from the caller's account. The last address cannot be removed.
func (s *Service) EmailRemoveBegin(ctx context.Context, cctx *command.Context, cmd CommandEmailRemoveBegin) (*ResponseEmailRemoveBegin, error) {
	ctx, span := middleware.StartSpan(ctx, "account.email_remove_begin", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}
	actor := policy.User{ID: sess.PrincipalID()}
	if err := cctx.SecurityCheck(policy.UserActionEmailRemoveBegin{User: actor}); err != nil {
		return nil, err
	}

	if !s.verifyLimiter.IsAllowedByRateLimit(ctx, cctx.RemoteHost(), sess.PrincipalID().String(), opEmailVerification) {
		middleware.RateLimitDenials.WithLabelValues(opEmailVerification).Inc()
		return nil, rateLimited(opEmailVerification)
	}

	tx := cctx.Transaction()
	user, err := tx.Users().GetByID(ctx, sess.PrincipalID())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}

	owned := false
	for _, email := range user.Emails {
		if email == cmd.Email {
			owned = true
			break
		}
	}
	if !owned {
		return nil, &errs.CodedError{
			Code:      errs.CodeEmailNonexistent,
			MessageID: i18n.MsgEmailNonexistent,
			Args:      map[string]string{"Email": cmd.Email},
		}
	}
	if len(user.Emails) <= 1 {
		return nil, errs.Validationf("the last email address on an account cannot be removed")
	}

	token := randomToken()
	verification := domain.EmailVerification{
		Token:     token,
		UserID:    sess.PrincipalID(),
		Email:     cmd.Email,
		Operation: domain.EmailOpRemove,
		Expires:   cctx.Now().Add(s.verificationExpiry),
	}
	if err := tx.Emails().CreateVerification(ctx, verification); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create verification: %w", err)
	}

	if err := s.mail.SendVerification(ctx, cmd.Email, token, domain.EmailOpRemove); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Audit().Put(ctx, cctx.Now(), sess.PrincipalID(), auditEmailRemoveBegun, cmd.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponseEmailRemoveBegin{}, nil
}

// EmailRemovePermit completes an email-remove flow with the mailed token.
func (s *Service) EmailRemovePermit(ctx context.Context, cctx *command.Context, cmd CommandEmailRemovePermit) (*ResponseEmailRemovePermit, error) {
	ctx, span := middleware.StartSpan(ctx, "account.email_remove_permit", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}
	actor := policy.User{ID: sess.PrincipalID()}
	if err := cctx.SecurityCheck(policy.UserActionEmailRemovePermit{User: actor}); err != nil {
		return nil, err
	}

	v, err := s.verificationFor(ctx, cctx, cmd.Token, domain.EmailOpRemove, actor)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tx := cctx.Transaction()

	// Re-check the last-address rule at confirmation time; the account may
	// have changed since the flow began.
	user, err := tx.Users().GetByID(ctx, v.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil || len(user.Emails) <= 1 {
		return nil, errs.Validationf("the last email address on an account cannot be removed")
	}

	if err := tx.Users().RemoveEmail(ctx, v.UserID, v.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("remove email: %w", err)
	}
	if err := tx.Emails().DeleteVerification(ctx, cmd.Token); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("delete verification: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), v.UserID, auditEmailRemoved, v.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	sess.SetDisplayMessage(cctx.FormatMessage(i18n.MsgNoticeEmailRemoved, nil))
	return &ResponseEmailRemovePermit{}, nil
}

// EmailRemoveDeny rejects an email-remove flow with the mailed token.
func (s *Service) EmailRemoveDeny(ctx context.Context, cctx *command.Context, cmd CommandEmailRemoveDeny) (*ResponseEmailRemoveDeny, error) {
	ctx, span := middleware.StartSpan(ctx, "account.email_remove_deny", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}
	actor := policy.User{ID: sess.PrincipalID()}
	if err := cctx.SecurityCheck(policy.UserActionEmailRemoveDeny{User: actor}); err != nil {
		return nil, err
	}

	v, err := s.verificationFor(ctx, cctx, cmd.Token, domain.EmailOpRemove, actor)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tx := cctx.Transaction()
	if err := tx.Emails().DeleteVerification(ctx, cmd.Token); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("delete verification: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), v.UserID, auditEmailRemoveDenied, v.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponseEmailRemoveDeny{}, nil
}
