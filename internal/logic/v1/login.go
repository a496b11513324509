package v1

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/io7m-com/idstore-sub007/internal/command"
	"github.com/io7m-com/idstore-sub007/internal/errs"
	"github.com/io7m-com/idstore-sub007/internal/i18n"
	"github.com/io7m-com/idstore-sub007/internal/policy"
	"github.com/io7m-com/idstore-sub007/middleware"
)

// Login authenticates an end user and creates a session.
func (s *Service) Login(ctx context.Context, cctx *command.Context, cmd CommandLogin) (*ResponseLogin, error) {
	ctx, span := middleware.StartSpan(ctx, "account.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if !s.loginLimiter.IsAllowedByRateLimit(ctx, cctx.RemoteHost(), cmd.UserName, opLogin) {
		middleware.RateLimitDenials.WithLabelValues(opLogin).Inc()
		span.AddEvent("rate.limited")
		return nil, rateLimited(opLogin)
	}

	users := cctx.Transaction().Users()
	user, err := users.GetByName(ctx, cmd.UserName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", cmd.UserName, err)
	}
	if user == nil {
		span.AddEvent("authentication.failed")
		// Do not reveal whether the account exists.
		return nil, authenticationFailed()
	}

	if ban := user.Ban; ban != nil {
		if ban.Expires == nil || ban.Expires.After(cctx.Now()) {
			span.AddEvent("authentication.banned")
			return nil, &errs.CodedError{
				Code:      errs.CodeUserBanned,
				MessageID: i18n.MsgBanned,
				Args:      map[string]string{"Reason": ban.Reason},
			}
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)); err != nil {
		span.AddEvent("authentication.failed")
		return nil, authenticationFailed()
	}

	if err := users.UpdateLastLogin(ctx, user.ID, cctx.Now()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update last login: %w", err)
	}

	message := fmt.Sprintf("host=%s agent=%s", cctx.RemoteHost(), cctx.UserAgent())
	if err := cctx.Transaction().Audit().Put(ctx, cctx.Now(), user.ID, auditUserLoggedIn, message); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	sess := s.userSessions.Create(user.ID)

	span.SetAttributes(attribute.Bool("auth.success", true))
	span.AddEvent("user.authenticated")

	return &ResponseLogin{
		Session: string(sess.Secret()),
		User:    publicUser(user),
	}, nil
}

// Logout deletes the caller's session. Logging out an already-dead session
// succeeds; deletion is idempotent.
func (s *Service) Logout(ctx context.Context, cctx *command.Context, _ CommandLogout) (*ResponseLogout, error) {
	ctx, span := middleware.StartSpan(ctx, "account.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if user, err := cctx.UserSession(); err == nil {
		s.userSessions.Delete(user.Secret())
		if err := cctx.Transaction().Audit().Put(ctx, cctx.Now(), user.PrincipalID(), auditUserLoggedOut, ""); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("record audit event: %w", err)
		}
		return &ResponseLogout{}, nil
	}

	if admin, err := cctx.AdminSession(); err == nil {
		s.adminSessions.Delete(admin.Secret())
		if err := cctx.Transaction().Audit().Put(ctx, cctx.Now(), admin.PrincipalID(), auditUserLoggedOut, ""); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("record audit event: %w", err)
		}
		return &ResponseLogout{}, nil
	}

	return &ResponseLogout{}, nil
}

// UserSelf returns the caller's own account record, consuming any pending
// display message.
func (s *Service) UserSelf(ctx context.Context, cctx *command.Context, _ CommandUserSelf) (*ResponseUserSelf, error) {
	ctx, span := middleware.StartSpan(ctx, "account.self", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sess, err := cctx.UserSession()
	if err != nil {
		return nil, err
	}

	if err := cctx.SecurityCheck(policy.UserActionSelf{User: policy.User{ID: sess.PrincipalID()}}); err != nil {
		return nil, err
	}

	user, err := cctx.Transaction().Users().GetByID(ctx, sess.PrincipalID())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{
			Code:      errs.CodeUserNonexistent,
			MessageID: i18n.MsgUserNonexistent,
		}
	}

	resp := &ResponseUserSelf{User: publicUser(user)}
	if msg, ok := sess.TakeDisplayMessage(); ok {
		resp.DisplayMessage = msg
	}
	return resp, nil
}
