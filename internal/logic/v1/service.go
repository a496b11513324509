// Package v1 provides the account business logic for API version 1: the
// command handlers dispatched through the command executor.
//
// Handlers read and write persistent state only through the transaction on
// the command context, call SecurityCheck before privileged operations, and
// raise errors from the closed domain set; the executor converts those into
// structured failures.
package v1

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/io7m-com/idstore-sub007/internal/errs"
	"github.com/io7m-com/idstore-sub007/internal/i18n"
	"github.com/io7m-com/idstore-sub007/internal/mail"
	"github.com/io7m-com/idstore-sub007/internal/ratelimit"
	"github.com/io7m-com/idstore-sub007/internal/session"
)

// Audit event types recorded by the handlers.
const (
	auditUserLoggedIn      = "USER_LOGGED_IN"
	auditUserLoggedOut     = "USER_LOGGED_OUT"
	auditUserCreated       = "USER_CREATED"
	auditUserUpdated       = "USER_UPDATED"
	auditUserDeleted       = "USER_DELETED"
	auditUserBanned        = "USER_BANNED"
	auditUserBanRemoved    = "USER_BAN_REMOVED"
	auditEmailAddBegun     = "USER_EMAIL_ADD_BEGUN"
	auditEmailAdded        = "USER_EMAIL_ADDED"
	auditEmailAddDenied    = "USER_EMAIL_ADD_DENIED"
	auditEmailRemoveBegun  = "USER_EMAIL_REMOVE_BEGUN"
	auditEmailRemoved      = "USER_EMAIL_REMOVED"
	auditEmailRemoveDenied = "USER_EMAIL_REMOVE_DENIED"
	auditPasswordUpdated   = "USER_PASSWORD_UPDATED"
	auditPasswordResetBegun = "USER_PASSWORD_RESET_BEGUN"
	auditAdminLoggedIn     = "ADMIN_LOGGED_IN"
	auditAdminCreated      = "ADMIN_CREATED"
	auditAdminDeleted      = "ADMIN_DELETED"
)

// Rate-limited operation tags.
const (
	opLogin             = "LOGIN"
	opPasswordReset     = "PASSWORD_RESET"
	opEmailVerification = "EMAIL_VERIFICATION"
)

// Service implements the account command handlers. It depends on the session
// stores, the per-flow rate limiters, and the mail sender; everything
// persistent goes through the command context's transaction.
type Service struct {
	userSessions  *session.Store[*session.UserSession]
	adminSessions *session.Store[*session.AdminSession]

	loginLimiter  ratelimit.Limiter
	resetLimiter  ratelimit.Limiter
	verifyLimiter ratelimit.Limiter

	mail mail.Sender

	passwordMinLength  int
	verificationExpiry time.Duration
	resetExpiry        time.Duration
}

// Dependencies are the collaborators injected into NewService.
type Dependencies struct {
	UserSessions  *session.Store[*session.UserSession]
	AdminSessions *session.Store[*session.AdminSession]
	LoginLimiter  ratelimit.Limiter
	ResetLimiter  ratelimit.Limiter
	VerifyLimiter ratelimit.Limiter
	Mail          mail.Sender

	PasswordMinLength  int
	VerificationExpiry time.Duration
	ResetExpiry        time.Duration
}

// NewService creates a Service with the given dependencies.
func NewService(deps Dependencies) *Service {
	return &Service{
		userSessions:       deps.UserSessions,
		adminSessions:      deps.AdminSessions,
		loginLimiter:       deps.LoginLimiter,
		resetLimiter:       deps.ResetLimiter,
		verifyLimiter:      deps.VerifyLimiter,
		mail:               deps.Mail,
		passwordMinLength:  deps.PasswordMinLength,
		verificationExpiry: deps.VerificationExpiry,
		resetExpiry:        deps.ResetExpiry,
	}
}

// randomToken generates a verification token with 256 bits of entropy.
func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("logic: failed to generate token: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// checkPassword enforces the password policy on a new password and its
// confirmation.
func (s *Service) checkPassword(password, confirm string) error {
	if password != confirm {
		return &errs.PasswordError{MessageID: i18n.MsgPasswordConfirmation}
	}
	if len(password) < s.passwordMinLength {
		return &errs.PasswordError{
			MessageID: i18n.MsgPasswordTooShort,
			Args:      map[string]string{"Minimum": strconv.Itoa(s.passwordMinLength)},
		}
	}
	return nil
}

// hashPassword hashes a password with bcrypt at the default cost.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// validEmail applies a minimal structural check; full validation belongs to
// the verification round trip, not a regex.
func validEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || len(email) > 254 {
		return errs.Validationf("invalid email address %q", email)
	}
	return nil
}

func authenticationFailed() error {
	return &errs.CodedError{
		Code:      errs.CodeAuthFailed,
		MessageID: i18n.MsgAuthenticationFailed,
	}
}

func rateLimited(operation string) error {
	return &errs.CodedError{
		Code:       errs.CodeRateLimited,
		MessageID:  i18n.MsgRateLimited,
		Attributes: map[string]string{"operation": operation},
	}
}
