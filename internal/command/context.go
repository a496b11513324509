// Package command implements the per-request command execution pipeline: a
// Context carrying the request's transaction, session, and metadata, and a
// generic executor that runs a handler and converts every recognized failure
// into the structured failure record.
package command

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
	"github.com/io7m-com/idstore-sub007/internal/errs"
	"github.com/io7m-com/idstore-sub007/internal/i18n"
	"github.com/io7m-com/idstore-sub007/internal/policy"
	"github.com/io7m-com/idstore-sub007/internal/session"
)

// Context is the per-request execution context. It owns exactly one database
// transaction for its lifetime and is the sole place failures are built.
type Context struct {
	requestID  uuid.UUID
	tx         domain.Transaction
	session    session.Session
	remoteHost string
	userAgent  string
	catalog    *i18n.Catalog
	engine     policy.Engine
	now        func() time.Time
	logger     zerolog.Logger
}

// Parameters are the inputs to Create, gathered by the transport layer.
type Parameters struct {
	RequestID  uuid.UUID
	Tx         domain.Transaction
	Session    session.Session
	RemoteHost string
	UserAgent  string
	Locale     string
	Engine     policy.Engine
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Create builds a request context. Session may be nil for flows that run
// unauthenticated (login, password reset). Now may be nil, defaulting to
// time.Now.
func Create(p Parameters) *Context {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	engine := p.Engine
	if engine == nil {
		engine = policy.NewDefault()
	}
	return &Context{
		requestID:  p.RequestID,
		tx:         p.Tx,
		session:    p.Session,
		remoteHost: p.RemoteHost,
		userAgent:  p.UserAgent,
		catalog:    i18n.GetCatalog(p.Locale),
		engine:     engine,
		now:        now,
		logger:     p.Logger.With().Str("request_id", p.RequestID.String()).Logger(),
	}
}

// RequestID returns the id correlating this request across logs and
// failures.
func (c *Context) RequestID() uuid.UUID {
	return c.requestID
}

// Transaction returns the database transaction owned by this request.
func (c *Context) Transaction() domain.Transaction {
	return c.tx
}

// RemoteHost returns the client host string.
func (c *Context) RemoteHost() string {
	return c.remoteHost
}

// UserAgent returns the client user-agent string.
func (c *Context) UserAgent() string {
	return c.userAgent
}

// Now returns the current time from the request clock.
func (c *Context) Now() time.Time {
	return c.now()
}

// Logger returns the request-scoped logger.
func (c *Context) Logger() *zerolog.Logger {
	return &c.logger
}

// UserSession returns the resolved user session, or a validation error when
// the request is not backed by one.
func (c *Context) UserSession() (*session.UserSession, error) {
	if s, ok := c.session.(*session.UserSession); ok {
		return s, nil
	}
	return nil, &errs.CodedError{
		Code:      errs.CodeNotLoggedIn,
		MessageID: i18n.MsgAuthenticationRequired,
	}
}

// AdminSession returns the resolved admin session, or an error when the
// request is not backed by one.
func (c *Context) AdminSession() (*session.AdminSession, error) {
	if s, ok := c.session.(*session.AdminSession); ok {
		return s, nil
	}
	return nil, &errs.CodedError{
		Code:      errs.CodeNotLoggedIn,
		MessageID: i18n.MsgAuthenticationRequired,
	}
}

// FormatMessage renders a message template in the request's locale, for
// handler output such as pending display notices.
func (c *Context) FormatMessage(messageID string, args map[string]string) string {
	return c.catalog.Format(messageID, args)
}

// SecurityCheck asks the policy engine whether the action may proceed,
// returning a typed security error on denial.
func (c *Context) SecurityCheck(action policy.Action) error {
	result := c.engine.Check(action)
	if result.IsPermitted() {
		return nil
	}
	return &errs.SecurityError{Reason: result.Reason()}
}

// failure is the single underlying constructor every fail* helper goes
// through, so all failures share one shape.
func (c *Context) failure(
	status int,
	code string,
	messageID string,
	args map[string]string,
	attrs map[string]string,
	remediation string,
	cause error,
) *errs.Failure {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &errs.Failure{
		Message:     c.catalog.Format(messageID, args),
		Cause:       cause,
		Code:        code,
		Attributes:  attrs,
		Remediation: remediation,
		RequestID:   c.requestID,
		Status:      status,
	}
}

// FailValidation converts a validation error: 400, HTTP_PARAMETER_INVALID.
func (c *Context) FailValidation(err *errs.ValidationError) *errs.Failure {
	return c.failure(
		http.StatusBadRequest,
		errs.CodeParameterInvalid,
		i18n.MsgParameterInvalid,
		map[string]string{"Detail": err.Message},
		nil,
		"Correct the request parameters and try again.",
		err,
	)
}

// FailSecurity converts a policy denial: 500, SECURITY_POLICY_DENIED.
// Transports may remap the status for end users; the code and attributes
// carry what they need.
func (c *Context) FailSecurity(err *errs.SecurityError) *errs.Failure {
	return c.failure(
		http.StatusInternalServerError,
		errs.CodeSecurityDenied,
		i18n.MsgOperationNotPermitted,
		map[string]string{"Reason": err.Reason},
		map[string]string{"reason": err.Reason},
		"",
		err,
	)
}

// FailPassword converts a password format problem: 400, PASSWORD_ERROR.
func (c *Context) FailPassword(err *errs.PasswordError) *errs.Failure {
	return c.failure(
		http.StatusBadRequest,
		errs.CodePasswordError,
		err.MessageID,
		err.Args,
		nil,
		"Correct the password and try again.",
		err,
	)
}

// FailProtocol converts a malformed command: 400, PROTOCOL_ERROR.
func (c *Context) FailProtocol(err *errs.ProtocolError) *errs.Failure {
	return c.failure(
		http.StatusBadRequest,
		errs.CodeProtocolError,
		i18n.MsgProtocolError,
		map[string]string{"Detail": err.Message},
		nil,
		"Correct the client request encoding.",
		err,
	)
}

// FailMail converts a mail transport failure: 500, MAIL_SYSTEM_FAILURE.
func (c *Context) FailMail(err *errs.MailError) *errs.Failure {
	return c.failure(
		http.StatusInternalServerError,
		errs.CodeMailFailure,
		i18n.MsgMailSystemFailure,
		nil,
		map[string]string{"address": err.Address},
		"Try the operation again later.",
		err,
	)
}

// FailStorage converts a database failure: 500, the storage layer's own code
// and attributes carried verbatim.
func (c *Context) FailStorage(err *errs.StorageError) *errs.Failure {
	f := c.failure(
		http.StatusInternalServerError,
		err.Code,
		i18n.MsgSQLFailure,
		nil,
		err.Attributes,
		err.Remediation,
		err,
	)
	return f
}

// FailCoded converts any other typed error that carries its own error code:
// 500 with that code.
func (c *Context) FailCoded(err errs.Coded) *errs.Failure {
	messageID := ""
	var args, attrs map[string]string
	if ce, ok := err.(*errs.CodedError); ok {
		messageID = ce.MessageID
		args = ce.Args
		attrs = ce.Attributes
	}
	message := messageID
	if message == "" {
		message = err.Error()
	}
	return c.failure(
		http.StatusInternalServerError,
		err.ErrorCode(),
		message,
		args,
		attrs,
		"",
		err,
	)
}

// FailFormatted builds a failure directly from a message template, for the
// rare transport-level paths that have no typed error to convert.
func (c *Context) FailFormatted(
	status int,
	code string,
	attrs map[string]string,
	messageID string,
	args map[string]string,
) *errs.Failure {
	return c.failure(status, code, messageID, args, attrs, "", nil)
}
