// Package errs defines the structured failure record returned by the command
// pipeline, together with the closed set of domain error kinds that command
// handlers are allowed to raise.
//
// Handlers never construct a Failure themselves; they raise one of the typed
// errors below (ValidationError, PasswordError, ...) and the command executor
// converts it into a Failure with a fixed code and status. Anything outside
// this set propagates unwrapped as a programming defect.
package errs

import (
	"fmt"

	"github.com/google/uuid"
)

// Stable machine-readable error codes. Transports and clients key off these,
// so they must never change for a given failure category.
const (
	CodeParameterInvalid = "HTTP_PARAMETER_INVALID"
	CodeSecurityDenied   = "SECURITY_POLICY_DENIED"
	CodePasswordError    = "PASSWORD_ERROR"
	CodeProtocolError    = "PROTOCOL_ERROR"
	CodeMailFailure      = "MAIL_SYSTEM_FAILURE"
	CodeSQLError         = "SQL_ERROR"
	CodeSQLUnique        = "SQL_ERROR_UNIQUE"
	CodeSQLForeignKey    = "SQL_ERROR_FOREIGN"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeNotLoggedIn      = "AUTHENTICATION_REQUIRED"
	CodeAuthFailed       = "AUTHENTICATION_ERROR"
	CodeUserNonexistent  = "USER_NONEXISTENT"
	CodeAdminNonexistent = "ADMIN_NONEXISTENT"
	CodeEmailNonexistent = "EMAIL_NONEXISTENT"
	CodeEmailVerifFailed = "EMAIL_VERIFICATION_FAILED"
	CodeResetFailed      = "PASSWORD_RESET_FAILED"
	CodeUserBanned       = "BANNED"
)

// Failure is the unified structured error record for a failed command.
//
// Every Failure carries a non-empty Code and the id of the request that
// produced it. Attributes hold diagnostic key/value pairs and must never
// contain secrets or raw SQL.
type Failure struct {
	Message     string
	Cause       error
	Code        string
	Attributes  map[string]string
	Remediation string
	RequestID   uuid.UUID
	Status      int
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return f.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// ValidationError indicates malformed or semantically invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validationf creates a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// SecurityError indicates a security policy denial.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return "operation not permitted: " + e.Reason
}

// PasswordError indicates a problem with a password's format or confirmation.
// MessageID names a message template; Args are its parameters. The executor
// resolves them against the request's locale.
type PasswordError struct {
	MessageID string
	Args      map[string]string
}

func (e *PasswordError) Error() string {
	return "password error: " + e.MessageID
}

// ProtocolError indicates a malformed command at the protocol level.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// MailError indicates a mail transport failure.
type MailError struct {
	Address string
	Cause   error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("mail delivery to %s failed", e.Address)
}

func (e *MailError) Unwrap() error {
	return e.Cause
}

// StorageError is raised by the storage layer for database failures. Its code
// and attributes are carried into the resulting Failure verbatim.
type StorageError struct {
	Code        string
	Message     string
	Attributes  map[string]string
	Remediation string
	Cause       error
}

func (e *StorageError) Error() string {
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Coded is implemented by typed errors that carry their own stable error
// code. The executor maps them to a 500 Failure with that code.
type Coded interface {
	error
	ErrorCode() string
}

// CodedError is a typed error carrying its own stable error code, for domain
// failures outside the fixed categories (authentication failures, bans, rate
// limiting). MessageID and Args select the localized message.
type CodedError struct {
	Code       string
	MessageID  string
	Args       map[string]string
	Attributes map[string]string
}

func (e *CodedError) Error() string {
	return e.Code
}

// ErrorCode implements Coded.
func (e *CodedError) ErrorCode() string {
	return e.Code
}
