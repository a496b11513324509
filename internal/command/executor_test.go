package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/io7m-com/idstore-sub007/internal/errs"
	"github.com/io7m-com/idstore-sub007/internal/policy"
	"github.com/io7m-com/idstore-sub007/internal/session"
)

type noCommand struct{}

type noResponse struct{}

func testContext(t *testing.T, sess session.Session) *Context {
	t.Helper()
	return Create(Parameters{
		RequestID:  uuid.New(),
		Session:    sess,
		RemoteHost: "198.51.100.7",
		UserAgent:  "test/1.0",
		Locale:     "en-US",
		Logger:     zerolog.Nop(),
	})
}

func execFailing(t *testing.T, cctx *Context, handlerErr error) error {
	t.Helper()
	_, err := Execute(context.Background(), cctx, noCommand{},
		func(ctx context.Context, cctx *Context, cmd noCommand) (noResponse, error) {
			return noResponse{}, handlerErr
		})
	if err == nil {
		t.Fatal("expected an error")
	}
	return err
}

func asFailure(t *testing.T, err error) *errs.Failure {
	t.Helper()
	var failure *errs.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *errs.Failure, got %T: %v", err, err)
	}
	return failure
}

func TestExecuteSuccess(t *testing.T) {
	cctx := testContext(t, nil)

	type resp struct{ Value string }
	got, err := Execute(context.Background(), cctx, noCommand{},
		func(ctx context.Context, cctx *Context, cmd noCommand) (resp, error) {
			return resp{Value: "ok"}, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != "ok" {
		t.Errorf("got %q, want %q", got.Value, "ok")
	}
}

func TestExecuteValidationError(t *testing.T) {
	cctx := testContext(t, nil)

	failure := asFailure(t, execFailing(t, cctx, errs.Validationf("name %q is malformed", "x!")))
	if failure.Status != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", failure.Status, http.StatusBadRequest)
	}
	if failure.Code != errs.CodeParameterInvalid {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodeParameterInvalid)
	}
	if failure.RequestID != cctx.RequestID() {
		t.Errorf("request id: got %v, want %v", failure.RequestID, cctx.RequestID())
	}
}

func TestExecuteWrappedErrorStillRecognized(t *testing.T) {
	cctx := testContext(t, nil)

	inner := errs.Validationf("bad parameter")
	wrapped := fmt.Errorf("handling request: %w", inner)

	failure := asFailure(t, execFailing(t, cctx, wrapped))
	if failure.Code != errs.CodeParameterInvalid {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodeParameterInvalid)
	}
	if !errors.Is(failure, inner) {
		t.Error("failure should wrap the original cause")
	}
}

func TestExecuteSecurityError(t *testing.T) {
	cctx := testContext(t, nil)

	failure := asFailure(t, execFailing(t, cctx, &errs.SecurityError{Reason: "holding USER_READ is required"}))
	if failure.Status != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", failure.Status, http.StatusInternalServerError)
	}
	if failure.Code != errs.CodeSecurityDenied {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodeSecurityDenied)
	}
	if failure.Attributes["reason"] != "holding USER_READ is required" {
		t.Errorf("reason attribute: got %q", failure.Attributes["reason"])
	}
}

func TestExecutePasswordError(t *testing.T) {
	cctx := testContext(t, nil)

	failure := asFailure(t, execFailing(t, cctx, &errs.PasswordError{
		MessageID: "error_password_confirmation",
	}))
	if failure.Status != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", failure.Status, http.StatusBadRequest)
	}
	if failure.Code != errs.CodePasswordError {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodePasswordError)
	}
}

func TestExecuteProtocolError(t *testing.T) {
	cctx := testContext(t, nil)

	failure := asFailure(t, execFailing(t, cctx, &errs.ProtocolError{Message: "unexpected message type"}))
	if failure.Status != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", failure.Status, http.StatusBadRequest)
	}
	if failure.Code != errs.CodeProtocolError {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodeProtocolError)
	}
}

func TestExecuteMailError(t *testing.T) {
	cctx := testContext(t, nil)

	failure := asFailure(t, execFailing(t, cctx, &errs.MailError{
		Address: "someone@example.com",
		Cause:   errors.New("connection refused"),
	}))
	if failure.Status != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", failure.Status, http.StatusInternalServerError)
	}
	if failure.Code != errs.CodeMailFailure {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodeMailFailure)
	}
	if failure.Attributes["address"] != "someone@example.com" {
		t.Errorf("address attribute: got %q", failure.Attributes["address"])
	}
}

func TestExecuteStorageErrorCarriesOwnCode(t *testing.T) {
	cctx := testContext(t, nil)

	failure := asFailure(t, execFailing(t, cctx, &errs.StorageError{
		Code:    errs.CodeSQLUnique,
		Message: "duplicate key",
		Attributes: map[string]string{
			"constraint": "users_id_name_key",
			"table":      "users",
		},
		Remediation: "Choose a different name.",
	}))
	if failure.Status != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", failure.Status, http.StatusInternalServerError)
	}
	if failure.Code != errs.CodeSQLUnique {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodeSQLUnique)
	}
	if failure.Attributes["constraint"] != "users_id_name_key" {
		t.Errorf("constraint attribute: got %q", failure.Attributes["constraint"])
	}
	if failure.Remediation != "Choose a different name." {
		t.Errorf("remediation: got %q", failure.Remediation)
	}
}

func TestExecuteCodedError(t *testing.T) {
	cctx := testContext(t, nil)

	failure := asFailure(t, execFailing(t, cctx, &errs.CodedError{
		Code:      errs.CodeAuthFailed,
		MessageID: "error_authentication",
	}))
	if failure.Status != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", failure.Status, http.StatusInternalServerError)
	}
	if failure.Code != errs.CodeAuthFailed {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodeAuthFailed)
	}
}

func TestExecuteFailurePassesThrough(t *testing.T) {
	cctx := testContext(t, nil)

	original := &errs.Failure{
		Message:   "already structured",
		Code:      errs.CodeRateLimited,
		Status:    http.StatusInternalServerError,
		RequestID: cctx.RequestID(),
	}

	failure := asFailure(t, execFailing(t, cctx, original))
	if failure != original {
		t.Error("an already structured failure should pass through unchanged")
	}
}

func TestExecuteUnrecognizedErrorPropagates(t *testing.T) {
	cctx := testContext(t, nil)

	boom := errors.New("slice index out of range")
	err := execFailing(t, cctx, boom)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the original error", err)
	}
	var failure *errs.Failure
	if errors.As(err, &failure) {
		t.Error("an unrecognized error must not be converted to a failure")
	}
}

func TestUserSessionRequired(t *testing.T) {
	cctx := testContext(t, nil)

	if _, err := cctx.UserSession(); err == nil {
		t.Fatal("expected an error without a session")
	} else {
		var coded *errs.CodedError
		if !errors.As(err, &coded) || coded.Code != errs.CodeNotLoggedIn {
			t.Errorf("got %v, want code %q", err, errs.CodeNotLoggedIn)
		}
	}

	admins := session.NewAdminStore(time.Hour, nil, nil)
	defer admins.Close()
	cctx = testContext(t, admins.Create(uuid.New()))
	if _, err := cctx.UserSession(); err == nil {
		t.Error("an admin session must not satisfy a user session requirement")
	}
}

func TestSecurityCheckDenialBecomesFailure(t *testing.T) {
	admins := session.NewAdminStore(time.Hour, nil, nil)
	defer admins.Close()
	admin := admins.Create(uuid.New())
	admin.Permissions = policy.NewPermissionSet()
	cctx := testContext(t, admin)

	handlerErr := func() error {
		sess, err := cctx.AdminSession()
		if err != nil {
			return err
		}
		actor := policy.Admin{ID: sess.PrincipalID(), Permissions: sess.Permissions}
		return cctx.SecurityCheck(policy.AdminActionUserRead{Admin: actor})
	}()
	if handlerErr == nil {
		t.Fatal("expected a denial without USER_READ")
	}

	failure := asFailure(t, execFailing(t, cctx, handlerErr))
	if failure.Code != errs.CodeSecurityDenied {
		t.Errorf("code: got %q, want %q", failure.Code, errs.CodeSecurityDenied)
	}
}

func TestContextClockInjection(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cctx := Create(Parameters{
		RequestID: uuid.New(),
		Now:       func() time.Time { return fixed },
		Logger:    zerolog.Nop(),
	})
	if !cctx.Now().Equal(fixed) {
		t.Errorf("got %v, want %v", cctx.Now(), fixed)
	}
}
