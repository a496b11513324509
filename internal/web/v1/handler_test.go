package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/io7m-com/idstore-sub007/internal/errs"
)

func TestEndUserStatus(t *testing.T) {
	cases := []struct {
		code   string
		status int
		want   int
	}{
		{errs.CodeSecurityDenied, http.StatusInternalServerError, http.StatusForbidden},
		{errs.CodeUserBanned, http.StatusInternalServerError, http.StatusForbidden},
		{errs.CodeNotLoggedIn, http.StatusInternalServerError, http.StatusUnauthorized},
		{errs.CodeAuthFailed, http.StatusInternalServerError, http.StatusUnauthorized},
		{errs.CodeRateLimited, http.StatusInternalServerError, http.StatusTooManyRequests},
		{errs.CodeParameterInvalid, http.StatusBadRequest, http.StatusBadRequest},
		{errs.CodeSQLUnique, http.StatusInternalServerError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		f := &errs.Failure{Code: tc.code, Status: tc.status}
		if got := endUserStatus(f); got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestSessionSecretSources(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(req *http.Request) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = req
		return c
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if got := sessionSecret(newCtx(req)); got != "" {
		t.Errorf("no credentials: got %q, want empty", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie-secret"})
	if got := sessionSecret(newCtx(req)); got != "cookie-secret" {
		t.Errorf("cookie: got %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer header-secret")
	if got := sessionSecret(newCtx(req)); got != "header-secret" {
		t.Errorf("bearer: got %q", got)
	}

	// The cookie wins when both are present.
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie-secret"})
	req.Header.Set("Authorization", "Bearer header-secret")
	if got := sessionSecret(newCtx(req)); got != "cookie-secret" {
		t.Errorf("both: got %q", got)
	}
}
