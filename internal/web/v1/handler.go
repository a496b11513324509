// Package v1 exposes the account API over HTTP. Each route decodes one
// command, opens a transaction at the route's privilege role, runs the
// command through the execution pipeline, and commits or rolls back.
package v1

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/io7m-com/idstore-sub007/internal/command"
	"github.com/io7m-com/idstore-sub007/internal/core"
	"github.com/io7m-com/idstore-sub007/internal/core/domain"
	"github.com/io7m-com/idstore-sub007/internal/errs"
	logicv1 "github.com/io7m-com/idstore-sub007/internal/logic/v1"
	"github.com/io7m-com/idstore-sub007/internal/session"
	"github.com/io7m-com/idstore-sub007/middleware"
)

// SessionCookie is the cookie carrying the session secret. A Bearer token in
// the Authorization header works equally.
const SessionCookie = "IDSTORE_SESSION"

// Handler groups the HTTP routes of the account API v1. Dependencies are
// injected via the constructor.
type Handler struct {
	svc           *logicv1.Service
	db            *core.Database
	userSessions  *session.Store[*session.UserSession]
	adminSessions *session.Store[*session.AdminSession]
}

// NewHandler creates a Handler with the given collaborators.
func NewHandler(
	svc *logicv1.Service,
	db *core.Database,
	userSessions *session.Store[*session.UserSession],
	adminSessions *session.Store[*session.AdminSession],
) *Handler {
	return &Handler{
		svc:           svc,
		db:            db,
		userSessions:  userSessions,
		adminSessions: adminSessions,
	}
}

// RegisterRoutes registers all account API v1 routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", route(h, domain.RoleNone, h.svc.Login))
	rg.POST("/logout", route(h, domain.RoleUser, h.svc.Logout))
	rg.POST("/self", route(h, domain.RoleUser, h.svc.UserSelf))

	rg.POST("/email/add/begin", route(h, domain.RoleUser, h.svc.EmailAddBegin))
	rg.POST("/email/add/permit", route(h, domain.RoleUser, h.svc.EmailAddPermit))
	rg.POST("/email/add/deny", route(h, domain.RoleUser, h.svc.EmailAddDeny))
	rg.POST("/email/remove/begin", route(h, domain.RoleUser, h.svc.EmailRemoveBegin))
	rg.POST("/email/remove/permit", route(h, domain.RoleUser, h.svc.EmailRemovePermit))
	rg.POST("/email/remove/deny", route(h, domain.RoleUser, h.svc.EmailRemoveDeny))

	rg.POST("/real-name", route(h, domain.RoleUser, h.svc.RealNameUpdate))
	rg.POST("/password", route(h, domain.RoleUser, h.svc.PasswordUpdate))
	rg.POST("/password/reset/begin", route(h, domain.RoleNone, h.svc.PasswordResetBegin))
	rg.POST("/password/reset/confirm", route(h, domain.RoleNone, h.svc.PasswordResetConfirm))

	admin := rg.Group("/admin")
	admin.POST("/login", route(h, domain.RoleNone, h.svc.AdminLogin))
	admin.POST("/users/create", route(h, domain.RoleAdmin, h.svc.AdminUserCreate))
	admin.POST("/users/read", route(h, domain.RoleAdmin, h.svc.AdminUserRead))
	admin.POST("/users/search", route(h, domain.RoleAdmin, h.svc.AdminUserSearch))
	admin.POST("/users/update", route(h, domain.RoleAdmin, h.svc.AdminUserUpdate))
	admin.POST("/users/delete", route(h, domain.RoleAdmin, h.svc.AdminUserDelete))
	admin.POST("/users/ban/create", route(h, domain.RoleAdmin, h.svc.AdminUserBanCreate))
	admin.POST("/users/ban/delete", route(h, domain.RoleAdmin, h.svc.AdminUserBanDelete))
	admin.POST("/users/email/add", route(h, domain.RoleAdmin, h.svc.AdminEmailAdd))
	admin.POST("/users/email/remove", route(h, domain.RoleAdmin, h.svc.AdminEmailRemove))
	admin.POST("/audit/read", route(h, domain.RoleAdmin, h.svc.AdminAuditRead))
	admin.POST("/admins/create", route(h, domain.RoleAdmin, h.svc.AdminAdminCreate))
	admin.POST("/admins/read", route(h, domain.RoleAdmin, h.svc.AdminAdminRead))
	admin.POST("/admins/delete", route(h, domain.RoleAdmin, h.svc.AdminAdminDelete))
}

// route adapts one command handler to gin: decode, run, commit or roll back,
// encode. The role selects the database privilege of the transaction.
func route[C any, R any](h *Handler, role domain.Role, hf command.HandlerFunc[C, R]) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := middleware.StartSpan(c.Request.Context(), "http.command", trace.WithAttributes(
			attribute.String("layer", "web"),
			attribute.String("method", c.Request.Method),
			attribute.String("path", c.FullPath()),
		))
		defer span.End()

		requestID := middleware.RequestIDFromGinContext(c)
		logger := middleware.GetLoggerFromGinContext(c)

		params := command.Parameters{
			RequestID:  requestID,
			Session:    h.resolveSession(c),
			RemoteHost: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Locale:     c.GetHeader("Accept-Language"),
			Logger:     *logger,
		}

		// An empty body decodes every no-argument command.
		var cmd C
		if err := c.ShouldBindJSON(&cmd); err != nil && !errors.Is(err, io.EOF) {
			span.SetAttributes(attribute.Bool("request.valid", false))
			span.RecordError(err)
			cctx := command.Create(params)
			writeFailure(c, cctx.FailProtocol(&errs.ProtocolError{Message: err.Error()}))
			return
		}

		tx, err := h.db.Begin(ctx, role)
		if err != nil {
			span.RecordError(err)
			logger.Error().Err(err).Msg("Failed to open transaction")
			writeFailure(c, &errs.Failure{
				Message:   "the service is temporarily unavailable",
				Code:      errs.CodeSQLError,
				RequestID: requestID,
				Status:    http.StatusInternalServerError,
			})
			return
		}

		params.Tx = tx
		cctx := command.Create(params)

		resp, err := command.Execute(ctx, cctx, cmd, hf)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Error().Err(rbErr).Msg("Rollback failed")
			}
			var failure *errs.Failure
			if errors.As(err, &failure) {
				writeFailure(c, failure)
				return
			}
			writeFailure(c, &errs.Failure{
				Message:   "internal server error",
				Code:      errs.CodeSQLError,
				RequestID: requestID,
				Status:    http.StatusInternalServerError,
			})
			return
		}

		if err := tx.Commit(ctx); err != nil {
			span.RecordError(err)
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Error().Err(rbErr).Msg("Rollback failed")
			}
			var storage *errs.StorageError
			if errors.As(err, &storage) {
				writeFailure(c, cctx.FailStorage(storage))
				return
			}
			logger.Error().Err(err).Msg("Commit failed")
			writeFailure(c, &errs.Failure{
				Message:   "internal server error",
				Code:      errs.CodeSQLError,
				RequestID: requestID,
				Status:    http.StatusInternalServerError,
			})
			return
		}

		switch r := any(resp).(type) {
		case *logicv1.ResponseLogin:
			setSessionCookie(c, r.Session)
		case *logicv1.ResponseAdminLogin:
			setSessionCookie(c, r.Session)
		case *logicv1.ResponseLogout:
			clearSessionCookie(c)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// resolveSession looks the request's secret up in both stores. A request with
// no secret, or a dead one, simply runs unauthenticated and fails later if
// the command demands a session.
func (h *Handler) resolveSession(c *gin.Context) session.Session {
	secret := sessionSecret(c)
	if secret == "" {
		return nil
	}
	if s, ok := h.userSessions.Find(session.Secret(secret)); ok {
		return s
	}
	if s, ok := h.adminSessions.Find(session.Secret(secret)); ok {
		return s
	}
	return nil
}

func sessionSecret(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func setSessionCookie(c *gin.Context, secret string) {
	c.SetCookie(SessionCookie, secret, 0, "/", "", false, true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
}

// failureBody is the JSON encoding of a command failure.
type failureBody struct {
	RequestID   string            `json:"request_id"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Remediation string            `json:"remediation,omitempty"`
}

func writeFailure(c *gin.Context, f *errs.Failure) {
	c.JSON(endUserStatus(f), failureBody{
		RequestID:   f.RequestID.String(),
		Code:        f.Code,
		Message:     f.Message,
		Attributes:  f.Attributes,
		Remediation: f.Remediation,
	})
}

// endUserStatus remaps a handful of failure codes to the HTTP status a
// browser client expects. All other failures keep the pipeline's status.
func endUserStatus(f *errs.Failure) int {
	switch f.Code {
	case errs.CodeSecurityDenied, errs.CodeUserBanned:
		return http.StatusForbidden
	case errs.CodeNotLoggedIn, errs.CodeAuthFailed:
		return http.StatusUnauthorized
	case errs.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return f.Status
	}
}
