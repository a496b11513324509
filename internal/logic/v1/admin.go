package v1

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/io7m-com/idstore-sub007/internal/command"
	"github.com/io7m-com/idstore-sub007/internal/core/domain"
	"github.com/io7m-com/idstore-sub007/internal/errs"
	"github.com/io7m-com/idstore-sub007/internal/i18n"
	"github.com/io7m-com/idstore-sub007/internal/policy"
	"github.com/io7m-com/idstore-sub007/middleware"
)

// adminActor resolves the caller's admin session into a policy actor.
func (s *Service) adminActor(cctx *command.Context) (policy.Admin, error) {
	sess, err := cctx.AdminSession()
	if err != nil {
		return policy.Admin{}, err
	}
	return policy.Admin{ID: sess.PrincipalID(), Permissions: sess.Permissions}, nil
}

// AdminLogin authenticates an administrator and creates an admin session
// carrying the expanded permission set.
func (s *Service) AdminLogin(ctx context.Context, cctx *command.Context, cmd CommandAdminLogin) (*ResponseAdminLogin, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if !s.loginLimiter.IsAllowedByRateLimit(ctx, cctx.RemoteHost(), cmd.UserName, opLogin) {
		middleware.RateLimitDenials.WithLabelValues(opLogin).Inc()
		return nil, rateLimited(opLogin)
	}

	admins := cctx.Transaction().Admins()
	admin, err := admins.GetByName(ctx, cmd.UserName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query admin %q: %w", cmd.UserName, err)
	}
	if admin == nil {
		span.AddEvent("authentication.failed")
		return nil, authenticationFailed()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(cmd.Password)); err != nil {
		span.AddEvent("authentication.failed")
		return nil, authenticationFailed()
	}

	if err := admins.UpdateLastLogin(ctx, admin.ID, cctx.Now()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update last login: %w", err)
	}
	if err := cctx.Transaction().Audit().Put(ctx, cctx.Now(), admin.ID, auditAdminLoggedIn, cctx.RemoteHost()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	sess := s.adminSessions.Create(admin.ID)
	sess.Permissions = policy.ParsePermissions(admin.Permissions).Expand()

	span.SetAttributes(attribute.Bool("auth.success", true))

	return &ResponseAdminLogin{
		Session: string(sess.Secret()),
		Admin:   publicAdmin(admin),
	}, nil
}

// AdminUserCreate creates a user account directly, without a verification
// round trip. Requires USER_CREATE.
func (s *Service) AdminUserCreate(ctx context.Context, cctx *command.Context, cmd CommandAdminUserCreate) (*ResponseAdminUserCreate, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_user_create", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserCreate{Admin: actor}); err != nil {
		return nil, err
	}

	if cmd.IdName == "" || cmd.RealName == "" {
		return nil, errs.Validationf("id name and real name are required")
	}
	if err := validEmail(cmd.Email); err != nil {
		return nil, err
	}
	if err := s.checkPassword(cmd.Password, cmd.Password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(cmd.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx := cctx.Transaction()
	id, err := tx.Users().Create(ctx, domain.UserCreate{
		IdName:       cmd.IdName,
		RealName:     cmd.RealName,
		Email:        cmd.Email,
		PasswordHash: hash,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditUserCreated, id.String()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	user, err := tx.Users().GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}
	return &ResponseAdminUserCreate{User: publicUser(user)}, nil
}

// AdminUserRead reads a user account. Requires USER_READ.
func (s *Service) AdminUserRead(ctx context.Context, cctx *command.Context, cmd CommandAdminUserRead) (*ResponseAdminUserRead, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_user_read", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserRead{Admin: actor}); err != nil {
		return nil, err
	}

	user, err := cctx.Transaction().Users().GetByID(ctx, cmd.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}
	return &ResponseAdminUserRead{User: publicUser(user)}, nil
}

// AdminUserSearch searches user accounts by name. Requires USER_READ.
func (s *Service) AdminUserSearch(ctx context.Context, cctx *command.Context, cmd CommandAdminUserSearch) (*ResponseAdminUserSearch, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_user_search", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserRead{Admin: actor}); err != nil {
		return nil, err
	}

	limit := cmd.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	users, err := cctx.Transaction().Users().Search(ctx, cmd.Query, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search users: %w", err)
	}

	resp := &ResponseAdminUserSearch{Users: make([]PublicUser, 0, len(users))}
	for i := range users {
		resp.Users = append(resp.Users, publicUser(&users[i]))
	}
	return resp, nil
}

// AdminUserUpdate updates a user's real name. Requires USER_WRITE.
func (s *Service) AdminUserUpdate(ctx context.Context, cctx *command.Context, cmd CommandAdminUserUpdate) (*ResponseAdminUserUpdate, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_user_update", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserUpdate{Admin: actor}); err != nil {
		return nil, err
	}

	if cmd.RealName == "" {
		return nil, errs.Validationf("real name cannot be empty")
	}

	tx := cctx.Transaction()
	user, err := tx.Users().GetByID(ctx, cmd.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}

	if err := tx.Users().UpdateRealName(ctx, cmd.UserID, cmd.RealName); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update real name: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditUserUpdated, cmd.UserID.String()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	user.RealName = cmd.RealName
	return &ResponseAdminUserUpdate{User: publicUser(user)}, nil
}

// AdminUserDelete removes a user account. Requires USER_DELETE.
func (s *Service) AdminUserDelete(ctx context.Context, cctx *command.Context, cmd CommandAdminUserDelete) (*ResponseAdminUserDelete, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_user_delete", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserDelete{Admin: actor}); err != nil {
		return nil, err
	}

	tx := cctx.Transaction()
	user, err := tx.Users().GetByID(ctx, cmd.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}

	if err := tx.Users().Delete(ctx, cmd.UserID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("delete user: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditUserDeleted, cmd.UserID.String()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponseAdminUserDelete{}, nil
}

// AdminUserBanCreate bans a user from logging in. Requires USER_BAN.
func (s *Service) AdminUserBanCreate(ctx context.Context, cctx *command.Context, cmd CommandAdminUserBanCreate) (*ResponseAdminUserBanCreate, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_user_ban_create", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserBanCreate{Admin: actor}); err != nil {
		return nil, err
	}

	if cmd.Reason == "" {
		return nil, errs.Validationf("ban reason cannot be empty")
	}

	tx := cctx.Transaction()
	if err := tx.Users().BanCreate(ctx, cmd.UserID, domain.Ban{Reason: cmd.Reason, Expires: cmd.Expires}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create ban: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditUserBanned, cmd.UserID.String()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponseAdminUserBanCreate{}, nil
}

// AdminUserBanDelete removes a user's ban. Requires USER_BAN.
func (s *Service) AdminUserBanDelete(ctx context.Context, cctx *command.Context, cmd CommandAdminUserBanDelete) (*ResponseAdminUserBanDelete, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_user_ban_delete", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserBanDelete{Admin: actor}); err != nil {
		return nil, err
	}

	tx := cctx.Transaction()
	if err := tx.Users().BanDelete(ctx, cmd.UserID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("delete ban: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditUserBanRemoved, cmd.UserID.String()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponseAdminUserBanDelete{}, nil
}

// AdminEmailAdd adds an email address to a user account directly, skipping
// the verification round trip. Requires EMAIL_WRITE.
func (s *Service) AdminEmailAdd(ctx context.Context, cctx *command.Context, cmd CommandAdminEmailAdd) (*ResponseAdminEmailAdd, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_email_add", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserEmailAdd{Admin: actor}); err != nil {
		return nil, err
	}
	if err := validEmail(cmd.Email); err != nil {
		return nil, err
	}

	tx := cctx.Transaction()
	if err := tx.Users().AddEmail(ctx, cmd.UserID, cmd.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("add email: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditEmailAdded, cmd.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	user, err := tx.Users().GetByID(ctx, cmd.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}
	return &ResponseAdminEmailAdd{User: publicUser(user)}, nil
}

// AdminEmailRemove removes an email address from a user account. Requires
// EMAIL_WRITE. The last address cannot be removed.
func (s *Service) AdminEmailRemove(ctx context.Context, cctx *command.Context, cmd CommandAdminEmailRemove) (*ResponseAdminEmailRemove, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_email_remove", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionUserEmailRemove{Admin: actor}); err != nil {
		return nil, err
	}

	tx := cctx.Transaction()
	user, err := tx.Users().GetByID(ctx, cmd.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}
	if len(user.Emails) <= 1 {
		return nil, errs.Validationf("the last email address on an account cannot be removed")
	}

	if err := tx.Users().RemoveEmail(ctx, cmd.UserID, cmd.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("remove email: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditEmailRemoved, cmd.Email); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	user, err = tx.Users().GetByID(ctx, cmd.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, &errs.CodedError{Code: errs.CodeUserNonexistent, MessageID: i18n.MsgUserNonexistent}
	}
	return &ResponseAdminEmailRemove{User: publicUser(user)}, nil
}

// AdminAuditRead searches the audit log. Requires AUDIT_READ.
func (s *Service) AdminAuditRead(ctx context.Context, cctx *command.Context, cmd CommandAdminAuditRead) (*ResponseAdminAuditRead, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_audit_read", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionAuditRead{Admin: actor}); err != nil {
		return nil, err
	}

	if cmd.To.Before(cmd.From) {
		return nil, errs.Validationf("time range end precedes start")
	}

	events, err := cctx.Transaction().Audit().Search(ctx, domain.AuditSearch{
		From:    cmd.From,
		To:      cmd.To,
		OwnerID: cmd.OwnerID,
		Limit:   cmd.Limit,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search audit: %w", err)
	}

	resp := &ResponseAdminAuditRead{Events: make([]AuditEvent, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, AuditEvent{
			ID:      ev.ID,
			Time:    ev.Time,
			OwnerID: ev.OwnerID,
			Type:    ev.Type,
			Message: ev.Message,
		})
	}
	return resp, nil
}

// AdminAdminCreate creates an administrator. Requires ADMIN_CREATE. An admin
// cannot grant a permission it does not itself hold.
func (s *Service) AdminAdminCreate(ctx context.Context, cctx *command.Context, cmd CommandAdminAdminCreate) (*ResponseAdminAdminCreate, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_admin_create", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionAdminCreate{Admin: actor}); err != nil {
		return nil, err
	}

	if cmd.IdName == "" || cmd.RealName == "" {
		return nil, errs.Validationf("id name and real name are required")
	}
	if err := validEmail(cmd.Email); err != nil {
		return nil, err
	}
	if err := s.checkPassword(cmd.Password, cmd.Password); err != nil {
		return nil, err
	}

	for _, name := range cmd.Permissions {
		if !actor.Permissions.Implies(policy.Permission(name)) {
			return nil, &errs.SecurityError{
				Reason: fmt.Sprintf("cannot grant the %s permission without holding it", name),
			}
		}
	}

	hash, err := hashPassword(cmd.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx := cctx.Transaction()
	id, err := tx.Admins().Create(ctx, domain.AdminCreate{
		IdName:       cmd.IdName,
		RealName:     cmd.RealName,
		Email:        cmd.Email,
		PasswordHash: hash,
		Permissions:  cmd.Permissions,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create admin: %w", err)
	}

	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditAdminCreated, id.String()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}

	admin, err := tx.Admins().GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query admin: %w", err)
	}
	if admin == nil {
		return nil, &errs.CodedError{Code: errs.CodeAdminNonexistent, MessageID: i18n.MsgAdminNonexistent}
	}
	return &ResponseAdminAdminCreate{Admin: publicAdmin(admin)}, nil
}

// AdminAdminRead reads an administrator record. Requires ADMIN_READ.
func (s *Service) AdminAdminRead(ctx context.Context, cctx *command.Context, cmd CommandAdminAdminRead) (*ResponseAdminAdminRead, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_admin_read", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionAdminRead{Admin: actor}); err != nil {
		return nil, err
	}

	admin, err := cctx.Transaction().Admins().GetByID(ctx, cmd.AdminID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query admin: %w", err)
	}
	if admin == nil {
		return nil, &errs.CodedError{Code: errs.CodeAdminNonexistent, MessageID: i18n.MsgAdminNonexistent}
	}
	return &ResponseAdminAdminRead{Admin: publicAdmin(admin)}, nil
}

// AdminAdminDelete removes an administrator. Requires ADMIN_DELETE. An admin
// cannot delete itself.
func (s *Service) AdminAdminDelete(ctx context.Context, cctx *command.Context, cmd CommandAdminAdminDelete) (*ResponseAdminAdminDelete, error) {
	ctx, span := middleware.StartSpan(ctx, "account.admin_admin_delete", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	actor, err := s.adminActor(cctx)
	if err != nil {
		return nil, err
	}
	if err := cctx.SecurityCheck(policy.AdminActionAdminDelete{Admin: actor}); err != nil {
		return nil, err
	}

	if cmd.AdminID == actor.ID {
		return nil, errs.Validationf("an administrator cannot delete itself")
	}

	tx := cctx.Transaction()
	admin, err := tx.Admins().GetByID(ctx, cmd.AdminID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query admin: %w", err)
	}
	if admin == nil {
		return nil, &errs.CodedError{Code: errs.CodeAdminNonexistent, MessageID: i18n.MsgAdminNonexistent}
	}

	if err := tx.Admins().Delete(ctx, cmd.AdminID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("delete admin: %w", err)
	}
	if err := tx.Audit().Put(ctx, cctx.Now(), actor.ID, auditAdminDeleted, cmd.AdminID.String()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record audit event: %w", err)
	}
	return &ResponseAdminAdminDelete{}, nil
}
