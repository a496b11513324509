package v1

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/io7m-com/idstore-sub007/internal/command"
	"github.com/io7m-com/idstore-sub007/internal/core/domain"
	"github.com/io7m-com/idstore-sub007/internal/session"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeTx is an in-memory domain.Transaction for handler tests.
type fakeTx struct {
	users  *fakeUsers
	admins *fakeAdmins
	emails *fakeEmails
	audit  *fakeAudit
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		users:  &fakeUsers{byID: map[uuid.UUID]*domain.User{}},
		admins: &fakeAdmins{byID: map[uuid.UUID]*domain.Admin{}},
		emails: &fakeEmails{
			verifications: map[string]domain.EmailVerification{},
			resets:        map[string]domain.PasswordReset{},
		},
		audit: &fakeAudit{},
	}
}

func (t *fakeTx) Users() domain.UserQueries   { return t.users }
func (t *fakeTx) Admins() domain.AdminQueries { return t.admins }
func (t *fakeTx) Emails() domain.EmailQueries { return t.emails }
func (t *fakeTx) Audit() domain.AuditQueries  { return t.audit }

func (t *fakeTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeUsers struct {
	byID map[uuid.UUID]*domain.User
	err  error
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f *fakeUsers) GetByName(ctx context.Context, idName string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if u.IdName == idName {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		for _, e := range u.Emails {
			if e == email {
				return u, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeUsers) Create(ctx context.Context, create domain.UserCreate) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	id := uuid.New()
	f.byID[id] = &domain.User{
		ID:           id,
		IdName:       create.IdName,
		RealName:     create.RealName,
		Emails:       []string{create.Email},
		PasswordHash: create.PasswordHash,
		Created:      testNow,
	}
	return id, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) Search(ctx context.Context, query string, limit int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.byID {
		out = append(out, *u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeUsers) UpdateRealName(ctx context.Context, id uuid.UUID, realName string) error {
	if u := f.byID[id]; u != nil {
		u.RealName = realName
	}
	return nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	if u := f.byID[id]; u != nil {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeUsers) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if u := f.byID[id]; u != nil {
		u.LastLogin = at
	}
	return nil
}

func (f *fakeUsers) AddEmail(ctx context.Context, id uuid.UUID, email string) error {
	if u := f.byID[id]; u != nil {
		u.Emails = append(u.Emails, email)
	}
	return nil
}

func (f *fakeUsers) RemoveEmail(ctx context.Context, id uuid.UUID, email string) error {
	u := f.byID[id]
	if u == nil {
		return nil
	}
	kept := u.Emails[:0]
	for _, e := range u.Emails {
		if e != email {
			kept = append(kept, e)
		}
	}
	u.Emails = kept
	return nil
}

func (f *fakeUsers) BanCreate(ctx context.Context, id uuid.UUID, ban domain.Ban) error {
	if u := f.byID[id]; u != nil {
		u.Ban = &ban
	}
	return nil
}

func (f *fakeUsers) BanDelete(ctx context.Context, id uuid.UUID) error {
	if u := f.byID[id]; u != nil {
		u.Ban = nil
	}
	return nil
}

type fakeAdmins struct {
	byID map[uuid.UUID]*domain.Admin
}

func (f *fakeAdmins) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	return f.byID[id], nil
}

func (f *fakeAdmins) GetByName(ctx context.Context, idName string) (*domain.Admin, error) {
	for _, a := range f.byID {
		if a.IdName == idName {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAdmins) Create(ctx context.Context, create domain.AdminCreate) (uuid.UUID, error) {
	id := uuid.New()
	f.byID[id] = &domain.Admin{
		ID:           id,
		IdName:       create.IdName,
		RealName:     create.RealName,
		Email:        create.Email,
		PasswordHash: create.PasswordHash,
		Permissions:  create.Permissions,
		Created:      testNow,
	}
	return id, nil
}

func (f *fakeAdmins) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeAdmins) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if a := f.byID[id]; a != nil {
		a.LastLogin = at
	}
	return nil
}

type fakeEmails struct {
	verifications map[string]domain.EmailVerification
	resets        map[string]domain.PasswordReset
}

func (f *fakeEmails) CreateVerification(ctx context.Context, v domain.EmailVerification) error {
	f.verifications[v.Token] = v
	return nil
}

func (f *fakeEmails) GetVerification(ctx context.Context, token string) (*domain.EmailVerification, error) {
	if v, ok := f.verifications[token]; ok {
		return &v, nil
	}
	return nil, nil
}

func (f *fakeEmails) DeleteVerification(ctx context.Context, token string) error {
	delete(f.verifications, token)
	return nil
}

func (f *fakeEmails) CreatePasswordReset(ctx context.Context, r domain.PasswordReset) error {
	f.resets[r.Token] = r
	return nil
}

func (f *fakeEmails) GetPasswordReset(ctx context.Context, token string) (*domain.PasswordReset, error) {
	if r, ok := f.resets[token]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeEmails) DeletePasswordReset(ctx context.Context, token string) error {
	delete(f.resets, token)
	return nil
}

type auditRecord struct {
	OwnerID uuid.UUID
	Type    string
	Message string
}

type fakeAudit struct {
	records []auditRecord
}

func (f *fakeAudit) Put(ctx context.Context, at time.Time, owner uuid.UUID, eventType, message string) error {
	f.records = append(f.records, auditRecord{OwnerID: owner, Type: eventType, Message: message})
	return nil
}

func (f *fakeAudit) Search(ctx context.Context, search domain.AuditSearch) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for i, r := range f.records {
		if search.OwnerID != nil && *search.OwnerID != r.OwnerID {
			continue
		}
		out = append(out, domain.AuditEvent{
			ID:      int64(i + 1),
			Time:    testNow,
			OwnerID: r.OwnerID,
			Type:    r.Type,
			Message: r.Message,
		})
	}
	return out, nil
}

// lastType returns the type of the most recent audit record.
func (f *fakeAudit) lastType() string {
	if len(f.records) == 0 {
		return ""
	}
	return f.records[len(f.records)-1].Type
}

// fakeLimiter admits or denies every attempt.
type fakeLimiter struct {
	allowed bool
	calls   int
}

func (f *fakeLimiter) IsAllowedByRateLimit(ctx context.Context, host, principal, operation string) bool {
	f.calls++
	return f.allowed
}

type sentMail struct {
	To        string
	Token     string
	Operation string
}

// fakeMail records outgoing messages.
type fakeMail struct {
	verifications []sentMail
	resets        []sentMail
	err           error
}

func (f *fakeMail) SendVerification(ctx context.Context, to, token, operation string) error {
	if f.err != nil {
		return f.err
	}
	f.verifications = append(f.verifications, sentMail{To: to, Token: token, Operation: operation})
	return nil
}

func (f *fakeMail) SendPasswordReset(ctx context.Context, to, token string) error {
	if f.err != nil {
		return f.err
	}
	f.resets = append(f.resets, sentMail{To: to, Token: token})
	return nil
}

// fixture wires a Service with fakes and exposes them to assertions.
type fixture struct {
	svc   *Service
	tx    *fakeTx
	mail  *fakeMail
	login *fakeLimiter
	reset *fakeLimiter
	vrfy  *fakeLimiter

	userSessions  *session.Store[*session.UserSession]
	adminSessions *session.Store[*session.AdminSession]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		tx:    newFakeTx(),
		mail:  &fakeMail{},
		login: &fakeLimiter{allowed: true},
		reset: &fakeLimiter{allowed: true},
		vrfy:  &fakeLimiter{allowed: true},
	}
	f.userSessions = session.NewUserStore(time.Hour, func() time.Time { return testNow }, nil)
	f.adminSessions = session.NewAdminStore(time.Hour, func() time.Time { return testNow }, nil)
	t.Cleanup(f.userSessions.Close)
	t.Cleanup(f.adminSessions.Close)

	f.svc = NewService(Dependencies{
		UserSessions:       f.userSessions,
		AdminSessions:      f.adminSessions,
		LoginLimiter:       f.login,
		ResetLimiter:       f.reset,
		VerifyLimiter:      f.vrfy,
		Mail:               f.mail,
		PasswordMinLength:  8,
		VerificationExpiry: 48 * time.Hour,
		ResetExpiry:        time.Hour,
	})
	return f
}

// cctx builds a request context over the fixture's transaction. sess may be
// nil for unauthenticated flows.
func (f *fixture) cctx(sess session.Session) *command.Context {
	return command.Create(command.Parameters{
		RequestID:  uuid.New(),
		Tx:         f.tx,
		Session:    sess,
		RemoteHost: "198.51.100.7",
		UserAgent:  "test/1.0",
		Locale:     "en-US",
		Now:        func() time.Time { return testNow },
		Logger:     zerolog.Nop(),
	})
}

// addUser inserts a user with a bcrypt hash of the given password.
func (f *fixture) addUser(t *testing.T, idName, password string, emails ...string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id := uuid.New()
	u := &domain.User{
		ID:           id,
		IdName:       idName,
		RealName:     idName,
		Emails:       emails,
		PasswordHash: string(hash),
		Created:      testNow,
	}
	f.tx.users.byID[id] = u
	return u
}

// addAdmin inserts an administrator with the given granted permissions.
func (f *fixture) addAdmin(t *testing.T, idName, password string, perms ...string) *domain.Admin {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id := uuid.New()
	a := &domain.Admin{
		ID:           id,
		IdName:       idName,
		RealName:     idName,
		Email:        idName + "@example.com",
		PasswordHash: string(hash),
		Permissions:  perms,
		Created:      testNow,
	}
	f.tx.admins.byID[id] = a
	return a
}
