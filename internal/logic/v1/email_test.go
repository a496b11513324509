package v1

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
	"github.com/io7m-com/idstore-sub007/internal/errs"
)

func TestEmailAddRoundTrip(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com")
	sess := f.userSessions.Create(user.ID)
	ctx := context.Background()

	if _, err := f.svc.EmailAddBegin(ctx, f.cctx(sess), CommandEmailAddBegin{
		Email: "alice@work.example.com",
	}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if len(f.mail.verifications) != 1 {
		t.Fatalf("sent mails: got %d, want 1", len(f.mail.verifications))
	}
	sent := f.mail.verifications[0]
	if sent.To != "alice@work.example.com" {
		t.Errorf("mail recipient: got %q", sent.To)
	}
	if sent.Operation != domain.EmailOpAdd {
		t.Errorf("mail operation: got %q", sent.Operation)
	}

	// Nothing on the account until the token is confirmed.
	if got := len(user.Emails); got != 1 {
		t.Fatalf("emails before permit: got %d, want 1", got)
	}

	if _, err := f.svc.EmailAddPermit(ctx, f.cctx(sess), CommandEmailAddPermit{
		Token: sent.Token,
	}); err != nil {
		t.Fatalf("permit: %v", err)
	}

	if got := len(user.Emails); got != 2 {
		t.Fatalf("emails after permit: got %d, want 2", got)
	}
	if len(f.tx.emails.verifications) != 0 {
		t.Error("verification token must be consumed")
	}
	if msg, ok := sess.TakeDisplayMessage(); !ok || msg == "" {
		t.Error("a display notice should be pending after permit")
	}
}

func TestEmailAddBeginRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com")
	f.addUser(t, "bob", "open sesame 2", "bob@example.com")
	sess := f.userSessions.Create(user.ID)

	_, err := f.svc.EmailAddBegin(context.Background(), f.cctx(sess), CommandEmailAddBegin{
		Email: "bob@example.com",
	})
	var validation *errs.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestEmailAddBeginRateLimited(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com")
	sess := f.userSessions.Create(user.ID)
	f.vrfy.allowed = false

	_, err := f.svc.EmailAddBegin(context.Background(), f.cctx(sess), CommandEmailAddBegin{
		Email: "alice@work.example.com",
	})
	if got := codeOf(t, err); got != errs.CodeRateLimited {
		t.Errorf("code: got %q, want %q", got, errs.CodeRateLimited)
	}
	if len(f.mail.verifications) != 0 {
		t.Error("no mail may be sent when rate limited")
	}
}

func TestEmailAddPermitForeignToken(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", "open sesame 1", "alice@example.com")
	bob := f.addUser(t, "bob", "open sesame 2", "bob@example.com")

	aliceSess := f.userSessions.Create(alice.ID)
	if _, err := f.svc.EmailAddBegin(context.Background(), f.cctx(aliceSess), CommandEmailAddBegin{
		Email: "alice@work.example.com",
	}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	token := f.mail.verifications[0].Token

	// Bob cannot confirm Alice's token.
	bobSess := f.userSessions.Create(bob.ID)
	_, err := f.svc.EmailAddPermit(context.Background(), f.cctx(bobSess), CommandEmailAddPermit{
		Token: token,
	})
	if got := codeOf(t, err); got != errs.CodeEmailVerifFailed {
		t.Errorf("code: got %q, want %q", got, errs.CodeEmailVerifFailed)
	}
}

func TestEmailAddPermitExpiredToken(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com")
	sess := f.userSessions.Create(user.ID)

	f.tx.emails.verifications["stale"] = domain.EmailVerification{
		Token:     "stale",
		UserID:    user.ID,
		Email:     "alice@work.example.com",
		Operation: domain.EmailOpAdd,
		Expires:   testNow.Add(-time.Minute),
	}

	_, err := f.svc.EmailAddPermit(context.Background(), f.cctx(sess), CommandEmailAddPermit{
		Token: "stale",
	})
	if got := codeOf(t, err); got != errs.CodeEmailVerifFailed {
		t.Errorf("code: got %q, want %q", got, errs.CodeEmailVerifFailed)
	}
}

func TestEmailAddDenyDiscardsToken(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com")
	sess := f.userSessions.Create(user.ID)
	ctx := context.Background()

	if _, err := f.svc.EmailAddBegin(ctx, f.cctx(sess), CommandEmailAddBegin{
		Email: "alice@work.example.com",
	}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	token := f.mail.verifications[0].Token

	if _, err := f.svc.EmailAddDeny(ctx, f.cctx(sess), CommandEmailAddDeny{Token: token}); err != nil {
		t.Fatalf("deny: %v", err)
	}

	if got := len(user.Emails); got != 1 {
		t.Errorf("emails after deny: got %d, want 1", got)
	}
	if len(f.tx.emails.verifications) != 0 {
		t.Error("denied token must be discarded")
	}
}

func TestEmailRemoveRoundTrip(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com", "alice@work.example.com")
	sess := f.userSessions.Create(user.ID)
	ctx := context.Background()

	if _, err := f.svc.EmailRemoveBegin(ctx, f.cctx(sess), CommandEmailRemoveBegin{
		Email: "alice@work.example.com",
	}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	token := f.mail.verifications[0].Token

	if _, err := f.svc.EmailRemovePermit(ctx, f.cctx(sess), CommandEmailRemovePermit{
		Token: token,
	}); err != nil {
		t.Fatalf("permit: %v", err)
	}

	if got := len(user.Emails); got != 1 {
		t.Fatalf("emails after removal: got %d, want 1", got)
	}
	if user.Emails[0] != "alice@example.com" {
		t.Errorf("remaining email: got %q", user.Emails[0])
	}
}

func TestEmailRemoveBeginLastAddress(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com")
	sess := f.userSessions.Create(user.ID)

	_, err := f.svc.EmailRemoveBegin(context.Background(), f.cctx(sess), CommandEmailRemoveBegin{
		Email: "alice@example.com",
	})
	var validation *errs.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("the last address must not be removable, got %v", err)
	}
}

func TestEmailRemoveBeginUnownedAddress(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com", "alice@work.example.com")
	sess := f.userSessions.Create(user.ID)

	_, err := f.svc.EmailRemoveBegin(context.Background(), f.cctx(sess), CommandEmailRemoveBegin{
		Email: "bob@example.com",
	})
	if got := codeOf(t, err); got != errs.CodeEmailNonexistent {
		t.Errorf("code: got %q, want %q", got, errs.CodeEmailNonexistent)
	}
}

func TestEmailRemovePermitRechecksLastAddress(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "alice", "open sesame 1", "alice@example.com", "alice@work.example.com")
	sess := f.userSessions.Create(user.ID)
	ctx := context.Background()

	if _, err := f.svc.EmailRemoveBegin(ctx, f.cctx(sess), CommandEmailRemoveBegin{
		Email: "alice@work.example.com",
	}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	token := f.mail.verifications[0].Token

	// The account lost an address between begin and permit.
	user.Emails = []string{"alice@work.example.com"}

	_, err := f.svc.EmailRemovePermit(ctx, f.cctx(sess), CommandEmailRemovePermit{
		Token: token,
	})
	var validation *errs.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("removal of the now-last address must fail, got %v", err)
	}
}
