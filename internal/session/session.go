// Package session issues, looks up, and expires the opaque session handles
// held by logged-in users and administrators. Sessions live only in memory;
// a server restart logs everyone out.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"

	"github.com/google/uuid"

	"github.com/io7m-com/idstore-sub007/internal/policy"
)

// Secret is a session secret identifier: a cryptographically random, URL-safe
// opaque token. It is never derived from the principal's identity.
type Secret string

const secretBytes = 32 // 256 bits

// NewSecret generates a fresh secret identifier. Failure to read random bytes
// crashes the process; there is no meaningful recovery from a broken CSPRNG.
func NewSecret() Secret {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		panic("session: failed to generate secret: " + err.Error())
	}
	return Secret(base64.RawURLEncoding.EncodeToString(b))
}

// Session is a live session borrowed from a Store for the duration of one
// request. Implementations are safe for concurrent use.
type Session interface {
	Secret() Secret
	PrincipalID() uuid.UUID

	// SetDisplayMessage stores a one-shot notice to be shown to the
	// principal once, replacing any previous notice.
	SetDisplayMessage(message string)

	// TakeDisplayMessage returns and clears the pending notice, if any.
	TakeDisplayMessage() (string, bool)
}

type base struct {
	secret    Secret
	principal uuid.UUID

	mu      sync.Mutex
	message string
	pending bool
}

func (b *base) Secret() Secret {
	return b.secret
}

func (b *base) PrincipalID() uuid.UUID {
	return b.principal
}

func (b *base) SetDisplayMessage(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.message = message
	b.pending = true
}

func (b *base) TakeDisplayMessage() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pending {
		return "", false
	}
	msg := b.message
	b.message = ""
	b.pending = false
	return msg, true
}

// UserSession is a session held by an end user.
type UserSession struct {
	base
}

// AdminSession is a session held by an administrator. Permissions are the
// admin's expanded permission set, resolved once at login.
type AdminSession struct {
	base

	Permissions policy.PermissionSet
}
