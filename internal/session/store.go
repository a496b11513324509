package session

import (
	"time"

	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Store holds the live sessions of one principal type. Lookups refresh the
// session's idle-expiry clock (expire-after-access): an active principal is
// never logged out by lookups alone, while a session with no lookups for the
// configured timeout expires automatically.
//
// A Store is safe for use by many concurrent request workers. Expiration runs
// on a single background janitor started by Start; foreground Find observes
// removals atomically because both paths hold the store mutex.
type Store[S Session] struct {
	mu      sync.Mutex
	entries map[Secret]*entry[S]

	timeout time.Duration
	now     func() time.Time
	create  func(secret Secret, principal uuid.UUID) S
	active  prometheus.Gauge

	done chan struct{}
}

type entry[S Session] struct {
	session    S
	lastAccess time.Time
}

// NewStore creates a store with the given idle timeout and session factory.
// now may be nil, defaulting to time.Now; active may be nil to disable the
// live-count signal.
func NewStore[S Session](
	timeout time.Duration,
	now func() time.Time,
	active prometheus.Gauge,
	create func(secret Secret, principal uuid.UUID) S,
) *Store[S] {
	if now == nil {
		now = time.Now
	}
	return &Store[S]{
		entries: make(map[Secret]*entry[S]),
		timeout: timeout,
		now:     now,
		create:  create,
		active:  active,
		done:    make(chan struct{}),
	}
}

// NewUserStore creates a store for end-user sessions.
func NewUserStore(timeout time.Duration, now func() time.Time, active prometheus.Gauge) *Store[*UserSession] {
	return NewStore(timeout, now, active, func(secret Secret, principal uuid.UUID) *UserSession {
		return &UserSession{base: base{secret: secret, principal: principal}}
	})
}

// NewAdminStore creates a store for administrator sessions.
func NewAdminStore(timeout time.Duration, now func() time.Time, active prometheus.Gauge) *Store[*AdminSession] {
	return NewStore(timeout, now, active, func(secret Secret, principal uuid.UUID) *AdminSession {
		return &AdminSession{base: base{secret: secret, principal: principal}}
	})
}

// Create generates a fresh secret identifier and inserts a new session for
// the given principal. A secret collision indicates a broken CSPRNG or a
// programming error and crashes the process.
func (s *Store[S]) Create(principal uuid.UUID) S {
	secret := NewSecret()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[secret]; exists {
		panic("session: secret identifier collision")
	}

	sess := s.create(secret, principal)
	s.entries[secret] = &entry[S]{session: sess, lastAccess: s.now()}
	if s.active != nil {
		s.active.Inc()
	}
	return sess
}

// Find returns the session with the given secret, refreshing its idle-expiry
// clock. A session whose idle timeout has elapsed is removed and reported as
// absent. Not finding a session is a normal outcome, not an error.
func (s *Store[S]) Find(secret Secret) (S, bool) {
	var zero S

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[secret]
	if !ok {
		return zero, false
	}

	now := s.now()
	if now.Sub(e.lastAccess) > s.timeout {
		delete(s.entries, secret)
		if s.active != nil {
			s.active.Dec()
		}
		return zero, false
	}

	e.lastAccess = now
	return e.session, true
}

// Delete removes the session with the given secret. Deleting an absent
// session is a no-op.
func (s *Store[S]) Delete(secret Secret) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[secret]; ok {
		delete(s.entries, secret)
		if s.active != nil {
			s.active.Dec()
		}
	}
}

// Count returns the number of live sessions.
func (s *Store[S]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start launches the background janitor that evicts idle sessions. Call
// Close to stop it.
func (s *Store[S]) Start() {
	interval := s.timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	go s.janitor(interval)
}

// Close stops the janitor and drops all sessions.
func (s *Store[S]) Close() {
	close(s.done)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Sub(float64(len(s.entries)))
	}
	s.entries = make(map[Secret]*entry[S])
}

func (s *Store[S]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store[S]) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for secret, e := range s.entries {
		if now.Sub(e.lastAccess) > s.timeout {
			delete(s.entries, secret)
			if s.active != nil {
				s.active.Dec()
			}
		}
	}
}
