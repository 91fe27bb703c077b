package oauth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 12 * time.Hour

// Session is the per-browser state of the dashboard.
type Session struct {
	ID string
	// State is the value sent with the pending authorization request.
	State string
	Token *Token
	// Year and Month hold the last selected period; zero means unset.
	Year     int
	Month    time.Month
	LastCode string
	LastSeen time.Time
}

// Authenticated reports whether the session holds usable tokens.
func (s Session) Authenticated() bool {
	return s.Token != nil && s.Token.Usable()
}

// NewState returns a fresh opaque state value.
func NewState() string {
	return uuid.NewString()
}

// SessionStore keeps sessions in memory. Sessions are copied in and out so
// callers never share mutable state.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithSessionTTL sets the idle expiry.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionClock overrides the time source.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore returns an empty store.
func NewSessionStore(opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]Session),
		ttl:      DefaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session with a random id.
func (s *SessionStore) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := Session{ID: uuid.NewString(), LastSeen: s.now()}
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session and refreshes its idle timer.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	now := s.now()
	if now.Sub(sess.LastSeen) >= s.ttl {
		delete(s.sessions, id)
		return Session{}, false
	}
	sess.LastSeen = now
	s.sessions[id] = sess
	return sess, true
}

// Save replaces a stored session.
func (s *SessionStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return ErrSessionNotFound
	}
	sess.LastSeen = s.now()
	s.sessions[sess.ID] = sess
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep drops idle sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen) >= s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Authenticated returns the number of sessions holding tokens.
func (s *SessionStore) Authenticated() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sess := range s.sessions {
		if sess.Authenticated() {
			n++
		}
	}
	return n
}
