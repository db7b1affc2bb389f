package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state of one browser session. It carries the
// anti-forgery state for an in-flight federated login, the serialized token
// cache once the exchange has happened, and the local user id once
// authenticated. Created at login-page render, consumed at the callback,
// cleared at logout.
type Session struct {
	Token string
	// State is the anti-forgery token round-tripped through the
	// authorization redirect. Regenerated on every login attempt, so an
	// abandoned flow's value is simply overwritten.
	State string
	// TokenCache holds the serialized provider token set after a
	// successful exchange. Opaque to everything but the auth workflow.
	TokenCache []byte
	// Claims are the verified identity claims for federated sessions,
	// nil for local-password sessions.
	Claims     *Claims
	UserID     *uint
	RememberMe bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Authenticated reports whether the session is bound to a local user
func (s *Session) Authenticated() bool {
	return s.UserID != nil
}

// Federated reports whether the session was established via the identity provider
func (s *Session) Federated() bool {
	return s.Claims != nil
}

// SessionStore keeps auth sessions in memory, keyed by the cookie token.
// Expired entries are dropped on read and swept opportunistically on write.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	ttl         time.Duration
	rememberTTL time.Duration
}

// NewSessionStore creates a session store with the given lifetimes
func NewSessionStore(ttl, rememberTTL time.Duration) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		rememberTTL: rememberTTL,
	}
}

// Create allocates a new anonymous session and returns it
func (st *SessionStore) Create() *Session {
	now := time.Now()
	sess := &Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(st.ttl),
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked(now)
	st.sessions[sess.Token] = sess
	return sess
}

// Get retrieves a session by token. Returns false if the session does not
// exist or has expired.
func (st *SessionStore) Get(token string) (*Session, bool) {
	st.mu.RLock()
	sess, ok := st.sessions[token]
	st.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(sess.ExpiresAt) {
		st.Delete(token)
		return nil, false
	}
	return sess, true
}

// Put stores the session back after a workflow mutated it, extending the
// lifetime according to the remember-me flag.
func (st *SessionStore) Put(sess *Session) {
	now := time.Now()
	ttl := st.ttl
	if sess.RememberMe {
		ttl = st.rememberTTL
	}
	sess.ExpiresAt = now.Add(ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[sess.Token] = sess
}

// Delete removes a session by token
func (st *SessionStore) Delete(token string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, token)
}

// Len returns the number of live sessions
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *SessionStore) sweepLocked(now time.Time) {
	for token, sess := range st.sessions {
		if now.After(sess.ExpiresAt) {
			delete(st.sessions, token)
		}
	}
}
