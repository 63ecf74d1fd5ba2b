package domain

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
	ErrSessionClosed        = errors.New("session closed")
)

// SessionState is the handshake state of a connection.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session tracks the handshake state and bound identity of one connection.
// An identity is assigned at most once; Closed is terminal.
type Session struct {
	ID           string
	state        SessionState
	identity     Identity
	CreatedAt    time.Time
	lastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		state:        StateUnauthenticated,
		CreatedAt:    now,
		lastActiveAt: now,
	}
}

// Authenticate binds the identity and moves the session to Authenticated.
func (s *Session) Authenticate(identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAuthenticated:
		return ErrAlreadyAuthenticated
	case StateClosed:
		return ErrSessionClosed
	}

	s.identity = identity
	s.state = StateAuthenticated
	s.lastActiveAt = time.Now()
	return nil
}

// Close moves the session to Closed and reports the previous state.
func (s *Session) Close() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = StateClosed
	return prev
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// Identity returns the bound identity. ok is false until the handshake
// succeeds; a closed session keeps reporting the identity it had.
func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.identity.UserID != 0
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
