// ABOUTME: Access-session state machine over the locally stored token
// ABOUTME: Tracks Unauthenticated/Guest/Authenticated/Expired and the route guard

package auth

import (
	"log/slog"
	"time"

	"github.com/mitra/mitra-client/internal/store"
)

// State is the access-gating state of the client session.
type State int

const (
	StateUnauthenticated State = iota
	StateGuest
	StateAuthenticated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateGuest:
		return "guest"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// View names used by the route guard.
const (
	ViewAuth = "auth"
	ViewChat = "chat"
)

// Session owns the access-token lifecycle. The stored token is decoded
// without signature verification, purely as a UI hint; the gateway backend
// is authoritative for validity.
type Session struct {
	tokens   store.TokenStore
	logger   *slog.Logger
	now      func() time.Time
	state    State
	identity *Identity
}

// NewSession creates a session over the given token storage.
// Pass nil logger for default.
func NewSession(tokens store.TokenStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		tokens: tokens,
		logger: logger.With("component", "auth"),
		now:    time.Now,
		state:  StateUnauthenticated,
	}
}

// State returns the current access state.
func (s *Session) State() State {
	return s.state
}

// Identity returns the decoded token projection, or nil outside
// StateAuthenticated.
func (s *Session) Identity() *Identity {
	return s.identity
}

// Load evaluates the stored token and settles the session state.
//
// A missing token with the guest flag set yields StateGuest. An undecodable
// token yields StateUnauthenticated and ErrTokenDecode. An expired token
// passes through StateExpired, clears all local session data, and settles on
// StateUnauthenticated with ErrTokenExpired; expiry is never silently
// ignored.
func (s *Session) Load() error {
	token, err := s.tokens.Token()
	if err != nil {
		return err
	}

	if token == "" {
		guest, err := s.tokens.GuestFlag()
		if err != nil {
			return err
		}
		if guest {
			s.transition(StateGuest, nil)
		} else {
			s.transition(StateUnauthenticated, nil)
		}
		return nil
	}

	ident, err := DecodeToken(token)
	if err != nil {
		s.transition(StateUnauthenticated, nil)
		return err
	}

	if !ident.ExpiresAt.IsZero() && ident.ExpiresAt.Before(s.now()) {
		s.transition(StateExpired, nil)
		if err := s.tokens.ClearSession(); err != nil {
			s.logger.Warn("clearing expired session", "error", err)
		}
		s.transition(StateUnauthenticated, nil)
		return ErrTokenExpired
	}

	s.transition(StateAuthenticated, ident)
	return nil
}

// SignIn stores the token returned by the gateway and settles state from it.
func (s *Session) SignIn(token string) error {
	if err := s.tokens.SetToken(token); err != nil {
		return err
	}
	return s.Load()
}

// EnterGuest marks guest mode locally and moves to StateGuest.
// Guest access is a local flag only; no token is involved.
func (s *Session) EnterGuest() error {
	if err := s.tokens.SetGuestFlag(true); err != nil {
		return err
	}
	s.transition(StateGuest, nil)
	return nil
}

// SignOut clears all local session data and moves to StateUnauthenticated.
func (s *Session) SignOut() error {
	if err := s.tokens.ClearSession(); err != nil {
		return err
	}
	s.transition(StateUnauthenticated, nil)
	return nil
}

// GuardRoute evaluates the route guard for the given view. It returns the
// view to redirect to and true, or "" and false when the view is allowed.
//
// Unauthenticated sessions are pushed to the auth entry view; guest and
// authenticated sessions are pushed away from it.
func (s *Session) GuardRoute(current string) (string, bool) {
	switch s.state {
	case StateUnauthenticated, StateExpired:
		if current != ViewAuth {
			return ViewAuth, true
		}
	case StateGuest, StateAuthenticated:
		if current == ViewAuth {
			return ViewChat, true
		}
	}
	return "", false
}

func (s *Session) transition(next State, ident *Identity) {
	if next != s.state {
		s.logger.Debug("session state change",
			"from", s.state.String(),
			"to", next.String())
	}
	s.state = next
	s.identity = ident
}
