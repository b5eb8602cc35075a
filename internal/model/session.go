package model

import (
	"errors"
	"fmt"
	"time"
)

type SessionState string

const (
	SessionSignedOut      SessionState = "signed_out"
	SessionAuthenticating SessionState = "authenticating"
	SessionSignedIn       SessionState = "signed_in"
)

var ErrInvalidTransition = errors.New("invalid session transition")

// Session tracks one sign-in attempt. SignedIn is terminal until SignOut.
type Session struct {
	State     SessionState `json:"state"`
	Remember  bool         `json:"remember_me"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
	Account   *Account     `json:"account,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// NewSession returns a signed-out session.
func NewSession(remember bool) *Session {
	return &Session{State: SessionSignedOut, Remember: remember}
}

// SessionFromClaims returns the signed-in session a validated token stands for.
func SessionFromClaims(c *Claims) *Session {
	s := &Session{State: SessionSignedIn, Remember: c.Remember}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

// Begin moves SignedOut to Authenticating.
func (s *Session) Begin() error {
	if s.State != SessionSignedOut {
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, s.State)
	}
	s.State = SessionAuthenticating
	s.Error = ""
	return nil
}

// Succeed moves Authenticating to SignedIn.
func (s *Session) Succeed(account *Account, token string, expiresAt time.Time) error {
	if s.State != SessionAuthenticating {
		return fmt.Errorf("%w: succeed from %s", ErrInvalidTransition, s.State)
	}
	s.State = SessionSignedIn
	s.Account = account
	s.Token = token
	s.ExpiresAt = expiresAt
	return nil
}

// Fail moves Authenticating back to SignedOut, recording the reason.
func (s *Session) Fail(reason error) error {
	if s.State != SessionAuthenticating {
		return fmt.Errorf("%w: fail from %s", ErrInvalidTransition, s.State)
	}
	s.State = SessionSignedOut
	s.Error = reason.Error()
	return nil
}

// End moves SignedIn back to SignedOut.
func (s *Session) End() error {
	if s.State != SessionSignedIn {
		return fmt.Errorf("%w: sign out from %s", ErrInvalidTransition, s.State)
	}
	*s = Session{State: SessionSignedOut, Remember: s.Remember}
	return nil
}
