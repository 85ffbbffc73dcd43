package models

import (
	"fmt"
	"time"
)

var _ Model = (*AuthState)(nil)

// AuthState is an anti-forgery value tying one OAuth callback to the session that started the flow.
//
// A state is valid for a single callback, only for the session it was issued to, and only until ExpiresAt.
type AuthState struct {
	id         string
	sequence   int
	sessionID  string
	value      string
	createdAt  time.Time
	expiresAt  time.Time
	consumedAt *time.Time
}

// NewAuthState creates a state for sessionID that expires ttl after now.
func NewAuthState(sessionID, value string, now time.Time, ttl time.Duration) *AuthState {
	return &AuthState{
		sessionID: sessionID,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

func (s *AuthState) ID() string                 { return s.id }
func (s *AuthState) Sequence() int              { return s.sequence }
func (s *AuthState) SessionID() string          { return s.sessionID }
func (s *AuthState) Value() string              { return s.value }
func (s *AuthState) CreatedAt() time.Time       { return s.createdAt }
func (s *AuthState) ExpiresAt() time.Time       { return s.expiresAt }
func (s *AuthState) ConsumedAt() *time.Time     { return s.consumedAt }
func (s *AuthState) SetID(id string)            { s.id = id }
func (s *AuthState) SetSequence(seq int)        { s.sequence = seq }
func (s *AuthState) SetConsumedAt(t *time.Time) { s.consumedAt = t }

// Expired reports whether the state can no longer be used at now.
func (s *AuthState) Expired(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

// Validate checks the required fields.
func (s *AuthState) Validate() error {
	if s.sessionID == "" {
		return fmt.Errorf("auth state session id is required")
	}
	if s.value == "" {
		return fmt.Errorf("auth state value is required")
	}
	if !s.expiresAt.After(s.createdAt) {
		return fmt.Errorf("auth state must expire after it is created")
	}
	return nil
}
