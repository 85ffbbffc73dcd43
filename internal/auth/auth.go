package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/shared"
)

// TokenKey is the session key the credential is stored under.
const TokenKey = "token_info"

// DefaultStateTTL bounds how long a user may take to approve access.
const DefaultStateTTL = 10 * time.Minute

// CodeExchanger builds authorize URLs and redeems authorization codes.
type CodeExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// StateStore records issued states. Consume must fail with [shared.ErrNotFound] when the
// value was not issued to sessionID, was already consumed, or has expired at now.
// Get returns the stored state by value, consumed or not.
type StateStore interface {
	Issue(ctx context.Context, state *models.AuthState) error
	Consume(ctx context.Context, sessionID, value string, now time.Time) error
	Get(ctx context.Context, value string) (*models.AuthState, error)
}

// Session is the per-client key/value bag the token is kept in.
type Session interface {
	ID() string
	Get(key string, dst any) (bool, error)
	Set(key string, v any) error
}

// RedirectTarget is where the user is sent to approve access.
type RedirectTarget struct {
	URL   string
	State string
}

// CallbackParams are the query parameters of the provider's callback.
type CallbackParams struct {
	State string
	Code  string
	Error string
}

// Manager implements the authorization flow.
type Manager struct {
	exchanger CodeExchanger
	states    StateStore
	stateTTL  time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewManager creates a Manager. A non-positive ttl falls back to [DefaultStateTTL]; a nil logger discards output.
func NewManager(exchanger CodeExchanger, states StateStore, ttl time.Duration, logger *log.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		exchanger: exchanger,
		states:    states,
		stateTTL:  ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// BeginAuthorization issues a fresh state for sess and returns the provider authorize URL carrying it.
func (m *Manager) BeginAuthorization(ctx context.Context, sess Session) (RedirectTarget, error) {
	value, err := shared.GenerateState()
	if err != nil {
		return RedirectTarget{}, fmt.Errorf("failed to generate state: %w", err)
	}

	state := models.NewAuthState(sess.ID(), value, m.now(), m.stateTTL)
	if err := m.states.Issue(ctx, state); err != nil {
		return RedirectTarget{}, fmt.Errorf("failed to record state: %w", err)
	}

	m.logger.Debug("authorization started", "session", sess.ID(), "expires_at", state.ExpiresAt())

	return RedirectTarget{URL: m.exchanger.AuthCodeURL(value), State: value}, nil
}

// CompleteAuthorization validates a callback and exchanges its code.
//
// Checks run in order: a provider error gives [shared.ErrProviderDenied], a missing code
// [shared.ErrMissingCode], a state that is unknown, expired, reused or bound to another
// session [shared.ErrStateMismatch], and a failed exchange [shared.ErrInvalidCode].
// The session is not modified.
func (m *Manager) CompleteAuthorization(ctx context.Context, sess Session, params CallbackParams) (*models.TokenInfo, error) {
	if params.Error != "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrProviderDenied, params.Error)
	}
	if params.Code == "" {
		return nil, shared.ErrMissingCode
	}
	if params.State == "" {
		return nil, fmt.Errorf("%w: no state in callback", shared.ErrStateMismatch)
	}

	now := m.now()
	if err := m.states.Consume(ctx, sess.ID(), params.State, now); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			reason := m.rejection(ctx, sess.ID(), params.State, now)
			m.logger.Warn("authorization state rejected", "session", sess.ID(), "reason", reason)
			return nil, fmt.Errorf("%w: %s", shared.ErrStateMismatch, reason)
		}
		return nil, fmt.Errorf("failed to consume state: %w", err)
	}

	tok, err := m.exchanger.Exchange(ctx, params.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCode, err)
	}

	info := models.NewTokenInfo(tok)
	if !info.Valid() {
		return nil, fmt.Errorf("%w: exchange returned no access token", shared.ErrInvalidCode)
	}

	m.logger.Debug("authorization completed", "session", sess.ID(), "scopes", info.Scopes)
	return info, nil
}

// rejection explains why Consume refused value. The states are reported in the
// order they are checked: unknown, reused, issued to another session, expired.
func (m *Manager) rejection(ctx context.Context, sessionID, value string, now time.Time) string {
	state, err := m.states.Get(ctx, value)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return "unknown state"
	case err != nil:
		m.logger.Debug("state lookup failed", "error", err)
		return "unverifiable state"
	case state.ConsumedAt() != nil:
		return "reused state"
	case state.SessionID() != sessionID:
		return "state issued to another session"
	case state.Expired(now):
		return "expired state"
	default:
		return "rejected state"
	}
}

// StoreToken writes tok into sess, replacing any earlier token.
func (m *Manager) StoreToken(sess Session, tok *models.TokenInfo) error {
	if err := sess.Set(TokenKey, tok); err != nil {
		return fmt.Errorf("%w: store token: %v", shared.ErrSession, err)
	}
	return nil
}

// LoadToken reads the token from sess. It fails with [shared.ErrNotAuthenticated] when none is stored.
func (m *Manager) LoadToken(sess Session) (*models.TokenInfo, error) {
	var tok models.TokenInfo
	ok, err := sess.Get(TokenKey, &tok)
	if err != nil {
		return nil, fmt.Errorf("%w: load token: %v", shared.ErrSession, err)
	}
	if !ok || !tok.Valid() {
		return nil, shared.ErrNotAuthenticated
	}
	return &tok, nil
}
