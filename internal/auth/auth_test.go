package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/repositories"
	"github.com/desertthunder/spotalyze/internal/shared"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
	codes []string
}

func (f *fakeExchanger) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("scope", "user-library-read playlist-modify-private")
	return "https://accounts.example.com/authorize?" + q.Encode()
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.codes = append(f.codes, code)
	return f.token, f.err
}

type failingStore struct{ err error }

func (s failingStore) Issue(ctx context.Context, state *models.AuthState) error { return s.err }
func (s failingStore) Consume(ctx context.Context, sessionID, value string, now time.Time) error {
	return s.err
}
func (s failingStore) Get(ctx context.Context, value string) (*models.AuthState, error) {
	return nil, s.err
}

// mapSession records writes so tests can assert the session was left alone.
type mapSession struct {
	id     string
	values map[string]any
	writes int
}

func newMapSession(id string) *mapSession {
	return &mapSession{id: id, values: map[string]any{}}
}

func (s *mapSession) ID() string { return s.id }

func (s *mapSession) Get(key string, dst any) (bool, error) {
	v, ok := s.values[key]
	if !ok {
		return false, nil
	}
	tok, isTok := v.(*models.TokenInfo)
	out, wantTok := dst.(*models.TokenInfo)
	if !isTok || !wantTok {
		return true, errors.New("type mismatch")
	}
	*out = *tok
	return true, nil
}

func (s *mapSession) Set(key string, v any) error {
	s.writes++
	s.values[key] = v
	return nil
}

func newStateStore(t *testing.T) *repositories.AuthStateRepository {
	t.Helper()
	db, err := shared.OpenMemoryDatabase(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repositories.NewAuthStateRepository(db)
}

func validToken() *oauth2.Token {
	return (&oauth2.Token{AccessToken: "access", TokenType: "Bearer"}).
		WithExtra(map[string]any{"scope": "user-library-read playlist-modify-private"})
}

func TestBeginAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a fresh state per call", func(t *testing.T) {
		store := newStateStore(t)
		m := NewManager(&fakeExchanger{}, store, time.Minute, nil)
		sess := newMapSession("session-1")

		first, err := m.BeginAuthorization(ctx, sess)
		require.NoError(t, err)
		second, err := m.BeginAuthorization(ctx, sess)
		require.NoError(t, err)

		assert.Len(t, first.State, 32)
		assert.NotEqual(t, first.State, second.State)

		u, err := url.Parse(first.URL)
		require.NoError(t, err)
		assert.Equal(t, first.State, u.Query().Get("state"))
		assert.Equal(t, "user-library-read playlist-modify-private", u.Query().Get("scope"))

		stored, err := store.Get(ctx, first.State)
		require.NoError(t, err)
		assert.Equal(t, "session-1", stored.SessionID())
		assert.Zero(t, sess.writes, "beginning the flow does not touch the session")
	})

	t.Run("store failure", func(t *testing.T) {
		m := NewManager(&fakeExchanger{}, failingStore{err: errors.New("disk full")}, 0, nil)

		_, err := m.BeginAuthorization(ctx, newMapSession("s"))
		assert.Error(t, err)
	})
}

func TestCompleteAuthorization(t *testing.T) {
	ctx := context.Background()

	begin := func(t *testing.T, m *Manager, sess Session) string {
		t.Helper()
		target, err := m.BeginAuthorization(ctx, sess)
		require.NoError(t, err)
		return target.State
	}

	t.Run("provider error wins over everything else", func(t *testing.T) {
		inputs := []CallbackParams{
			{Error: "access_denied"},
			{Error: "access_denied", Code: "xyz"},
			{Error: "access_denied", Code: "xyz", State: "abc"},
			{Error: "server_error", State: "abc"},
		}
		for _, params := range inputs {
			ex := &fakeExchanger{token: validToken()}
			m := NewManager(ex, newStateStore(t), time.Minute, nil)

			_, err := m.CompleteAuthorization(ctx, newMapSession("s"), params)
			assert.ErrorIs(t, err, shared.ErrProviderDenied)
			assert.Contains(t, err.Error(), params.Error)
			assert.Empty(t, ex.codes)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		for _, state := range []string{"", "abc"} {
			m := NewManager(&fakeExchanger{token: validToken()}, newStateStore(t), time.Minute, nil)

			_, err := m.CompleteAuthorization(ctx, newMapSession("s"), CallbackParams{State: state})
			assert.ErrorIs(t, err, shared.ErrMissingCode)
		}
	})

	t.Run("exchange returns nothing", func(t *testing.T) {
		m := NewManager(&fakeExchanger{}, newStateStore(t), time.Minute, nil)
		sess := newMapSession("s")
		state := begin(t, m, sess)

		tok, err := m.CompleteAuthorization(ctx, sess, CallbackParams{State: state, Code: "xyz"})
		assert.Nil(t, tok)
		assert.ErrorIs(t, err, shared.ErrInvalidCode)
		assert.Zero(t, sess.writes)
	})

	t.Run("exchange fails", func(t *testing.T) {
		m := NewManager(&fakeExchanger{err: errors.New("invalid_grant")}, newStateStore(t), time.Minute, nil)
		sess := newMapSession("s")
		state := begin(t, m, sess)

		_, err := m.CompleteAuthorization(ctx, sess, CallbackParams{State: state, Code: "xyz"})
		assert.ErrorIs(t, err, shared.ErrInvalidCode)
	})

	t.Run("exchange without access token", func(t *testing.T) {
		m := NewManager(&fakeExchanger{token: &oauth2.Token{}}, newStateStore(t), time.Minute, nil)
		sess := newMapSession("s")
		state := begin(t, m, sess)

		_, err := m.CompleteAuthorization(ctx, sess, CallbackParams{State: state, Code: "xyz"})
		assert.ErrorIs(t, err, shared.ErrInvalidCode)
	})

	t.Run("success", func(t *testing.T) {
		ex := &fakeExchanger{token: validToken()}
		m := NewManager(ex, newStateStore(t), time.Minute, nil)
		sess := newMapSession("s")
		state := begin(t, m, sess)

		tok, err := m.CompleteAuthorization(ctx, sess, CallbackParams{State: state, Code: "xyz"})
		require.NoError(t, err)

		assert.Equal(t, "access", tok.AccessToken)
		assert.Equal(t, []string{"user-library-read", "playlist-modify-private"}, tok.Scopes)
		assert.Equal(t, []string{"xyz"}, ex.codes)
		assert.Zero(t, sess.writes, "the caller persists the token")
	})

	t.Run("unknown state", func(t *testing.T) {
		ex := &fakeExchanger{token: validToken()}
		m := NewManager(ex, newStateStore(t), time.Minute, nil)

		_, err := m.CompleteAuthorization(ctx, newMapSession("s"), CallbackParams{State: "abc", Code: "xyz"})
		assert.ErrorIs(t, err, shared.ErrStateMismatch)
		assert.ErrorContains(t, err, "unknown state")
		assert.Empty(t, ex.codes, "code must not be exchanged on state mismatch")
	})

	t.Run("empty state", func(t *testing.T) {
		m := NewManager(&fakeExchanger{token: validToken()}, newStateStore(t), time.Minute, nil)

		_, err := m.CompleteAuthorization(ctx, newMapSession("s"), CallbackParams{Code: "xyz"})
		assert.ErrorIs(t, err, shared.ErrStateMismatch)
	})

	t.Run("state from another session", func(t *testing.T) {
		m := NewManager(&fakeExchanger{token: validToken()}, newStateStore(t), time.Minute, nil)
		state := begin(t, m, newMapSession("victim"))

		_, err := m.CompleteAuthorization(ctx, newMapSession("attacker"), CallbackParams{State: state, Code: "xyz"})
		assert.ErrorIs(t, err, shared.ErrStateMismatch)
		assert.ErrorContains(t, err, "state issued to another session")
	})

	t.Run("state is single use", func(t *testing.T) {
		m := NewManager(&fakeExchanger{token: validToken()}, newStateStore(t), time.Minute, nil)
		sess := newMapSession("s")
		state := begin(t, m, sess)

		_, err := m.CompleteAuthorization(ctx, sess, CallbackParams{State: state, Code: "xyz"})
		require.NoError(t, err)

		_, err = m.CompleteAuthorization(ctx, sess, CallbackParams{State: state, Code: "xyz"})
		assert.ErrorIs(t, err, shared.ErrStateMismatch)
		assert.ErrorContains(t, err, "reused state")
	})

	t.Run("expired state", func(t *testing.T) {
		m := NewManager(&fakeExchanger{token: validToken()}, newStateStore(t), time.Minute, nil)
		issued := time.Now()
		m.now = func() time.Time { return issued }
		sess := newMapSession("s")
		state := begin(t, m, sess)

		m.now = func() time.Time { return issued.Add(2 * time.Minute) }
		_, err := m.CompleteAuthorization(ctx, sess, CallbackParams{State: state, Code: "xyz"})
		assert.ErrorIs(t, err, shared.ErrStateMismatch)
		assert.ErrorContains(t, err, "expired state")
	})

	t.Run("rejection reason is logged", func(t *testing.T) {
		buf := &bytes.Buffer{}
		m := NewManager(&fakeExchanger{token: validToken()}, newStateStore(t), time.Minute, log.New(buf))

		_, err := m.CompleteAuthorization(ctx, newMapSession("s"), CallbackParams{State: "abc", Code: "xyz"})
		require.Error(t, err)
		assert.Contains(t, buf.String(), "authorization state rejected")
		assert.Contains(t, buf.String(), "unknown state")
	})

	t.Run("store failure is not a mismatch", func(t *testing.T) {
		m := NewManager(&fakeExchanger{token: validToken()}, failingStore{err: errors.New("db closed")}, time.Minute, nil)

		_, err := m.CompleteAuthorization(ctx, newMapSession("s"), CallbackParams{State: "abc", Code: "xyz"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrStateMismatch)
	})
}

func TestTokenStorage(t *testing.T) {
	m := NewManager(&fakeExchanger{}, failingStore{}, time.Minute, nil)

	t.Run("LoadToken without token", func(t *testing.T) {
		_, err := m.LoadToken(newMapSession("s"))
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("StoreToken then LoadToken", func(t *testing.T) {
		sess := newMapSession("s")
		require.NoError(t, m.StoreToken(sess, &models.TokenInfo{AccessToken: "one"}))
		require.NoError(t, m.StoreToken(sess, &models.TokenInfo{AccessToken: "two"}))

		tok, err := m.LoadToken(sess)
		require.NoError(t, err)
		assert.Equal(t, "two", tok.AccessToken, "re-authorization overwrites the token")
	})

	t.Run("LoadToken with unreadable value", func(t *testing.T) {
		sess := newMapSession("s")
		sess.values[TokenKey] = "garbage"

		_, err := m.LoadToken(sess)
		assert.ErrorIs(t, err, shared.ErrSession)
	})
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: access_denied", shared.ErrProviderDenied), MsgFailedToAuthorize},
		{fmt.Errorf("%w: unknown", shared.ErrStateMismatch), MsgFailedToAuthorize},
		{shared.ErrMissingCode, MsgBadCode},
		{fmt.Errorf("%w: invalid_grant", shared.ErrInvalidCode), MsgBadCode},
		{fmt.Errorf("%w: cookie", shared.ErrSession), MsgInternalError},
		{errors.New("db closed"), MsgInternalError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err), tt.err.Error())
	}
}
