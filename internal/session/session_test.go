package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/spotalyze/internal/shared"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T, opts Options) *CookieStore {
	t.Helper()
	store, err := NewCookieStore(testSecret, opts)
	require.NoError(t, err)
	return store
}

// roundTrip saves s and loads it back through a request carrying the resulting cookie.
func roundTrip(t *testing.T, store *CookieStore, s *Session) (*Session, *http.Cookie) {
	t.Helper()

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, s))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	loaded, err := store.Load(req)
	require.NoError(t, err)
	return loaded, cookies[0]
}

func TestSession(t *testing.T) {
	t.Run("Get Set Delete", func(t *testing.T) {
		s := newSession()

		var v string
		ok, err := s.Get("missing", &v)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Set("greeting", "hello"))
		ok, err = s.Get("greeting", &v)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "hello", v)

		s.Delete("greeting")
		assert.False(t, s.Has("greeting"))
	})

	t.Run("Get with wrong type", func(t *testing.T) {
		s := newSession()
		require.NoError(t, s.Set("n", 42))

		var v []string
		ok, err := s.Get("n", &v)
		assert.True(t, ok)
		assert.ErrorIs(t, err, shared.ErrSession)
	})

	t.Run("Set unencodable value", func(t *testing.T) {
		assert.ErrorIs(t, newSession().Set("ch", make(chan int)), shared.ErrSession)
	})

	t.Run("new sessions get distinct ids", func(t *testing.T) {
		a, b := newSession(), newSession()
		assert.NotEmpty(t, a.ID())
		assert.NotEqual(t, a.ID(), b.ID())
		assert.True(t, a.IsNew())
	})
}

func TestNewCookieStore(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{name: "empty", secret: ""},
		{name: "short", secret: "too-short"},
		{name: "all zeros", secret: strings.Repeat("0", 64)},
		{name: "repeated byte", secret: strings.Repeat("a", 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCookieStore(tt.secret, Options{})
			assert.ErrorIs(t, err, shared.ErrWeakSecret)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		store := newTestStore(t, Options{})
		assert.Equal(t, DefaultCookieName, store.CookieName())
		assert.Equal(t, DefaultLifetime, store.opts.Lifetime)
	})
}

func TestCookieStore(t *testing.T) {
	t.Run("Load without cookie starts a new session", func(t *testing.T) {
		store := newTestStore(t, Options{})

		s, err := store.Load(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.True(t, s.IsNew())
		assert.NotEmpty(t, s.ID())
	})

	t.Run("round trip keeps id and values", func(t *testing.T) {
		store := newTestStore(t, Options{CookieName: "sid", Secure: true})
		s := store.New()
		require.NoError(t, s.Set("token_info", map[string]string{"access_token": "s3cr3t token!"}))

		loaded, cookie := roundTrip(t, store, s)

		assert.Equal(t, s.ID(), loaded.ID())
		assert.False(t, loaded.IsNew())

		var got map[string]string
		ok, err := loaded.Get("token_info", &got)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "s3cr3t token!", got["access_token"])

		assert.Equal(t, "sid", cookie.Name)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		assert.Zero(t, cookie.MaxAge, "session cookie must not be persistent")
		assert.True(t, strings.HasPrefix(cookie.Value, "v4.local."))
		assert.NotContains(t, cookie.Value, "token!", "cookie contents must be encrypted")
	})

	t.Run("tampered cookie", func(t *testing.T) {
		store := newTestStore(t, Options{})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "v4.local.garbage"})

		s, err := store.Load(req)
		assert.ErrorIs(t, err, shared.ErrSession)
		require.NotNil(t, s, "a fresh session is returned alongside the error")
		assert.True(t, s.IsNew())
	})

	t.Run("cookie from another secret", func(t *testing.T) {
		store := newTestStore(t, Options{})
		other, err := NewCookieStore("fedcba9876543210fedcba9876543210", Options{})
		require.NoError(t, err)

		value, err := other.Encode(other.New())
		require.NoError(t, err)

		_, err = store.Decode(value)
		assert.ErrorIs(t, err, shared.ErrSession)
	})

	t.Run("expired cookie", func(t *testing.T) {
		store := newTestStore(t, Options{Lifetime: time.Hour})
		issued := time.Now()
		store.now = func() time.Time { return issued }

		value, err := store.Encode(store.New())
		require.NoError(t, err)

		store.now = func() time.Time { return issued.Add(30 * time.Minute) }
		_, err = store.Decode(value)
		require.NoError(t, err)

		store.now = func() time.Time { return issued.Add(2 * time.Hour) }
		_, err = store.Decode(value)
		assert.ErrorIs(t, err, shared.ErrSession)
	})

	t.Run("Clear expires the cookie", func(t *testing.T) {
		store := newTestStore(t, Options{})
		rec := httptest.NewRecorder()

		store.Clear(rec)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, DefaultCookieName, cookies[0].Name)
		assert.Negative(t, cookies[0].MaxAge)
	})
}
