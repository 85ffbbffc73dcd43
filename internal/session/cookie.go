package session

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"aidanwoods.dev/go-paseto"
	"golang.org/x/crypto/hkdf"

	"github.com/desertthunder/spotalyze/internal/shared"
)

const (
	tokenIssuer = "spotalyze"
	keyInfo     = "spotalyze session v4.local"

	// MinSecretLength is the shortest accepted session secret.
	MinSecretLength = 32

	// DefaultCookieName is used when [Options.CookieName] is empty.
	DefaultCookieName = "spotalyze_session"

	// DefaultLifetime is used when [Options.Lifetime] is not positive.
	DefaultLifetime = 24 * time.Hour
)

// Options configures the session cookie.
type Options struct {
	CookieName string
	Secure     bool
	Lifetime   time.Duration
}

type claims struct {
	SID  string                     `json:"sid"`
	Data map[string]json.RawMessage `json:"data"`
}

// CookieStore loads and saves sessions as PASETO v4.local cookies.
//
// The cookie carries no Max-Age, so browsers drop it when they close; the token's
// expiration claim bounds its lifetime on the server side.
type CookieStore struct {
	key  paseto.V4SymmetricKey
	opts Options
	now  func() time.Time
}

// NewCookieStore derives the encryption key from secret with HKDF-SHA256.
//
// Secrets shorter than [MinSecretLength] or made of a single repeated byte (e.g. all zeros) are rejected with [shared.ErrWeakSecret].
func NewCookieStore(secret string, opts Options) (*CookieStore, error) {
	if err := checkSecret(secret); err != nil {
		return nil, err
	}

	keyBytes := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), keyBytes); err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create session key: %w", err)
	}

	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = DefaultLifetime
	}

	return &CookieStore{key: key, opts: opts, now: time.Now}, nil
}

func checkSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%w: must be at least %d characters", shared.ErrWeakSecret, MinSecretLength)
	}
	if bytes.Count([]byte(secret), []byte{secret[0]}) == len(secret) {
		return fmt.Errorf("%w: must not repeat a single character", shared.ErrWeakSecret)
	}
	return nil
}

// CookieName returns the name of the session cookie.
func (c *CookieStore) CookieName() string { return c.opts.CookieName }

// New returns an empty session with a fresh identifier.
func (c *CookieStore) New() *Session { return newSession() }

// Load returns the session carried by r.
//
// A request without the cookie gets a new session. A cookie that cannot be decrypted,
// has expired or was not issued by this store yields a new session together with an
// error wrapping [shared.ErrSession], so callers can decide whether to continue.
func (c *CookieStore) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(c.opts.CookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return newSession(), nil
	}
	if err != nil {
		return newSession(), fmt.Errorf("%w: %v", shared.ErrSession, err)
	}

	s, err := c.Decode(cookie.Value)
	if err != nil {
		return newSession(), err
	}
	return s, nil
}

// Save writes s to w as the session cookie.
func (c *CookieStore) Save(w http.ResponseWriter, s *Session) error {
	value, err := c.Encode(s)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.opts.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie on the client.
func (c *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Encode seals s into a v4.local token.
func (c *CookieStore) Encode(s *Session) (string, error) {
	now := c.now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(c.opts.Lifetime))

	if err := token.Set("sid", s.id); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrSession, err)
	}
	if err := token.Set("data", s.values); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrSession, err)
	}

	return token.V4Encrypt(c.key, nil), nil
}

// Decode opens a token produced by [CookieStore.Encode].
func (c *CookieStore) Decode(value string) (*Session, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(c.now()))

	token, err := parser.ParseV4Local(c.key, value, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid session cookie: %v", shared.ErrSession, err)
	}

	var cl claims
	if err := json.Unmarshal(token.ClaimsJSON(), &cl); err != nil {
		return nil, fmt.Errorf("%w: parse session claims: %v", shared.ErrSession, err)
	}
	if cl.SID == "" {
		return nil, fmt.Errorf("%w: session cookie has no id", shared.ErrSession)
	}
	if cl.Data == nil {
		cl.Data = make(map[string]json.RawMessage)
	}

	return &Session{id: cl.SID, values: cl.Data}, nil
}
