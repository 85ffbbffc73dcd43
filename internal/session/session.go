package session

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/spotalyze/internal/shared"
)

// Session is the mutable key/value state of one client.
type Session struct {
	id     string
	values map[string]json.RawMessage
	isNew  bool
}

// New returns an empty session with a fresh identifier. Sessions that are never written to a cookie, such as the CLI's, start here.
func New() *Session {
	return newSession()
}

func newSession() *Session {
	return &Session{
		id:     shared.GenerateID(),
		values: make(map[string]json.RawMessage),
		isNew:  true,
	}
}

// ID returns the identifier the session was created with. It is stable across requests.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool { return s.isNew }

// Get decodes the value stored under key into dst and reports whether the key was present.
func (s *Session) Get(key string, dst any) (bool, error) {
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("%w: decode %q: %v", shared.ErrSession, key, err)
	}
	return true, nil
}

// Set stores v under key, replacing any previous value.
func (s *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", shared.ErrSession, key, err)
	}
	s.values[key] = raw
	return nil
}

// Delete removes key.
func (s *Session) Delete(key string) {
	delete(s.values, key)
}

// Has reports whether key is present.
func (s *Session) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}
