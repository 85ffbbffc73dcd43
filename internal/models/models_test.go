package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAuthState(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Expired", func(t *testing.T) {
		s := NewAuthState("sid", "value", now, 10*time.Minute)

		assert.False(t, s.Expired(now))
		assert.False(t, s.Expired(now.Add(9*time.Minute)))
		assert.True(t, s.Expired(now.Add(10*time.Minute)))
	})

	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, NewAuthState("sid", "value", now, time.Minute).Validate())
		assert.Error(t, NewAuthState("", "value", now, time.Minute).Validate())
		assert.Error(t, NewAuthState("sid", "", now, time.Minute).Validate())
		assert.Error(t, NewAuthState("sid", "value", now, 0).Validate())
	})
}

func TestTokenInfo(t *testing.T) {
	t.Run("NewTokenInfo reads granted scopes", func(t *testing.T) {
		tok := (&oauth2.Token{AccessToken: "at", TokenType: "Bearer"}).
			WithExtra(map[string]any{"scope": "user-library-read playlist-modify-private"})

		info := NewTokenInfo(tok)
		require.NotNil(t, info)
		assert.Equal(t, "at", info.AccessToken)
		assert.Equal(t, []string{"user-library-read", "playlist-modify-private"}, info.Scopes)
		assert.True(t, info.Valid())
		assert.Equal(t, "at", info.OAuth2().AccessToken)
	})

	t.Run("nil and empty tokens", func(t *testing.T) {
		assert.Nil(t, NewTokenInfo(nil))
		assert.False(t, (&TokenInfo{}).Valid())

		var info *TokenInfo
		assert.False(t, info.Valid())
	})
}

func TestUserAnalysis(t *testing.T) {
	analysis := UserAnalysis{
		Tracks: []TrackAnalysis{
			{Genres: []string{"rock", "indie"}},
			{Genres: []string{"rock"}},
			{Genres: []string{}},
		},
	}

	assert.Equal(t, map[string]int{"rock": 2, "indie": 1}, analysis.GenreCounts())

	t.Run("empty genres serialize as an array", func(t *testing.T) {
		data, err := json.Marshal(TrackAnalysis{Genres: []string{}})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"genres":[]`)
	})
}
