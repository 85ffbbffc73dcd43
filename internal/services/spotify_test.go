package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/shared"
)

const savedTracksJSON = `{
	"href": "https://api.spotify.com/v1/me/tracks",
	"limit": 10,
	"offset": 0,
	"total": 137,
	"items": [
		{
			"added_at": "2024-05-01T10:00:00Z",
			"track": {
				"id": "t1",
				"uri": "spotify:track:t1",
				"name": "First",
				"artists": [{"id": "a1", "uri": "spotify:artist:a1", "name": "Artist One"}]
			}
		},
		{
			"added_at": "2024-05-02T10:00:00Z",
			"track": {
				"id": null,
				"uri": "spotify:local:x",
				"name": "Local",
				"artists": [{"id": null, "uri": null, "name": "Someone"}]
			}
		}
	]
}`

func newTestService(t *testing.T, apiURL string) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
		"api_base_url":  apiURL,
	})
	require.NoError(t, err)
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://localhost:9999/callback",
			})
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:9999/callback", srv.RedirectURL())
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "s"})
			assert.ErrorIs(t, err, shared.ErrMissingCredentials)
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "id"})
			assert.ErrorIs(t, err, shared.ErrMissingCredentials)
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv := newTestService(t, "")
			assert.Equal(t, DefaultRedirectURI, srv.RedirectURL())
		})
	})

	t.Run("AuthCodeURL", func(t *testing.T) {
		srv := newTestService(t, "")

		authURL, err := url.Parse(srv.AuthCodeURL("test_state"))
		require.NoError(t, err)

		q := authURL.Query()
		assert.Equal(t, "accounts.spotify.com", authURL.Host)
		assert.Equal(t, "test_client_id", q.Get("client_id"))
		assert.Equal(t, "test_state", q.Get("state"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, DefaultRedirectURI, q.Get("redirect_uri"))
		assert.Equal(t, "user-library-read playlist-modify-private", q.Get("scope"))
	})

	t.Run("Exchange", func(t *testing.T) {
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			if r.Form.Get("code") != "good-code" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid authorization code"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600,"scope":"user-library-read"}`))
		}))
		defer tokenServer.Close()

		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "id",
			"client_secret": "secret",
			"token_url":     tokenServer.URL,
		})
		require.NoError(t, err)

		tok, err := srv.Exchange(context.Background(), "good-code")
		require.NoError(t, err)
		assert.Equal(t, "at", tok.AccessToken)
		assert.Equal(t, []string{"user-library-read"}, models.NewTokenInfo(tok).Scopes)

		_, err = srv.Exchange(context.Background(), "bad-code")
		assert.Error(t, err)
	})
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("GetSavedTracks", func(t *testing.T) {
		var gotQuery url.Values
		var gotAuth string
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/me/tracks", r.URL.Path)
			gotQuery = r.URL.Query()
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(savedTracksJSON))
		}))
		defer api.Close()

		client := newTestService(t, api.URL).ForToken(ctx, &models.TokenInfo{AccessToken: "user-token", TokenType: "Bearer"})

		page, err := client.GetSavedTracks(ctx, 10, 0)
		require.NoError(t, err)

		assert.Equal(t, "10", gotQuery.Get("limit"))
		assert.Equal(t, "0", gotQuery.Get("offset"))
		assert.Equal(t, "Bearer user-token", gotAuth)

		assert.Equal(t, 137, page.Total)
		assert.Equal(t, 10, page.Limit)
		require.Len(t, page.Items, 2)

		first := page.Items[0]
		assert.Equal(t, "2024-05-01T10:00:00Z", first.AddedAt)
		assert.Equal(t, "t1", first.Track.ID)
		assert.Equal(t, "spotify:track:t1", first.Track.URI)
		assert.Equal(t, []models.ArtistRef{{ID: "a1", URI: "spotify:artist:a1", Name: "Artist One"}}, first.Track.Artists)

		local := page.Items[1]
		assert.Empty(t, local.Track.ID, "local files carry no id")
		assert.Empty(t, local.Track.Artists[0].ID)
	})

	t.Run("GetArtists skips unknown ids and batches by 50", func(t *testing.T) {
		var (
			mu      sync.Mutex
			batches []int
		)
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/artists", r.URL.Path)
			ids := strings.Split(r.URL.Query().Get("ids"), ",")

			mu.Lock()
			batches = append(batches, len(ids))
			mu.Unlock()

			artists := make([]any, len(ids))
			for i, id := range ids {
				if id == "unknown" {
					continue
				}
				artists[i] = map[string]any{
					"id":     id,
					"uri":    "spotify:artist:" + id,
					"name":   "Artist " + id,
					"genres": []string{"genre-" + id},
				}
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"artists": artists})
		}))
		defer api.Close()

		ids := make([]string, 0, 61)
		for i := range 60 {
			ids = append(ids, "a"+string(rune('A'+i%26))+string(rune('a'+i/26)))
		}
		ids = append(ids, "unknown")

		artists, err := newTestService(t, api.URL).Client(http.DefaultClient).GetArtists(ctx, ids)
		require.NoError(t, err)

		assert.Equal(t, []int{50, 11}, batches)
		assert.Len(t, artists, 60)
		assert.Equal(t, "spotify:artist:"+ids[0], artists[0].URI)
		assert.Equal(t, []string{"genre-" + ids[0]}, artists[0].Genres)
	})

	t.Run("GetAudioFeatures", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/audio-features", r.URL.Path)
			assert.Equal(t, "t1,t2", r.URL.Query().Get("ids"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"audio_features": [
				{"id": "t1", "danceability": 0.5, "energy": 0.75, "tempo": 120.5, "key": 5, "mode": 1, "time_signature": 4, "duration_ms": 201000},
				null
			]}`))
		}))
		defer api.Close()

		features, err := newTestService(t, api.URL).Client(http.DefaultClient).GetAudioFeatures(ctx, []string{"t1", "t2"})
		require.NoError(t, err)
		require.Len(t, features, 1)

		f := features[0]
		assert.Equal(t, "t1", f.ID)
		assert.InDelta(t, 0.5, f.Danceability, 1e-6)
		assert.InDelta(t, 0.75, f.Energy, 1e-6)
		assert.InDelta(t, 120.5, f.Tempo, 1e-4)
		assert.Equal(t, 5, f.Key)
		assert.Equal(t, 1, f.Mode)
		assert.Equal(t, 4, f.TimeSignature)
		assert.Equal(t, 201000, f.DurationMS)
	})

	t.Run("provider errors are wrapped", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
		}))
		defer api.Close()

		client := newTestService(t, api.URL).Client(http.DefaultClient)

		_, err := client.GetSavedTracks(ctx, 10, 0)
		assert.ErrorIs(t, err, shared.ErrAPIRequest)

		_, err = client.GetArtists(ctx, []string{"a1"})
		assert.ErrorIs(t, err, shared.ErrAPIRequest)

		_, err = client.GetAudioFeatures(ctx, []string{"t1"})
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(nil, 3))
	assert.Equal(t, [][]string{{"a", "b"}}, chunk([]string{"a", "b"}, 3))
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunk([]string{"a", "b", "c", "d", "e"}, 2))
}
