// Spotify Web API implementation of [MusicAPI]
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/shared"
)

const (
	// DefaultRedirectURI is used when credentials carry no redirect_uri.
	DefaultRedirectURI = "http://127.0.0.1:8080/spotify"

	maxArtistsPerRequest  = 50
	maxFeaturesPerRequest = 100
)

// Scopes requested from the user.
var Scopes = []string{spotifyauth.ScopeUserLibraryRead, spotifyauth.ScopePlaylistModifyPrivate}

// SpotifyService holds the OAuth2 client configuration for Spotify.
type SpotifyService struct {
	config     *oauth2.Config
	apiBaseURL string
}

// NewSpotifyService creates a new Spotify service from credentials.
//
// Recognized keys are client_id, client_secret, redirect_uri and, for pointing at another host, api_base_url, auth_url and token_url.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	endpoint := oauth2.Endpoint{
		AuthURL:  spotifyauth.AuthURL,
		TokenURL: spotifyauth.TokenURL,
	}
	if u := credentials["auth_url"]; u != "" {
		endpoint.AuthURL = u
	}
	if u := credentials["token_url"]; u != "" {
		endpoint.TokenURL = u
	}

	apiBaseURL := credentials["api_base_url"]
	if apiBaseURL != "" && !strings.HasSuffix(apiBaseURL, "/") {
		apiBaseURL += "/"
	}

	return &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		apiBaseURL: apiBaseURL,
	}, nil
}

// RedirectURL returns the callback URL registered with the provider.
func (s *SpotifyService) RedirectURL() string {
	return s.config.RedirectURL
}

// AuthCodeURL returns the authorization URL the user is sent to.
func (s *SpotifyService) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return s.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return s.config.Exchange(ctx, code, opts...)
}

// ForToken returns a client authorized with tok. The token is never refreshed.
func (s *SpotifyService) ForToken(ctx context.Context, tok *models.TokenInfo) MusicAPI {
	return s.Client(oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok.OAuth2())))
}

// Client wraps an already authorized HTTP client.
func (s *SpotifyService) Client(httpClient *http.Client) *SpotifyClient {
	var opts []spotify.ClientOption
	if s.apiBaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.apiBaseURL))
	}
	return &SpotifyClient{client: spotify.New(httpClient, opts...)}
}

// SpotifyClient implements [MusicAPI] on top of the Spotify Web API.
type SpotifyClient struct {
	client *spotify.Client
}

// GetSavedTracks retrieves a page of the user's saved tracks (GET /me/tracks).
func (c *SpotifyClient) GetSavedTracks(ctx context.Context, limit, offset int) (*models.SavedTrackPage, error) {
	page, err := c.client.CurrentUsersTracks(ctx, spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, fmt.Errorf("%w: saved tracks: %v", shared.ErrAPIRequest, err)
	}

	result := &models.SavedTrackPage{
		Items:  make([]models.SavedTrack, 0, len(page.Tracks)),
		Limit:  int(page.Limit),
		Offset: int(page.Offset),
		Total:  int(page.Total),
	}

	for _, item := range page.Tracks {
		artists := make([]models.ArtistRef, 0, len(item.Artists))
		for _, a := range item.Artists {
			artists = append(artists, models.ArtistRef{
				ID:   string(a.ID),
				URI:  string(a.URI),
				Name: a.Name,
			})
		}

		result.Items = append(result.Items, models.SavedTrack{
			AddedAt: item.AddedAt,
			Track: models.Track{
				ID:      string(item.ID),
				URI:     string(item.URI),
				Name:    item.Name,
				Artists: artists,
			},
		})
	}

	return result, nil
}

// GetArtists retrieves artists by id (GET /artists), up to 50 per request.
func (c *SpotifyClient) GetArtists(ctx context.Context, ids []string) ([]models.Artist, error) {
	artists := make([]models.Artist, 0, len(ids))

	for _, batch := range chunk(ids, maxArtistsPerRequest) {
		found, err := c.client.GetArtists(ctx, toIDs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("%w: artists: %v", shared.ErrAPIRequest, err)
		}

		for _, a := range found {
			if a == nil {
				continue
			}
			genres := a.Genres
			if genres == nil {
				genres = []string{}
			}
			artists = append(artists, models.Artist{
				ID:     string(a.ID),
				URI:    string(a.URI),
				Name:   a.Name,
				Genres: genres,
			})
		}
	}

	return artists, nil
}

// GetAudioFeatures retrieves audio features by track id (GET /audio-features), up to 100 per request.
func (c *SpotifyClient) GetAudioFeatures(ctx context.Context, ids []string) ([]models.AudioFeatures, error) {
	features := make([]models.AudioFeatures, 0, len(ids))

	for _, batch := range chunk(ids, maxFeaturesPerRequest) {
		found, err := c.client.GetAudioFeatures(ctx, toIDs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("%w: audio features: %v", shared.ErrAPIRequest, err)
		}

		for _, f := range found {
			if f == nil {
				continue
			}
			features = append(features, models.AudioFeatures{
				ID:               string(f.ID),
				Acousticness:     float64(f.Acousticness),
				Danceability:     float64(f.Danceability),
				Energy:           float64(f.Energy),
				Instrumentalness: float64(f.Instrumentalness),
				Liveness:         float64(f.Liveness),
				Loudness:         float64(f.Loudness),
				Speechiness:      float64(f.Speechiness),
				Tempo:            float64(f.Tempo),
				Valence:          float64(f.Valence),
				Key:              int(f.Key),
				Mode:             int(f.Mode),
				TimeSignature:    int(f.TimeSignature),
				DurationMS:       int(f.Duration),
			})
		}
	}

	return features, nil
}

func toIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}
