// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/services"
)

// MockMusicAPI is a test double for [services.MusicAPI].
//
// Lookups only return entries whose id was requested, the way the provider omits unknown ids.
// Set BlockFeatures to make GetAudioFeatures wait for context cancellation.
type MockMusicAPI struct {
	Page     *models.SavedTrackPage
	Artists  []models.Artist
	Features []models.AudioFeatures

	SavedTracksErr error
	ArtistsErr     error
	FeaturesErr    error
	BlockFeatures  bool

	mu             sync.Mutex
	savedCalls     int
	artistCalls    [][]string
	featureCalls   [][]string
	requestedPages [][2]int
}

func (m *MockMusicAPI) GetSavedTracks(ctx context.Context, limit, offset int) (*models.SavedTrackPage, error) {
	m.mu.Lock()
	m.savedCalls++
	m.requestedPages = append(m.requestedPages, [2]int{limit, offset})
	m.mu.Unlock()

	if m.SavedTracksErr != nil {
		return nil, m.SavedTracksErr
	}
	if m.Page == nil {
		return &models.SavedTrackPage{Limit: limit, Offset: offset}, nil
	}
	page := *m.Page
	return &page, nil
}

func (m *MockMusicAPI) GetArtists(ctx context.Context, ids []string) ([]models.Artist, error) {
	m.mu.Lock()
	m.artistCalls = append(m.artistCalls, slices.Clone(ids))
	m.mu.Unlock()

	if m.ArtistsErr != nil {
		return nil, m.ArtistsErr
	}

	var found []models.Artist
	for _, a := range m.Artists {
		if slices.Contains(ids, a.ID) {
			found = append(found, a)
		}
	}
	return found, nil
}

func (m *MockMusicAPI) GetAudioFeatures(ctx context.Context, ids []string) ([]models.AudioFeatures, error) {
	m.mu.Lock()
	m.featureCalls = append(m.featureCalls, slices.Clone(ids))
	m.mu.Unlock()

	if m.BlockFeatures {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.FeaturesErr != nil {
		return nil, m.FeaturesErr
	}

	var found []models.AudioFeatures
	for _, f := range m.Features {
		if slices.Contains(ids, f.ID) {
			found = append(found, f)
		}
	}
	return found, nil
}

// SavedTracksCalls returns how many times GetSavedTracks was called.
func (m *MockMusicAPI) SavedTracksCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savedCalls
}

// RequestedPages returns the (limit, offset) pairs passed to GetSavedTracks.
func (m *MockMusicAPI) RequestedPages() [][2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requestedPages)
}

// ArtistCalls returns the id lists passed to GetArtists.
func (m *MockMusicAPI) ArtistCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.artistCalls)
}

// FeatureCalls returns the id lists passed to GetAudioFeatures.
func (m *MockMusicAPI) FeatureCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.featureCalls)
}

// MockProvider is a test double for [services.MusicAPIProvider] that records the tokens it was given.
type MockProvider struct {
	API services.MusicAPI

	mu     sync.Mutex
	tokens []*models.TokenInfo
}

func (p *MockProvider) ForToken(ctx context.Context, tok *models.TokenInfo) services.MusicAPI {
	p.mu.Lock()
	p.tokens = append(p.tokens, tok)
	p.mu.Unlock()
	return p.API
}

// Tokens returns every token passed to ForToken.
func (p *MockProvider) Tokens() []*models.TokenInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.tokens)
}

// NewArtistRef builds an artist reference with a provider-style URI. An empty id yields an unresolvable artist.
func NewArtistRef(id string) models.ArtistRef {
	if id == "" {
		return models.ArtistRef{Name: "Local Artist"}
	}
	return models.ArtistRef{ID: id, URI: "spotify:artist:" + id, Name: "Artist " + id}
}

// NewSavedTrack builds a saved track performed by the given artists. An empty id yields a local file.
func NewSavedTrack(id string, artistIDs ...string) models.SavedTrack {
	artists := make([]models.ArtistRef, 0, len(artistIDs))
	for _, a := range artistIDs {
		artists = append(artists, NewArtistRef(a))
	}

	track := models.Track{ID: id, Name: "Track " + id, Artists: artists}
	if id != "" {
		track.URI = "spotify:track:" + id
	}

	return models.SavedTrack{AddedAt: "2024-01-01T00:00:00Z", Track: track}
}

// NewArtist builds an artist with the given genres.
func NewArtist(id string, genres ...string) models.Artist {
	if genres == nil {
		genres = []string{}
	}
	return models.Artist{ID: id, URI: "spotify:artist:" + id, Name: "Artist " + id, Genres: genres}
}

// NewAudioFeatures builds audio features for a track.
func NewAudioFeatures(id string) models.AudioFeatures {
	return models.AudioFeatures{
		ID:            id,
		Danceability:  0.5,
		Energy:        0.7,
		Tempo:         120,
		Key:           1,
		Mode:          1,
		TimeSignature: 4,
		DurationMS:    180000,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
