// package services defines interface MusicAPI for reading a user's library from a music provider
package services

import (
	"context"

	"github.com/desertthunder/spotalyze/internal/models"
)

// MusicAPI is the read access the analysis needs from a provider, bound to one user's credentials.
type MusicAPI interface {
	// GetSavedTracks returns one page of the user's saved tracks.
	GetSavedTracks(ctx context.Context, limit, offset int) (*models.SavedTrackPage, error)

	// GetArtists resolves artist ids. Unknown ids are omitted from the result.
	GetArtists(ctx context.Context, ids []string) ([]models.Artist, error)

	// GetAudioFeatures resolves track ids. Tracks without features are omitted from the result.
	GetAudioFeatures(ctx context.Context, ids []string) ([]models.AudioFeatures, error)
}

// MusicAPIProvider creates a [MusicAPI] for a user's token.
type MusicAPIProvider interface {
	ForToken(ctx context.Context, tok *models.TokenInfo) MusicAPI
}

// chunk splits ids into consecutive batches of at most size elements.
func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for size < len(ids) {
		ids, batches = ids[size:], append(batches, ids[:size:size])
	}
	if len(ids) > 0 {
		batches = append(batches, ids)
	}
	return batches
}
