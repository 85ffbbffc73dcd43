// package tasks implements the listening analysis over a music provider.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/services"
	"github.com/desertthunder/spotalyze/internal/shared"
)

const (
	// DefaultLimit is the page size analyzed by the web service.
	DefaultLimit = 10
	// DefaultOffset is the page offset analyzed by the web service.
	DefaultOffset = 0
)

// Analyzer produces a [models.UserAnalysis] for one page of a user's library.
type Analyzer interface {
	FetchUserAnalysis(ctx context.Context, progress chan<- ProgressUpdate, api services.MusicAPI, limit, offset int) (*models.UserAnalysis, error)
}

// AnalysisEngine implements [Analyzer].
type AnalysisEngine struct {
	logger *log.Logger
}

// NewAnalysisEngine creates a new AnalysisEngine. A nil logger discards output.
func NewAnalysisEngine(logger *log.Logger) *AnalysisEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &AnalysisEngine{logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *AnalysisEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// FetchUserAnalysis fetches one page of saved tracks and joins it with artist genres and audio features.
//
// Tracks keep their page order. Total is the provider's library size, not the number of analyzed tracks.
func (e *AnalysisEngine) FetchUserAnalysis(ctx context.Context, progress chan<- ProgressUpdate, api services.MusicAPI, limit, offset int) (*models.UserAnalysis, error) {
	e.sendProgress(progress, fetchSavedTracksUpdate(limit, offset))

	page, err := api.GetSavedTracks(ctx, limit, offset)
	if err != nil {
		return nil, apiError(err)
	}

	artistIDs := distinctArtistIDs(page.Items)
	trackIDs := distinctTrackIDs(page.Items)

	e.logger.Debug("fetched saved tracks",
		"items", len(page.Items), "total", page.Total, "artists", len(artistIDs), "tracks", len(trackIDs))

	var (
		artists  []models.Artist
		features []models.AudioFeatures
	)

	g, gctx := errgroup.WithContext(ctx)

	if len(artistIDs) > 0 {
		e.sendProgress(progress, fetchArtistsUpdate(len(artistIDs)))
		g.Go(func() error {
			found, err := api.GetArtists(gctx, artistIDs)
			if err != nil {
				return err
			}
			artists = found
			return nil
		})
	}

	if len(trackIDs) > 0 {
		e.sendProgress(progress, fetchAudioFeaturesUpdate(len(trackIDs)))
		g.Go(func() error {
			found, err := api.GetAudioFeatures(gctx, trackIDs)
			if err != nil {
				return err
			}
			features = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apiError(err)
	}

	analysis := joinTracks(page, artists, features)

	e.logger.Debug("joined analysis", "analyzed", len(analysis.Tracks), "dropped", len(page.Items)-len(analysis.Tracks))
	e.sendProgress(progress, joinTracksUpdate(analysis))

	return analysis, nil
}

// joinTracks combines the three responses.
func joinTracks(page *models.SavedTrackPage, artists []models.Artist, features []models.AudioFeatures) *models.UserAnalysis {
	genresByURI := make(map[string][]string, len(artists))
	for _, a := range artists {
		genresByURI[a.URI] = a.Genres
	}

	featuresByID := make(map[string]models.AudioFeatures, len(features))
	for _, f := range features {
		featuresByID[f.ID] = f
	}

	analysis := &models.UserAnalysis{
		Tracks: make([]models.TrackAnalysis, 0, len(page.Items)),
		Limit:  page.Limit,
		Offset: page.Offset,
		Total:  page.Total,
	}

	for _, item := range page.Items {
		if item.Track.ID == "" {
			continue
		}
		f, ok := featuresByID[item.Track.ID]
		if !ok {
			continue
		}

		genres := []string{}
		for _, a := range item.Track.Artists {
			if a.URI == "" {
				continue
			}
			genres = append(genres, genresByURI[a.URI]...)
		}

		analysis.Tracks = append(analysis.Tracks, models.TrackAnalysis{
			Track:         item,
			Genres:        genres,
			AudioFeatures: f,
		})
	}

	return analysis
}

// distinctArtistIDs returns artist ids in first-seen order, skipping artists without one.
func distinctArtistIDs(items []models.SavedTrack) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, item := range items {
		for _, a := range item.Track.Artists {
			if a.ID == "" {
				continue
			}
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// distinctTrackIDs returns track ids in first-seen order, skipping tracks without one.
func distinctTrackIDs(items []models.SavedTrack) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, item := range items {
		id := item.Track.ID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func apiError(err error) error {
	if errors.Is(err, shared.ErrAPIRequest) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
}
