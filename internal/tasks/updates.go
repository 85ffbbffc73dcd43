package tasks

import (
	"fmt"

	"github.com/desertthunder/spotalyze/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number
	Total   int    // Total steps in the operation
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSavedTracks Phase = iota
	FetchArtists
	FetchAudioFeatures
	JoinTracks
)

// analysisSteps is the number of phases reported by FetchUserAnalysis.
const analysisSteps = 4

func (p Phase) String() string {
	switch p {
	case FetchSavedTracks:
		return "fetch_saved_tracks"
	case FetchArtists:
		return "fetch_artists"
	case FetchAudioFeatures:
		return "fetch_audio_features"
	case JoinTracks:
		return "join_tracks"
	default:
		return ""
	}
}

func fetchSavedTracksUpdate(limit, offset int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSavedTracks,
		Step:    1,
		Total:   analysisSteps,
		Message: fmt.Sprintf("Fetching saved tracks (limit %d, offset %d)...", limit, offset),
	}
}

func fetchArtistsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchArtists,
		Step:    2,
		Total:   analysisSteps,
		Message: fmt.Sprintf("Fetching genres for %d artists...", count),
	}
}

func fetchAudioFeaturesUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAudioFeatures,
		Step:    3,
		Total:   analysisSteps,
		Message: fmt.Sprintf("Fetching audio features for %d tracks...", count),
	}
}

func joinTracksUpdate(analysis *models.UserAnalysis) ProgressUpdate {
	return ProgressUpdate{
		Phase:   JoinTracks,
		Step:    4,
		Total:   analysisSteps,
		Message: fmt.Sprintf("Analyzed %d of %d saved tracks", len(analysis.Tracks), analysis.Total),
		Data:    analysis,
	}
}
