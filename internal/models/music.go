package models

// ArtistRef is an artist as it appears on a track. ID and URI may be empty for local files.
type ArtistRef struct {
	ID   string `json:"id"`
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// Track is a provider track. An empty ID marks a track the provider cannot look up.
type Track struct {
	ID      string      `json:"id"`
	URI     string      `json:"uri"`
	Name    string      `json:"name"`
	Artists []ArtistRef `json:"artists"`
}

// SavedTrack is a track in the user's library together with the time it was saved.
type SavedTrack struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// SavedTrackPage is one page of the user's library.
type SavedTrackPage struct {
	Items  []SavedTrack `json:"items"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Total  int          `json:"total"`
}

// Artist is the subset of artist data used to tag tracks with genres.
type Artist struct {
	ID     string   `json:"id"`
	URI    string   `json:"uri"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// AudioFeatures holds the acoustic attributes of one track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"time_signature"`
	DurationMS       int     `json:"duration_ms"`
}

// TrackAnalysis is a saved track joined with the genres of its artists and its audio features.
//
// Genres is the concatenation of each resolved artist's genres in artist order; duplicates are kept.
type TrackAnalysis struct {
	Track         SavedTrack    `json:"track"`
	Genres        []string      `json:"genres"`
	AudioFeatures AudioFeatures `json:"audio_features"`
}

// UserAnalysis is the report for one page of the user's library.
// Total is the size of the whole library as reported by the provider.
type UserAnalysis struct {
	Tracks []TrackAnalysis `json:"tracks"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Total  int             `json:"total"`
}

// GenreCounts tallies genres across every analyzed track.
func (a *UserAnalysis) GenreCounts() map[string]int {
	counts := make(map[string]int)
	for _, t := range a.Tracks {
		for _, g := range t.Genres {
			counts[g]++
		}
	}
	return counts
}

// ArtistNames joins the names of a track's artists.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}
