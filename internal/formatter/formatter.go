// package formatter exports a listening analysis to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"cmp"
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Formats lists the formats accepted by [ParseFormat].
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat resolves a format name. "md" and "txt" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatText:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// GenreCount is a genre with the number of analyzed tracks tagged with it.
type GenreCount struct {
	Genre string
	Count int
}

// TopGenres returns the n most frequent genres, most frequent first and ties by name.
// A non-positive n returns every genre.
func TopGenres(analysis *models.UserAnalysis, n int) []GenreCount {
	counts := analysis.GenreCounts()
	out := make([]GenreCount, 0, len(counts))
	for g, c := range counts {
		out = append(out, GenreCount{Genre: g, Count: c})
	}

	slices.SortFunc(out, func(a, b GenreCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Genre, b.Genre)
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Export renders analysis in the given format.
func Export(analysis *models.UserAnalysis, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(analysis)
	case FormatCSV:
		return ExportToCSV(analysis)
	case FormatMarkdown:
		return ExportToMarkdown(analysis)
	case FormatText:
		return ExportToText(analysis)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToJSON renders analysis as indented JSON, the same document the web service returns.
func ExportToJSON(analysis *models.UserAnalysis) ([]byte, error) {
	return shared.MarshalJSON(analysis, true)
}

var csvHeaders = []string{
	"ID", "Name", "Artists", "Genres", "Added At",
	"Danceability", "Energy", "Valence", "Acousticness", "Tempo", "Key", "Mode", "Duration",
}

// ExportToCSV writes one row per analyzed track. Artists and genres are joined with "; ".
func ExportToCSV(analysis *models.UserAnalysis) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range analysis.Tracks {
		track := t.Track.Track
		f := t.AudioFeatures
		record := []string{
			track.ID,
			track.Name,
			strings.Join(track.ArtistNames(), "; "),
			strings.Join(t.Genres, "; "),
			t.Track.AddedAt,
			formatFloat(f.Danceability),
			formatFloat(f.Energy),
			formatFloat(f.Valence),
			formatFloat(f.Acousticness),
			formatFloat(f.Tempo),
			strconv.Itoa(f.Key),
			strconv.Itoa(f.Mode),
			FormatDuration(f.DurationMS),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a summary, the top genres and a table of tracks.
func ExportToMarkdown(analysis *models.UserAnalysis) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Listening Analysis\n\n")
	fmt.Fprintf(&buf, "**Tracks**: %d of %d saved (offset %d)\n\n", len(analysis.Tracks), analysis.Total, analysis.Offset)

	if genres := TopGenres(analysis, 10); len(genres) > 0 {
		buf.WriteString("## Top Genres\n\n")
		for i, g := range genres {
			fmt.Fprintf(&buf, "%d. %s (%d)\n", i+1, g.Genre, g.Count)
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	buf.WriteString("| # | Track | Artists | Genres | Danceability | Energy | Tempo | Duration |\n")
	buf.WriteString("|---|-------|---------|--------|--------------|--------|-------|----------|\n")
	for i, t := range analysis.Tracks {
		f := t.AudioFeatures
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %.2f | %.2f | %.0f | %s |\n",
			i+1,
			escapeCell(t.Track.Track.Name),
			escapeCell(strings.Join(t.Track.Track.ArtistNames(), ", ")),
			escapeCell(strings.Join(t.Genres, ", ")),
			f.Danceability, f.Energy, f.Tempo,
			FormatDuration(f.DurationMS),
		)
	}

	return buf.Bytes(), nil
}

// ExportToText renders one line per track.
func ExportToText(analysis *models.UserAnalysis) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Tracks: %d of %d\n\n", len(analysis.Tracks), analysis.Total)

	for i, t := range analysis.Tracks {
		genres := "no genres"
		if len(t.Genres) > 0 {
			genres = strings.Join(t.Genres, ", ")
		}
		fmt.Fprintf(&buf, "%d. %s - %s [%s] (%s)\n",
			i+1,
			strings.Join(t.Track.Track.ArtistNames(), ", "),
			t.Track.Track.Name,
			FormatDuration(t.AudioFeatures.DurationMS),
			genres,
		)
	}

	return buf.Bytes(), nil
}

// WriteExport renders analysis and writes it to path.
func WriteExport(analysis *models.UserAnalysis, format Format, path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty output path", shared.ErrInvalidArgument)
	}

	data, err := Export(analysis, format)
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
