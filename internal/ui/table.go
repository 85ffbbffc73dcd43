package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/spotalyze/internal/formatter"
	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/tasks"
)

const maxGenreWidth = 40

var analysisHeaders = []string{"#", "Track", "Artists", "Genres", "Dance", "Energy", "Valence", "Tempo", "Length"}

// RenderAnalysis draws analysis as a titled table followed by the most frequent genres.
func RenderAnalysis(analysis *models.UserAnalysis) string {
	return styles.RenderAnalysis(analysis)
}

// RenderAnalysis draws analysis with the palette's styles.
func (p *Palette) RenderAnalysis(analysis *models.UserAnalysis) string {
	var b strings.Builder

	b.WriteString(p.Title(fmt.Sprintf("Listening analysis: %d of %d saved tracks", len(analysis.Tracks), analysis.Total)))
	b.WriteString("\n")

	if len(analysis.Tracks) == 0 {
		b.WriteString(p.Warn("No tracks could be analyzed."))
		b.WriteString("\n")
		return b.String()
	}

	rows := make([][]string, 0, len(analysis.Tracks))
	for i, t := range analysis.Tracks {
		f := t.AudioFeatures
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			t.Track.Track.Name,
			strings.Join(t.Track.Track.ArtistNames(), ", "),
			truncate(strings.Join(t.Genres, ", "), maxGenreWidth),
			fmt.Sprintf("%.2f", f.Danceability),
			fmt.Sprintf("%.2f", f.Energy),
			fmt.Sprintf("%.2f", f.Valence),
			fmt.Sprintf("%.0f", f.Tempo),
			formatter.FormatDuration(f.DurationMS),
		})
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.border).
		Headers(analysisHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return cell
		})

	b.WriteString(tbl.Render())
	b.WriteString("\n")

	if genres := formatter.TopGenres(analysis, 5); len(genres) > 0 {
		parts := make([]string, 0, len(genres))
		for _, g := range genres {
			parts = append(parts, fmt.Sprintf("%s (%d)", g.Genre, g.Count))
		}
		b.WriteString(p.Help("Top genres: " + strings.Join(parts, ", ")))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderProgress formats an update as "[step/total] message".
func RenderProgress(update tasks.ProgressUpdate) string {
	return styles.RenderProgress(update)
}

func (p *Palette) RenderProgress(update tasks.ProgressUpdate) string {
	prefix := fmt.Sprintf("[%d/%d]", update.Step, update.Total)
	if update.Phase == tasks.JoinTracks {
		return p.OK(prefix) + " " + update.Message
	}
	return p.Help(prefix) + " " + update.Message
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
