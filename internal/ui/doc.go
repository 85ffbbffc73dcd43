// Package ui renders analyses and progress for the terminal with lipgloss styles.
//
// [RenderAnalysis] draws the table printed by `spotalyze analyze --format table`, and
// [RenderProgress] formats the updates streamed by the analysis engine while it runs.
package ui
