// Package tasks builds listening analyses from a music provider with real-time progress reporting.
//
// # Core Operation
//
// [AnalysisEngine.FetchUserAnalysis] joins three provider responses into a [models.UserAnalysis]:
//
//  1. One page of the user's saved tracks
//  2. The genres of every distinct artist on that page, keyed by artist URI
//  3. The audio features of every distinct track id on that page
//
// Steps 2 and 3 only depend on step 1 and run concurrently. If either fails the other is
// cancelled and the whole analysis fails with [shared.ErrAPIRequest]. Lookups that simply
// come back empty are not errors: an unresolved artist contributes no genres, and a track
// without audio features (or without an id) is left out of the result.
//
// The result is a pure function of the three responses, so repeating the call against
// unchanged provider data yields an identical analysis.
//
// # Progress Reporting
//
// Operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for UI rendering.
// Updates use select with default to prevent blocking; a nil channel disables reporting.
package tasks
