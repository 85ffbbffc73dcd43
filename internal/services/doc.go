// Package services defines the [MusicAPI] capability consumed by the analysis engine and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] owns the OAuth2 client configuration. It builds authorize URLs, exchanges
// authorization codes and, through [SpotifyService.ForToken], hands out a [SpotifyClient]
// bound to one user's access token. Tokens are used as-is: there is no refresh, so an expired
// token surfaces as an API error and the user signs in again.
//
// Requests go through github.com/zmb3/spotify/v2. Batch lookups are split to the provider's
// limits (50 artists, 100 audio features per call) and ids the provider cannot resolve are skipped.
//
// # Error Handling
//
// Every provider failure is wrapped with [shared.ErrAPIRequest].
package services
