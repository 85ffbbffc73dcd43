// Package models defines domain entities for the spotalyze listening analysis service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): plain structs mirroring music provider data
//   - [SavedTrack], [Track], [ArtistRef] : a page of the user's library
//   - [Artist] : artist genres used to tag tracks
//   - [AudioFeatures] : per-track acoustic attributes
//   - [TrackAnalysis], [UserAnalysis] : the joined report served to clients
//
// 2. Persistent Entities: database-backed models with lifecycle management
//   - [AuthState] : single-use CSRF state issued when an authorization flow begins
//
// [TokenInfo] is the credential written into the caller's session after a successful callback.
package models
