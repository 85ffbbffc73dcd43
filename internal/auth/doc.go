// Package auth mediates the OAuth authorization-code flow and the session-bound credential it produces.
//
// A browser session moves through three states:
//
//	Anonymous -> PendingCallback (state issued) -> Authenticated (token stored)
//
// [Manager.BeginAuthorization] issues a single-use state bound to the session and returns the
// provider URL to redirect to. [Manager.CompleteAuthorization] validates the callback, consumes
// the state and exchanges the code; it never writes to the session. The HTTP boundary persists
// the result with [Manager.StoreToken] and reads it back with [Manager.LoadToken].
//
// Starting again while authenticated restarts the flow; a successful callback overwrites the stored token.
package auth
