// Package session provides per-client key/value sessions carried in an encrypted cookie.
//
// A [Session] is an opaque map of JSON values plus a random identifier. The [CookieStore]
// seals it into a PASETO v4.local token whose key is derived from the configured secret,
// so the server keeps no session state and clients cannot read or forge the contents.
package session
