// Package server provides HTTP routing, middleware, and the loopback OAuth callback used by the CLI.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation is backed by a chi mux, which supplies method matching,
// wildcard patterns for static files, request ids, real client IPs and panic recovery.
//
// # Middleware
//
//   - [RequestLogger] : one structured log line per request
//   - [RateLimit] : per-client token buckets from a [KeyedRateLimiter], answering 429 when exhausted
//   - [CORS] : optional cross-origin access for configured origins
//
// # OAuth Callback Handler
//
// [OAuthHandler] lets `spotalyze analyze` complete the authorization-code flow without the web
// service: a temporary server listens on the redirect URI, hands the callback to an auth.Manager,
// and delivers the token through a channel. It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
