// Package web implements the HTTP surface of the analysis service.
//
// # Routes
//
//	GET /auth         → start the OAuth flow, 302 to the provider
//	GET <callback>    → finish the flow (path of the configured redirect URI, /spotify by default)
//	GET /analysis     → JSON analysis of the first 10 saved tracks
//	GET /healthz      → liveness probe
//	GET /*            → static files (index.html)
//
// # State Management
//
// The only per-client state is the session cookie managed by session.CookieStore. It carries the
// session id that authorization states are bound to and, once the callback succeeds, the token.
// Issued states live in SQLite through the auth.StateStore given to the auth.Manager.
//
// # Failure Responses
//
// Callback failures answer 200 text/plain with a short message ("Failed to authorize.",
// "Bad authorization code." or "Internal error."). /analysis answers 401 "Not logged in." without
// a token, 502 when the provider fails and 500 when the session cannot be read.
package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotalyze/internal/auth"
	"github.com/desertthunder/spotalyze/internal/server"
	"github.com/desertthunder/spotalyze/internal/services"
	"github.com/desertthunder/spotalyze/internal/session"
	"github.com/desertthunder/spotalyze/internal/shared"
	"github.com/desertthunder/spotalyze/internal/tasks"
)

const (
	msgNotLoggedIn    = "Not logged in."
	msgAnalysisFailed = "Failed to fetch analysis."
)

// Options configures an [App].
type Options struct {
	CallbackPath   string                   // defaults to /spotify
	StaticDir      string                   // no static route when empty
	AllowedOrigins []string                 // CORS origins for /analysis
	Limiter        *server.KeyedRateLimiter // limits /auth and the callback when set
	TrustProxy     bool                     // take the client address from proxy headers
}

// App holds the dependencies of the HTTP handlers.
type App struct {
	auth     *auth.Manager
	sessions *session.CookieStore
	provider services.MusicAPIProvider
	engine   tasks.Analyzer
	logger   *log.Logger
	opts     Options
}

// NewApp creates an App. A nil logger discards output.
func NewApp(manager *auth.Manager, sessions *session.CookieStore, provider services.MusicAPIProvider, engine tasks.Analyzer, logger *log.Logger, opts Options) *App {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.CallbackPath == "" {
		opts.CallbackPath = "/spotify"
	}
	return &App{
		auth:     manager,
		sessions: sessions,
		provider: provider,
		engine:   engine,
		logger:   logger,
		opts:     opts,
	}
}

// Routes registers the application's routes on router.
func (a *App) Routes(router server.Router) {
	if a.opts.TrustProxy {
		router.Use(server.TrustProxy())
	}
	router.Use(server.RequestLogger(a.logger))

	limited := func(h http.HandlerFunc) http.Handler {
		if a.opts.Limiter == nil {
			return h
		}
		return server.RateLimit(a.opts.Limiter, a.logger)(h)
	}

	router.Handle(http.MethodGet, "/auth", limited(a.BeginAuth))
	router.Handle(http.MethodGet, a.opts.CallbackPath, limited(a.Callback))
	router.Handle(http.MethodGet, "/analysis", server.CORS(a.opts.AllowedOrigins)(http.HandlerFunc(a.Analysis)))
	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.Healthz))

	if a.opts.StaticDir != "" {
		router.Handle(http.MethodGet, "/*", http.FileServer(http.Dir(a.opts.StaticDir)))
	}
}

// Handler returns a router with every route registered.
func (a *App) Handler() http.Handler {
	router := server.NewBasicRouter()
	a.Routes(router)
	return router
}

// BeginAuth starts the authorization flow and redirects to the provider.
func (a *App) BeginAuth(w http.ResponseWriter, r *http.Request) {
	sess, err := a.sessions.Load(r)
	if err != nil {
		a.logger.Warn("starting a new session", "error", err)
	}

	target, err := a.auth.BeginAuthorization(r.Context(), sess)
	if err != nil {
		a.logger.Error("failed to begin authorization", "error", err)
		writeText(w, http.StatusInternalServerError, auth.MsgInternalError)
		return
	}

	if err := a.sessions.Save(w, sess); err != nil {
		a.logger.Error("failed to save session", "error", err)
		writeText(w, http.StatusInternalServerError, auth.MsgInternalError)
		return
	}

	http.Redirect(w, r, target.URL, http.StatusFound)
}

// Callback completes the authorization flow, stores the token in the session and redirects home.
//
// A provider error is reported as such even when the session cookie is unreadable.
func (a *App) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := auth.CallbackParams{
		State: q.Get("state"),
		Code:  q.Get("code"),
		Error: q.Get("error"),
	}

	sess, err := a.sessions.Load(r)
	if err != nil && params.Error == "" {
		a.logger.Error("failed to load session", "error", err)
		writeText(w, http.StatusOK, auth.MsgInternalError)
		return
	}

	tok, err := a.auth.CompleteAuthorization(r.Context(), sess, params)
	if err != nil {
		msg := auth.UserMessage(err)
		if msg == auth.MsgInternalError {
			a.logger.Error("authorization callback failed", "error", err)
		} else {
			a.logger.Warn("authorization callback rejected", "error", err)
		}
		writeText(w, http.StatusOK, msg)
		return
	}

	if err := a.auth.StoreToken(sess, tok); err != nil {
		a.logger.Error("failed to store token", "error", err)
		writeText(w, http.StatusOK, auth.MsgInternalError)
		return
	}

	if err := a.sessions.Save(w, sess); err != nil {
		a.logger.Error("failed to save session", "error", err)
		writeText(w, http.StatusOK, auth.MsgInternalError)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// Analysis writes the caller's [models.UserAnalysis] as JSON.
func (a *App) Analysis(w http.ResponseWriter, r *http.Request) {
	sess, err := a.sessions.Load(r)
	if err != nil {
		a.logger.Error("failed to load session", "error", err)
		a.sessions.Clear(w)
		writeText(w, http.StatusInternalServerError, auth.MsgInternalError)
		return
	}

	tok, err := a.auth.LoadToken(sess)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		writeText(w, http.StatusUnauthorized, msgNotLoggedIn)
		return
	}
	if err != nil {
		a.logger.Error("failed to load token", "error", err)
		writeText(w, http.StatusInternalServerError, auth.MsgInternalError)
		return
	}

	api := a.provider.ForToken(r.Context(), tok)
	analysis, err := a.engine.FetchUserAnalysis(r.Context(), nil, api, tasks.DefaultLimit, tasks.DefaultOffset)
	if err != nil {
		a.logger.Error("failed to fetch analysis", "error", err)
		if errors.Is(err, shared.ErrAPIRequest) {
			writeText(w, http.StatusBadGateway, msgAnalysisFailed)
			return
		}
		writeText(w, http.StatusInternalServerError, auth.MsgInternalError)
		return
	}

	data, err := shared.MarshalJSON(analysis, false)
	if err != nil {
		a.logger.Error("failed to encode analysis", "error", err)
		writeText(w, http.StatusInternalServerError, auth.MsgInternalError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		a.logger.Debug("failed to write analysis", "error", err)
	}
}

// Healthz reports that the process is serving.
func (a *App) Healthz(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, msg)
}
