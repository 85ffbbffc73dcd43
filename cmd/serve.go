package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotalyze/internal/auth"
	"github.com/desertthunder/spotalyze/internal/repositories"
	"github.com/desertthunder/spotalyze/internal/server"
	"github.com/desertthunder/spotalyze/internal/services"
	"github.com/desertthunder/spotalyze/internal/session"
	"github.com/desertthunder/spotalyze/internal/shared"
	"github.com/desertthunder/spotalyze/internal/web"
)

// limiterIdle is how long a client's rate limiter survives without requests.
const limiterIdle = 10 * time.Minute

// Serve runs the web service until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	addr := config.Server.Addr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := r.newServer(ctx, config, addr)
	if err != nil {
		return err
	}
	defer cleanup()

	return server.Run(ctx, srv, r.logger)
}

// newServer validates config and wires storage, sessions, authorization & handlers into an [http.Server].
// Expired states are pruned until ctx is done. cleanup releases the database and limiter.
func (r *Runner) newServer(ctx context.Context, config *shared.Config, addr string) (*http.Server, func(), error) {
	if err := shared.Validate(config); err != nil {
		return nil, nil, err
	}

	sessions, err := session.NewCookieStore(config.Session.Secret, session.Options{
		CookieName: config.Session.CookieName,
		Secure:     config.Session.Secure,
		Lifetime:   config.SessionLifetime(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}

	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return nil, nil, err
	}
	if _, err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	states := repositories.NewAuthStateRepository(db)
	manager := auth.NewManager(spotify, states, config.StateTTL(), shared.WithLogger(r.logger, "component", "auth"))
	limiter := server.NewKeyedRateLimiter(config.Auth.RateLimitRPS, config.Auth.RateLimitBurst, limiterIdle)

	app := web.NewApp(manager, sessions, spotify, r.engine, shared.WithLogger(r.logger, "component", "http"), web.Options{
		CallbackPath:   callbackPath(config.Credentials.Spotify.RedirectURI),
		StaticDir:      config.Server.StaticDir,
		AllowedOrigins: config.Server.AllowedOrigins,
		Limiter:        limiter,
		TrustProxy:     config.Server.TrustProxy,
	})

	go r.pruneStates(ctx, states, config.StateTTL())

	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Handler(),
		ReadTimeout:  config.ReadTimeout(),
		WriteTimeout: config.WriteTimeout(),
	}

	cleanup := func() {
		limiter.Stop()
		db.Close()
	}
	return srv, cleanup, nil
}

type statePruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// pruneStates deletes expired authorization states every interval until ctx is done.
func (r *Runner) pruneStates(ctx context.Context, states statePruner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := states.Prune(ctx, now)
			if err != nil {
				r.logger.Warn("failed to prune authorization states", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Debug("pruned authorization states", "count", n)
			}
		}
	}
}

// callbackPath returns the path component of the redirect URI, "/spotify" when it has none.
func callbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/spotify"
	}
	return u.Path
}
