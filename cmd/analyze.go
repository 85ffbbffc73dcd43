package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotalyze/internal/auth"
	"github.com/desertthunder/spotalyze/internal/formatter"
	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/repositories"
	"github.com/desertthunder/spotalyze/internal/server"
	"github.com/desertthunder/spotalyze/internal/services"
	"github.com/desertthunder/spotalyze/internal/session"
	"github.com/desertthunder/spotalyze/internal/shared"
	"github.com/desertthunder/spotalyze/internal/tasks"
	"github.com/desertthunder/spotalyze/internal/ui"
)

const (
	formatTable = "table"

	// maxLimit is the largest page the saved tracks endpoint returns.
	maxLimit = 50

	authTimeout = 2 * time.Minute
)

// Analyze authorizes the user, runs the analysis and writes the report.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	limit := int(cmd.Int("limit"))
	offset := int(cmd.Int("offset"))
	formatName := cmd.String("format")
	outputPath := cmd.String("output")

	if limit < 1 || limit > maxLimit {
		return fmt.Errorf("%w: --limit must be between 1 and %d", shared.ErrInvalidArgument, maxLimit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: --offset must not be negative", shared.ErrInvalidArgument)
	}

	var format formatter.Format
	if formatName != formatTable {
		var err error
		if format, err = formatter.ParseFormat(formatName); err != nil {
			return err
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	authorizer, provider := r.authorizer, r.provider
	if authorizer == nil || provider == nil {
		if err := shared.Validate(config.Credentials); err != nil {
			return err
		}
		spotify, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
		if err != nil {
			return fmt.Errorf("failed to create Spotify service: %w", err)
		}
		if authorizer == nil {
			authorizer = r.newLoopbackAuthorizer(spotify, config)
		}
		if provider == nil {
			provider = spotify
		}
	}

	tok, err := authorizer.Authorize(ctx)
	if err != nil {
		return err
	}

	analysis, err := r.runAnalysis(ctx, provider.ForToken(ctx, tok), limit, offset)
	if err != nil {
		return err
	}

	if outputPath != "" {
		if formatName == formatTable {
			if err := os.WriteFile(outputPath, []byte(ui.RenderAnalysis(analysis)), 0644); err != nil {
				return fmt.Errorf("failed to write table file: %w", err)
			}
		} else if err := formatter.WriteExport(analysis, format, outputPath); err != nil {
			return err
		}
		r.writeStatus("✓ Report saved to %s\n", outputPath)
		return nil
	}

	switch {
	case formatName == formatTable:
		return r.writePlain("%s", ui.RenderAnalysis(analysis))
	case format == formatter.FormatJSON:
		return r.writeJSON(analysis, true)
	default:
		data, err := formatter.Export(analysis, format)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}
}

// runAnalysis runs the engine while streaming its progress to the status writer.
func (r *Runner) runAnalysis(ctx context.Context, api services.MusicAPI, limit, offset int) (*models.UserAnalysis, error) {
	progress := make(chan tasks.ProgressUpdate, 8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writeStatus("%s\n", ui.RenderProgress(update))
		}
	}()

	analysis, err := r.engine.FetchUserAnalysis(ctx, progress, api, limit, offset)
	close(progress)
	wg.Wait()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch analysis: %w", err)
	}
	return analysis, nil
}

// loopbackAuthorizer completes the authorization flow on a temporary server listening on the
// redirect URI's host, validating the callback against an in-memory state store.
type loopbackAuthorizer struct {
	exchanger   auth.CodeExchanger
	redirectURI string
	stateTTL    time.Duration
	timeout     time.Duration
	logger      *log.Logger
	openBrowser func(string) error
	status      func(format string, args ...any)
}

func (r *Runner) newLoopbackAuthorizer(spotify *services.SpotifyService, config *shared.Config) *loopbackAuthorizer {
	return &loopbackAuthorizer{
		exchanger:   spotify,
		redirectURI: spotify.RedirectURL(),
		stateTTL:    config.StateTTL(),
		timeout:     authTimeout,
		logger:      shared.WithLogger(r.logger, "component", "auth"),
		openBrowser: r.openBrowser,
		status:      r.writeStatus,
	}
}

// Authorize opens the browser on the provider's consent page and waits for the callback.
func (a *loopbackAuthorizer) Authorize(ctx context.Context) (*models.TokenInfo, error) {
	redirect, err := url.Parse(a.redirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, a.redirectURI)
	}

	db, err := shared.OpenMemoryDatabase(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	manager := auth.NewManager(a.exchanger, repositories.NewAuthStateRepository(db), a.stateTTL, a.logger)
	sess := session.New()

	target, err := manager.BeginAuthorization(ctx, sess)
	if err != nil {
		return nil, err
	}

	oauthHandler := server.NewOAuthHandler(manager, sess, callbackPath(a.redirectURI))
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	httpServer := &http.Server{Handler: router}
	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("starting OAuth callback server", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("error shutting down server", "error", err)
		}
	}()

	a.status("→ Opening browser for Spotify authorization...\n")
	if err := a.openBrowser(target.URL); err != nil {
		a.logger.Warnf("failed to open browser automatically %v", err)
		a.status("⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", target.URL)
	}

	a.status("→ Waiting for authorization (%s timeout)...\n", a.timeout)

	timeout := time.NewTimer(a.timeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, a.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("authorization failed: %w", err)
	}

	a.status("✓ Authorization successful\n")
	return result.Token, nil
}
