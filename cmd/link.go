package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/maestro/internal/server"
	"github.com/desertthunder/maestro/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLinkTimeout = 2 * time.Minute

// Link runs the authorization code flow for one user.
//
// Starts a local HTTP server for the callback, opens the browser on its /link route and waits for the credential to be stored.
func (r *Runner) Link(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	a, err := r.open()
	if err != nil {
		return err
	}
	if !a.tokens.Configured() {
		return fmt.Errorf("%w: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET", shared.ErrNotConfigured)
	}

	oauthHandler := server.NewOAuthHandler(a.tokens, a.states, r.config.Auth.LinkStateTTL.Duration, r.logger)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(oauthHandler)

	addr := r.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := server.NewHTTPServer(addr, router)
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", addr)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	linkURL := fmt.Sprintf("http://%s/link?user=%s", addr, url.QueryEscape(userID))
	r.writePlain("→ Opening browser to link %s...\n", userID)
	if err := shared.OpenBrowser(linkURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", linkURL)
	}

	wait := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", wait)

	timeout := time.NewTimer(wait)
	defer timeout.Stop()

	for {
		select {
		case linked := <-oauthHandler.Linked():
			if linked != userID {
				r.logger.Warn("ignoring link for another user", "user", linked)
				continue
			}
			r.writePlainln("✓ %s is linked", userID)
			r.writePlain("You can now use: maestro play --user %s <query>\n", userID)
			return nil
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-timeout.C:
			return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, wait)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Unlink removes a user's credential from memory and the database.
func (r *Runner) Unlink(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	a, err := r.open()
	if err != nil {
		return err
	}

	if err := a.tokens.Unlink(ctx, userID); err != nil {
		if errors.Is(err, shared.ErrNotLinked) {
			return r.writePlain("%s was not linked\n", userID)
		}
		return err
	}
	return r.writePlain("✓ %s is unlinked\n", userID)
}
