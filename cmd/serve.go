package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/desertthunder/maestro/internal/server"
	"github.com/desertthunder/maestro/internal/shared"
	"github.com/desertthunder/maestro/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted, sweeping credentials in the background.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open()
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	router := server.NewRouter(server.Deps{
		Linker:   a.tokens,
		States:   a.states,
		Player:   a.player,
		StateTTL: r.config.Auth.LinkStateTTL.Duration,
		Metrics:  a.metrics.Handler(),
		Logger:   r.logger,
	})
	httpServer := server.NewHTTPServer(addr, router)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case cmd.Bool("no-maintenance"):
	case !a.tokens.Configured():
		r.logger.Warn("credential sweep disabled until client credentials are set")
	default:
		go a.sweeper.Start(ctx, nil)
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// sweepSummary is the JSON form of a [tasks.SweepResult].
type sweepSummary struct {
	PrunedStates int64             `json:"pruned_states"`
	Linked       int               `json:"linked"`
	Due          int               `json:"due"`
	Refreshed    int               `json:"refreshed"`
	Failed       int               `json:"failed"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// Maintain runs a single credential sweep and prints its progress and summary.
func (r *Runner) Maintain(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	a, err := r.open()
	if err != nil {
		return err
	}
	if !a.tokens.Configured() {
		return fmt.Errorf("%w: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET", shared.ErrNotConfigured)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if useJSON {
				continue
			}
			switch update.Phase {
			case tasks.PruneStates, tasks.ScanCredentials:
				r.writePlain("→ %s\n", update.Message)
			case tasks.RefreshCredentials:
				r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
			}
		}
	}()

	result, err := a.sweeper.RunOnce(ctx, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if useJSON {
		summary := sweepSummary{
			PrunedStates: result.PrunedStates,
			Linked:       result.Linked,
			Due:          result.Due,
			Refreshed:    result.Refreshed,
			Failed:       result.Failed,
		}
		if len(result.Errors) > 0 {
			summary.Errors = make(map[string]string, len(result.Errors))
			for user, err := range result.Errors {
				summary.Errors[user] = err.Error()
			}
		}
		return r.writeJSON(summary, cmd.Bool("pretty"))
	}

	r.writePlainln("✓ Sweep complete: %d refreshed, %d failed of %d linked", result.Refreshed, result.Failed, result.Linked)
	if result.Failed > 0 {
		users := make([]string, 0, len(result.Errors))
		for user := range result.Errors {
			users = append(users, user)
		}
		sort.Strings(users)
		for _, user := range users {
			r.writePlain("  ✗ %s: %v\n", user, result.Errors[user])
		}
	}
	return nil
}
