package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/maestro/internal/playback"
	"github.com/desertthunder/maestro/internal/shared"
	"github.com/urfave/cli/v3"
)

// reply prints the outcome of one orchestrator call.
func (r *Runner) reply(cmd *cli.Command, op func(p *playback.Orchestrator, userID string) string) error {
	a, err := r.open()
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", op(a.player, cmd.String("user")))
}

// Play searches for the arguments joined as a query and plays the best match.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}
	return r.reply(cmd, func(p *playback.Orchestrator, userID string) string {
		return p.PlayByQuery(ctx, userID, query)
	})
}

// Playlist plays the user's playlist whose name best matches the arguments.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	name := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	return r.reply(cmd, func(p *playback.Orchestrator, userID string) string {
		return p.PlayByPlaylistName(ctx, userID, name)
	})
}

func (r *Runner) Pause(ctx context.Context, cmd *cli.Command) error {
	return r.reply(cmd, func(p *playback.Orchestrator, userID string) string {
		return p.Pause(ctx, userID)
	})
}

func (r *Runner) Resume(ctx context.Context, cmd *cli.Command) error {
	return r.reply(cmd, func(p *playback.Orchestrator, userID string) string {
		return p.Resume(ctx, userID)
	})
}

func (r *Runner) Skip(ctx context.Context, cmd *cli.Command) error {
	return r.reply(cmd, func(p *playback.Orchestrator, userID string) string {
		return p.SkipNext(ctx, userID)
	})
}

func (r *Runner) Devices(ctx context.Context, cmd *cli.Command) error {
	return r.reply(cmd, func(p *playback.Orchestrator, userID string) string {
		return p.ListDevices(ctx, userID)
	})
}
