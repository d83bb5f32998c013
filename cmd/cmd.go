// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// userFlag identifies the person the command acts for.
func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User id to act for",
		Sources:  cli.EnvVars("MAESTRO_USER"),
		Required: true,
	}
}

// setupCommand handles setup operations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Write config.toml if missing, initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// linkCommand authorizes a user's streaming account in the browser.
func linkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Link a music account using OAuth2 in the browser",
		Flags: []cli.Flag{
			userFlag(),
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: defaultLinkTimeout,
			},
		},
		Action: r.Link,
	}
}

func unlinkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "unlink",
		Usage:  "Forget a user's stored credential",
		Flags:  []cli.Flag{userFlag()},
		Action: r.Unlink,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Search for a track or work and play it",
		ArgsUsage: "<query>",
		Flags:     []cli.Flag{userFlag()},
		Action:    r.Play,
	}
}

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "playlist",
		Usage:     "Play one of the user's playlists by name",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{userFlag()},
		Action:    r.Playlist,
	}
}

func pauseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "pause",
		Aliases: []string{"stop"},
		Usage:   "Pause playback",
		Flags:   []cli.Flag{userFlag()},
		Action:  r.Pause,
	}
}

func resumeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "resume",
		Usage:  "Resume playback",
		Flags:  []cli.Flag{userFlag()},
		Action: r.Resume,
	}
}

func skipCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "skip",
		Aliases: []string{"next"},
		Usage:   "Skip to the next track",
		Flags:   []cli.Flag{userFlag()},
		Action:  r.Skip,
	}
}

func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "devices",
		Usage:  "List the user's playback devices",
		Flags:  []cli.Flag{userFlag()},
		Action: r.Devices,
	}
}

// consoleCommand launches the interactive terminal console.
func consoleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "console",
		Usage: "Interactive console for playback commands",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the console owns the terminal",
				Value: "./tmp/maestro-console.log",
			},
		},
		Action: r.Console,
	}
}

// serveCommand runs the HTTP API, link callback and background maintenance.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the playback API, account linking and metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
			&cli.BoolFlag{
				Name:  "no-maintenance",
				Usage: "Do not run the background credential sweep",
			},
		},
		Action: r.Serve,
	}
}

// maintainCommand runs one credential sweep.
func maintainCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "maintain",
		Usage: "Prune expired link states and refresh credentials that expire soon",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the sweep summary as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Maintain,
	}
}
