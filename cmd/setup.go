package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadConfig reads path when it exists and falls back to the embedded defaults otherwise.
// Environment overrides are applied last.
func loadConfig(path string, logger *log.Logger) *shared.Config {
	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if loaded, err := shared.LoadConfig(path); err == nil {
			config = loaded
		} else {
			logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		}
	}
	config.ApplyEnv(nil)
	return config
}

// SetupDatabase writes a config file when none exists, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}
	r.config = loadConfig(configPath, r.logger)

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := openDatabase(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	if !r.config.Credentials.Spotify.Configured() {
		r.writePlainln("Set credentials.spotify.client_id and client_secret in %s (or SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET) to enable playback.", configPath)
	}
	return nil
}
