package main

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/auth"
	"github.com/desertthunder/maestro/internal/matching"
	"github.com/desertthunder/maestro/internal/metrics"
	"github.com/desertthunder/maestro/internal/playback"
	"github.com/desertthunder/maestro/internal/repositories"
	"github.com/desertthunder/maestro/internal/services"
	"github.com/desertthunder/maestro/internal/shared"
	"github.com/desertthunder/maestro/internal/tasks"
)

// app is the wired object graph shared by every command.
type app struct {
	db          *sql.DB
	credentials *repositories.CredentialRepository
	states      *repositories.LinkStateRepository
	store       *auth.Store
	tokens      *auth.Manager
	player      *playback.Orchestrator
	sweeper     *tasks.Sweeper
	metrics     *metrics.Recorder
}

func openDatabase(cfg shared.DatabaseConfig) (*sql.DB, error) {
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// newApp opens the database and builds the token manager, catalog client, scorer, orchestrator and sweeper from config.
func newApp(config *shared.Config, logger *log.Logger) (*app, error) {
	db, err := openDatabase(config.Database)
	if err != nil {
		return nil, err
	}

	rec := metrics.NewRecorder()
	credentials := repositories.NewCredentialRepository(db)
	states := repositories.NewLinkStateRepository(db)
	store := auth.NewStore(credentials, shared.WithLogger(logger, "component", "store"))

	authOpts := auth.OptionsFromConfig(config)
	authOpts.Logger = logger
	authOpts.Metrics = rec
	tokens := auth.NewManager(store, authOpts)
	tokens.ReportLinked()

	catalog := services.NewSpotifyCatalog(services.SpotifyOptions{
		BaseURL:   config.Provider.APIURL,
		Timeout:   config.Provider.RequestTimeout.Duration,
		RateLimit: config.Provider.RateLimit,
		Logger:    logger,
		Metrics:   rec,
	})

	scorer := matching.NewScorer(
		matching.VocabularyFromConfig(config.Scoring),
		matching.DefaultWeights(),
		config.Scoring.LowConfidence,
	)

	playOpts := playback.OptionsFromConfig(config)
	playOpts.Logger = logger
	playOpts.Metrics = rec

	sweepOpts := tasks.OptionsFromConfig(config)
	sweepOpts.Logger = logger

	if !tokens.Configured() {
		logger.Warn("spotify client credentials are not set; playback is disabled")
	}

	return &app{
		db:          db,
		credentials: credentials,
		states:      states,
		store:       store,
		tokens:      tokens,
		player:      playback.NewOrchestrator(tokens, catalog, scorer, playOpts),
		sweeper:     tasks.NewSweeper(tokens, credentials, states, sweepOpts),
		metrics:     rec,
	}, nil
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
