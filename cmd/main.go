package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spin/internal/auth"
	"github.com/desertthunder/spin/internal/services"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	if os.Getenv("SPIN_DEBUG") != "" {
		shared.SetLogLevel(logger, log.DebugLevel)
	}

	configPath := "config.toml"
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	var (
		manager *auth.Manager
		spotify *services.SpotifyService
		api     *services.APIService
	)

	// The manager needs client credentials; without them the catalog commands
	// stay nil and report how to fix it when invoked.
	if m, err := auth.NewManager(auth.Opts{Config: config, Logger: logger}); err == nil {
		manager = m
		httpClient := m.HTTPClient(context.Background())
		spotify = services.NewSpotifyService(httpClient, logger)
		api = services.NewAPIService("", httpClient)
	} else {
		logger.Debug("credential manager not available", "error", err)
	}

	sources := []services.SourceClient{
		services.NewLastfmService(config, shared.WithLogger(logger, "source", "lastfm")),
		services.NewMusicBrainzService(config, shared.WithLogger(logger, "source", "musicbrainz")),
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Auth:       manager,
		Spotify:    spotify,
		Sources:    sources,
		API:        api,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "spin",
		Usage:    "Spotify search, playback & playlists enriched with Last.fm and MusicBrainz",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotAuthenticated):
			logger.Error("not authenticated with Spotify, run 'spin auth login'")
			os.Exit(1)
		case errors.Is(err, shared.ErrReauthRequired):
			logger.Error("stored credentials were rejected, run 'spin auth login' again")
			os.Exit(1)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
