package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spin/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes a starter config.toml from the embedded template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		if cmd.Bool("force") {
			r.logger.Warn("overwriting existing config", "path", configPath)
		} else {
			r.writePlain("Config already exists at %s\n", configPath)
			r.writePlain("Pass --force to overwrite it.\n")
			return nil
		}
	}

	if err := shared.CreateConfigFile(configPath, cmd.Bool("force")); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	r.logger.Info("config file created", "path", configPath)

	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Register an app at https://developer.spotify.com/dashboard\n")
	r.writePlain("2. Add http://127.0.0.1:8888/callback as a redirect URI\n")
	r.writePlain("3. Fill in client_id and client_secret under [credentials.spotify]\n")
	r.writePlain("4. Optionally set a Last.fm API key under [credentials.lastfm]\n")
	r.writePlain("5. Run 'spin auth login'\n")

	return nil
}

// setupCommand handles first-run configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a starter configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}
