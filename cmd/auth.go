package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/spin/internal/auth"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/urfave/cli/v3"
)

// credentialManager returns the runner's manager, constructing one from the
// --config flag when startup could not (client credentials missing at boot).
func (r *Runner) credentialManager(cmd *cli.Command) (*auth.Manager, error) {
	if r.auth != nil {
		return r.auth, nil
	}

	configPath := cmd.String("config")
	if configPath == "" {
		configPath = r.configPath
	}

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if loaded, err := shared.LoadConfig(configPath); err == nil {
			config = loaded
			r.config = loaded
		} else {
			r.logger.Warnf("failed to load config, using defaults %v", err)
		}
	}

	manager, err := auth.NewManager(auth.Opts{Config: config, Logger: r.logger})
	if err != nil {
		return nil, err
	}

	r.auth = manager
	return manager, nil
}

// AuthLogin runs the interactive authorization-code grant and stores the
// resulting credential.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.credentialManager(cmd)
	if err != nil {
		return err
	}

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	if err := manager.Authorize(ctx); err != nil {
		return err
	}

	status, err := manager.CheckAuth()
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Credentials saved to %s\n", manager.StorePath())
	if status.Remaining != "" {
		r.writePlain("  Access token valid for %s\n", status.Remaining)
	}
	r.writePlain("\nYou can now use: spin search \"everything in its right place\"\n")

	return nil
}

// AuthStatus reports the credential lifecycle state without mutating it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.credentialManager(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("checking auth status")

	status, err := manager.CheckAuth()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	switch status.State {
	case "unauthenticated":
		r.writePlain("✗ Not authenticated\n")
		r.writePlain("Run 'spin auth login' to connect your Spotify account.\n")
	case "revoked":
		r.writePlain("✗ Credentials revoked\n")
		r.writePlain("Run 'spin auth login' to connect again.\n")
	default:
		r.writePlain("✓ Authenticated\n")
		r.writePlain("Token expires: %s (%s)\n", status.ExpiresAt.Format(time.RFC3339), status.Remaining)
		if len(status.Scopes) > 0 {
			r.writePlain("Scopes: %s\n", strings.Join(status.Scopes, " "))
		}
		r.writePlain("Store: %s\n", manager.StorePath())
	}

	return nil
}

// AuthRefresh forces a token refresh regardless of remaining lifetime.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	manager, err := r.credentialManager(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("forcing token refresh")

	if err := manager.Refresh(ctx); err != nil {
		return err
	}

	status, err := manager.CheckAuth()
	if err != nil {
		return err
	}

	r.writePlain("✓ Access token refreshed, valid for %s\n", status.Remaining)

	return nil
}

// AuthLogout revokes the in-process credential and deletes the token store.
// Works without client credentials so a broken config can still be cleaned up.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.auth != nil {
		if err := r.auth.Revoke(); err != nil {
			return err
		}
		r.writePlain("✓ Stored credentials deleted (%s)\n", r.auth.StorePath())
		return nil
	}

	store, err := auth.NewStore(r.config.Credentials.Spotify.TokenPath)
	if err != nil {
		return err
	}
	if err := store.Delete(); err != nil {
		return err
	}

	r.writePlain("✓ Stored credentials deleted (%s)\n", store.Path())
	return nil
}

// authCommand manages the Spotify credential lifecycle.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authenticate with Spotify using OAuth2",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Check current authentication state",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:  "refresh",
				Usage: "Force an access token refresh",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Revoke credentials and delete the token store",
				Action: r.AuthLogout,
			},
		},
	}
}
