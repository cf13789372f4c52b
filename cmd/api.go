package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spin/internal/services"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request against the Spotify Web API with the
// managed token.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: request path", shared.ErrMissingArgument)
	}

	if err := r.requireAPI(); err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := r.api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIDump fetches the well-known account endpoints and collects the responses.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	pretty := cmd.Bool("pretty")
	save := cmd.Bool("save")

	if err := r.requireAPI(); err != nil {
		return err
	}

	r.logger.Info("dumping API state")
	r.writePlain("Fetching account snapshot...\n\n")

	responses, err := r.api.Dump(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	dump := make(map[string]any, len(responses))
	for _, endpoint := range services.DumpEndpoints {
		resp, ok := responses[endpoint]
		if !ok {
			continue
		}

		r.writePlain("📦 %s (%d)\n", endpoint, resp.StatusCode)
		if resp.IsJSON {
			dump[endpoint] = resp.JSONData
		} else {
			dump[endpoint] = string(resp.Body)
		}
	}

	r.writePlain("\n✓ Dump complete\n\n")

	if save {
		saveFile := "api_dump.json"
		data, err := shared.MarshalJSON(dump, true)
		if err != nil {
			return fmt.Errorf("failed to marshal dump: %w", err)
		}
		if err := os.WriteFile(saveFile, data, 0644); err != nil {
			r.logger.Warn("failed to save dump", "error", err)
		} else {
			r.logger.Info("dump saved", "file", saveFile)
			r.writePlain("✓ Dump saved to %s\n\n", saveFile)
		}
	}

	return r.writeJSON(dump, pretty)
}

// apiCommand handles raw Web API calls for debugging.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct Spotify Web API calls with the managed token",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET against api.spotify.com/v1, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "dump",
				Usage: "Fetch profile, playlists, and devices in one pass",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Save dump to api_dump.json",
					},
				},
				Action: r.APIDump,
			},
		},
	}
}
