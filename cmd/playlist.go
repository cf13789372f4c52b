package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/spin/internal/formatter"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/pager"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/desertthunder/spin/internal/tasks"
	"github.com/urfave/cli/v3"
)

// exportFormats are the accepted --format values for playlist export.
var exportFormats = map[string]bool{"json": true, "csv": true, "markdown": true, "txt": true}

// PlaylistList lists the user's playlists, walking the full collection.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Infof("listing playlists with limit %v", limit)

	playlists, err := pager.FetchAll(ctx, r.spotify.PlaylistsPage, pager.DefaultPageSize)
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("save") {
		saveFile := "playlists.json"
		data, err := shared.MarshalJSON(playlists, true)
		if err != nil {
			return fmt.Errorf("failed to marshal playlists: %w", err)
		}
		if err := os.WriteFile(saveFile, data, 0644); err != nil {
			r.logger.Warn("failed to save playlists", "error", err)
		} else {
			r.logger.Info("playlists saved", "file", saveFile)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		r.writePlain("   Visibility: %s\n", shared.VisibilityString(p.Public))
		r.writePlain("\n")
	}

	return nil
}

// PlaylistTracks fetches one window of a playlist's tracks.
func (r *Runner) PlaylistTracks(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	limit := cmd.Int("limit")
	offset := cmd.Int("offset")

	r.logger.Info("fetching playlist tracks", "playlist", playlistID, "limit", limit, "offset", offset)

	page, err := pager.FetchPage(ctx, r.spotify.PlaylistTracks(playlistID), limit, offset)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}

	if len(page.Items) == 0 {
		return r.writePlain("No tracks at offset %d (total %d)\n", page.Cursor.Offset, page.Cursor.Total)
	}

	last := page.Cursor.Offset + len(page.Items)
	r.writePlain("Tracks %d-%d of %d:\n\n", page.Cursor.Offset+1, last, page.Cursor.Total)
	for i, track := range page.Items {
		r.printTrack(page.Cursor.Offset+i+1, track)
	}

	return nil
}

// PlaylistAllTracks walks every page of a playlist's tracks.
func (r *Runner) PlaylistAllTracks(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Infof("fetching all tracks for playlist %v", playlistID)

	export, err := r.spotify.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(export.Tracks, cmd.Bool("pretty"))
	}

	r.writePlain("Playlist: %s\n", export.Playlist.Name)
	r.writePlain("Tracks: %d\n\n", len(export.Tracks))
	for i, track := range export.Tracks {
		r.printTrack(i+1, track)
	}

	return nil
}

// PlaylistCreate creates a playlist for the current user.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("creating playlist", "name", name)

	playlist, err := r.spotify.CreatePlaylist(ctx, name, cmd.String("description"), cmd.Bool("public"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Created playlist %q\n", playlist.Name)
	r.writePlain("  ID: %s\n", playlist.ID)
	r.writePlain("  Visibility: %s\n", shared.VisibilityString(playlist.Public))

	return nil
}

// PlaylistAdd appends tracks to an existing playlist.
func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	trackIDs := splitIDs(cmd.StringArg("tracks"))
	if len(trackIDs) == 0 {
		return fmt.Errorf("%w: at least one track ID", shared.ErrMissingArgument)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("adding tracks", "playlist", playlistID, "count", len(trackIDs))

	if err := r.spotify.AddTracks(ctx, playlistID, trackIDs); err != nil {
		return err
	}

	r.writePlain("✓ Added %d tracks to %s\n", len(trackIDs), playlistID)
	return nil
}

// PlaylistRemove removes tracks from an existing playlist.
func (r *Runner) PlaylistRemove(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	trackIDs := splitIDs(cmd.StringArg("tracks"))
	if len(trackIDs) == 0 {
		return fmt.Errorf("%w: at least one track ID", shared.ErrMissingArgument)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("removing tracks", "playlist", playlistID, "count", len(trackIDs))

	if err := r.spotify.RemoveTracks(ctx, playlistID, trackIDs); err != nil {
		return err
	}

	r.writePlain("✓ Removed %d tracks from %s\n", len(trackIDs), playlistID)
	return nil
}

// PlaylistEdit changes a playlist's name, description, or visibility. Only
// flags that were actually set are sent.
func (r *Runner) PlaylistEdit(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	var name, description *string
	var public *bool

	if cmd.IsSet("name") {
		v := cmd.String("name")
		name = &v
	}
	if cmd.IsSet("description") {
		v := cmd.String("description")
		description = &v
	}
	if cmd.IsSet("visibility") {
		v, err := parseVisibility(cmd.String("visibility"))
		if err != nil {
			return err
		}
		public = &v
	}

	if name == nil && description == nil && public == nil {
		return fmt.Errorf("%w: nothing to change, pass --name, --description, or --visibility", shared.ErrMissingArgument)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("editing playlist", "playlist", playlistID)

	if err := r.spotify.UpdatePlaylist(ctx, playlistID, name, description, public); err != nil {
		return err
	}

	r.writePlain("✓ Updated playlist %s\n", playlistID)
	return nil
}

// PlaylistExport exports one playlist, or every playlist with --all, in the
// requested format.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	if !exportFormats[format] {
		return fmt.Errorf("%w: format must be json, csv, markdown, or txt, got %q", shared.ErrInvalidArgument, format)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	if cmd.Bool("all") {
		return r.exportAll(ctx, cmd, format)
	}

	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required (or --all for bulk export)", shared.ErrMissingArgument)
	}

	return r.exportOne(ctx, cmd, playlistID, format)
}

// exportOne writes a single playlist export to disk.
func (r *Runner) exportOne(ctx context.Context, cmd *cli.Command, playlistID, format string) error {
	r.logger.Infof("exporting playlist %v as %v", playlistID, format)

	export, err := r.spotify.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return err
	}

	output := cmd.String("output")

	var files []string
	switch format {
	case "json":
		path, err := formatter.WriteJSONExport(export, output)
		if err != nil {
			return err
		}
		files = []string{path}
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		files = []string{result.TracksFile, result.MetadataFile}
	case "markdown":
		result, err := formatter.WriteMarkdownExport(export, output, "")
		if err != nil {
			return err
		}
		files = result.Files
	case "txt":
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		files = []string{path}
	}

	r.writePlain("✓ Playlist exported\n")
	r.writePlain("  Playlist: %s\n", export.Playlist.Name)
	r.writePlain("  Tracks: %d\n", len(export.Tracks))
	for _, f := range files {
		r.writePlain("  File: %s\n", f)
	}

	return nil
}

// exportAll walks every playlist and exports each through the worker pool.
func (r *Runner) exportAll(ctx context.Context, cmd *cli.Command, format string) error {
	if err := r.requireAggregator(); err != nil {
		return err
	}

	r.logger.Infof("bulk export as %v", format)
	r.writePlain("Collecting playlists...\n")

	playlists, err := pager.FetchAll(ctx, r.spotify.PlaylistsPage, pager.DefaultPageSize)
	if err != nil {
		return err
	}

	ids := make([]string, len(playlists))
	for i, p := range playlists {
		ids[i] = p.ID
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchSource:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ExportPlaylist:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	result, err := r.aggregator.BulkExport(ctx, progressCh, r.spotify, ids, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  float64(cmd.Int("rate")),
	})
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete")
	r.writePlain("Exported: %d/%d playlists\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	if result.FailedExports > 0 {
		r.writePlain("\nFailed exports:\n")
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %s\n", res.PlaylistID, res.ErrorMessage)
			}
		}
	}

	return nil
}

// printTrack renders one track line with optional album detail.
func (r *Runner) printTrack(n int, track models.Track) {
	r.writePlain("%d. %s - %s", n, track.Artist, track.Title)
	if track.Duration > 0 {
		r.writePlain(" (%s)", shared.FormatDuration(track.Duration))
	}
	r.writePlain("\n")
	if track.Album != "" {
		r.writePlain("   Album: %s\n", track.Album)
	}
}

// splitIDs splits a comma-separated ID list, trimming whitespace and dropping
// empties. Accepts bare IDs and spotify:track: URIs.
func splitIDs(s string) []string {
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// parseVisibility maps the --visibility flag onto the public bool.
func parseVisibility(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "public":
		return true, nil
	case "private":
		return false, nil
	default:
		return false, fmt.Errorf("%w: visibility must be 'public' or 'private', got %q", shared.ErrInvalidArgument, s)
	}
}

// playlistCommand handles playlist operations.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to show (0 = all)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Save playlists to playlists.json",
					},
				},
				Action: r.PlaylistList,
			},
			{
				Name:  "tracks",
				Usage: "Show one page of a playlist's tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Page size",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Start position within the playlist",
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
				Action: r.PlaylistTracks,
			},
			{
				Name:  "all-tracks",
				Usage: "Show every track in a playlist, paginating automatically",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
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
				Action: r.PlaylistAllTracks,
			},
			{
				Name:  "create",
				Usage: "Create a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "description",
						Usage: "Playlist description",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Make the playlist public (private by default)",
					},
				},
				Action: r.PlaylistCreate,
			},
			{
				Name:  "add",
				Usage: "Add tracks to a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "tracks",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID to add tracks to",
						Required: true,
					},
				},
				Action: r.PlaylistAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove tracks from a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "tracks",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID to remove tracks from",
						Required: true,
					},
				},
				Action: r.PlaylistRemove,
			},
			{
				Name:  "edit",
				Usage: "Change a playlist's name, description, or visibility",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID to edit",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "New playlist name",
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "New playlist description",
					},
					&cli.StringFlag{
						Name:  "visibility",
						Usage: "New visibility (public or private)",
					},
				},
				Action: r.PlaylistEdit,
			},
			{
				Name:  "export",
				Usage: "Export a playlist (or all playlists) to disk",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Playlist ID to export",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every playlist through the worker pool",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format (json, csv, markdown, txt)",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (single) or directory (bulk)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers (bulk only)",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "rate",
						Usage: "Requests per second (bulk only)",
						Value: 5,
					},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}
