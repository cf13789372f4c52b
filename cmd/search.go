package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/services"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/desertthunder/spin/internal/tasks"
	"github.com/urfave/cli/v3"
)

// enrichmentOrder fixes the display order of optional sources in plain output.
var enrichmentOrder = []models.Source{models.SourceLastfm, models.SourceMusicBrainz}

// Search queries the primary catalog without enrichment.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	kind, err := models.ParseEntityKind(cmd.String("type"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	r.logger.Info("searching catalog", "kind", kind, "query", query)

	records, err := r.spotify.SearchRecords(ctx, kind, query, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	if len(records) == 0 {
		return r.writePlain("No %s results for %q\n", kind, query)
	}

	r.writePlain("Found %d %s results for %q:\n\n", len(records), kind, query)
	for i, rec := range records {
		r.printRecord(i+1, rec)
	}

	return nil
}

// EnhancedSearch queries the catalog and fans out to the optional sources for
// tags, listener counts, and summaries.
func (r *Runner) EnhancedSearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	kind, err := models.ParseEntityKind(cmd.String("type"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	if err := r.requireAggregator(); err != nil {
		return err
	}

	aggregator := r.aggregator
	if n := cmd.Int("enrich-limit"); n > 0 {
		aggregator = tasks.NewAggregator(r.spotify, r.sources, r.logger, tasks.WithEnrichLimit(n))
	}

	r.logger.Info("enhanced search", "kind", kind, "query", query)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.SearchPrimary:
				r.writePlain("🔍 %s\n", update.Message)
			case tasks.EnrichSources:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	entities, err := aggregator.EnhancedSearch(ctx, progressCh, kind, query, cmd.Int("limit"))
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entities, cmd.Bool("pretty"))
	}

	if len(entities) == 0 {
		return r.writePlain("\nNo %s results for %q\n", kind, query)
	}

	r.writePlain("\nFound %d %s results for %q:\n\n", len(entities), kind, query)
	for i, entity := range entities {
		r.printRecord(i+1, entity.Primary)
		r.printEnrichment(entity)
		r.writePlain("\n")
	}

	return nil
}

// SimilarArtists resolves an artist and lists similar artists by descending
// score.
func (r *Runner) SimilarArtists(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("artist"))
	if name == "" {
		return fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	if err := r.requireAggregator(); err != nil {
		return err
	}

	r.logger.Info("finding similar artists", "artist", name)

	progressCh := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("🔍 %s\n", update.Message)
		}
	}()

	matches, err := r.aggregator.FindSimilarArtists(ctx, progressCh, name, cmd.Int("limit"))
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(matches, cmd.Bool("pretty"))
	}

	if len(matches) == 0 {
		return r.writePlain("\nNo similarity data for %q\n", name)
	}

	r.writePlain("\nArtists similar to %s:\n\n", name)
	for i, match := range matches {
		r.writePlain("%d. %s (%.2f)\n", i+1, match.Name, match.Score)
		if match.URL != "" {
			r.writePlain("   %s\n", match.URL)
		}
	}

	return nil
}

// Info shows details for one entity addressed by spotify:kind:id URI, or by a
// bare ID with --type.
func (r *Runner) Info(ctx context.Context, cmd *cli.Command) error {
	ref := strings.TrimSpace(cmd.StringArg("uri"))
	if ref == "" {
		return fmt.Errorf("%w: uri or id", shared.ErrMissingArgument)
	}

	if err := r.requireSpotify(); err != nil {
		return err
	}

	kind, id, err := services.ParseURI(ref)
	if err != nil {
		if cmd.String("type") == "" {
			return fmt.Errorf("%w: %q is not a spotify URI, pass --type with a bare ID", shared.ErrInvalidArgument, ref)
		}
		if kind, err = models.ParseEntityKind(cmd.String("type")); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		id = ref
	}

	r.logger.Info("entity lookup", "kind", kind, "id", id)

	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	switch kind {
	case models.KindTrack:
		track, err := r.spotify.TrackInfo(ctx, id)
		if err != nil {
			return err
		}
		if useJSON {
			return r.writeJSON(track, pretty)
		}
		r.printTrackDetail(track)
	case models.KindAlbum:
		album, err := r.spotify.AlbumInfo(ctx, id)
		if err != nil {
			return err
		}
		if useJSON {
			return r.writeJSON(album, pretty)
		}
		r.printAlbumDetail(album)
	case models.KindArtist:
		artist, err := r.spotify.ArtistInfo(ctx, id)
		if err != nil {
			return err
		}
		if useJSON {
			return r.writeJSON(artist, pretty)
		}
		r.printArtistDetail(artist)
	case models.KindPlaylist:
		playlist, err := r.spotify.GetPlaylist(ctx, id)
		if err != nil {
			return err
		}
		if useJSON {
			return r.writeJSON(playlist, pretty)
		}
		r.writePlain("Playlist: %s\n", playlist.Name)
		if playlist.Description != "" {
			r.writePlain("Description: %s\n", playlist.Description)
		}
		if playlist.Owner != "" {
			r.writePlain("Owner: %s\n", playlist.Owner)
		}
		r.writePlain("Tracks: %d\n", playlist.TrackCount)
		r.writePlain("Visibility: %s\n", shared.VisibilityString(playlist.Public))
	}

	return nil
}

// printRecord renders one catalog record in plain output.
func (r *Runner) printRecord(n int, rec models.SourceRecord) {
	r.writePlain("%d. %s", n, rec.Name)
	if rec.Artist != "" && rec.Artist != rec.Name {
		r.writePlain(" - %s", rec.Artist)
	}
	r.writePlain("\n")
	if rec.Album != "" {
		r.writePlain("   Album: %s\n", rec.Album)
	}
	if rec.Duration > 0 {
		r.writePlain("   Duration: %s\n", shared.FormatDuration(rec.Duration))
	}
	r.writePlain("   ID: %s\n", rec.Key)
}

// printEnrichment renders the optional-source records and any gaps for one
// entity.
func (r *Runner) printEnrichment(entity models.AggregatedEntity) {
	for _, src := range enrichmentOrder {
		rec, ok := entity.Enrichment[src]
		if !ok {
			continue
		}

		parts := []string{}
		if len(rec.Tags) > 0 {
			tags := rec.Tags
			if len(tags) > 5 {
				tags = tags[:5]
			}
			parts = append(parts, strings.Join(tags, ", "))
		}
		if rec.Listeners > 0 {
			parts = append(parts, fmt.Sprintf("%d listeners", rec.Listeners))
		}
		if rec.Playcount > 0 {
			parts = append(parts, fmt.Sprintf("%d plays", rec.Playcount))
		}
		if rec.URL != "" {
			parts = append(parts, rec.URL)
		}

		r.writePlain("   [%s] %s\n", src, strings.Join(parts, " | "))
	}

	if len(entity.MissingSources) > 0 {
		names := make([]string, len(entity.MissingSources))
		for i, src := range entity.MissingSources {
			names[i] = src.String()
		}
		r.writePlain("   Missing: %s\n", strings.Join(names, ", "))
	}
}

func (r *Runner) printTrackDetail(track *models.Track) {
	r.writePlain("Track: %s\n", track.Title)
	r.writePlain("Artist: %s\n", track.Artist)
	if track.Album != "" {
		r.writePlain("Album: %s\n", track.Album)
	}
	r.writePlain("Duration: %s\n", shared.FormatDuration(track.Duration))
	if track.Explicit {
		r.writePlain("Explicit: yes\n")
	}
	if track.ISRC != "" {
		r.writePlain("ISRC: %s\n", track.ISRC)
	}
	if track.URI != "" {
		r.writePlain("URI: %s\n", track.URI)
	}
}

func (r *Runner) printAlbumDetail(album *models.Album) {
	r.writePlain("Album: %s\n", album.Name)
	r.writePlain("Artist: %s\n", album.Artist)
	if album.ReleaseDate != "" {
		r.writePlain("Released: %s\n", album.ReleaseDate)
	}
	r.writePlain("Tracks: %d\n", album.TotalTracks)
	for i, track := range album.Tracks {
		r.writePlain("  %d. %s (%s)\n", i+1, track.Title, shared.FormatDuration(track.Duration))
	}
}

func (r *Runner) printArtistDetail(artist *models.Artist) {
	r.writePlain("Artist: %s\n", artist.Name)
	if len(artist.Genres) > 0 {
		r.writePlain("Genres: %s\n", strings.Join(artist.Genres, ", "))
	}
	if artist.Popularity > 0 {
		r.writePlain("Popularity: %d\n", artist.Popularity)
	}
	if len(artist.TopTracks) > 0 {
		r.writePlain("Top tracks:\n")
		for i, track := range artist.TopTracks {
			r.writePlain("  %d. %s\n", i+1, track.Title)
		}
	}
	if len(artist.Albums) > 0 {
		r.writePlain("Albums:\n")
		for _, album := range artist.Albums {
			r.writePlain("  - %s", album.Name)
			if album.ReleaseDate != "" {
				r.writePlain(" (%s)", album.ReleaseDate)
			}
			r.writePlain("\n")
		}
	}
}
