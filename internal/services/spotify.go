// Spotify Web API implementation of [PrimaryCatalog]
//
// Wraps the zmb3 client with conversions into the shared model types and
// batching for the endpoints that cap request sizes.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/pager"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/zmb3/spotify/v2"
)

const (
	// maxTracksPerRequest is the Web API cap on playlist track mutations and
	// playlist track pages.
	maxTracksPerRequest = 100

	// maxPlaylistsPerRequest is the Web API cap on playlist listing pages.
	maxPlaylistsPerRequest = 50

	// defaultSearchLimit bounds search responses when the caller does not
	// ask for a specific count.
	defaultSearchLimit = 10

	// topTracksCountry scopes artist top-track lookups.
	topTracksCountry = "US"
)

// SpotifyService is the primary catalog client.
//
// The HTTP client must inject valid access tokens; wiring it through the
// credential manager keeps tokens fresh across long operations.
type SpotifyService struct {
	client *spotify.Client
	logger *log.Logger
}

// NewSpotifyService creates a Spotify client from an authenticated HTTP client.
func NewSpotifyService(httpClient *http.Client, logger *log.Logger) *SpotifyService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &SpotifyService{
		client: spotify.New(httpClient),
		logger: logger,
	}
}

// ParseURI extracts the entity kind and ID from a Spotify URI or share link.
//
// Accepts the canonical form (spotify:track:id) and open.spotify.com links.
func ParseURI(uri string) (models.EntityKind, string, error) {
	if rest, ok := strings.CutPrefix(uri, "spotify:"); ok {
		kindName, id, found := strings.Cut(rest, ":")
		if !found || id == "" {
			return 0, "", fmt.Errorf("%w: malformed spotify URI %q", shared.ErrInvalidArgument, uri)
		}

		kind, err := models.ParseEntityKind(kindName)
		if err != nil {
			return 0, "", fmt.Errorf("%w: unsupported entity %q in %q", shared.ErrInvalidArgument, kindName, uri)
		}

		return kind, id, nil
	}

	if strings.Contains(uri, "open.spotify.com/") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return 0, "", fmt.Errorf("%w: malformed share link %q", shared.ErrInvalidArgument, uri)
		}

		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(parts) >= 2 {
			if kind, err := models.ParseEntityKind(parts[len(parts)-2]); err == nil {
				return kind, parts[len(parts)-1], nil
			}
		}

		return 0, "", fmt.Errorf("%w: unrecognized share link %q", shared.ErrInvalidArgument, uri)
	}

	return 0, "", fmt.Errorf("%w: expected a spotify URI or share link, got %q", shared.ErrInvalidArgument, uri)
}

// SearchRecords implements [PrimaryCatalog].
func (s *SpotifyService) SearchRecords(ctx context.Context, kind models.EntityKind, query string, limit int) ([]models.SourceRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", shared.ErrInvalidArgument)
	}

	searchType, err := searchTypeFor(kind)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.client.Search(ctx, query, searchType, spotify.Limit(limit))
	if err != nil {
		return nil, wrapSpotifyErr("search", err)
	}

	var records []models.SourceRecord

	switch kind {
	case models.KindTrack:
		if results.Tracks != nil {
			for i := range results.Tracks.Tracks {
				records = append(records, recordFromTrack(results.Tracks.Tracks[i]))
			}
		}
	case models.KindArtist:
		if results.Artists != nil {
			for i := range results.Artists.Artists {
				records = append(records, recordFromArtist(results.Artists.Artists[i]))
			}
		}
	case models.KindAlbum:
		if results.Albums != nil {
			for i := range results.Albums.Albums {
				records = append(records, recordFromAlbum(results.Albums.Albums[i]))
			}
		}
	case models.KindPlaylist:
		if results.Playlists != nil {
			for i := range results.Playlists.Playlists {
				records = append(records, recordFromPlaylist(results.Playlists.Playlists[i]))
			}
		}
	}

	return records, nil
}

// ResolveArtist implements [PrimaryCatalog].
func (s *SpotifyService) ResolveArtist(ctx context.Context, name string) (*models.SourceRecord, error) {
	records, err := s.SearchRecords(ctx, models.KindArtist, name, 1)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil
	}

	return &records[0], nil
}

// PlaylistsPage fetches one window of the current user's playlists.
// Shaped as a [pager.PageFunc].
func (s *SpotifyService) PlaylistsPage(ctx context.Context, limit, offset int) ([]models.Playlist, int, error) {
	if limit > maxPlaylistsPerRequest {
		limit = maxPlaylistsPerRequest
	}

	page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, 0, wrapSpotifyErr("list playlists", err)
	}

	playlists := make([]models.Playlist, len(page.Playlists))
	for i, p := range page.Playlists {
		playlists[i] = playlistFromSimple(p)
	}

	return playlists, int(page.Total), nil
}

// PlaylistTracks binds a playlist ID into a [pager.PageFunc] over its tracks.
//
// Episodes in mixed playlists are carried through with their episode
// metadata so windows keep their reported sizes.
func (s *SpotifyService) PlaylistTracks(playlistID string) pager.PageFunc[models.Track] {
	return func(ctx context.Context, limit, offset int) ([]models.Track, int, error) {
		page, err := s.client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(limit), spotify.Offset(offset))
		if err != nil {
			return nil, 0, wrapSpotifyErr("fetch playlist tracks", err)
		}

		tracks := make([]models.Track, len(page.Items))
		for i, item := range page.Items {
			var track models.Track

			switch {
			case item.Track.Track != nil:
				track = trackFromFull(*item.Track.Track)
			case item.Track.Episode != nil:
				ep := item.Track.Episode
				track = models.Track{
					ID:       ep.ID.String(),
					Title:    ep.Name,
					Duration: int(ep.Duration_ms) / 1000,
					URI:      string(ep.URI),
					Explicit: ep.Explicit,
				}
			}

			track.AddedAt = item.AddedAt
			tracks[i] = track
		}

		return tracks, int(page.Total), nil
	}
}

// GetPlaylist fetches a playlist's details without its tracks.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	full, err := s.client.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, wrapSpotifyErr("fetch playlist", err)
	}

	playlist := playlistFromFull(full)

	return &playlist, nil
}

// ExportPlaylist fetches a playlist and every track in it.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	playlist, err := s.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks, err := pager.FetchAll(ctx, s.PlaylistTracks(playlistID), maxTracksPerRequest)
	if err != nil {
		return nil, err
	}

	return &models.PlaylistExport{Playlist: *playlist, Tracks: tracks}, nil
}

// CreatePlaylist creates a playlist owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist name cannot be empty", shared.ErrInvalidArgument)
	}

	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return nil, wrapSpotifyErr("fetch current user", err)
	}

	full, err := s.client.CreatePlaylistForUser(ctx, user.ID, name, description, public, false)
	if err != nil {
		return nil, wrapSpotifyErr("create playlist", err)
	}

	playlist := playlistFromFull(full)

	return &playlist, nil
}

// AddTracks appends tracks to a playlist, batching around the Web API cap.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	for _, batch := range chunkIDs(spotifyIDs(trackIDs), maxTracksPerRequest) {
		if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return wrapSpotifyErr("add tracks", err)
		}
	}

	return nil
}

// RemoveTracks removes every occurrence of the given tracks from a playlist,
// batching around the Web API cap.
func (s *SpotifyService) RemoveTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	for _, batch := range chunkIDs(spotifyIDs(trackIDs), maxTracksPerRequest) {
		if _, err := s.client.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return wrapSpotifyErr("remove tracks", err)
		}
	}

	return nil
}

// UpdatePlaylist applies the provided detail changes. Nil fields are left
// untouched.
func (s *SpotifyService) UpdatePlaylist(ctx context.Context, playlistID string, name, description *string, public *bool) error {
	id := spotify.ID(playlistID)

	if name != nil {
		if err := s.client.ChangePlaylistName(ctx, id, *name); err != nil {
			return wrapSpotifyErr("rename playlist", err)
		}
	}

	if description != nil {
		if err := s.client.ChangePlaylistDescription(ctx, id, *description); err != nil {
			return wrapSpotifyErr("update playlist description", err)
		}
	}

	if public != nil {
		if err := s.client.ChangePlaylistAccess(ctx, id, *public); err != nil {
			return wrapSpotifyErr("update playlist visibility", err)
		}
	}

	return nil
}

// NowPlaying reports the current playback state.
func (s *SpotifyService) NowPlaying(ctx context.Context) (*models.PlaybackState, error) {
	state, err := s.client.PlayerState(ctx)
	if err != nil {
		return nil, wrapSpotifyErr("fetch player state", err)
	}

	playback := playbackFromState(state)

	return &playback, nil
}

// StartPlayback resumes playback, optionally on a specific device or with
// specific track URIs.
func (s *SpotifyService) StartPlayback(ctx context.Context, deviceID string, uris []string) error {
	if deviceID == "" && len(uris) == 0 {
		if err := s.client.Play(ctx); err != nil {
			return wrapSpotifyErr("start playback", err)
		}

		return nil
	}

	opts := &spotify.PlayOptions{}

	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts.DeviceID = &id
	}

	for _, uri := range uris {
		opts.URIs = append(opts.URIs, spotify.URI(ensureTrackURI(uri)))
	}

	if err := s.client.PlayOpt(ctx, opts); err != nil {
		return wrapSpotifyErr("start playback", err)
	}

	return nil
}

// PausePlayback pauses the active device.
func (s *SpotifyService) PausePlayback(ctx context.Context) error {
	if err := s.client.Pause(ctx); err != nil {
		return wrapSpotifyErr("pause playback", err)
	}

	return nil
}

// SkipTracks advances playback by n tracks. Values below one skip a single
// track.
func (s *SpotifyService) SkipTracks(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}

	for range n {
		if err := s.client.Next(ctx); err != nil {
			return wrapSpotifyErr("skip track", err)
		}
	}

	return nil
}

// Devices lists the user's available playback devices.
func (s *SpotifyService) Devices(ctx context.Context) ([]models.Device, error) {
	playerDevices, err := s.client.PlayerDevices(ctx)
	if err != nil {
		return nil, wrapSpotifyErr("list devices", err)
	}

	devices := make([]models.Device, len(playerDevices))
	for i, d := range playerDevices {
		devices[i] = deviceFromPlayer(d)
	}

	return devices, nil
}

// QueueTrack appends a track to the active playback queue.
func (s *SpotifyService) QueueTrack(ctx context.Context, trackID string) error {
	if strings.TrimSpace(trackID) == "" {
		return fmt.Errorf("%w: track id cannot be empty", shared.ErrMissingArgument)
	}

	id := strings.TrimPrefix(trackID, "spotify:track:")

	if err := s.client.QueueSong(ctx, spotify.ID(id)); err != nil {
		return wrapSpotifyErr("queue track", err)
	}

	return nil
}

// Queue reports the playback queue: the current track and what follows it.
func (s *SpotifyService) Queue(ctx context.Context) (*models.Queue, error) {
	queue, err := s.client.GetQueue(ctx)
	if err != nil {
		return nil, wrapSpotifyErr("fetch queue", err)
	}

	result := &models.Queue{}

	if queue.CurrentlyPlaying.ID != "" {
		track := trackFromFull(queue.CurrentlyPlaying)
		result.NowPlaying = &track
	}

	result.Next = make([]models.Track, len(queue.Items))
	for i := range queue.Items {
		result.Next[i] = trackFromFull(queue.Items[i])
	}

	return result, nil
}

// TrackInfo fetches a single track by ID.
func (s *SpotifyService) TrackInfo(ctx context.Context, id string) (*models.Track, error) {
	full, err := s.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return nil, wrapSpotifyErr("fetch track", err)
	}

	track := trackFromFull(*full)

	return &track, nil
}

// AlbumInfo fetches an album with its track listing.
func (s *SpotifyService) AlbumInfo(ctx context.Context, id string) (*models.Album, error) {
	full, err := s.client.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return nil, wrapSpotifyErr("fetch album", err)
	}

	album := models.Album{
		ID:          full.ID.String(),
		Name:        full.Name,
		Artist:      joinArtists(full.Artists),
		ReleaseDate: full.ReleaseDate,
		TotalTracks: int(full.Tracks.Total),
		URI:         string(full.URI),
		Tracks:      make([]models.Track, len(full.Tracks.Tracks)),
	}

	for i, t := range full.Tracks.Tracks {
		track := trackFromSimple(t)
		track.Album = full.Name
		album.Tracks[i] = track
	}

	return &album, nil
}

// ArtistInfo fetches an artist with their top tracks and albums. Failures on
// the supplementary lookups degrade to a bare artist record.
func (s *SpotifyService) ArtistInfo(ctx context.Context, id string) (*models.Artist, error) {
	full, err := s.client.GetArtist(ctx, spotify.ID(id))
	if err != nil {
		return nil, wrapSpotifyErr("fetch artist", err)
	}

	artist := &models.Artist{
		ID:         full.ID.String(),
		Name:       full.Name,
		Genres:     full.Genres,
		Popularity: int(full.Popularity),
		URI:        string(full.URI),
	}

	topTracks, err := s.client.GetArtistsTopTracks(ctx, full.ID, topTracksCountry)
	if err != nil {
		s.logger.Warn("failed to fetch top tracks", "artist", full.Name, "error", err)
	} else {
		artist.TopTracks = make([]models.Track, len(topTracks))
		for i := range topTracks {
			artist.TopTracks[i] = trackFromFull(topTracks[i])
		}
	}

	albumPage, err := s.client.GetArtistAlbums(ctx, full.ID, nil, spotify.Limit(20))
	if err != nil {
		s.logger.Warn("failed to fetch albums", "artist", full.Name, "error", err)
	} else {
		artist.Albums = make([]models.Album, len(albumPage.Albums))
		for i, a := range albumPage.Albums {
			artist.Albums[i] = models.Album{
				ID:          a.ID.String(),
				Name:        a.Name,
				Artist:      primaryArtist(a.Artists),
				ReleaseDate: a.ReleaseDate,
				URI:         string(a.URI),
			}
		}
	}

	return artist, nil
}

func searchTypeFor(kind models.EntityKind) (spotify.SearchType, error) {
	switch kind {
	case models.KindTrack:
		return spotify.SearchTypeTrack, nil
	case models.KindArtist:
		return spotify.SearchTypeArtist, nil
	case models.KindAlbum:
		return spotify.SearchTypeAlbum, nil
	case models.KindPlaylist:
		return spotify.SearchTypePlaylist, nil
	default:
		return 0, fmt.Errorf("%w: unsupported search kind %q", shared.ErrInvalidArgument, kind)
	}
}

// wrapSpotifyErr classifies Web API failures into the shared taxonomy.
func wrapSpotifyErr(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", shared.ErrReauthRequired, err)
		case apiErr.Status == http.StatusNotFound:
			return fmt.Errorf("%w: failed to %s", shared.ErrNotFound, op)
		case apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
		}
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}

// joinArtists flattens an artist credit list for display.
func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}

	return strings.Join(names, ", ")
}

// primaryArtist returns the first credited artist's name, the identity used
// for cross-source matching.
func primaryArtist(artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}

	return artists[0].Name
}

// ensureTrackURI upgrades a bare track ID to a full URI.
func ensureTrackURI(id string) string {
	if strings.Contains(id, ":") {
		return id
	}

	return "spotify:track:" + id
}

func spotifyIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(strings.TrimPrefix(id, "spotify:track:"))
	}

	return out
}

// chunkIDs splits ids into windows of at most size elements.
func chunkIDs(ids []spotify.ID, size int) [][]spotify.ID {
	var chunks [][]spotify.ID

	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}

	return chunks
}

func trackFromFull(t spotify.FullTrack) models.Track {
	return models.Track{
		ID:       t.ID.String(),
		Title:    t.Name,
		Artist:   joinArtists(t.Artists),
		Album:    t.Album.Name,
		Duration: int(t.Duration) / 1000,
		ISRC:     t.ExternalIDs["isrc"],
		URI:      string(t.URI),
		Explicit: t.Explicit,
	}
}

func trackFromSimple(t spotify.SimpleTrack) models.Track {
	return models.Track{
		ID:       t.ID.String(),
		Title:    t.Name,
		Artist:   joinArtists(t.Artists),
		Duration: int(t.Duration) / 1000,
		URI:      string(t.URI),
		Explicit: t.Explicit,
	}
}

func recordFromTrack(t spotify.FullTrack) models.SourceRecord {
	return models.SourceRecord{
		Source:   models.SourceSpotify,
		Kind:     models.KindTrack,
		Key:      t.ID.String(),
		Name:     t.Name,
		Artist:   primaryArtist(t.Artists),
		Album:    t.Album.Name,
		URL:      t.ExternalURLs["spotify"],
		Duration: int(t.Duration) / 1000,
	}
}

func recordFromArtist(a spotify.FullArtist) models.SourceRecord {
	return models.SourceRecord{
		Source:    models.SourceSpotify,
		Kind:      models.KindArtist,
		Key:       a.ID.String(),
		Name:      a.Name,
		URL:       a.ExternalURLs["spotify"],
		Tags:      a.Genres,
		Listeners: int(a.Followers.Count),
	}
}

func recordFromAlbum(a spotify.SimpleAlbum) models.SourceRecord {
	return models.SourceRecord{
		Source: models.SourceSpotify,
		Kind:   models.KindAlbum,
		Key:    a.ID.String(),
		Name:   a.Name,
		Artist: primaryArtist(a.Artists),
		URL:    a.ExternalURLs["spotify"],
	}
}

func recordFromPlaylist(p spotify.SimplePlaylist) models.SourceRecord {
	return models.SourceRecord{
		Source: models.SourceSpotify,
		Kind:   models.KindPlaylist,
		Key:    p.ID.String(),
		Name:   p.Name,
		URL:    p.ExternalURLs["spotify"],
	}
}

func playlistFromSimple(p spotify.SimplePlaylist) models.Playlist {
	return models.Playlist{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner.DisplayName,
		TrackCount:  int(p.Tracks.Total),
		Public:      p.IsPublic,
		URI:         string(p.URI),
	}
}

func playlistFromFull(p *spotify.FullPlaylist) models.Playlist {
	playlist := playlistFromSimple(p.SimplePlaylist)
	playlist.TrackCount = int(p.Tracks.Total)

	return playlist
}

func deviceFromPlayer(d spotify.PlayerDevice) models.Device {
	return models.Device{
		ID:     d.ID.String(),
		Name:   d.Name,
		Type:   d.Type,
		Active: d.Active,
		Volume: int(d.Volume),
	}
}

func playbackFromState(s *spotify.PlayerState) models.PlaybackState {
	state := models.PlaybackState{
		Playing:  s.Playing,
		Progress: int(s.Progress) / 1000,
		Shuffle:  s.ShuffleState,
		Repeat:   s.RepeatState,
		Device:   s.Device.Name,
	}

	if s.Item != nil {
		track := trackFromFull(*s.Item)
		state.Track = &track
	}

	return state
}
