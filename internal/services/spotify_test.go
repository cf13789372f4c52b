package services

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/zmb3/spotify/v2"
)

func TestParseURI(t *testing.T) {
	t.Run("Accepted Forms", func(t *testing.T) {
		cases := []struct {
			name string
			uri  string
			kind models.EntityKind
			id   string
		}{
			{"Track URI", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", models.KindTrack, "4uLU6hMCjMI75M1A2tKUQC"},
			{"Artist URI", "spotify:artist:0OdUWJ0sBjDrqHygGUXeCF", models.KindArtist, "0OdUWJ0sBjDrqHygGUXeCF"},
			{"Album URI", "spotify:album:6dVIqQ8qmQ5GBnJ9shOYGE", models.KindAlbum, "6dVIqQ8qmQ5GBnJ9shOYGE"},
			{"Playlist URI", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", models.KindPlaylist, "37i9dQZF1DXcBWIGoYBM5M"},
			{"Share Link", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", models.KindTrack, "4uLU6hMCjMI75M1A2tKUQC"},
			{"Share Link With Query", "https://open.spotify.com/album/6dVIqQ8qmQ5GBnJ9shOYGE?si=abc123", models.KindAlbum, "6dVIqQ8qmQ5GBnJ9shOYGE"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				kind, id, err := ParseURI(tc.uri)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if kind != tc.kind {
					t.Errorf("expected kind %v, got %v", tc.kind, kind)
				}
				if id != tc.id {
					t.Errorf("expected id %s, got %s", tc.id, id)
				}
			})
		}
	})

	t.Run("Rejected Forms", func(t *testing.T) {
		cases := []struct {
			name string
			uri  string
		}{
			{"Missing ID", "spotify:track:"},
			{"Unknown Entity", "spotify:genre:rock"},
			{"Bare ID", "4uLU6hMCjMI75M1A2tKUQC"},
			{"Share Link Without Path", "https://open.spotify.com/"},
			{"Empty", ""},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, _, err := ParseURI(tc.uri)
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			})
		}
	})
}

func TestSpotifyConverters(t *testing.T) {
	t.Run("Track From Full", func(t *testing.T) {
		full := spotify.FullTrack{
			SimpleTrack: spotify.SimpleTrack{
				ID:       "4uLU6hMCjMI75M1A2tKUQC",
				Name:     "Never Gonna Give You Up",
				Artists:  []spotify.SimpleArtist{{Name: "Rick Astley"}, {Name: "Guest"}},
				Duration: 213573,
				URI:      "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
				Explicit: false,
			},
			Album:       spotify.SimpleAlbum{Name: "Whenever You Need Somebody"},
			ExternalIDs: map[string]string{"isrc": "GBARL9300135"},
		}

		track := trackFromFull(full)

		if track.ID != "4uLU6hMCjMI75M1A2tKUQC" {
			t.Errorf("expected track ID to carry over, got %s", track.ID)
		}
		if track.Artist != "Rick Astley, Guest" {
			t.Errorf("expected joined artists, got %s", track.Artist)
		}
		if track.Album != "Whenever You Need Somebody" {
			t.Errorf("expected album name, got %s", track.Album)
		}
		if track.Duration != 213 {
			t.Errorf("expected duration in seconds, got %d", track.Duration)
		}
		if track.ISRC != "GBARL9300135" {
			t.Errorf("expected ISRC from external IDs, got %s", track.ISRC)
		}
	})

	t.Run("Record From Track Uses Primary Artist", func(t *testing.T) {
		full := spotify.FullTrack{
			SimpleTrack: spotify.SimpleTrack{
				ID:      "id-1",
				Name:    "Collab",
				Artists: []spotify.SimpleArtist{{Name: "Lead"}, {Name: "Feature"}},
			},
		}

		record := recordFromTrack(full)

		if record.Source != models.SourceSpotify {
			t.Errorf("expected spotify source, got %v", record.Source)
		}
		if record.Kind != models.KindTrack {
			t.Errorf("expected track kind, got %v", record.Kind)
		}
		if record.Artist != "Lead" {
			t.Errorf("expected primary artist only, got %s", record.Artist)
		}
	})

	t.Run("Record From Artist", func(t *testing.T) {
		full := spotify.FullArtist{
			SimpleArtist: spotify.SimpleArtist{
				ID:           "0OdUWJ0sBjDrqHygGUXeCF",
				Name:         "Radiohead",
				ExternalURLs: map[string]string{"spotify": "https://open.spotify.com/artist/0OdUWJ0sBjDrqHygGUXeCF"},
			},
			Genres:    []string{"art rock", "alternative"},
			Followers: spotify.Followers{Count: 12345},
		}

		record := recordFromArtist(full)

		if record.Kind != models.KindArtist {
			t.Errorf("expected artist kind, got %v", record.Kind)
		}
		if len(record.Tags) != 2 || record.Tags[0] != "art rock" {
			t.Errorf("expected genres as tags, got %v", record.Tags)
		}
		if record.Listeners != 12345 {
			t.Errorf("expected follower count as listeners, got %d", record.Listeners)
		}
		if record.URL == "" {
			t.Error("expected external URL to carry over")
		}
	})

	t.Run("Playlist From Simple", func(t *testing.T) {
		simple := spotify.SimplePlaylist{
			ID:          "37i9dQZF1DXcBWIGoYBM5M",
			Name:        "Daily Spin",
			Description: "fresh picks",
			Owner:       spotify.User{DisplayName: "spin"},
			IsPublic:    true,
			URI:         "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
		}
		simple.Tracks.Total = 3

		playlist := playlistFromSimple(simple)

		if playlist.Owner != "spin" {
			t.Errorf("expected owner display name, got %s", playlist.Owner)
		}
		if playlist.TrackCount != 3 {
			t.Errorf("expected track count 3, got %d", playlist.TrackCount)
		}
		if !playlist.Public {
			t.Error("expected public playlist")
		}
	})

	t.Run("Playlist From Full Prefers Track Page Total", func(t *testing.T) {
		full := &spotify.FullPlaylist{
			SimplePlaylist: spotify.SimplePlaylist{
				ID:   "37i9dQZF1DXcBWIGoYBM5M",
				Name: "Daily Spin",
			},
		}
		// The embedded stub counter and the full track page disagree; the
		// page is authoritative.
		full.SimplePlaylist.Tracks.Total = 3
		full.Tracks.Total = 42

		playlist := playlistFromFull(full)

		if playlist.TrackCount != 42 {
			t.Errorf("expected track count from track page, got %d", playlist.TrackCount)
		}
	})

	t.Run("Device From Player", func(t *testing.T) {
		device := deviceFromPlayer(spotify.PlayerDevice{
			ID:     "dev-1",
			Active: true,
			Name:   "Kitchen",
			Type:   "Computer",
			Volume: 80,
		})

		if device.ID != "dev-1" || !device.Active || device.Volume != 80 {
			t.Errorf("unexpected device conversion: %+v", device)
		}
	})

	t.Run("Playback From State", func(t *testing.T) {
		state := &spotify.PlayerState{
			CurrentlyPlaying: spotify.CurrentlyPlaying{
				Playing:  true,
				Progress: 30500,
				Item: &spotify.FullTrack{
					SimpleTrack: spotify.SimpleTrack{ID: "id-1", Name: "Song"},
				},
			},
			Device:       spotify.PlayerDevice{Name: "Kitchen"},
			ShuffleState: true,
			RepeatState:  "context",
		}

		playback := playbackFromState(state)

		if !playback.Playing {
			t.Error("expected playing state")
		}
		if playback.Progress != 30 {
			t.Errorf("expected progress in seconds, got %d", playback.Progress)
		}
		if playback.Track == nil || playback.Track.Title != "Song" {
			t.Errorf("expected current track, got %+v", playback.Track)
		}
		if playback.Device != "Kitchen" || !playback.Shuffle || playback.Repeat != "context" {
			t.Errorf("unexpected playback conversion: %+v", playback)
		}
	})

	t.Run("Playback From State Without Item", func(t *testing.T) {
		playback := playbackFromState(&spotify.PlayerState{})

		if playback.Track != nil {
			t.Errorf("expected nil track, got %+v", playback.Track)
		}
	})
}

func TestSpotifyHelpers(t *testing.T) {
	t.Run("Chunk IDs", func(t *testing.T) {
		ids := make([]spotify.ID, 250)
		chunks := chunkIDs(ids, maxTracksPerRequest)

		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d", len(chunks))
		}
		if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
			t.Errorf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
		}
	})

	t.Run("Chunk IDs At Boundary", func(t *testing.T) {
		chunks := chunkIDs(make([]spotify.ID, 100), maxTracksPerRequest)

		if len(chunks) != 1 {
			t.Errorf("expected a single chunk, got %d", len(chunks))
		}
	})

	t.Run("Chunk IDs Empty", func(t *testing.T) {
		if chunks := chunkIDs(nil, maxTracksPerRequest); len(chunks) != 0 {
			t.Errorf("expected no chunks, got %d", len(chunks))
		}
	})

	t.Run("Spotify IDs Strip URI Prefix", func(t *testing.T) {
		ids := spotifyIDs([]string{"spotify:track:abc", "def"})

		if ids[0] != "abc" || ids[1] != "def" {
			t.Errorf("unexpected IDs: %v", ids)
		}
	})

	t.Run("Ensure Track URI", func(t *testing.T) {
		if got := ensureTrackURI("abc"); got != "spotify:track:abc" {
			t.Errorf("expected bare ID to be upgraded, got %s", got)
		}
		if got := ensureTrackURI("spotify:album:xyz"); got != "spotify:album:xyz" {
			t.Errorf("expected existing URI untouched, got %s", got)
		}
	})

	t.Run("Search Type Mapping", func(t *testing.T) {
		cases := []struct {
			kind models.EntityKind
			want spotify.SearchType
		}{
			{models.KindTrack, spotify.SearchTypeTrack},
			{models.KindArtist, spotify.SearchTypeArtist},
			{models.KindAlbum, spotify.SearchTypeAlbum},
			{models.KindPlaylist, spotify.SearchTypePlaylist},
		}

		for _, tc := range cases {
			got, err := searchTypeFor(tc.kind)
			if err != nil {
				t.Fatalf("expected no error for %v, got %v", tc.kind, err)
			}
			if got != tc.want {
				t.Errorf("expected %v for %v, got %v", tc.want, tc.kind, got)
			}
		}

		if _, err := searchTypeFor(models.EntityKind(99)); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for unknown kind, got %v", err)
		}
	})
}

func TestWrapSpotifyErr(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"Unauthorized", http.StatusUnauthorized, shared.ErrReauthRequired},
		{"Not Found", http.StatusNotFound, shared.ErrNotFound},
		{"Rate Limited", http.StatusTooManyRequests, shared.ErrSourceUnavailable},
		{"Server Error", http.StatusInternalServerError, shared.ErrSourceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := wrapSpotifyErr("search", spotify.Error{Status: tc.status, Message: "nope"})
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	t.Run("Transport Error Keeps Context", func(t *testing.T) {
		err := wrapSpotifyErr("fetch queue", errors.New("connection reset"))

		if !strings.Contains(err.Error(), "failed to fetch queue") {
			t.Errorf("expected operation in message, got %v", err)
		}
		if errors.Is(err, shared.ErrReauthRequired) || errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("expected no taxonomy match for transport errors, got %v", err)
		}
	})
}
