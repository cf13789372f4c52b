package models

import (
	"fmt"
	"time"
)

// Source identifies an external catalog or metadata provider.
type Source int

const (
	SourceSpotify Source = iota
	SourceLastfm
	SourceMusicBrainz
)

func (s Source) String() string {
	switch s {
	case SourceSpotify:
		return "spotify"
	case SourceLastfm:
		return "lastfm"
	case SourceMusicBrainz:
		return "musicbrainz"
	default:
		return ""
	}
}

// MarshalText renders the source name so it can serve as a JSON map key.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a source name produced by [Source.MarshalText].
func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSource resolves a source name to its enum value.
func ParseSource(name string) (Source, error) {
	switch name {
	case "spotify":
		return SourceSpotify, nil
	case "lastfm":
		return SourceLastfm, nil
	case "musicbrainz":
		return SourceMusicBrainz, nil
	default:
		return 0, fmt.Errorf("unknown source %q", name)
	}
}

// EntityKind distinguishes which catalog entity a record describes.
type EntityKind int

const (
	KindTrack EntityKind = iota
	KindArtist
	KindAlbum
	KindPlaylist
)

func (k EntityKind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindArtist:
		return "artist"
	case KindAlbum:
		return "album"
	case KindPlaylist:
		return "playlist"
	default:
		return ""
	}
}

// MarshalText renders the kind name for JSON output.
func (k EntityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by [EntityKind.MarshalText].
func (k *EntityKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseEntityKind resolves a kind name (as accepted by the --type flag) to its
// enum value.
func ParseEntityKind(name string) (EntityKind, error) {
	switch name {
	case "track":
		return KindTrack, nil
	case "artist":
		return KindArtist, nil
	case "album":
		return KindAlbum, nil
	case "playlist":
		return KindPlaylist, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q", name)
	}
}

// SourceRecord is the normalized result from one source for one entity.
// Every source client converts its own wire shape into this form at the
// boundary, so nothing downstream branches on provider-specific JSON.
// Records are constructed per request and never persisted.
type SourceRecord struct {
	Source    Source     `json:"source"`
	Kind      EntityKind `json:"kind"`
	Key       string     `json:"key"`    // name+artist or canonical id
	Name      string     `json:"name"`
	Artist    string     `json:"artist,omitempty"`
	Album     string     `json:"album,omitempty"`
	URL       string     `json:"url,omitempty"`
	Tags      []string   `json:"tags,omitempty"`      // genre tags
	Summary   string     `json:"summary,omitempty"`   // biography or wiki extract
	Listeners int        `json:"listeners,omitempty"`
	Playcount int        `json:"playcount,omitempty"`
	Score     float64    `json:"score,omitempty"`    // similarity/relevance in [0, 1]
	Duration  int        `json:"duration,omitempty"` // seconds
}

// ArtistMatch pairs an artist with a collaborative-filtering similarity score
// in [0, 1].
type ArtistMatch struct {
	Name  string  `json:"name"`
	Key   string  `json:"key,omitempty"`
	URL   string  `json:"url,omitempty"`
	Score float64 `json:"score"`
}

// AggregatedEntity merges records sharing one logical identity. Primary is the
// authoritative record from the catalog search that produced the entity;
// enrichment entries are optional and their absence never fails a request.
type AggregatedEntity struct {
	Primary        SourceRecord            `json:"primary"`
	Enrichment     map[Source]SourceRecord `json:"enrichment,omitempty"`
	MissingSources []Source                `json:"missing_sources,omitempty"`
}

// Track is a normalized catalog track.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration"` // seconds
	ISRC     string `json:"isrc,omitempty"`
	URI      string `json:"uri,omitempty"`
	Explicit bool   `json:"explicit,omitempty"`
	AddedAt  string `json:"added_at,omitempty"` // playlist context only
}

// Record converts the track into its source-record form for aggregation.
func (t Track) Record() SourceRecord {
	return SourceRecord{
		Source:   SourceSpotify,
		Kind:     KindTrack,
		Key:      t.ID,
		Name:     t.Title,
		Artist:   t.Artist,
		Album:    t.Album,
		URL:      t.URI,
		Duration: t.Duration,
	}
}

// Artist is a normalized catalog artist. TopTracks and Albums are populated
// only by detailed lookups.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
	URI        string   `json:"uri,omitempty"`
	TopTracks  []Track  `json:"top_tracks,omitempty"`
	Albums     []Album  `json:"albums,omitempty"`
}

// Record converts the artist into its source-record form for aggregation.
func (a Artist) Record() SourceRecord {
	return SourceRecord{
		Source: SourceSpotify,
		Kind:   KindArtist,
		Key:    a.ID,
		Name:   a.Name,
		Artist: a.Name,
		URL:    a.URI,
		Tags:   a.Genres,
	}
}

// Album is a normalized catalog album. Tracks are populated only by detailed
// lookups.
type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Artist      string  `json:"artist"`
	ReleaseDate string  `json:"release_date,omitempty"`
	TotalTracks int     `json:"total_tracks,omitempty"`
	URI         string  `json:"uri,omitempty"`
	Tracks      []Track `json:"tracks,omitempty"`
}

// Record converts the album into its source-record form for aggregation.
func (a Album) Record() SourceRecord {
	return SourceRecord{
		Source: SourceSpotify,
		Kind:   KindAlbum,
		Key:    a.ID,
		Name:   a.Name,
		Artist: a.Artist,
		URL:    a.URI,
	}
}

// Playlist is a normalized playlist summary.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	URI         string `json:"uri,omitempty"`
}

// PlaylistExport bundles a playlist with its full track listing.
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

// Device is a Spotify Connect playback device.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
	Volume int    `json:"volume"`
}

// PlaybackState describes the player at a point in time.
type PlaybackState struct {
	Playing  bool   `json:"playing"`
	Track    *Track `json:"track,omitempty"`
	Progress int    `json:"progress"` // seconds into the current track
	Device   string `json:"device,omitempty"`
	Shuffle  bool   `json:"shuffle"`
	Repeat   string `json:"repeat,omitempty"`
}

// Queue pairs the currently playing track with the upcoming entries.
type Queue struct {
	NowPlaying *Track  `json:"now_playing,omitempty"`
	Next       []Track `json:"next"`
}

// AuthStatus reports the credential lifecycle state without mutating it.
type AuthStatus struct {
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Remaining string    `json:"remaining,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
}
