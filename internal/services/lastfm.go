// Last.fm API [SourceClient] implementation
//
// Enrichment and similar-artist lookups against ws.audioscrobbler.com.
// Responses are cached in memory for the lifetime of the process and
// rate-limit rejections are retried with backoff before giving up.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/shared"
)

const defaultLastfmBaseURL string = "https://ws.audioscrobbler.com/2.0/"

// defaultSourceTimeout bounds individual requests to enrichment sources.
const defaultSourceTimeout = 10 * time.Second

// Last.fm API error codes the client reacts to.
const (
	lastfmCodeNotFound    = 6
	lastfmCodeInvalidKey  = 10
	lastfmCodeRateLimited = 29
)

// errLastfmNotFound marks a lookup the API answered with "no such entity".
// Callers translate it into an empty result.
var errLastfmNotFound = errors.New("last.fm: no match")

// lastfmError is the error envelope the API returns in place of a payload.
type lastfmError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

// LastfmService implements the SourceClient interface for Last.fm.
type LastfmService struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	logger      *log.Logger
	retryDelays []time.Duration

	mu    sync.RWMutex
	cache map[string][]byte
}

// NewLastfmService creates a Last.fm client from the configured API key.
//
// A missing key is not an error; the client reports itself unavailable and
// every call fails with [shared.ErrSourceUnavailable].
func NewLastfmService(cfg *shared.Config, logger *log.Logger) *LastfmService {
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}

	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &LastfmService{
		apiKey:      cfg.Credentials.Lastfm.Key(),
		baseURL:     defaultLastfmBaseURL,
		httpClient:  &http.Client{Timeout: defaultSourceTimeout},
		logger:      logger,
		retryDelays: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		cache:       make(map[string][]byte),
	}
}

// Source implements [SourceClient].
func (l *LastfmService) Source() models.Source {
	return models.SourceLastfm
}

// Available reports whether an API key was configured.
func (l *LastfmService) Available() bool {
	return l.apiKey != ""
}

// Lookup implements [SourceClient].
func (l *LastfmService) Lookup(ctx context.Context, kind models.EntityKind, name, artist string) ([]models.SourceRecord, error) {
	switch kind {
	case models.KindTrack:
		return l.lookupTrack(ctx, name, artist)
	case models.KindArtist:
		return l.lookupArtist(ctx, name)
	case models.KindAlbum:
		return l.lookupAlbum(ctx, name, artist)
	case models.KindPlaylist:
		// Playlists are catalog-only; there is nothing to enrich.
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported lookup kind %q", shared.ErrInvalidArgument, kind)
	}
}

func (l *LastfmService) lookupTrack(ctx context.Context, name, artist string) ([]models.SourceRecord, error) {
	params := url.Values{}
	params.Set("track", name)
	params.Set("artist", artist)
	params.Set("autocorrect", "1")

	payload, err := l.call(ctx, "track.getInfo", params)
	if errors.Is(err, errLastfmNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var response struct {
		Track struct {
			Name      string `json:"name"`
			MBID      string `json:"mbid"`
			URL       string `json:"url"`
			Duration  string `json:"duration"`
			Listeners string `json:"listeners"`
			Playcount string `json:"playcount"`
			Artist    struct {
				Name string `json:"name"`
			} `json:"artist"`
			Album struct {
				Title string `json:"title"`
			} `json:"album"`
			TopTags struct {
				Tag []struct {
					Name string `json:"name"`
				} `json:"tag"`
			} `json:"toptags"`
			Wiki struct {
				Summary string `json:"summary"`
			} `json:"wiki"`
		} `json:"track"`
	}

	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode track info: %w", err)
	}

	track := response.Track
	record := models.SourceRecord{
		Source:    models.SourceLastfm,
		Kind:      models.KindTrack,
		Key:       recordKey(track.MBID, track.URL),
		Name:      track.Name,
		Artist:    track.Artist.Name,
		Album:     track.Album.Title,
		URL:       track.URL,
		Summary:   strings.TrimSpace(track.Wiki.Summary),
		Listeners: parseCount(track.Listeners),
		Playcount: parseCount(track.Playcount),
		Duration:  parseCount(track.Duration) / 1000,
	}

	for _, tag := range track.TopTags.Tag {
		record.Tags = append(record.Tags, tag.Name)
	}

	return []models.SourceRecord{record}, nil
}

func (l *LastfmService) lookupArtist(ctx context.Context, name string) ([]models.SourceRecord, error) {
	params := url.Values{}
	params.Set("artist", name)
	params.Set("autocorrect", "1")

	payload, err := l.call(ctx, "artist.getInfo", params)
	if errors.Is(err, errLastfmNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var response struct {
		Artist struct {
			Name  string `json:"name"`
			MBID  string `json:"mbid"`
			URL   string `json:"url"`
			Stats struct {
				Listeners string `json:"listeners"`
				Playcount string `json:"playcount"`
			} `json:"stats"`
			Tags struct {
				Tag []struct {
					Name string `json:"name"`
				} `json:"tag"`
			} `json:"tags"`
			Bio struct {
				Summary string `json:"summary"`
			} `json:"bio"`
		} `json:"artist"`
	}

	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode artist info: %w", err)
	}

	artist := response.Artist
	record := models.SourceRecord{
		Source:    models.SourceLastfm,
		Kind:      models.KindArtist,
		Key:       recordKey(artist.MBID, artist.URL),
		Name:      artist.Name,
		URL:       artist.URL,
		Summary:   strings.TrimSpace(artist.Bio.Summary),
		Listeners: parseCount(artist.Stats.Listeners),
		Playcount: parseCount(artist.Stats.Playcount),
	}

	for _, tag := range artist.Tags.Tag {
		record.Tags = append(record.Tags, tag.Name)
	}

	return []models.SourceRecord{record}, nil
}

func (l *LastfmService) lookupAlbum(ctx context.Context, name, artist string) ([]models.SourceRecord, error) {
	params := url.Values{}
	params.Set("album", name)
	params.Set("artist", artist)
	params.Set("autocorrect", "1")

	payload, err := l.call(ctx, "album.getInfo", params)
	if errors.Is(err, errLastfmNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var response struct {
		Album struct {
			Name      string `json:"name"`
			Artist    string `json:"artist"`
			MBID      string `json:"mbid"`
			URL       string `json:"url"`
			Listeners string `json:"listeners"`
			Playcount string `json:"playcount"`
			Tags      struct {
				Tag []struct {
					Name string `json:"name"`
				} `json:"tag"`
			} `json:"tags"`
			Wiki struct {
				Summary string `json:"summary"`
			} `json:"wiki"`
		} `json:"album"`
	}

	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode album info: %w", err)
	}

	album := response.Album
	record := models.SourceRecord{
		Source:    models.SourceLastfm,
		Kind:      models.KindAlbum,
		Key:       recordKey(album.MBID, album.URL),
		Name:      album.Name,
		Artist:    album.Artist,
		URL:       album.URL,
		Summary:   strings.TrimSpace(album.Wiki.Summary),
		Listeners: parseCount(album.Listeners),
		Playcount: parseCount(album.Playcount),
	}

	for _, tag := range album.Tags.Tag {
		record.Tags = append(record.Tags, tag.Name)
	}

	return []models.SourceRecord{record}, nil
}

// SimilarArtists implements [SourceClient] via artist.getSimilar.
func (l *LastfmService) SimilarArtists(ctx context.Context, artist string) ([]models.ArtistMatch, error) {
	params := url.Values{}
	params.Set("artist", artist)
	params.Set("autocorrect", "1")
	params.Set("limit", "20")

	payload, err := l.call(ctx, "artist.getSimilar", params)
	if errors.Is(err, errLastfmNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var response struct {
		SimilarArtists struct {
			Artist []struct {
				Name  string `json:"name"`
				MBID  string `json:"mbid"`
				Match string `json:"match"`
				URL   string `json:"url"`
			} `json:"artist"`
		} `json:"similarartists"`
	}

	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode similar artists: %w", err)
	}

	matches := make([]models.ArtistMatch, len(response.SimilarArtists.Artist))
	for i, a := range response.SimilarArtists.Artist {
		matches[i] = models.ArtistMatch{
			Name:  a.Name,
			Key:   recordKey(a.MBID, a.URL),
			URL:   a.URL,
			Score: parseScore(a.Match),
		}
	}

	return matches, nil
}

// call performs one API method invocation, serving repeats from the cache.
func (l *LastfmService) call(ctx context.Context, method string, params url.Values) ([]byte, error) {
	if !l.Available() {
		return nil, fmt.Errorf("%w: last.fm API key not configured", shared.ErrSourceUnavailable)
	}

	params.Set("method", method)
	params.Set("api_key", l.apiKey)
	params.Set("format", "json")

	requestURL := l.baseURL + "?" + params.Encode()

	if payload, ok := l.cacheGet(requestURL); ok {
		return payload, nil
	}

	for attempt := 0; ; attempt++ {
		payload, retryable, err := l.fetch(ctx, requestURL)
		if err == nil {
			l.cacheSet(requestURL, payload)
			return payload, nil
		}

		if !retryable || attempt >= len(l.retryDelays) {
			return nil, err
		}

		delay := l.retryDelays[attempt]
		l.logger.Debug("last.fm rate limited, backing off", "attempt", attempt+1, "delay", delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// fetch performs a single request. The bool reports whether the failure is
// worth retrying.
func (l *LastfmService) fetch(ctx context.Context, requestURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: last.fm request: %v", shared.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("%w: last.fm returned unreadable payload (status %d)", shared.ErrAPIRequest, resp.StatusCode)
	}

	var apiErr lastfmError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		switch apiErr.Code {
		case lastfmCodeNotFound:
			return nil, false, errLastfmNotFound
		case lastfmCodeInvalidKey:
			return nil, false, fmt.Errorf("%w: last.fm rejected the API key: %s", shared.ErrSourceUnavailable, apiErr.Message)
		case lastfmCodeRateLimited:
			return nil, true, fmt.Errorf("%w: last.fm rate limited: %s", shared.ErrSourceUnavailable, apiErr.Message)
		default:
			return nil, false, fmt.Errorf("%w: last.fm error %d: %s", shared.ErrAPIRequest, apiErr.Code, apiErr.Message)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("%w: last.fm returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return body, false, nil
}

func (l *LastfmService) cacheGet(key string) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	payload, ok := l.cache[key]
	return payload, ok
}

func (l *LastfmService) cacheSet(key string, payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache[key] = payload
}

// recordKey prefers the MusicBrainz ID last.fm attaches when it has one.
func recordKey(mbid, fallback string) string {
	if mbid != "" {
		return mbid
	}

	return fallback
}

// parseCount reads last.fm's stringly-typed counters, returning zero for
// anything unparseable.
func parseCount(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseScore(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
