// MusicBrainz API [SourceClient] implementation
//
// Search-based enrichment against the /ws/2 endpoints. The shared limiter
// keeps the client inside MusicBrainz's one request per second policy.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/shared"
	"golang.org/x/time/rate"
)

const defaultMusicBrainzBaseURL string = "https://musicbrainz.org/ws/2"

// searchResultLimit caps how many candidates a single search returns.
const searchResultLimit = 5

// MusicBrainzService implements the SourceClient interface for MusicBrainz.
type MusicBrainzService struct {
	userAgent  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewMusicBrainzService creates a MusicBrainz client with the configured
// User-Agent string.
func NewMusicBrainzService(cfg *shared.Config, logger *log.Logger) *MusicBrainzService {
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}

	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &MusicBrainzService{
		userAgent:  cfg.Credentials.MusicBrainz.UserAgent,
		baseURL:    defaultMusicBrainzBaseURL,
		httpClient: &http.Client{Timeout: defaultSourceTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     logger,
	}
}

// Source implements [SourceClient].
func (m *MusicBrainzService) Source() models.Source {
	return models.SourceMusicBrainz
}

// Available reports whether a User-Agent was configured. MusicBrainz rejects
// anonymous clients, so an empty value disables the source.
func (m *MusicBrainzService) Available() bool {
	return m.userAgent != ""
}

// Lookup implements [SourceClient].
func (m *MusicBrainzService) Lookup(ctx context.Context, kind models.EntityKind, name, artist string) ([]models.SourceRecord, error) {
	switch kind {
	case models.KindTrack:
		return m.searchRecordings(ctx, name, artist)
	case models.KindArtist:
		return m.searchArtists(ctx, name)
	case models.KindAlbum:
		return m.searchReleases(ctx, name, artist)
	case models.KindPlaylist:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported lookup kind %q", shared.ErrInvalidArgument, kind)
	}
}

// SimilarArtists implements [SourceClient]. MusicBrainz has no similarity
// endpoint, so the client contributes nothing to similar-artist lookups.
func (m *MusicBrainzService) SimilarArtists(ctx context.Context, artist string) ([]models.ArtistMatch, error) {
	return nil, nil
}

func (m *MusicBrainzService) searchRecordings(ctx context.Context, name, artist string) ([]models.SourceRecord, error) {
	q := "recording:" + luceneQuote(name)
	if artist != "" {
		q += " AND artist:" + luceneQuote(artist)
	}

	payload, err := m.get(ctx, "/recording", q)
	if err != nil {
		return nil, err
	}

	var response struct {
		Recordings []struct {
			ID           string `json:"id"`
			Score        int    `json:"score"`
			Title        string `json:"title"`
			Length       int    `json:"length"`
			ArtistCredit []struct {
				Name string `json:"name"`
			} `json:"artist-credit"`
			Releases []struct {
				Title string `json:"title"`
			} `json:"releases"`
		} `json:"recordings"`
	}

	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode recording search: %w", err)
	}

	records := make([]models.SourceRecord, len(response.Recordings))
	for i, rec := range response.Recordings {
		record := models.SourceRecord{
			Source:   models.SourceMusicBrainz,
			Kind:     models.KindTrack,
			Key:      rec.ID,
			Name:     rec.Title,
			URL:      entityURL("recording", rec.ID),
			Score:    float64(rec.Score) / 100.0,
			Duration: rec.Length / 1000,
		}

		if len(rec.ArtistCredit) > 0 {
			record.Artist = rec.ArtistCredit[0].Name
		}

		if len(rec.Releases) > 0 {
			record.Album = rec.Releases[0].Title
		}

		records[i] = record
	}

	return records, nil
}

func (m *MusicBrainzService) searchArtists(ctx context.Context, name string) ([]models.SourceRecord, error) {
	payload, err := m.get(ctx, "/artist", "artist:"+luceneQuote(name))
	if err != nil {
		return nil, err
	}

	var response struct {
		Artists []struct {
			ID    string `json:"id"`
			Score int    `json:"score"`
			Name  string `json:"name"`
			Tags  []struct {
				Name string `json:"name"`
			} `json:"tags"`
		} `json:"artists"`
	}

	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode artist search: %w", err)
	}

	records := make([]models.SourceRecord, len(response.Artists))
	for i, a := range response.Artists {
		record := models.SourceRecord{
			Source: models.SourceMusicBrainz,
			Kind:   models.KindArtist,
			Key:    a.ID,
			Name:   a.Name,
			URL:    entityURL("artist", a.ID),
			Score:  float64(a.Score) / 100.0,
		}

		for _, tag := range a.Tags {
			record.Tags = append(record.Tags, tag.Name)
		}

		records[i] = record
	}

	return records, nil
}

func (m *MusicBrainzService) searchReleases(ctx context.Context, name, artist string) ([]models.SourceRecord, error) {
	q := "release:" + luceneQuote(name)
	if artist != "" {
		q += " AND artist:" + luceneQuote(artist)
	}

	payload, err := m.get(ctx, "/release", q)
	if err != nil {
		return nil, err
	}

	var response struct {
		Releases []struct {
			ID           string `json:"id"`
			Score        int    `json:"score"`
			Title        string `json:"title"`
			Date         string `json:"date"`
			ArtistCredit []struct {
				Name string `json:"name"`
			} `json:"artist-credit"`
		} `json:"releases"`
	}

	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode release search: %w", err)
	}

	records := make([]models.SourceRecord, len(response.Releases))
	for i, rel := range response.Releases {
		record := models.SourceRecord{
			Source: models.SourceMusicBrainz,
			Kind:   models.KindAlbum,
			Key:    rel.ID,
			Name:   rel.Title,
			URL:    entityURL("release", rel.ID),
			Score:  float64(rel.Score) / 100.0,
		}

		if len(rel.ArtistCredit) > 0 {
			record.Artist = rel.ArtistCredit[0].Name
		}

		records[i] = record
	}

	return records, nil
}

// get performs a rate-limited search request against one /ws/2 endpoint.
func (m *MusicBrainzService) get(ctx context.Context, endpoint, query string) ([]byte, error) {
	if !m.Available() {
		return nil, fmt.Errorf("%w: musicbrainz user agent not configured", shared.ErrSourceUnavailable)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(searchResultLimit))
	params.Set("fmt", "json")

	requestURL := m.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// MusicBrainz rejects anonymous clients; the User-Agent is mandatory.
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: musicbrainz request: %v", shared.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: musicbrainz throttled the request (status %d)", shared.ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: musicbrainz returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return body, nil
}

// luceneQuote wraps a term as a quoted Lucene phrase, escaping embedded
// quotes and backslashes.
func luceneQuote(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + replacer.Replace(term) + `"`
}

// entityURL builds the canonical musicbrainz.org page for an entity.
func entityURL(entity, id string) string {
	return fmt.Sprintf("https://musicbrainz.org/%s/%s", entity, id)
}
