package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/services"
	"github.com/desertthunder/spin/internal/shared"
)

type mockCatalog struct {
	searchResults []models.SourceRecord
	searchErr     error
	resolveResult *models.SourceRecord
	resolveErr    error
}

func (m *mockCatalog) SearchRecords(ctx context.Context, kind models.EntityKind, query string, limit int) ([]models.SourceRecord, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

func (m *mockCatalog) ResolveArtist(ctx context.Context, name string) (*models.SourceRecord, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	return m.resolveResult, nil
}

// mockSource resolves lookups from a map keyed "name|artist". The mutex
// guards call counters against concurrent workers.
type mockSource struct {
	source      models.Source
	unavailable bool
	lookups     map[string][]models.SourceRecord
	lookupErr   error
	similar     []models.ArtistMatch
	similarErr  error

	mu           sync.Mutex
	lookupCalls  int
	similarCalls int
}

func (m *mockSource) Source() models.Source { return m.source }

func (m *mockSource) Available() bool { return !m.unavailable }

func (m *mockSource) Lookup(ctx context.Context, kind models.EntityKind, name, artist string) ([]models.SourceRecord, error) {
	m.mu.Lock()
	m.lookupCalls++
	m.mu.Unlock()

	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.lookups[name+"|"+artist], nil
}

func (m *mockSource) SimilarArtists(ctx context.Context, artist string) ([]models.ArtistMatch, error) {
	m.mu.Lock()
	m.similarCalls++
	m.mu.Unlock()

	if m.similarErr != nil {
		return nil, m.similarErr
	}
	return m.similar, nil
}

func TestNameArtistMatcher(t *testing.T) {
	primary := models.SourceRecord{Name: "Karma Police", Artist: "Radiohead"}

	tests := []struct {
		name       string
		candidates []models.SourceRecord
		wantKey    string
		wantNil    bool
	}{
		{
			name: "exact match",
			candidates: []models.SourceRecord{
				{Key: "c1", Name: "Karma Police", Artist: "Radiohead"},
			},
			wantKey: "c1",
		},
		{
			name: "case and whitespace insensitive",
			candidates: []models.SourceRecord{
				{Key: "c2", Name: "karma  police", Artist: "RADIOHEAD"},
			},
			wantKey: "c2",
		},
		{
			name: "picks the matching candidate among others",
			candidates: []models.SourceRecord{
				{Key: "c3", Name: "Creep", Artist: "Radiohead"},
				{Key: "c4", Name: "Karma Police", Artist: "Radiohead"},
			},
			wantKey: "c4",
		},
		{
			name: "no candidate matches",
			candidates: []models.SourceRecord{
				{Key: "c5", Name: "Creep", Artist: "Radiohead"},
			},
			wantNil: true,
		},
		{
			name: "ambiguous duplicates",
			candidates: []models.SourceRecord{
				{Key: "c6", Name: "Karma Police", Artist: "Radiohead"},
				{Key: "c7", Name: "Karma Police", Artist: "Radiohead"},
			},
			wantNil: true,
		},
		{
			name:    "empty candidates",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NameArtistMatcher(primary, tt.candidates)

			if tt.wantNil {
				if got != nil {
					t.Errorf("NameArtistMatcher() = %+v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatal("NameArtistMatcher() = nil, want match")
			}
			if got.Key != tt.wantKey {
				t.Errorf("NameArtistMatcher() key = %v, want %v", got.Key, tt.wantKey)
			}
		})
	}
}

func TestAggregator_EnhancedSearch(t *testing.T) {
	primaryRecords := []models.SourceRecord{
		{Source: models.SourceSpotify, Kind: models.KindTrack, Key: "sp1", Name: "Karma Police", Artist: "Radiohead"},
		{Source: models.SourceSpotify, Kind: models.KindTrack, Key: "sp2", Name: "Creep", Artist: "Radiohead"},
	}

	lastfm := &mockSource{
		source: models.SourceLastfm,
		lookups: map[string][]models.SourceRecord{
			"Karma Police|Radiohead": {
				{Source: models.SourceLastfm, Kind: models.KindTrack, Key: "lf1", Name: "Karma Police", Artist: "Radiohead", Playcount: 100},
			},
			// No entry for Creep: the empty lookup counts as missing.
		},
	}

	brainz := &mockSource{
		source: models.SourceMusicBrainz,
		lookups: map[string][]models.SourceRecord{
			// Two candidates with the same normalized key are ambiguous.
			"Karma Police|Radiohead": {
				{Source: models.SourceMusicBrainz, Kind: models.KindTrack, Key: "mb1a", Name: "Karma Police", Artist: "Radiohead"},
				{Source: models.SourceMusicBrainz, Kind: models.KindTrack, Key: "mb1b", Name: "Karma Police", Artist: "Radiohead"},
			},
			"Creep|Radiohead": {
				{Source: models.SourceMusicBrainz, Kind: models.KindTrack, Key: "mb2", Name: "Creep", Artist: "Radiohead"},
			},
		},
	}

	catalog := &mockCatalog{searchResults: primaryRecords}
	agg := NewAggregator(catalog, []services.SourceClient{lastfm, brainz}, log.New(io.Discard))

	progressCh := make(chan ProgressUpdate, 100)
	entities, err := agg.EnhancedSearch(context.Background(), progressCh, models.KindTrack, "radiohead", 10)
	close(progressCh)

	if err != nil {
		t.Fatalf("EnhancedSearch() error = %v", err)
	}

	if len(entities) != len(primaryRecords) {
		t.Fatalf("EnhancedSearch() returned %d entities, want %d", len(entities), len(primaryRecords))
	}

	for i := range entities {
		if entities[i].Primary.Key != primaryRecords[i].Key {
			t.Errorf("entity %d primary key = %v, want %v", i, entities[i].Primary.Key, primaryRecords[i].Key)
		}
	}

	first := entities[0]
	if got, ok := first.Enrichment[models.SourceLastfm]; !ok || got.Key != "lf1" {
		t.Errorf("first entity lastfm enrichment = %+v, want key lf1", got)
	}
	if len(first.MissingSources) != 1 || first.MissingSources[0] != models.SourceMusicBrainz {
		t.Errorf("first entity missing sources = %v, want [musicbrainz]", first.MissingSources)
	}

	second := entities[1]
	if got, ok := second.Enrichment[models.SourceMusicBrainz]; !ok || got.Key != "mb2" {
		t.Errorf("second entity musicbrainz enrichment = %+v, want key mb2", got)
	}
	if len(second.MissingSources) != 1 || second.MissingSources[0] != models.SourceLastfm {
		t.Errorf("second entity missing sources = %v, want [lastfm]", second.MissingSources)
	}

	var updates []ProgressUpdate
	for update := range progressCh {
		updates = append(updates, update)
	}

	if len(updates) == 0 {
		t.Fatal("EnhancedSearch() should send progress updates")
	}
	if updates[0].Phase != SearchPrimary {
		t.Errorf("first update phase = %v, want SearchPrimary", updates[0].Phase)
	}
}

func TestAggregator_EnhancedSearch_SourceFailures(t *testing.T) {
	primaryRecords := []models.SourceRecord{
		{Source: models.SourceSpotify, Kind: models.KindTrack, Key: "sp1", Name: "Karma Police", Artist: "Radiohead"},
	}

	t.Run("lookup error degrades to missing source", func(t *testing.T) {
		lastfm := &mockSource{source: models.SourceLastfm, lookupErr: fmt.Errorf("boom")}
		catalog := &mockCatalog{searchResults: primaryRecords}
		agg := NewAggregator(catalog, []services.SourceClient{lastfm}, log.New(io.Discard))

		entities, err := agg.EnhancedSearch(context.Background(), nil, models.KindTrack, "radiohead", 10)
		if err != nil {
			t.Fatalf("EnhancedSearch() error = %v", err)
		}

		if len(entities[0].Enrichment) != 0 {
			t.Errorf("enrichment = %v, want empty", entities[0].Enrichment)
		}
		if len(entities[0].MissingSources) != 1 || entities[0].MissingSources[0] != models.SourceLastfm {
			t.Errorf("missing sources = %v, want [lastfm]", entities[0].MissingSources)
		}
	})

	t.Run("unavailable source is never queried", func(t *testing.T) {
		lastfm := &mockSource{source: models.SourceLastfm, unavailable: true}
		catalog := &mockCatalog{searchResults: primaryRecords}
		agg := NewAggregator(catalog, []services.SourceClient{lastfm}, log.New(io.Discard))

		entities, err := agg.EnhancedSearch(context.Background(), nil, models.KindTrack, "radiohead", 10)
		if err != nil {
			t.Fatalf("EnhancedSearch() error = %v", err)
		}

		if lastfm.lookupCalls != 0 {
			t.Errorf("lookup calls = %d, want 0", lastfm.lookupCalls)
		}
		if len(entities[0].MissingSources) != 1 || entities[0].MissingSources[0] != models.SourceLastfm {
			t.Errorf("missing sources = %v, want [lastfm]", entities[0].MissingSources)
		}
	})

	t.Run("canceled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		catalog := &mockCatalog{searchResults: primaryRecords}
		agg := NewAggregator(catalog, []services.SourceClient{&mockSource{source: models.SourceLastfm}}, log.New(io.Discard))

		_, err := agg.EnhancedSearch(ctx, nil, models.KindTrack, "radiohead", 10)
		if !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("EnhancedSearch() error = %v, want ErrSourceUnavailable", err)
		}
	})
}

func TestAggregator_EnhancedSearch_PrimaryErrors(t *testing.T) {
	t.Run("nil catalog", func(t *testing.T) {
		agg := NewAggregator(nil, nil, log.New(io.Discard))

		_, err := agg.EnhancedSearch(context.Background(), nil, models.KindTrack, "q", 10)
		if !errors.Is(err, shared.ErrPrimarySource) {
			t.Errorf("EnhancedSearch() error = %v, want ErrPrimarySource", err)
		}
	})

	t.Run("catalog failure aborts", func(t *testing.T) {
		catalog := &mockCatalog{searchErr: fmt.Errorf("rate limited")}
		lastfm := &mockSource{source: models.SourceLastfm}
		agg := NewAggregator(catalog, []services.SourceClient{lastfm}, log.New(io.Discard))

		_, err := agg.EnhancedSearch(context.Background(), nil, models.KindTrack, "q", 10)
		if !errors.Is(err, shared.ErrPrimarySource) {
			t.Errorf("EnhancedSearch() error = %v, want ErrPrimarySource", err)
		}
		if lastfm.lookupCalls != 0 {
			t.Errorf("lookup calls = %d, want 0", lastfm.lookupCalls)
		}
	})

	t.Run("empty catalog result", func(t *testing.T) {
		catalog := &mockCatalog{}
		agg := NewAggregator(catalog, []services.SourceClient{&mockSource{source: models.SourceLastfm}}, log.New(io.Discard))

		entities, err := agg.EnhancedSearch(context.Background(), nil, models.KindTrack, "q", 10)
		if err != nil {
			t.Fatalf("EnhancedSearch() error = %v", err)
		}
		if len(entities) != 0 {
			t.Errorf("entities = %d, want 0", len(entities))
		}
	})
}

func TestAggregator_EnhancedSearch_EnrichLimit(t *testing.T) {
	records := make([]models.SourceRecord, 4)
	lookups := map[string][]models.SourceRecord{}
	for i := range records {
		name := fmt.Sprintf("Track %d", i)
		records[i] = models.SourceRecord{Source: models.SourceSpotify, Kind: models.KindTrack, Key: fmt.Sprintf("sp%d", i), Name: name, Artist: "Artist"}
		lookups[name+"|Artist"] = []models.SourceRecord{
			{Source: models.SourceLastfm, Kind: models.KindTrack, Key: fmt.Sprintf("lf%d", i), Name: name, Artist: "Artist"},
		}
	}

	catalog := &mockCatalog{searchResults: records}
	lastfm := &mockSource{source: models.SourceLastfm, lookups: lookups}
	agg := NewAggregator(catalog, []services.SourceClient{lastfm}, log.New(io.Discard), WithEnrichLimit(2))

	entities, err := agg.EnhancedSearch(context.Background(), nil, models.KindTrack, "artist", 10)
	if err != nil {
		t.Fatalf("EnhancedSearch() error = %v", err)
	}

	if len(entities) != len(records) {
		t.Fatalf("entities = %d, want %d", len(entities), len(records))
	}
	if lastfm.lookupCalls != 2 {
		t.Errorf("lookup calls = %d, want 2", lastfm.lookupCalls)
	}

	for i, entity := range entities {
		enriched := len(entity.Enrichment) > 0
		if i < 2 && !enriched {
			t.Errorf("entity %d should be enriched", i)
		}
		if i >= 2 && enriched {
			t.Errorf("entity %d should not be enriched", i)
		}
		// Entities past the cap were never queried, so no source is missing.
		if i >= 2 && entity.MissingSources != nil {
			t.Errorf("entity %d missing sources = %v, want none", i, entity.MissingSources)
		}
	}
}

func TestAggregator_FindSimilarArtists(t *testing.T) {
	catalog := &mockCatalog{
		resolveResult: &models.SourceRecord{Source: models.SourceSpotify, Kind: models.KindArtist, Key: "sp-artist", Name: "Radiohead"},
	}

	lastfm := &mockSource{
		source: models.SourceLastfm,
		similar: []models.ArtistMatch{
			{Name: "Thom Yorke", Score: 1.0},
			{Name: "Portishead", Score: 0.6},
			{Name: "Blur", Score: 0.5},
		},
	}

	brainz := &mockSource{
		source: models.SourceMusicBrainz,
		similar: []models.ArtistMatch{
			{Name: "Portishead", Score: 0.8},
			{Name: "Muse", Score: 0.7},
		},
	}

	agg := NewAggregator(catalog, []services.SourceClient{lastfm, brainz}, log.New(io.Discard))

	matches, err := agg.FindSimilarArtists(context.Background(), nil, "radiohead", 10)
	if err != nil {
		t.Fatalf("FindSimilarArtists() error = %v", err)
	}

	// Portishead appears twice; the higher-scored entry wins.
	want := []models.ArtistMatch{
		{Name: "Thom Yorke", Score: 1.0},
		{Name: "Portishead", Score: 0.8},
		{Name: "Muse", Score: 0.7},
		{Name: "Blur", Score: 0.5},
	}

	if len(matches) != len(want) {
		t.Fatalf("FindSimilarArtists() returned %d matches, want %d", len(matches), len(want))
	}
	for i := range want {
		if matches[i].Name != want[i].Name || matches[i].Score != want[i].Score {
			t.Errorf("match %d = %s (%.2f), want %s (%.2f)", i, matches[i].Name, matches[i].Score, want[i].Name, want[i].Score)
		}
	}
}

func TestAggregator_FindSimilarArtists_Limit(t *testing.T) {
	similar := make([]models.ArtistMatch, 7)
	for i := range similar {
		similar[i] = models.ArtistMatch{Name: fmt.Sprintf("Artist %d", i), Score: 1.0 - float64(i)*0.1}
	}

	catalog := &mockCatalog{resolveResult: &models.SourceRecord{Name: "Seed"}}
	src := &mockSource{source: models.SourceLastfm, similar: similar}

	t.Run("default limit", func(t *testing.T) {
		agg := NewAggregator(catalog, []services.SourceClient{src}, log.New(io.Discard))

		matches, err := agg.FindSimilarArtists(context.Background(), nil, "Seed", 0)
		if err != nil {
			t.Fatalf("FindSimilarArtists() error = %v", err)
		}
		if len(matches) != defaultSimilarLimit {
			t.Errorf("matches = %d, want %d", len(matches), defaultSimilarLimit)
		}
	})

	t.Run("explicit limit", func(t *testing.T) {
		agg := NewAggregator(catalog, []services.SourceClient{src}, log.New(io.Discard))

		matches, err := agg.FindSimilarArtists(context.Background(), nil, "Seed", 2)
		if err != nil {
			t.Fatalf("FindSimilarArtists() error = %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("matches = %d, want 2", len(matches))
		}
		if matches[0].Name != "Artist 0" || matches[1].Name != "Artist 1" {
			t.Errorf("top matches = %s, %s", matches[0].Name, matches[1].Name)
		}
	})
}

func TestAggregator_FindSimilarArtists_Errors(t *testing.T) {
	t.Run("blank name", func(t *testing.T) {
		agg := NewAggregator(&mockCatalog{}, nil, log.New(io.Discard))

		_, err := agg.FindSimilarArtists(context.Background(), nil, "   ", 5)
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("FindSimilarArtists() error = %v, want ErrMissingArgument", err)
		}
	})

	t.Run("resolve failure", func(t *testing.T) {
		catalog := &mockCatalog{resolveErr: fmt.Errorf("boom")}
		agg := NewAggregator(catalog, nil, log.New(io.Discard))

		_, err := agg.FindSimilarArtists(context.Background(), nil, "Radiohead", 5)
		if !errors.Is(err, shared.ErrPrimarySource) {
			t.Errorf("FindSimilarArtists() error = %v, want ErrPrimarySource", err)
		}
	})

	t.Run("unknown artist", func(t *testing.T) {
		agg := NewAggregator(&mockCatalog{}, nil, log.New(io.Discard))

		_, err := agg.FindSimilarArtists(context.Background(), nil, "Nobody", 5)
		if !errors.Is(err, shared.ErrArtistNotFound) {
			t.Errorf("FindSimilarArtists() error = %v, want ErrArtistNotFound", err)
		}
	})

	t.Run("source failure is skipped", func(t *testing.T) {
		catalog := &mockCatalog{resolveResult: &models.SourceRecord{Name: "Radiohead"}}
		broken := &mockSource{source: models.SourceLastfm, similarErr: fmt.Errorf("boom")}
		working := &mockSource{source: models.SourceMusicBrainz, similar: []models.ArtistMatch{{Name: "Muse", Score: 0.7}}}
		agg := NewAggregator(catalog, []services.SourceClient{broken, working}, log.New(io.Discard))

		matches, err := agg.FindSimilarArtists(context.Background(), nil, "Radiohead", 5)
		if err != nil {
			t.Fatalf("FindSimilarArtists() error = %v", err)
		}
		if len(matches) != 1 || matches[0].Name != "Muse" {
			t.Errorf("matches = %+v, want [Muse]", matches)
		}
	})

	t.Run("unavailable source is skipped", func(t *testing.T) {
		catalog := &mockCatalog{resolveResult: &models.SourceRecord{Name: "Radiohead"}}
		offline := &mockSource{source: models.SourceLastfm, unavailable: true, similar: []models.ArtistMatch{{Name: "Thom Yorke", Score: 1.0}}}
		agg := NewAggregator(catalog, []services.SourceClient{offline}, log.New(io.Discard))

		matches, err := agg.FindSimilarArtists(context.Background(), nil, "Radiohead", 5)
		if err != nil {
			t.Fatalf("FindSimilarArtists() error = %v", err)
		}
		if offline.similarCalls != 0 {
			t.Errorf("similar calls = %d, want 0", offline.similarCalls)
		}
		if len(matches) != 0 {
			t.Errorf("matches = %+v, want none", matches)
		}
	})

	t.Run("no source has similarity data", func(t *testing.T) {
		catalog := &mockCatalog{resolveResult: &models.SourceRecord{Name: "Radiohead"}}
		agg := NewAggregator(catalog, []services.SourceClient{&mockSource{source: models.SourceLastfm}}, log.New(io.Discard))

		matches, err := agg.FindSimilarArtists(context.Background(), nil, "Radiohead", 5)
		if err != nil {
			t.Fatalf("FindSimilarArtists() error = %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("matches = %+v, want none", matches)
		}
	})
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	catalog := &mockCatalog{searchResults: []models.SourceRecord{
		{Source: models.SourceSpotify, Kind: models.KindTrack, Key: "sp1", Name: "Song", Artist: "Artist"},
	}}
	lastfm := &mockSource{source: models.SourceLastfm}

	agg := NewAggregator(catalog, []services.SourceClient{lastfm}, log.New(io.Discard))

	// Unbuffered channel with no consumer; sends must not stall the search.
	progressCh := make(chan ProgressUpdate)

	if _, err := agg.EnhancedSearch(context.Background(), progressCh, models.KindTrack, "song", 10); err != nil {
		t.Fatalf("EnhancedSearch() error = %v", err)
	}
}
