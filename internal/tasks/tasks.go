// package tasks implements the multi-source metadata aggregation operations.
//
// The core abstraction is Aggregator, which runs an authoritative catalog
// query and fans enrichment lookups out to the optional sources, merging the
// results per entity. Operations emit progress updates via channels for
// non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/services"
	"github.com/desertthunder/spin/internal/shared"
)

// defaultSimilarLimit bounds similar-artist results when the caller does not
// ask for a specific count.
const defaultSimilarLimit = 5

// defaultEnrichWorkers sizes the enrichment fan-out pool.
const defaultEnrichWorkers = 4

// Matcher decides which candidate record, if any, describes the same entity
// as the primary record. Returning nil records the source as missing.
type Matcher func(primary models.SourceRecord, candidates []models.SourceRecord) *models.SourceRecord

// NameArtistMatcher matches on normalized (name, primary artist) equality,
// case-insensitive with whitespace collapsed. More than one candidate with
// the same normalized key is ambiguous and counts as no match.
func NameArtistMatcher(primary models.SourceRecord, candidates []models.SourceRecord) *models.SourceRecord {
	key := shared.NormalizeTrackKey(primary.Name, primary.Artist)

	var match *models.SourceRecord
	for i := range candidates {
		if shared.NormalizeTrackKey(candidates[i].Name, candidates[i].Artist) != key {
			continue
		}

		if match != nil {
			return nil
		}

		match = &candidates[i]
	}

	return match
}

// Aggregator merges primary catalog results with enrichment from the
// configured optional sources.
type Aggregator struct {
	primary services.PrimaryCatalog
	sources []services.SourceClient
	matcher Matcher
	logger  *log.Logger

	enrichLimit int
	workers     int
}

// AggregatorOption adjusts aggregation behavior.
type AggregatorOption func(*Aggregator)

// WithMatcher replaces the rule used to pair enrichment candidates with
// primary records.
func WithMatcher(m Matcher) AggregatorOption {
	return func(a *Aggregator) {
		if m != nil {
			a.matcher = m
		}
	}
}

// WithEnrichLimit bounds how many leading results are enriched. Zero or
// negative enriches every result.
func WithEnrichLimit(n int) AggregatorOption {
	return func(a *Aggregator) {
		a.enrichLimit = n
	}
}

// WithWorkers sets the size of the enrichment worker pool.
func WithWorkers(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// NewAggregator creates an aggregator over a primary catalog and zero or more
// enrichment sources.
func NewAggregator(primary services.PrimaryCatalog, sources []services.SourceClient, logger *log.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	a := &Aggregator{
		primary: primary,
		sources: sources,
		matcher: NameArtistMatcher,
		logger:  logger,
		workers: defaultEnrichWorkers,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never stalls execution.
func (a *Aggregator) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

// enrichJob addresses one (entity, source) lookup in the fan-out.
type enrichJob struct {
	entity int
	source int
}

// enrichCell holds one lookup outcome, written by exactly one worker.
type enrichCell struct {
	records []models.SourceRecord
	err     error
}

// EnhancedSearch runs an authoritative catalog search and enriches each
// result with metadata from every available optional source.
//
// The returned sequence matches the primary search in cardinality and order.
// Optional-source failures degrade the affected entity's enrichment and are
// recorded in its MissingSources; a primary failure fails the whole call.
func (a *Aggregator) EnhancedSearch(ctx context.Context, progress chan<- ProgressUpdate, kind models.EntityKind, query string, limit int) ([]models.AggregatedEntity, error) {
	if a.primary == nil {
		return nil, fmt.Errorf("%w: primary catalog not initialized", shared.ErrPrimarySource)
	}

	a.sendProgress(progress, searchPrimaryUpdate(query))

	records, err := a.primary.SearchRecords(ctx, kind, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPrimarySource, err)
	}

	entities := make([]models.AggregatedEntity, len(records))
	for i := range records {
		entities[i] = models.AggregatedEntity{
			Primary:    records[i],
			Enrichment: make(map[models.Source]models.SourceRecord),
		}
	}

	enriched := len(entities)
	if a.enrichLimit > 0 && a.enrichLimit < enriched {
		enriched = a.enrichLimit
	}

	if enriched == 0 || len(a.sources) == 0 {
		return entities, nil
	}

	// One cell per (entity, source) pair keeps the workers write-disjoint.
	cells := make([][]enrichCell, enriched)
	for i := range cells {
		cells[i] = make([]enrichCell, len(a.sources))
	}

	jobs := make(chan enrichJob)

	var wg sync.WaitGroup
	for range min(a.workers, enriched*len(a.sources)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				primary := entities[job.entity].Primary
				items, err := a.sources[job.source].Lookup(ctx, primary.Kind, primary.Name, primary.Artist)
				cells[job.entity][job.source] = enrichCell{records: items, err: err}
			}
		}()
	}

	for i := range enriched {
		a.sendProgress(progress, enrichUpdate(i+1, enriched, entities[i].Primary))

		for s := range a.sources {
			if !a.sources[s].Available() {
				continue
			}

			jobs <- enrichJob{entity: i, source: s}
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: enrichment aborted: %v", shared.ErrSourceUnavailable, err)
	}

	for i := range enriched {
		entity := &entities[i]

		for s, src := range a.sources {
			cell := cells[i][s]

			if cell.err != nil {
				a.logger.Debug("enrichment lookup failed", "source", src.Source(), "entity", entity.Primary.Name, "error", cell.err)
				entity.MissingSources = append(entity.MissingSources, src.Source())
				continue
			}

			if match := a.matcher(entity.Primary, cell.records); match != nil {
				entity.Enrichment[src.Source()] = *match
				continue
			}

			entity.MissingSources = append(entity.MissingSources, src.Source())
		}
	}

	return entities, nil
}

// FindSimilarArtists resolves an artist through the primary catalog and
// collects similarity matches from every source that offers them, ordered by
// descending score and deduplicated by name.
//
// An empty result is not an error; it means no source had similarity data.
func (a *Aggregator) FindSimilarArtists(ctx context.Context, progress chan<- ProgressUpdate, name string, limit int) ([]models.ArtistMatch, error) {
	if a.primary == nil {
		return nil, fmt.Errorf("%w: primary catalog not initialized", shared.ErrPrimarySource)
	}

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: artist name cannot be empty", shared.ErrMissingArgument)
	}

	if limit <= 0 {
		limit = defaultSimilarLimit
	}

	a.sendProgress(progress, resolveArtistUpdate(name))

	resolved, err := a.primary.ResolveArtist(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPrimarySource, err)
	}
	if resolved == nil {
		return nil, fmt.Errorf("%w: %q", shared.ErrArtistNotFound, name)
	}

	var matches []models.ArtistMatch

	for i, src := range a.sources {
		if !src.Available() {
			continue
		}

		a.sendProgress(progress, collectSimilarUpdate(i+1, len(a.sources), src.Source()))

		found, err := src.SimilarArtists(ctx, resolved.Name)
		if err != nil {
			a.logger.Warn("similar artist lookup failed", "source", src.Source(), "error", err)
			continue
		}

		matches = append(matches, found...)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	matches = dedupeMatches(matches)

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// dedupeMatches drops repeated artists, keeping the first (highest-scored)
// entry. Assumes the input is already sorted by descending score.
func dedupeMatches(matches []models.ArtistMatch) []models.ArtistMatch {
	seen := make(map[string]bool, len(matches))
	out := matches[:0]

	for _, m := range matches {
		key := shared.NormalizeTrackKey(m.Name, "")
		if seen[key] {
			continue
		}

		seen[key] = true
		out = append(out, m)
	}

	return out
}
