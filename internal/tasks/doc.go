// Package tasks orchestrates multi-source metadata aggregation with real-time progress reporting.
//
// # Core Operations
//
// The [Aggregator] exposes three operations:
//
//  1. [Aggregator.EnhancedSearch] : Catalog search with enrichment
//     - Runs an authoritative search against the primary catalog
//     - Fans lookups out to every available enrichment source
//     - Merges matched records per entity, recording missing sources
//     - Result cardinality and order always match the primary search
//
//  2. [Aggregator.FindSimilarArtists] : Cross-source similarity
//     - Resolves the canonical artist through the primary catalog
//     - Collects similarity matches from sources that offer them
//     - Returns deduplicated matches ordered by descending score
//
//  3. [Aggregator.BulkExport] : Concurrent playlist export
//     - Fetches each playlist through a [PlaylistExporter]
//     - Writes json, csv, markdown, or txt files via a worker pool
//     - Rate-limits fetches and tolerates per-playlist failures
//     - Writes a manifest summarizing the run
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Matching
//
// Enrichment candidates are paired with primary records by a [Matcher].
// The default, [NameArtistMatcher], compares normalized (name, artist) keys
// and treats multiple candidates with the same key as no match. Failed or
// empty lookups land in the entity's MissingSources rather than failing the
// operation; only primary catalog errors abort a call.
package tasks
