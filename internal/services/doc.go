// Package services implements the metadata source clients: Spotify as the
// primary catalog plus Last.fm and MusicBrainz as enrichment sources.
//
// # Primary Catalog
//
// [SpotifyService] wraps the zmb3 Spotify client. It defines entity identity
// for every aggregate operation: search results, playlist contents, playback
// state, and the records other sources enrich. Its HTTP client comes from the
// credential manager, so tokens refresh transparently mid-operation.
//
// # Enrichment Sources
//
// [LastfmService] and [MusicBrainzService] implement [SourceClient]. Both are
// optional: a missing API key or User-Agent makes the client report itself
// unavailable, and the aggregation layer records it as missing rather than
// failing the operation.
//
// Last.fm lookups hit exact-match getInfo endpoints and cache responses in
// memory for the lifetime of the process. Rate-limit rejections (error code
// 29) are retried with backoff before the source is declared unavailable.
//
// MusicBrainz lookups are Lucene searches against the /ws/2 endpoints. A
// shared [rate.Limiter] holds the client to one request per second, and every
// request carries the configured User-Agent since MusicBrainz rejects
// anonymous traffic.
//
// # Raw Access
//
// [APIService] exposes GET access to arbitrary Web API paths for debugging
// and scripting, plus a dump over the well-known read endpoints.
//
// # Error Handling
//
// Services classify failures into the shared taxonomy:
//   - [shared.ErrReauthRequired] : the provider rejected the credential
//   - [shared.ErrSourceUnavailable] : outage, throttling, or missing configuration
//   - [shared.ErrNotFound] : the entity does not exist
//   - [shared.ErrAPIRequest] : any other API failure
//
// Lookups that come back empty are not errors; they return no records and
// the caller decides what absence means.
package services
