// Package models defines the domain types shared by the source clients, the
// metadata aggregator, and the command surface.
//
// The package contains three categories of types:
//
// 1. Aggregation types: the normalized shapes the multi-source layer works in
//   - [SourceRecord] : One source's view of one entity, tagged by [Source] and [EntityKind]
//   - [AggregatedEntity] : A primary record merged with per-source enrichment
//   - [ArtistMatch] : An artist paired with a collaborative-filtering score
//
// 2. Catalog DTOs: lightweight structs representing Spotify data
//   - [Track], [Artist], [Album] : Entity metadata, with Record() conversions into [SourceRecord]
//   - [Playlist] : Basic playlist metadata
//   - [PlaylistExport] : Playlist with complete track listing
//
// 3. Player and session types
//   - [Device], [PlaybackState], [Queue] : Spotify Connect playback views
//   - [AuthStatus] : Non-mutating credential state report
//
// Everything here is ephemeral: constructed per request, serialized for
// display, never persisted.
package models
