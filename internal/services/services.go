// package services defines the metadata source clients behind the
// aggregation layer
//
// Spotify (primary catalog), Last.fm, MusicBrainz
package services

import (
	"context"

	"github.com/desertthunder/spin/internal/models"
)

// PrimaryCatalog is the source of truth for identity and ordering in
// aggregated operations.
type PrimaryCatalog interface {
	// SearchRecords finds entities matching a free-text query, preserving
	// catalog order.
	SearchRecords(ctx context.Context, kind models.EntityKind, query string, limit int) ([]models.SourceRecord, error)

	// ResolveArtist finds the best-matching artist for a name.
	// A nil record means the catalog has no such artist.
	ResolveArtist(ctx context.Context, name string) (*models.SourceRecord, error)
}

// SourceClient is the surface every secondary metadata source exposes to the
// aggregation layer.
type SourceClient interface {
	// Source identifies the provider.
	Source() models.Source

	// Available reports whether the client has the configuration it needs to
	// make calls. Calls on an unavailable client fail with a source
	// availability error.
	Available() bool

	// Lookup returns candidate records for the named entity, best candidate
	// first. An empty result means the source has no data for the entity.
	Lookup(ctx context.Context, kind models.EntityKind, name, artist string) ([]models.SourceRecord, error)

	// SimilarArtists lists artists similar to the named artist, most similar
	// first. An empty result means the source knows no neighbors.
	SimilarArtists(ctx context.Context, artist string) ([]models.ArtistMatch, error)
}
