package tasks

import (
	"fmt"

	"github.com/desertthunder/spin/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	SearchPrimary Phase = iota
	EnrichSources
	ResolveArtist
	CollectSimilar
	FetchSource
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case SearchPrimary:
		return "search_primary"
	case EnrichSources:
		return "enrich_sources"
	case ResolveArtist:
		return "resolve_artist"
	case CollectSimilar:
		return "collect_similar"
	case FetchSource:
		return "fetch_source"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func searchPrimaryUpdate(query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchPrimary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Searching catalog for %q...", query),
	}
}

func enrichUpdate(step, total int, record models.SourceRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichSources,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Enriching: %s", step, total, record.Name),
		Data:    record,
	}
}

func resolveArtistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveArtist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolving artist %q...", name),
	}
}

func collectSimilarUpdate(step, total int, source models.Source) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CollectSimilar,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Collecting similar artists from %s...", source),
	}
}

func fetchingSourceUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: "Fetching playlists for export...",
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
