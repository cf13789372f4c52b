// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view browsing workflow:
//  1. [PlaylistListView] : Browse and select Spotify playlists
//  2. [TrackListView] : Inspect the tracks within a playlist
//  3. [EnrichView] : Monitor cross-source enrichment progress
//  4. [DetailView] : Display the merged record with per-source metadata
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the aggregator, providing non-blocking status reporting during enrichment.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
