package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgTracksFetched
	MsgEnrichProgress
	MsgEnrichComplete
)

type playlistsData struct {
	playlists []models.Playlist
	err       error
}

type tracksData struct {
	playlist *models.PlaylistExport
	err      error
}

type enrichData struct {
	entity *models.AggregatedEntity
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsData{playlists, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist *models.PlaylistExport, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksData{playlist, err}}
}

// enrichProgressMsg is the constructor for [MsgEnrichProgress]
func enrichProgressMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgEnrichProgress, data: update}
}

// enrichCompleteMsg is the constructor for [MsgEnrichComplete]
func enrichCompleteMsg(entity *models.AggregatedEntity, err error) Msg {
	return Msg{kind: MsgEnrichComplete, data: enrichData{entity, err}}
}
