package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/pager"
	"github.com/desertthunder/spin/internal/services"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/desertthunder/spin/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	EnrichView
	DetailView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	spotify      *services.SpotifyService
	aggregator   *tasks.Aggregator
	width        int
	height       int
	playlistList list.Model
	playlists    []models.Playlist
	trackList    list.Model
	selected     *models.PlaylistExport
	track        models.Track
	entity       *models.AggregatedEntity
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, spotify *services.SpotifyService, aggregator *tasks.Aggregator) *Model {
	return &Model{
		ctx:        ctx,
		view:       PlaylistListView,
		spotify:    spotify,
		aggregator: aggregator,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.playlistList.Width() == 0 {
			m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.trackList.Width() == 0 {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

// handleMsg dispatches the application [Msg] union by kind.
func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsData)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		m.playlists = data.playlists
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "Spotify Playlists"
		m.playlistList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgTracksFetched:
		data := msg.data.(tracksData)
		if data.err != nil {
			m.err = data.err
			m.view = PlaylistListView
			return m, nil
		}
		m.selected = data.playlist
		items := make([]list.Item, len(data.playlist.Tracks))
		for i, track := range data.playlist.Tracks {
			items[i] = trackItem{track: track}
		}
		m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", data.playlist.Playlist.Name)
		m.trackList.SetSize(m.width-4, m.height-8)
		m.view = TrackListView
		return m, nil

	case MsgEnrichProgress:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgEnrichComplete:
		data := msg.data.(enrichData)
		m.entity = data.entity
		m.err = data.err
		m.view = DetailView
		m.progressChan = nil
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != DetailView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case EnrichView:
		return m.renderEnrich()
	case DetailView:
		return m.renderDetail()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.playlistList.SelectedItem()
		if selected != nil {
			if pl, ok := selected.(playlistItem); ok {
				return m, m.fetchTracks(pl.playlist.ID)
			}
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = PlaylistListView
		return m, nil
	case "enter":
		selected := m.trackList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(trackItem); ok {
				m.view = EnrichView
				return m, m.startEnrich(item.track)
			}
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = TrackListView
		m.entity = nil
		m.err = nil
		return m, nil
	case "r":
		m.view = PlaylistListView
		m.selected = nil
		m.entity = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := pager.FetchAll(m.ctx, m.spotify.PlaylistsPage, pager.DefaultPageSize)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlistID string) tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.spotify.ExportPlaylist(m.ctx, playlistID)
		return tracksFetchedMsg(playlist, err)
	}
}

func (m *Model) startEnrich(track models.Track) tea.Cmd {
	m.track = track
	m.entity = nil
	m.progress = tasks.ProgressUpdate{}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	go func() {
		query := fmt.Sprintf("%s %s", track.Title, track.Artist)
		entities, err := m.aggregator.EnhancedSearch(m.ctx, m.progressChan, models.KindTrack, query, 1)
		if err == nil && len(entities) == 0 {
			err = fmt.Errorf("no catalog match for %q", track.Title)
		}
		if err == nil {
			m.entity = &entities[0]
		}
		m.err = err
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return enrichCompleteMsg(m.entity, m.err)
		}

		update, ok := <-m.progressChan
		if !ok {
			return enrichCompleteMsg(m.entity, m.err)
		}
		return enrichProgressMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	enrichKey := key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "enrich"),
	)
	helpKeys := []key.Binding{enrichKey, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderEnrich() string {
	title := styles.title.Render(fmt.Sprintf("Enriching '%s'", m.track.Title))

	var phase string
	switch m.progress.Phase {
	case tasks.SearchPrimary:
		phase = "Searching catalog..."
	case tasks.EnrichSources:
		phase = fmt.Sprintf("Enriching from sources (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderDetail() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Enrichment failed: %v\n\nPress esc to go back, q to quit", m.err))
	}

	if m.entity == nil {
		return styles.err.Render("No enrichment available\n\nPress esc to go back, q to quit")
	}

	primary := m.entity.Primary

	meta := primary.Artist
	if primary.Album != "" {
		meta = fmt.Sprintf("%s • %s", meta, primary.Album)
	}
	if primary.Duration > 0 {
		meta = fmt.Sprintf("%s • %s", meta, shared.FormatDuration(primary.Duration))
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(primary.Name))
	b.WriteString("\n")
	b.WriteString(styles.help.Render(meta))
	b.WriteString("\n")

	for _, src := range sortedSources(m.entity.Enrichment) {
		record := m.entity.Enrichment[src]
		b.WriteString("\n")
		b.WriteString(styles.ok.Render(fmt.Sprintf("✓ %s", src)))
		if record.Listeners > 0 || record.Playcount > 0 {
			b.WriteString(fmt.Sprintf("\n  %d listeners • %d plays", record.Listeners, record.Playcount))
		}
		if len(record.Tags) > 0 {
			b.WriteString(fmt.Sprintf("\n  tags: %s", strings.Join(record.Tags, ", ")))
		}
		if record.Summary != "" {
			b.WriteString(fmt.Sprintf("\n  %s", truncate(record.Summary, 120)))
		}
		if record.URL != "" {
			b.WriteString(fmt.Sprintf("\n  %s", record.URL))
		}
		b.WriteString("\n")
	}

	for _, src := range m.entity.MissingSources {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("✗ %s: no match", src)))
		b.WriteString("\n")
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s", b.String(), helpView)
}

// sortedSources returns enrichment keys in stable enum order.
func sortedSources(enrichment map[models.Source]models.SourceRecord) []models.Source {
	sources := make([]models.Source, 0, len(enrichment))
	for src := range enrichment {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// truncate shortens s to at most n runes for single-screen display.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
