// Package ui implements the `chord watch` terminal view: a fixed-interval
// now-playing poller with playback controls.
//
// The view consumes the core only through the playback client, which in turn
// gates every call on the token store. A nil now-playing result renders as
// "nothing playing"; a not-connected result degrades to a hint to run
// `chord auth login`.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zenithdesk/chord/internal/player"
	"github.com/zenithdesk/chord/internal/shared"
)

// PollInterval is how often the watch view re-polls playback state.
const PollInterval = 5 * time.Second

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954"))
	trackStyle  = lipgloss.NewStyle().Bold(true)
	artistStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Controller is the slice of the playback client the watch view drives.
type Controller interface {
	NowPlaying(ctx context.Context) (*player.NowPlaying, error)
	Toggle(ctx context.Context, play bool) player.Result
	SkipNext(ctx context.Context) player.Result
	SkipPrevious(ctx context.Context) player.Result
}

type tickMsg time.Time

type stateMsg struct {
	np  *player.NowPlaying
	err error
}

type actionMsg player.Result

// keyMap defines the key bindings for the watch view.
type keyMap struct {
	toggle key.Binding
	next   key.Binding
	prev   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp("space", "play/pause"),
		),
		next: key.NewBinding(
			key.WithKeys("n", "right"),
			key.WithHelp("n", "next"),
		),
		prev: key.NewBinding(
			key.WithKeys("b", "left"),
			key.WithHelp("b", "previous"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Model represents the watch view state.
type Model struct {
	ctx       context.Context
	client    Controller
	spinner   spinner.Model
	keys      keyMap
	np        *player.NowPlaying
	connected bool
	loaded    bool
	note      string
}

// NewModel creates the watch view bound to a playback controller.
func NewModel(ctx context.Context, client Controller) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:       ctx,
		client:    client,
		spinner:   sp,
		keys:      newKeyMap(),
		connected: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.toggle):
			play := m.np == nil || !m.np.IsPlaying
			return m, m.command(func() player.Result { return m.client.Toggle(m.ctx, play) })
		case key.Matches(msg, m.keys.next):
			return m, m.command(func() player.Result { return m.client.SkipNext(m.ctx) })
		case key.Matches(msg, m.keys.prev):
			return m, m.command(func() player.Result { return m.client.SkipPrevious(m.ctx) })
		}

	case tickMsg:
		return m, m.poll()

	case stateMsg:
		m.loaded = true
		if msg.err != nil {
			m.connected = !errors.Is(msg.err, shared.ErrNotAuthenticated)
			m.np = nil
			if m.connected {
				m.note = msg.err.Error()
			}
		} else {
			m.connected = true
			m.np = msg.np
			m.note = ""
		}
		return m, tick()

	case actionMsg:
		m.note = msg.Note
		// Re-poll right away so the view reflects the command.
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := titleStyle.Render("chord") + "\n\n"

	switch {
	case !m.loaded:
		s += m.spinner.View() + " loading playback state...\n"
	case !m.connected:
		s += noteStyle.Render("Not connected. Run `chord auth login` first.") + "\n"
	case m.np == nil || m.np.Item == nil:
		s += noteStyle.Render("Nothing playing.") + "\n"
	default:
		state := "⏸"
		if m.np.IsPlaying {
			state = "▶"
		}
		s += fmt.Sprintf("%s %s\n  %s\n  %s / %s\n",
			state,
			trackStyle.Render(m.np.Item.Name),
			artistStyle.Render(m.np.ArtistNames()),
			formatMS(m.np.ProgressMS),
			formatMS(m.np.Item.DurationMS))
	}

	if m.note != "" {
		s += "\n" + noteStyle.Render(m.note) + "\n"
	}

	s += "\n" + helpStyle.Render("space play/pause · n next · b previous · q quit") + "\n"
	return s
}

// poll fetches playback state off the update loop.
func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		np, err := m.client.NowPlaying(m.ctx)
		return stateMsg{np: np, err: err}
	}
}

// command runs a playback command off the update loop.
func (m Model) command(fn func() player.Result) tea.Cmd {
	return func() tea.Msg {
		return actionMsg(fn())
	}
}

func tick() tea.Cmd {
	return tea.Tick(PollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func formatMS(ms int) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
