// Package tui is a terminal monitor for a running instrument.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

const (
	// recentEvents is the number of events listed under the grid.
	recentEvents = 8
	// refreshInterval redraws the grid so releasing slots turn idle even
	// without new events.
	refreshInterval = 250 * time.Millisecond
	cellWidth       = 12
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	idleStyle      = lipgloss.NewStyle().Width(cellWidth).Foreground(lipgloss.Color("#555"))
	soundingStyle  = lipgloss.NewStyle().Width(cellWidth).Foreground(lipgloss.Color("#000")).Background(lipgloss.Color("#3c6"))
	releasingStyle = lipgloss.NewStyle().Width(cellWidth).Foreground(lipgloss.Color("#000")).Background(lipgloss.Color("#db3"))
)

// Player is the running instrument controlled from the terminal.
type Player interface {
	Snapshot() engine.Snapshot
	NextInstrument() engine.Instrument
	Enabled() bool
	SetEnabled(enabled bool)
}

// Model is the bubbletea model of the monitor.
type Model struct {
	player   Player
	sink     *Sink
	snapshot engine.Snapshot
	enabled  bool
	recent   []string
	start    time.Time
	quitting bool
}

// EventMsg delivers one note event to the model.
type EventMsg engine.Event

type tickMsg time.Time

// NewModel creates a Model showing player and the events arriving on sink.
func NewModel(player Player, sink *Sink) Model {
	return Model{
		player:   player,
		sink:     sink,
		snapshot: player.Snapshot(),
		enabled:  player.Enabled(),
		start:    time.Now(),
	}
}

// ListenForEvents waits for the next event from sink.
func ListenForEvents(sink *Sink) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sink.events
		if !ok {
			return nil
		}
		return EventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForEvents(m.sink), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "n":
			m.player.NextInstrument()

		case " ":
			m.player.SetEnabled(!m.player.Enabled())
		}
		m.refresh()

	case EventMsg:
		m.recent = append(m.recent, m.describe(engine.Event(msg)))
		if len(m.recent) > recentEvents {
			m.recent = m.recent[len(m.recent)-recentEvents:]
		}
		m.refresh()
		return m, ListenForEvents(m.sink)

	case tickMsg:
		m.refresh()
		return m, tick()
	}

	return m, nil
}

func (m *Model) refresh() {
	m.snapshot = m.player.Snapshot()
	m.enabled = m.player.Enabled()
}

func (m Model) describe(ev engine.Event) string {
	offset := ev.At.Sub(m.start).Seconds()
	if ev.At.IsZero() {
		offset = 0
	}
	return fmt.Sprintf("%8.3fs %v", offset, ev)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	state := "ON"
	if !m.enabled {
		state = "OFF"
	}
	header := headerStyle.Render(fmt.Sprintf("handchord  %s  %s", state, m.snapshot.Instrument.Name))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.grid())
	out.WriteString("\n\n")

	if len(m.recent) == 0 {
		out.WriteString(dimStyle.Render("no events yet"))
	} else {
		out.WriteString(statusStyle.Render(strings.Join(m.recent, "\n")))
	}
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render("n:next instrument  space:toggle  q:quit"))
	return out.String()
}

// grid renders one row per hand with a cell per finger.
func (m Model) grid() string {
	byIndex := make(map[int]engine.SlotStatus, len(m.snapshot.Slots))
	for _, st := range m.snapshot.Slots {
		byIndex[st.Slot.Index()] = st
	}

	rows := make([]string, 0, slot.NumSides)
	for side := slot.Left; side <= slot.Right; side++ {
		cells := []string{dimStyle.Width(6).Render(side.String())}
		for f := slot.Thumb; f <= slot.Pinky; f++ {
			st := byIndex[slot.Slot{Side: side, Finger: f}.Index()]
			cells = append(cells, renderCell(f, st))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCell(f slot.Finger, st engine.SlotStatus) string {
	label := f.String()
	if st.Bound && st.Chord.Name != "" {
		label = st.Chord.Name
	}
	if st.Pressed {
		label = "^" + label
	}

	switch st.State {
	case engine.Sounding:
		return soundingStyle.Render(label)
	case engine.Releasing:
		return releasingStyle.Render(label)
	}
	return idleStyle.Render(label)
}
