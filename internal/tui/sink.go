package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayusman/handchord/internal/engine"
)

// sinkBuffer is the number of events held for the UI before new ones are
// dropped.
const sinkBuffer = 256

// Sink forwards note events to a Model. Handle never blocks; events that
// arrive while the buffer is full are dropped.
type Sink struct {
	events chan engine.Event
	mu     sync.Mutex
	closed bool
}

// NewSink creates a Sink.
func NewSink() *Sink {
	return &Sink{events: make(chan engine.Event, sinkBuffer)}
}

// Handle implements engine.Sink.
func (s *Sink) Handle(ev engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

// Close stops delivery; a waiting Model receives no further events.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Run shows the monitor for player until the user quits.
func Run(player Player, sink *Sink) error {
	p := tea.NewProgram(NewModel(player, sink), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
