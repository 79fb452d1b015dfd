package engine

import (
	"fmt"
	"time"

	"github.com/ayusman/handchord/internal/slot"
)

// Kind identifies the type of a note event.
type Kind int

const (
	// StartChord starts every note of a slot's chord.
	StartChord Kind = iota
	// StopChord stops every note of a slot's chord after its sustain ran out.
	StopChord
	// AllNotesOff silences everything immediately, bypassing sustain.
	AllNotesOff
)

func (k Kind) String() string {
	switch k {
	case StartChord:
		return "start"
	case StopChord:
		return "stop"
	case AllNotesOff:
		return "all-off"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is a single note event produced by the engine.
// Slot, Chord and Notes are unset for AllNotesOff.
type Event struct {
	Kind       Kind       `json:"kind"`
	Slot       slot.Slot  `json:"-"`
	SlotName   string     `json:"slot,omitempty"`
	Chord      string     `json:"chord,omitempty"`
	Notes      []int      `json:"notes,omitempty"`
	Velocity   int        `json:"velocity,omitempty"`
	Instrument Instrument `json:"instrument"`
	At         time.Time  `json:"at"`
}

func (e Event) String() string {
	switch e.Kind {
	case StartChord:
		return fmt.Sprintf("start %s %q %v vel=%d program=%d", e.Slot, e.Chord, e.Notes, e.Velocity, e.Instrument.Program)
	case StopChord:
		return fmt.Sprintf("stop %s %q %v", e.Slot, e.Chord, e.Notes)
	case AllNotesOff:
		return fmt.Sprintf("all notes off (instrument %q)", e.Instrument.Name)
	}
	return e.Kind.String()
}

// Sink receives note events. Handle is called while the engine holds the
// lock of the event's slot, so implementations must not block or call back
// into the engine.
type Sink interface {
	Handle(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Handle calls f(ev).
func (f SinkFunc) Handle(ev Event) {
	f(ev)
}

type discardSink struct{}

func (discardSink) Handle(Event) {}
