package sink

import (
	"fmt"
	"log"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

// VirtualPortName is the name of the output port created when no hardware
// or software synth port is available.
const VirtualPortName = "handchord"

// ccAllNotesOff is the MIDI channel mode message that silences a channel.
const ccAllNotesOff = 123

// MIDI plays note events on one MIDI channel.
//
// Holds are tracked per slot: a note shared by several sounding chords is
// only released when the last slot holding it stops, and a slot started again
// before its stop arrived still counts once. Send errors are logged and
// otherwise ignored.
type MIDI struct {
	mu      sync.Mutex
	send    func(midi.Message) error
	closer  func() error
	channel uint8
	program int
	held    map[uint8]map[slot.Slot]struct{}
}

// NewMIDI creates a MIDI sink writing messages through send.
func NewMIDI(send func(midi.Message) error, channel uint8) *MIDI {
	return &MIDI{
		send:    send,
		channel: channel & 0x0f,
		program: -1,
		held:    make(map[uint8]map[slot.Slot]struct{}),
	}
}

// OpenMIDI opens an output port and returns a sink for it. An empty port
// selects the first available output. If no port can be opened a virtual
// output named VirtualPortName is created.
func OpenMIDI(port string, channel uint8) (*MIDI, error) {
	var out drivers.Out
	var err error
	if port != "" {
		out, err = midi.FindOutPort(port)
	} else {
		out, err = midi.OutPort(0)
	}
	if err != nil {
		log.Printf("MIDI output %q not available (%v), opening virtual port %q", port, err, VirtualPortName)
		drv, ok := drivers.Get().(*rtmididrv.Driver)
		if !ok {
			return nil, fmt.Errorf("no MIDI output and no rtmidi driver: %w", err)
		}
		out, err = drv.OpenVirtualOut(VirtualPortName)
		if err != nil {
			return nil, fmt.Errorf("failed to open virtual MIDI output: %w", err)
		}
	}

	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("failed to open MIDI output %s: %w", out, err)
	}
	log.Printf("MIDI output: %s (channel %d)", out, channel+1)

	m := NewMIDI(send, channel)
	m.closer = out.Close
	return m, nil
}

// ListOutPorts returns the names of the available MIDI outputs.
func ListOutPorts() []string {
	var names []string
	for _, p := range midi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

// CloseDriver releases the MIDI driver. Call it once at shutdown.
func CloseDriver() {
	midi.CloseDriver()
}

// Handle implements engine.Sink.
func (m *MIDI) Handle(ev engine.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind {
	case engine.StartChord:
		m.programChange(ev.Instrument.Program)
		for _, n := range ev.Notes {
			key := uint8(n)
			holders, ok := m.held[key]
			if !ok {
				holders = make(map[slot.Slot]struct{})
				m.held[key] = holders
			}
			holders[ev.Slot] = struct{}{}
			m.write(midi.NoteOn(m.channel, key, uint8(ev.Velocity)))
		}

	case engine.StopChord:
		for _, n := range ev.Notes {
			key := uint8(n)
			holders, ok := m.held[key]
			if !ok {
				continue
			}
			if _, held := holders[ev.Slot]; !held {
				continue
			}
			delete(holders, ev.Slot)
			if len(holders) == 0 {
				delete(m.held, key)
				m.write(midi.NoteOff(m.channel, key))
			}
		}

	case engine.AllNotesOff:
		m.allOff()
		m.programChange(ev.Instrument.Program)
	}
}

// Held returns how many slots hold each sounding note.
func (m *MIDI) Held() map[uint8]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := make(map[uint8]int, len(m.held))
	for k, holders := range m.held {
		held[k] = len(holders)
	}
	return held
}

// Close silences the channel and closes the port if this sink opened it.
func (m *MIDI) Close() error {
	m.mu.Lock()
	m.allOff()
	m.mu.Unlock()

	if m.closer == nil {
		return nil
	}
	if err := m.closer(); err != nil {
		return fmt.Errorf("failed to close MIDI output: %w", err)
	}
	return nil
}

func (m *MIDI) allOff() {
	for key := range m.held {
		m.write(midi.NoteOff(m.channel, key))
	}
	clear(m.held)
	m.write(midi.ControlChange(m.channel, ccAllNotesOff, 0))
}

func (m *MIDI) programChange(program int) {
	if program == m.program {
		return
	}
	m.program = program
	m.write(midi.ProgramChange(m.channel, uint8(program)))
}

func (m *MIDI) write(msg midi.Message) {
	if m.send == nil {
		return
	}
	if err := m.send(msg); err != nil {
		log.Printf("MIDI send failed: %v", err)
	}
}
