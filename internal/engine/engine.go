// Package engine turns per-frame finger readings into chord note events.
//
// Each of the ten finger slots moves through three states:
//
//	Idle --press--> Sounding --lift--> Releasing --sustain elapsed--> Idle
//	                    ^                  |
//	                    +------press-------+
//
// Only edges in a slot's reading produce events. Lifting a finger schedules a
// deferred StopChord; every edge issues a new token for the slot, and a
// deferred stop only takes effect if the slot's token is still the one it
// captured when it was scheduled.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/handchord/internal/slot"
)

// DefaultSustain is how long a chord keeps sounding after its finger is lowered.
const DefaultSustain = 2 * time.Second

// State is the audible state of a slot.
type State int

const (
	Idle State = iota
	Sounding
	Releasing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sounding:
		return "sounding"
	case Releasing:
		return "releasing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Hand is one detected hand in a frame.
type Hand struct {
	Side      slot.Side
	Fingers   [slot.NumFingers]bool
	Reference Point
}

// Config holds the static configuration of an Engine.
type Config struct {
	// Table binds slots to chords. Nil selects slot.DefaultTable.
	Table *slot.Table
	// Sustain is the delay between a finger lifting and its StopChord.
	// Zero selects DefaultSustain.
	Sustain time.Duration
	// Instruments is the cycle used by NextInstrument. Empty selects
	// DefaultInstruments.
	Instruments []Instrument
	// VelocityShaping derives velocity from hand height when set;
	// otherwise every chord starts at MaxVelocity.
	VelocityShaping bool
	// MinVelocityFactor is the lower clamp for shaped velocity.
	// Zero selects DefaultMinVelocityFactor.
	MinVelocityFactor float64

	// Sink receives every event. Nil discards events.
	Sink Sink
	// Scheduler runs deferred releases. Nil creates a TimerScheduler owned by
	// the engine and stopped by Close.
	Scheduler Scheduler
	// Now is the clock used for events not tied to a frame. Nil selects time.Now.
	Now func() time.Time
}

// Validate checks the configuration without modifying it.
func (c Config) Validate() error {
	if c.Sustain < 0 {
		return fmt.Errorf("sustain must not be negative, got %v", c.Sustain)
	}
	if c.MinVelocityFactor < 0 || c.MinVelocityFactor > 1 {
		return fmt.Errorf("min velocity factor must be within [0, 1], got %v", c.MinVelocityFactor)
	}
	for _, inst := range c.Instruments {
		if err := inst.validate(); err != nil {
			return err
		}
	}
	return nil
}

// SlotStatus is a point-in-time view of one slot.
type SlotStatus struct {
	Slot    slot.Slot  `json:"-"`
	Name    string     `json:"slot"`
	State   State      `json:"state"`
	Pressed bool       `json:"pressed"`
	Chord   slot.Chord `json:"chord"`
	Bound   bool       `json:"bound"`
}

// Snapshot is a point-in-time view of the engine.
type Snapshot struct {
	Slots      []SlotStatus `json:"slots"`
	Instrument Instrument   `json:"instrument"`
	Baseline   float64      `json:"baseline"`
}

type slotState struct {
	mu      sync.Mutex
	state   State
	pressed bool
	// token identifies the latest edge; a deferred stop only fires if it
	// still matches.
	token uint64
}

// Engine is the gesture-to-note state machine.
type Engine struct {
	table       *slot.Table
	sustain     time.Duration
	instruments []Instrument
	shaping     bool
	minFactor   float64
	sink        Sink
	sched       Scheduler
	ownSched    *TimerScheduler
	now         func() time.Time

	// mu guards current and baseline. Lock order: slot locks, then mu.
	mu       sync.RWMutex
	current  int
	baseline float64

	slots [slot.Count]slotState
}

// New creates an Engine. Every slot starts Idle and not pressed.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		table:       cfg.Table,
		sustain:     cfg.Sustain,
		shaping:     cfg.VelocityShaping,
		minFactor:   cfg.MinVelocityFactor,
		sink:        cfg.Sink,
		sched:       cfg.Scheduler,
		now:         cfg.Now,
		baseline:    DefaultBaseline,
		instruments: append([]Instrument(nil), cfg.Instruments...),
	}

	if e.table == nil {
		e.table = slot.DefaultTable()
	}
	if e.sustain == 0 {
		e.sustain = DefaultSustain
	}
	if len(e.instruments) == 0 {
		e.instruments = DefaultInstruments()
	}
	if e.minFactor == 0 {
		e.minFactor = DefaultMinVelocityFactor
	}
	if e.sink == nil {
		e.sink = discardSink{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.sched == nil {
		e.ownSched = NewScheduler()
		e.sched = e.ownSched
	}

	return e, nil
}

// Close stops the scheduler if the engine created it. Pending releases are
// dropped; call Silence first to turn everything off.
func (e *Engine) Close() {
	if e.ownSched != nil {
		e.ownSched.Close()
	}
}

// Sustain returns the configured sustain time.
func (e *Engine) Sustain() time.Duration {
	return e.sustain
}

// Step evaluates one frame of readings taken at now and returns the events
// it emitted immediately. Deferred stops are emitted to the sink later.
//
// A frame with no hands reads every slot as not pressed. Otherwise only the
// slots of the sides present in the frame are evaluated; if a side appears
// more than once the last hand wins.
func (e *Engine) Step(now time.Time, hands []Hand) []Event {
	type reading struct {
		set     bool
		pressed bool
		ref     Point
	}
	var readings [slot.Count]reading

	if len(hands) == 0 {
		for i := range readings {
			readings[i].set = true
		}
	}
	for _, h := range hands {
		if !h.Side.Valid() {
			continue
		}
		for f := slot.Thumb; f <= slot.Pinky; f++ {
			s := slot.Slot{Side: h.Side, Finger: f}
			readings[s.Index()] = reading{set: true, pressed: h.Fingers[f], ref: h.Reference}
		}
	}

	var events []Event
	for i, r := range readings {
		if !r.set {
			continue
		}
		s := slot.FromIndex(i)
		chord, ok := e.table.Chord(s)
		if !ok {
			continue
		}
		if ev, ok := e.apply(now, s, chord, r.pressed, r.ref); ok {
			events = append(events, ev)
		}
	}
	return events
}

// apply runs the transition rules for one slot.
func (e *Engine) apply(now time.Time, s slot.Slot, chord slot.Chord, pressed bool, ref Point) (Event, bool) {
	st := &e.slots[s.Index()]
	st.mu.Lock()
	defer st.mu.Unlock()

	prev := st.pressed
	st.pressed = pressed

	switch {
	case pressed && !prev:
		st.token++
		st.state = Sounding

		e.mu.RLock()
		inst := e.instruments[e.current]
		baseline := e.baseline
		e.mu.RUnlock()

		velocity := MaxVelocity
		if e.shaping {
			velocity = Velocity(baseline, ref.Y, e.minFactor)
		}

		ev := Event{
			Kind:       StartChord,
			Slot:       s,
			SlotName:   s.String(),
			Chord:      chord.Name,
			Notes:      chord.Notes,
			Velocity:   velocity,
			Instrument: inst,
			At:         now,
		}
		e.sink.Handle(ev)
		return ev, true

	case !pressed && prev:
		// A slot silenced by an instrument switch has nothing to release.
		if st.state != Sounding {
			return Event{}, false
		}
		st.token++
		st.state = Releasing

		token := st.token
		at := now.Add(e.sustain)
		e.sched.Schedule(at, func() {
			e.release(s, chord, token, at)
		})
	}

	return Event{}, false
}

// release is the deferred stop for a slot. It is a no-op if the slot saw
// another edge after the stop was scheduled.
func (e *Engine) release(s slot.Slot, chord slot.Chord, token uint64, at time.Time) {
	st := &e.slots[s.Index()]
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.token != token || st.state != Releasing {
		return
	}
	st.state = Idle

	e.mu.RLock()
	inst := e.instruments[e.current]
	e.mu.RUnlock()

	e.sink.Handle(Event{
		Kind:       StopChord,
		Slot:       s,
		SlotName:   s.String(),
		Chord:      chord.Name,
		Notes:      chord.Notes,
		Instrument: inst,
		At:         at,
	})
}

// NextInstrument advances to the next instrument in the cycle and silences
// every slot immediately with a single AllNotesOff. Pending releases are
// cancelled. Fingers that are still raised stay pressed and do not
// retrigger until they are lowered and raised again.
func (e *Engine) NextInstrument() Instrument {
	return e.silence(true)
}

// Silence emits AllNotesOff and cancels pending releases without changing
// the instrument.
func (e *Engine) Silence() {
	e.silence(false)
}

func (e *Engine) silence(advance bool) Instrument {
	for i := range e.slots {
		e.slots[i].mu.Lock()
	}
	defer func() {
		for i := range e.slots {
			e.slots[i].mu.Unlock()
		}
	}()

	e.mu.Lock()
	if advance {
		e.current = (e.current + 1) % len(e.instruments)
	}
	inst := e.instruments[e.current]
	e.mu.Unlock()

	for i := range e.slots {
		e.slots[i].token++
		e.slots[i].state = Idle
	}

	e.sink.Handle(Event{
		Kind:       AllNotesOff,
		Instrument: inst,
		At:         e.now(),
	})
	return inst
}

// Instrument returns the active instrument.
func (e *Engine) Instrument() Instrument {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.instruments[e.current]
}

// Instruments returns the instrument cycle.
func (e *Engine) Instruments() []Instrument {
	return append([]Instrument(nil), e.instruments...)
}

// SetBaseline sets the calibrated reference height used for velocity shaping.
// Non-positive values restore DefaultBaseline.
func (e *Engine) SetBaseline(b float64) {
	if b <= 0 {
		b = DefaultBaseline
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseline = b
}

// Baseline returns the reference height used for velocity shaping.
func (e *Engine) Baseline() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baseline
}

// State returns the state of one slot.
func (e *Engine) State(s slot.Slot) State {
	if !s.Valid() {
		return Idle
	}
	st := &e.slots[s.Index()]
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Snapshot returns the state of every slot and the active instrument.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Slots:      make([]SlotStatus, 0, slot.Count),
		Instrument: e.Instrument(),
		Baseline:   e.Baseline(),
	}
	for _, s := range slot.All() {
		st := &e.slots[s.Index()]
		chord, bound := e.table.Chord(s)

		st.mu.Lock()
		snap.Slots = append(snap.Slots, SlotStatus{
			Slot:    s,
			Name:    s.String(),
			State:   st.state,
			Pressed: st.pressed,
			Chord:   chord,
			Bound:   bound,
		})
		st.mu.Unlock()
	}
	return snap
}
