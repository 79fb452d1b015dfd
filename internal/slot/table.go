package slot

import (
	"errors"
	"fmt"
)

// MIDI note range accepted in chord bindings.
const (
	MinNote = 0
	MaxNote = 127
)

// ErrInvalidNote is returned when a chord contains a note outside 0-127.
var ErrInvalidNote = errors.New("note out of range")

// Chord is an ordered group of notes started and stopped together.
type Chord struct {
	Name  string `json:"name,omitempty"`
	Notes []int  `json:"notes"`
}

// Empty reports whether the chord has no notes.
func (c Chord) Empty() bool {
	return len(c.Notes) == 0
}

func (c Chord) clone() Chord {
	notes := make([]int, len(c.Notes))
	copy(notes, c.Notes)
	return Chord{Name: c.Name, Notes: notes}
}

// Table maps each slot to its chord. Slots with an empty chord are unbound.
// A Table is immutable once built.
type Table struct {
	chords [Count]Chord
}

// NewTable builds a Table from per-slot bindings, rejecting invalid slots
// and out-of-range notes.
func NewTable(bindings map[Slot]Chord) (*Table, error) {
	t := &Table{}
	for s, c := range bindings {
		if !s.Valid() {
			return nil, fmt.Errorf("invalid slot %v", s)
		}
		for _, n := range c.Notes {
			if n < MinNote || n > MaxNote {
				return nil, fmt.Errorf("slot %s note %d: %w", s, n, ErrInvalidNote)
			}
		}
		t.chords[s.Index()] = c.clone()
	}
	return t, nil
}

// Chord returns the binding for s. The second result is false when the slot
// is unbound or out of range.
func (t *Table) Chord(s Slot) (Chord, bool) {
	if t == nil || !s.Valid() {
		return Chord{}, false
	}
	c := t.chords[s.Index()]
	if c.Empty() {
		return Chord{}, false
	}
	return c.clone(), true
}

// Bindings returns a copy of every bound slot.
func (t *Table) Bindings() map[Slot]Chord {
	out := make(map[Slot]Chord)
	if t == nil {
		return out
	}
	for i, c := range t.chords {
		if !c.Empty() {
			out[FromIndex(i)] = c.clone()
		}
	}
	return out
}

// DefaultTable returns the D major scale layout: triads on D, E, F#, G and A,
// with the left hand one octave below the right.
func DefaultTable() *Table {
	t, err := NewTable(map[Slot]Chord{
		{Left, Thumb}:   {Name: "D Major", Notes: []int{50, 54, 57}},
		{Left, Index}:   {Name: "E Minor", Notes: []int{52, 55, 59}},
		{Left, Middle}:  {Name: "F# Minor", Notes: []int{54, 57, 61}},
		{Left, Ring}:    {Name: "G Major", Notes: []int{55, 59, 62}},
		{Left, Pinky}:   {Name: "A Major", Notes: []int{57, 61, 64}},
		{Right, Thumb}:  {Name: "D Major", Notes: []int{62, 66, 69}},
		{Right, Index}:  {Name: "E Minor", Notes: []int{64, 67, 71}},
		{Right, Middle}: {Name: "F# Minor", Notes: []int{66, 69, 73}},
		{Right, Ring}:   {Name: "G Major", Notes: []int{67, 71, 74}},
		{Right, Pinky}:  {Name: "A Major", Notes: []int{69, 73, 76}},
	})
	if err != nil {
		panic(err)
	}
	return t
}
