// Package slot defines the fixed set of finger slots and the chord table bound to them.
package slot

import (
	"fmt"
	"strings"
)

// Side identifies which logical hand a slot belongs to.
type Side int

const (
	Left Side = iota
	Right
)

// NumSides is the number of logical hands.
const NumSides = 2

// Finger identifies a finger, thumb through pinky.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
)

// NumFingers is the number of fingers per hand.
const NumFingers = 5

// Count is the total number of slots.
const Count = NumSides * NumFingers

var sideNames = [NumSides]string{"left", "right"}

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

func (s Side) String() string {
	if !s.Valid() {
		return fmt.Sprintf("side(%d)", int(s))
	}
	return sideNames[s]
}

// Valid reports whether s is Left or Right.
func (s Side) Valid() bool {
	return s >= Left && s <= Right
}

func (f Finger) String() string {
	if !f.Valid() {
		return fmt.Sprintf("finger(%d)", int(f))
	}
	return fingerNames[f]
}

// Valid reports whether f is one of the five fingers.
func (f Finger) Valid() bool {
	return f >= Thumb && f <= Pinky
}

// ParseSide parses "left" or "right" (case-insensitive).
func ParseSide(s string) (Side, error) {
	for i, name := range sideNames {
		if strings.EqualFold(s, name) {
			return Side(i), nil
		}
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// ParseFinger parses a finger name such as "thumb" or "pinky" (case-insensitive).
func ParseFinger(s string) (Finger, error) {
	for i, name := range fingerNames {
		if strings.EqualFold(s, name) {
			return Finger(i), nil
		}
	}
	return 0, fmt.Errorf("unknown finger %q", s)
}

// Slot is a (side, finger) pair. There are exactly Count slots.
type Slot struct {
	Side   Side
	Finger Finger
}

// Index returns the position of the slot in [0, Count).
func (s Slot) Index() int {
	return int(s.Side)*NumFingers + int(s.Finger)
}

// Valid reports whether both side and finger are in range.
func (s Slot) Valid() bool {
	return s.Side.Valid() && s.Finger.Valid()
}

func (s Slot) String() string {
	return s.Side.String() + "/" + s.Finger.String()
}

// Parse parses the "side/finger" form produced by String.
func Parse(s string) (Slot, error) {
	sidePart, fingerPart, ok := strings.Cut(s, "/")
	if !ok {
		return Slot{}, fmt.Errorf("invalid slot %q", s)
	}
	side, err := ParseSide(sidePart)
	if err != nil {
		return Slot{}, err
	}
	finger, err := ParseFinger(fingerPart)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Side: side, Finger: finger}, nil
}

// FromIndex is the inverse of Index.
func FromIndex(i int) Slot {
	return Slot{Side: Side(i / NumFingers), Finger: Finger(i % NumFingers)}
}

// All returns every slot in index order.
func All() [Count]Slot {
	var out [Count]Slot
	for i := range out {
		out[i] = FromIndex(i)
	}
	return out
}

// FingersFromInts converts a detector up/down vector to booleans.
// Any non-zero value counts as pressed.
func FingersFromInts(v [NumFingers]int) [NumFingers]bool {
	var out [NumFingers]bool
	for i, x := range v {
		out[i] = x != 0
	}
	return out
}
