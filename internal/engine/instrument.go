package engine

import "fmt"

// Instrument is a General MIDI program selectable by the instrument switch.
type Instrument struct {
	Program int    `json:"program"`
	Name    string `json:"name"`
}

func (i Instrument) validate() error {
	if i.Program < 0 || i.Program > 127 {
		return fmt.Errorf("instrument %q: program %d out of range", i.Name, i.Program)
	}
	return nil
}

// DefaultInstruments returns the instrument cycle used when none is configured.
// Program numbers are zero-based General MIDI.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Program: 0, Name: "Acoustic Grand Piano"},
		{Program: 4, Name: "Electric Piano 1"},
		{Program: 19, Name: "Church Organ"},
		{Program: 24, Name: "Acoustic Guitar (nylon)"},
		{Program: 48, Name: "String Ensemble 1"},
		{Program: 52, Name: "Choir Aahs"},
		{Program: 88, Name: "Pad 1 (new age)"},
	}
}
