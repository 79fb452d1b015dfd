package sink

import (
	"image"
	"image/color"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

var (
	overlayText   = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	overlayChord  = color.RGBA{R: 0, G: 220, B: 120, A: 0}
	overlayShadow = color.RGBA{A: 0}
)

// Overlay tracks the sounding chords and draws their names onto frames.
type Overlay struct {
	mu         sync.Mutex
	sounding   map[slot.Slot]string
	instrument string
	status     string
}

// NewOverlay creates an empty Overlay.
func NewOverlay() *Overlay {
	return &Overlay{sounding: make(map[slot.Slot]string)}
}

// Handle implements engine.Sink.
func (o *Overlay) Handle(ev engine.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.instrument = ev.Instrument.Name
	switch ev.Kind {
	case engine.StartChord:
		name := ev.Chord
		if name == "" {
			name = ev.Slot.String()
		}
		o.sounding[ev.Slot] = name
	case engine.StopChord:
		delete(o.sounding, ev.Slot)
	case engine.AllNotesOff:
		clear(o.sounding)
	}
}

// SetStatus sets a line shown above the chords, e.g. during calibration.
func (o *Overlay) SetStatus(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}

// Lines returns the text drawn by Draw: status, instrument, then the
// sounding chords in slot order.
func (o *Overlay) Lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	var lines []string
	if o.status != "" {
		lines = append(lines, o.status)
	}
	if o.instrument != "" {
		lines = append(lines, o.instrument)
	}

	slots := make([]slot.Slot, 0, len(o.sounding))
	for s := range o.sounding {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Index() < slots[j].Index() })
	for _, s := range slots {
		lines = append(lines, o.sounding[s])
	}
	return lines
}

// Draw renders the overlay onto img.
func (o *Overlay) Draw(img *gocv.Mat) {
	if img == nil || img.Empty() {
		return
	}

	lines := o.Lines()
	y := 40
	for i, line := range lines {
		c := overlayChord
		if i == 0 {
			c = overlayText
		}
		pt := image.Pt(20, y)
		gocv.PutText(img, line, image.Pt(pt.X+2, pt.Y+2), gocv.FontHersheySimplex, 1.0, overlayShadow, 3)
		gocv.PutText(img, line, pt, gocv.FontHersheySimplex, 1.0, c, 2)
		y += 40
	}
}
