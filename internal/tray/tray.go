// Package tray provides the system tray menu of handchord.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/getlantern/systray"

	"github.com/ayusman/handchord/internal/engine"
)

// labelDelay coalesces label updates while chords change quickly.
const labelDelay = 150 * time.Millisecond

// Tray represents the system tray application. It implements engine.Sink to
// show the last chord played.
type Tray struct {
	onToggle   func(enabled bool)
	onNext     func() engine.Instrument
	onSettings func()
	onQuit     func()
	enabled    bool
	lastChord  string
	instrument string
	mu         sync.RWMutex

	debounced func(f func())

	// Menu items stored for later updates
	menuToggle     *systray.MenuItem
	menuInstrument *systray.MenuItem
	menuLastChord  *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled:   true,
		debounced: debounce.New(labelDelay),
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnNextInstrument sets the callback for the "Next instrument" item.
func (t *Tray) OnNextInstrument(fn func() engine.Instrument) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNext = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("handchord")
	systray.SetTooltip("handchord gesture instrument")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle note output")
	systray.AddSeparator()

	t.menuInstrument = systray.AddMenuItem(instrumentTitle(t.instrument), "Active instrument")
	t.menuInstrument.Disable()
	menuNext := systray.AddMenuItem("Next instrument", "Switch to the next instrument")
	t.menuLastChord = systray.AddMenuItem(lastChordTitle(t.lastChord), "Last chord played")
	t.menuLastChord.Disable()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handchord")
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuNext.ClickedCh:
				t.handleNext()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleNext handles the "Next instrument" menu item click.
func (t *Tray) handleNext() {
	t.mu.RLock()
	callback := t.onNext
	t.mu.RUnlock()

	if callback == nil {
		return
	}
	inst := callback()
	t.setInstrument(inst.Name)
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Handle implements engine.Sink. Menu labels are refreshed after a short
// quiet period.
func (t *Tray) Handle(ev engine.Event) {
	t.mu.Lock()
	t.instrument = ev.Instrument.Name
	if ev.Kind == engine.StartChord {
		t.lastChord = ev.Chord
		if t.lastChord == "" {
			t.lastChord = ev.SlotName
		}
	}
	t.mu.Unlock()

	t.debounced(t.refreshLabels)
}

func (t *Tray) setInstrument(name string) {
	t.mu.Lock()
	t.instrument = name
	t.mu.Unlock()
	t.refreshLabels()
}

// refreshLabels writes the current chord and instrument into the menu.
func (t *Tray) refreshLabels() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastChord != nil {
		t.menuLastChord.SetTitle(lastChordTitle(t.lastChord))
	}
	if t.menuInstrument != nil {
		t.menuInstrument.SetTitle(instrumentTitle(t.instrument))
	}
}

// SetEnabled updates the toggle without calling the toggle callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastChord returns the name of the last chord started.
func (t *Tray) LastChord() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastChord
}

// Instrument returns the name of the active instrument as last reported.
func (t *Tray) Instrument() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.instrument
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastChordTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

func instrumentTitle(name string) string {
	if name == "" {
		return "Instrument: default"
	}
	return fmt.Sprintf("Instrument: %s", name)
}
