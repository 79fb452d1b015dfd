package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ayusman/handchord/internal/config"
	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

// Script actions.
const (
	ActionNextInstrument = "next-instrument"
	ActionSilence        = "silence"
)

// releaseGrace is added to the sustain after the last frame so that the
// final deferred releases fire before Play returns.
const releaseGrace = 50 * time.Millisecond

// Script is a sequence of frames played into an engine without a camera.
type Script struct {
	// Preset optionally names the preset to load.
	Preset string        `json:"preset,omitempty"`
	Frames []ScriptFrame `json:"frames"`
}

// ScriptFrame is one frame or one control action. Frames with an Action do
// not step the engine; frames without one step it with Hands, and an empty
// Hands list is a frame with no hands in view.
type ScriptFrame struct {
	At     config.Duration `json:"at"`
	Hands  []ScriptHand    `json:"hands,omitempty"`
	Action string          `json:"action,omitempty"`
}

// ScriptHand is one hand of a scripted frame.
type ScriptHand struct {
	Side    string   `json:"side"`
	Fingers []string `json:"fingers"`
	// Y is the normalized reference height. Zero selects the default baseline.
	Y float64 `json:"y,omitempty"`
}

// ParseScript decodes and validates a script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads a script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// Validate checks frame order, actions, sides and finger names.
func (s *Script) Validate() error {
	if len(s.Frames) == 0 {
		return errors.New("script has no frames")
	}
	var last config.Duration
	for i, f := range s.Frames {
		if f.At < 0 || f.At < last {
			return fmt.Errorf("frame %d: time %v is before the previous frame", i, time.Duration(f.At))
		}
		last = f.At

		switch f.Action {
		case "", ActionNextInstrument, ActionSilence:
		default:
			return fmt.Errorf("frame %d: unknown action %q", i, f.Action)
		}
		if _, err := f.hands(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// Duration returns the time of the last frame.
func (s *Script) Duration() time.Duration {
	if len(s.Frames) == 0 {
		return 0
	}
	return time.Duration(s.Frames[len(s.Frames)-1].At)
}

func (f ScriptFrame) hands() ([]engine.Hand, error) {
	hands := make([]engine.Hand, 0, len(f.Hands))
	for _, h := range f.Hands {
		side, err := slot.ParseSide(h.Side)
		if err != nil {
			return nil, err
		}
		hand := engine.Hand{Side: side, Reference: engine.Point{X: 0.5, Y: h.Y}}
		if hand.Reference.Y == 0 {
			hand.Reference.Y = engine.DefaultBaseline
		}
		for _, name := range h.Fingers {
			finger, err := slot.ParseFinger(name)
			if err != nil {
				return nil, err
			}
			hand.Fingers[finger] = true
		}
		hands = append(hands, hand)
	}
	return hands, nil
}

// Play steps eng through the script with frame times counted from start.
//
// With a ManualScheduler the script runs instantly: the scheduler is
// advanced to each frame time before the frame is applied. Without one,
// Play sleeps until each frame is due. Either way Play returns once the
// releases pending after the last frame have fired.
func (s *Script) Play(ctx context.Context, eng *engine.Engine, start time.Time, manual *engine.ManualScheduler) error {
	wait := func(t time.Time) error {
		if manual != nil {
			manual.AdvanceTo(t)
			return nil
		}
		timer := time.NewTimer(time.Until(t))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	for _, f := range s.Frames {
		at := start.Add(time.Duration(f.At))
		if err := wait(at); err != nil {
			return err
		}

		switch f.Action {
		case ActionNextInstrument:
			eng.NextInstrument()
		case ActionSilence:
			eng.Silence()
		default:
			hands, err := f.hands()
			if err != nil {
				return err
			}
			eng.Step(at, hands)
		}
	}

	return wait(start.Add(s.Duration() + eng.Sustain() + releaseGrace))
}
