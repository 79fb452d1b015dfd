package app

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handchord/internal/capture"
	"github.com/ayusman/handchord/internal/detector"
	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

// recorder is a Sink that keeps every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []engine.Event
}

func (r *recorder) Handle(ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []engine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Event(nil), r.events...)
}

func (r *recorder) kinds() []engine.Kind {
	var out []engine.Kind
	for _, ev := range r.Events() {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	app      *App
	camera   *capture.MockCamera
	detector *detector.MockDetector
	sched    *engine.ManualScheduler
	rec      *recorder
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(0, 0, 0, 0))
	t.Cleanup(func() { frame.Close() })

	f := &fixture{
		camera:   capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		detector: detector.NewMockDetector(),
		sched:    engine.NewManualScheduler(t0),
		rec:      &recorder{},
	}
	if err := f.camera.Open(); err != nil {
		t.Fatalf("camera.Open() error = %v", err)
	}

	cfg.Camera = f.camera
	cfg.Detector = f.detector
	cfg.Sink = f.rec
	cfg.Engine.Scheduler = f.sched
	cfg.Engine.Now = f.sched.Now

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.app = a
	return f
}

// drain closes the app so every queued event reaches the recorder.
func (f *fixture) drain() []engine.Event {
	f.app.Close()
	return f.rec.Events()
}

func rightHand(fingers ...slot.Finger) detector.HandLandmarks {
	var up [slot.NumFingers]bool
	for _, f := range fingers {
		up[f] = true
	}
	return detector.SyntheticHand(slot.LabelRight, detector.Point3D{X: 0.5, Y: 0.8}, up)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Detector: detector.NewMockDetector()}); err == nil {
		t.Error("expected error without camera")
	}
	if _, err := New(Config{Camera: capture.NewMockCamera(nil, false)}); err == nil {
		t.Error("expected error without detector")
	}
}

func TestApp_PressAndRelease(t *testing.T) {
	f := newFixture(t, Config{})

	f.detector.SetHands([]detector.HandLandmarks{rightHand(slot.Index)})
	f.app.processFrame(at(0))

	f.detector.SetHands([]detector.HandLandmarks{rightHand()})
	f.app.processFrame(at(0.5))

	if got := f.app.Engine().State(slot.Slot{Side: slot.Right, Finger: slot.Index}); got != engine.Releasing {
		t.Fatalf("state = %v, want releasing", got)
	}
	if n := f.sched.AdvanceTo(at(2.5)); n != 1 {
		t.Errorf("AdvanceTo() ran %d tasks, want 1", n)
	}

	events := f.drain()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %v", len(events), events)
	}
	if events[0].Kind != engine.StartChord || events[0].SlotName != "right/index" || events[0].Chord != "E Minor" {
		t.Errorf("first event = %v", events[0])
	}
	if events[1].Kind != engine.StopChord || !events[1].At.Equal(at(2.5)) {
		t.Errorf("second event = %v at %v", events[1], events[1].At)
	}
}

func TestApp_FailuresReadAsNoHands(t *testing.T) {
	tests := []struct {
		name string
		fail func(f *fixture)
	}{
		{"detector error", func(f *fixture) { f.detector.SetError(errors.New("service crashed")) }},
		{"camera error", func(f *fixture) { f.camera.SetError(errors.New("device lost")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			defer f.app.Close()

			f.detector.SetHands([]detector.HandLandmarks{rightHand(slot.Thumb, slot.Pinky)})
			f.app.processFrame(at(0))

			tt.fail(f)
			f.app.processFrame(at(0.1))

			for _, fg := range []slot.Finger{slot.Thumb, slot.Pinky} {
				s := slot.Slot{Side: slot.Right, Finger: fg}
				if got := f.app.Engine().State(s); got != engine.Releasing {
					t.Errorf("%v state = %v, want releasing", s, got)
				}
			}
			if f.sched.Pending() != 2 {
				t.Errorf("pending = %d, want 2", f.sched.Pending())
			}
		})
	}
}

func TestApp_UnknownLabelIgnored(t *testing.T) {
	hand := rightHand(slot.Index)
	hand.Handedness = "Unknown"

	hands := toHands([]detector.HandLandmarks{hand, rightHand(slot.Middle)}, slot.Mapping{})
	if len(hands) != 1 {
		t.Fatalf("got %d hands, want 1", len(hands))
	}
	if hands[0].Side != slot.Right || !hands[0].Fingers[slot.Middle] || hands[0].Fingers[slot.Index] {
		t.Errorf("hand = %+v", hands[0])
	}
}

func TestApp_MirroredMapping(t *testing.T) {
	hands := toHands([]detector.HandLandmarks{rightHand(slot.Index)}, slot.Mapping{Mirrored: true})
	if len(hands) != 1 || hands[0].Side != slot.Left {
		t.Fatalf("hands = %+v, want one left hand", hands)
	}
	if !hands[0].Fingers[slot.Index] {
		t.Error("expected index finger raised")
	}
	if hands[0].Reference.Y <= 0 {
		t.Errorf("reference = %+v, want the palm center", hands[0].Reference)
	}
}

func TestApp_Calibration(t *testing.T) {
	t.Run("no events until samples collected", func(t *testing.T) {
		f := newFixture(t, Config{
			Engine:             engine.Config{VelocityShaping: true},
			CalibrationSamples: 3,
		})

		hand := rightHand(slot.Index)
		f.detector.SetHands([]detector.HandLandmarks{hand})

		f.app.processFrame(at(0))
		f.app.processFrame(at(0.1))
		if got := f.app.Overlay().Lines()[0]; got != "Calibrating 2/3" {
			t.Errorf("status = %q, want Calibrating 2/3", got)
		}
		if s := f.app.Engine().State(slot.Slot{Side: slot.Right, Finger: slot.Index}); s != engine.Idle {
			t.Errorf("state during calibration = %v, want idle", s)
		}

		f.app.processFrame(at(0.2))

		want := hand.PalmCenter().Y
		if got := f.app.Engine().Baseline(); math.Abs(got-want) > 1e-9 {
			t.Errorf("baseline = %v, want %v", got, want)
		}

		events := f.drain()
		if len(events) != 1 || events[0].Kind != engine.StartChord {
			t.Fatalf("events = %v, want one start", events)
		}
		if events[0].Velocity != engine.MaxVelocity {
			t.Errorf("velocity at baseline height = %d, want %d", events[0].Velocity, engine.MaxVelocity)
		}
	})

	t.Run("timeout keeps default baseline", func(t *testing.T) {
		f := newFixture(t, Config{
			Engine:             engine.Config{VelocityShaping: true},
			CalibrationSamples: 30,
			CalibrationTimeout: time.Second,
		})
		defer f.app.Close()

		f.app.processFrame(at(0))
		f.app.processFrame(at(0.5))
		if f.app.calib == nil {
			t.Fatal("calibration ended early")
		}

		f.app.processFrame(at(1))
		if f.app.calib != nil {
			t.Fatal("calibration did not time out")
		}
		if got := f.app.Engine().Baseline(); got != engine.DefaultBaseline {
			t.Errorf("baseline = %v, want %v", got, engine.DefaultBaseline)
		}
	})

	t.Run("skipped without velocity shaping", func(t *testing.T) {
		f := newFixture(t, Config{CalibrationSamples: 3})
		defer f.app.Close()

		if f.app.calib != nil {
			t.Error("expected no calibration")
		}
	})
}

func TestApp_SetEnabled(t *testing.T) {
	f := newFixture(t, Config{})

	f.detector.SetHands([]detector.HandLandmarks{rightHand(slot.Ring)})
	f.app.processFrame(at(0))

	f.app.SetEnabled(false)
	if f.app.Enabled() {
		t.Fatal("expected disabled")
	}
	f.app.processFrame(at(0.1))

	f.app.SetEnabled(true)
	f.app.processFrame(at(0.2))

	want := []engine.Kind{engine.StartChord, engine.AllNotesOff, engine.StartChord}
	got := f.drain()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want kinds %v", got, want)
	}
	for i := range want {
		if got[i].Kind != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i].Kind, want[i])
		}
	}
}

func TestApp_DisableWhileFramesRun(t *testing.T) {
	f := newFixture(t, Config{})
	f.detector.SetHands([]detector.HandLandmarks{rightHand(slot.Index, slot.Middle)})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			f.app.processFrame(at(float64(i) * 0.01))
		}
	}()

	for i := 0; i < 100; i++ {
		f.app.SetEnabled(true)
		f.app.SetEnabled(false)

		for _, st := range f.app.Snapshot().Slots {
			if st.Pressed || st.State != engine.Idle {
				t.Errorf("round %d: %s pressed=%v state=%v after disabling", i, st.Name, st.Pressed, st.State)
			}
		}
	}

	close(stop)
	<-done
}

func TestApp_NextInstrument(t *testing.T) {
	f := newFixture(t, Config{})

	f.detector.SetHands([]detector.HandLandmarks{rightHand(slot.Index)})
	f.app.processFrame(at(0))

	inst := f.app.NextInstrument()
	if inst != engine.DefaultInstruments()[1] {
		t.Errorf("NextInstrument() = %+v", inst)
	}
	if snap := f.app.Snapshot(); snap.Instrument != inst {
		t.Errorf("snapshot instrument = %+v, want %+v", snap.Instrument, inst)
	}

	// Still raised: no retrigger.
	f.app.processFrame(at(0.1))

	f.drain()
	kinds := f.rec.kinds()
	want := []engine.Kind{engine.StartChord, engine.AllNotesOff}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}

func TestApp_PublishesAnnotatedFrames(t *testing.T) {
	f := newFixture(t, Config{})
	defer f.app.Close()

	if data, seq := f.app.LatestJPEG(); data != nil || seq != 0 {
		t.Fatalf("LatestJPEG() before first frame = %d bytes, seq %d", len(data), seq)
	}

	f.app.processFrame(at(0))
	f.app.processFrame(at(0.1))

	data, seq := f.app.LatestJPEG()
	if seq != 2 {
		t.Errorf("seq = %d, want 2", seq)
	}
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("expected JPEG data, got %d bytes", len(data))
	}
}

func TestApp_FrameRate(t *testing.T) {
	f := newFixture(t, Config{})
	defer f.app.Close()

	if fps := f.app.processFrame(at(0)); fps != capture.IdleFPS {
		t.Errorf("fps without hands = %d, want %d", fps, capture.IdleFPS)
	}

	f.detector.SetHands([]detector.HandLandmarks{rightHand()})
	if fps := f.app.processFrame(at(0.2)); fps != capture.ActiveFPS {
		t.Errorf("fps with a hand = %d, want %d", fps, capture.ActiveFPS)
	}

	f.detector.SetHands(nil)
	if fps := f.app.processFrame(at(3)); fps != capture.IdleFPS {
		t.Errorf("fps after hold = %d, want %d", fps, capture.IdleFPS)
	}
}

func TestApp_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(0, 0, 0, 0))
	defer frame.Close()

	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{rightHand(slot.Index)})
	rec := &recorder{}

	a, err := New(Config{Camera: cam, Detector: det, Sink: rec})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for det.Calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("pipeline never ran the detector")
		}
		time.Sleep(10 * time.Millisecond)
	}

	a.Stop()
	if cam.IsOpen() {
		t.Error("camera still open after Stop")
	}
	a.Close()

	kinds := rec.kinds()
	if len(kinds) < 2 || kinds[0] != engine.StartChord || kinds[len(kinds)-1] != engine.AllNotesOff {
		t.Errorf("kinds = %v, want a start and a final all-notes-off", kinds)
	}
}
