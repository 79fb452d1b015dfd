// Package app runs the instrument: it reads camera frames, detects hands and
// feeds finger readings to the note engine.
package app

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/handchord/internal/capture"
	"github.com/ayusman/handchord/internal/detector"
	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/sink"
	"github.com/ayusman/handchord/internal/slot"
)

// DefaultCalibrationTimeout ends calibration when too few hand samples arrive.
const DefaultCalibrationTimeout = 10 * time.Second

// Config holds configuration options for the application.
type Config struct {
	// Engine configures the note engine. Its Sink is ignored: events go to
	// the overlay and to Sink through a queue owned by the App.
	Engine  engine.Config
	Mapping slot.Mapping

	Camera   capture.Camera
	Detector detector.Detector
	// Sink receives every note event after the overlay. May be nil.
	Sink engine.Sink

	MotionThreshold float64
	// CalibrationSamples is the number of hand heights averaged into the
	// velocity baseline. Calibration only runs with velocity shaping on.
	CalibrationSamples int
	CalibrationTimeout time.Duration
}

// App is the main application that turns camera frames into note events.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	motion   *capture.MotionDetector
	activity *capture.Activity
	engine   *engine.Engine
	queue    *sink.Queue
	overlay  *sink.Overlay

	// Calibration state, owned by the pipeline goroutine.
	calib      *engine.Calibrator
	calibStart time.Time
	calibTimer time.Duration

	// stepMu makes the enabled check and the engine step of a frame atomic
	// with respect to SetEnabled.
	stepMu sync.Mutex

	mu      sync.RWMutex
	enabled bool
	stopCh  chan struct{}
	done    chan struct{}

	frameMu sync.RWMutex
	jpeg    []byte
	seq     uint64
}

// New creates a new App instance with the given configuration.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, fmt.Errorf("app: camera is required")
	}
	if config.Detector == nil {
		return nil, fmt.Errorf("app: detector is required")
	}

	motionThreshold := config.MotionThreshold
	if motionThreshold <= 0 {
		motionThreshold = capture.DefaultMotionThreshold
	}

	overlay := sink.NewOverlay()
	downstream := sink.Multi{overlay}
	if config.Sink != nil {
		downstream = append(downstream, config.Sink)
	}
	queue := sink.NewQueue(downstream)

	engineCfg := config.Engine
	engineCfg.Sink = queue
	eng, err := engine.New(engineCfg)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	motion := capture.NewMotionDetector(motionThreshold)
	a := &App{
		config:   config,
		camera:   config.Camera,
		detector: config.Detector,
		motion:   motion,
		activity: capture.NewActivity(motion, capture.DefaultHold),
		engine:   eng,
		queue:    queue,
		overlay:  overlay,
		enabled:  true,
	}

	if engineCfg.VelocityShaping {
		a.calib = engine.NewCalibrator(config.CalibrationSamples)
		a.calibTimer = config.CalibrationTimeout
		if a.calibTimer <= 0 {
			a.calibTimer = DefaultCalibrationTimeout
		}
	}

	return a, nil
}

// SetEnabled turns note output on or off. Disabling silences everything at
// once; fingers raised when output is enabled again sound on the next frame.
func (a *App) SetEnabled(enabled bool) {
	a.stepMu.Lock()
	defer a.stepMu.Unlock()

	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if changed && !enabled {
		a.engine.Silence()
		// Forget the last readings so raised fingers count as new presses.
		a.engine.Step(time.Now(), nil)
	}
	if changed {
		log.Printf("Note output enabled: %v", enabled)
	}
}

// Enabled returns whether note output is on.
func (a *App) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// NextInstrument switches to the next instrument and silences every slot.
func (a *App) NextInstrument() engine.Instrument {
	inst := a.engine.NextInstrument()
	log.Printf("Instrument: %s (program %d)", inst.Name, inst.Program)
	return inst
}

// Snapshot returns the engine state.
func (a *App) Snapshot() engine.Snapshot {
	return a.engine.Snapshot()
}

// Engine returns the note engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Overlay returns the overlay drawn onto published frames.
func (a *App) Overlay() *sink.Overlay {
	return a.overlay
}

// LatestJPEG returns the last annotated frame and its sequence number.
func (a *App) LatestJPEG() ([]byte, uint64) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.jpeg, a.seq
}

// Start opens the camera and begins the detection pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	a.camera.SetFPS(capture.IdleFPS)

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	log.Println("Detection pipeline started")
	return nil
}

// Stop halts the pipeline, silences every slot and closes the camera.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done

	a.engine.Silence()

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	log.Println("Detection pipeline stopped")
}

// Close stops the pipeline and releases the engine, the detector and every
// queued event. The App cannot be restarted afterwards.
func (a *App) Close() {
	a.Stop()
	a.engine.Close()
	a.queue.Close()
	a.motion.Close()

	if err := a.detector.Close(); err != nil {
		log.Printf("Error closing detector: %v", err)
	}
}
