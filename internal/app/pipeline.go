package app

import (
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handchord/internal/capture"
	"github.com/ayusman/handchord/internal/detector"
	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

// runPipeline is the main loop. It reads a frame on every tick and switches
// between the idle and active frame rates as Activity decides.
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := capture.IdleFPS
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			next := a.processFrame(now)
			if next != fps {
				fps = next
				a.camera.SetFPS(fps)
				ticker.Reset(time.Second / time.Duration(fps))
				log.Printf("Switched to %d fps", fps)
			}
		}
	}
}

// processFrame handles one tick taken at now and returns the frame rate to
// use next. A frame that cannot be read counts as a frame without hands.
func (a *App) processFrame(now time.Time) int {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		log.Printf("Error reading frame: %v", err)
		a.play(now, nil)
		return a.activity.Mark(now, false)
	}
	defer frame.Close()

	hands := a.detect(frame)
	a.play(now, hands)
	fps := a.activity.Observe(frame, now, len(hands) > 0)
	a.publish(frame)
	return fps
}

// detect runs the hand detector and converts its output to engine hands.
// Detection errors yield no hands.
func (a *App) detect(frame *gocv.Mat) []engine.Hand {
	landmarks, err := a.detector.Detect(frame)
	if err != nil {
		log.Printf("Error detecting hands: %v", err)
		return nil
	}
	return toHands(landmarks, a.config.Mapping)
}

// toHands maps detector labels to sides; hands with unknown labels are dropped.
func toHands(landmarks []detector.HandLandmarks, mapping slot.Mapping) []engine.Hand {
	hands := make([]engine.Hand, 0, len(landmarks))
	for i := range landmarks {
		lm := &landmarks[i]
		side, ok := mapping.SideOf(lm.Handedness)
		if !ok {
			continue
		}
		center := lm.PalmCenter()
		hands = append(hands, engine.Hand{
			Side:      side,
			Fingers:   lm.FingersUp(),
			Reference: engine.Point{X: center.X, Y: center.Y},
		})
	}
	return hands
}

// play forwards one frame of hands to the engine unless calibration is
// running or output is disabled.
func (a *App) play(now time.Time, hands []engine.Hand) {
	if a.calibrating(now, hands) {
		return
	}

	a.stepMu.Lock()
	defer a.stepMu.Unlock()
	if !a.Enabled() {
		return
	}
	a.engine.Step(now, hands)
}

// calibrating feeds the height of the first hand to the calibrator and
// reports whether calibration is still running. It ends after the target
// number of samples or the timeout, whichever comes first.
func (a *App) calibrating(now time.Time, hands []engine.Hand) bool {
	if a.calib == nil {
		return false
	}
	if a.calibStart.IsZero() {
		a.calibStart = now
		log.Printf("Calibrating: hold a hand at a comfortable height")
	}

	done := false
	if len(hands) > 0 {
		done = a.calib.Add(hands[0].Reference.Y)
	}
	if !done && now.Sub(a.calibStart) < a.calibTimer {
		a.overlay.SetStatus(fmt.Sprintf("Calibrating %d/%d", a.calib.Samples(), a.calib.Target()))
		return true
	}

	baseline := a.calib.Baseline()
	a.engine.SetBaseline(baseline)
	if done {
		log.Printf("Calibration finished: baseline %.3f", baseline)
	} else {
		log.Printf("Calibration timed out after %d samples, baseline %.3f", a.calib.Samples(), baseline)
	}
	a.calib = nil
	a.overlay.SetStatus("")
	return false
}

// publish draws the overlay onto frame and stores it as the latest JPEG.
func (a *App) publish(frame *gocv.Mat) {
	a.overlay.Draw(frame)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.frameMu.Lock()
	a.jpeg = data
	a.seq++
	a.frameMu.Unlock()
}
