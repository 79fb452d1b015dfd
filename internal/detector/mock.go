package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/handchord/internal/slot"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]HandLandmarks(nil), m.hands...), nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// SyntheticHand builds landmarks for a hand with its wrist at wrist and the
// given fingers raised. FingersUp on the result returns fingers.
func SyntheticHand(label string, wrist Point3D, fingers [slot.NumFingers]bool) HandLandmarks {
	// The thumb points towards +x for a "Right" label.
	dir := 1.0
	if label == "Left" {
		dir = -1.0
	}

	h := HandLandmarks{Handedness: label, Score: 0.95}
	set := func(i int, dx, dy float64) {
		h.Points[i] = Point3D{X: wrist.X + dir*dx, Y: wrist.Y + dy, Z: wrist.Z}
	}

	set(Wrist, 0, 0)
	set(ThumbCMC, 0.05, -0.05)
	set(ThumbMCP, 0.08, -0.10)
	if fingers[slot.Thumb] {
		set(ThumbIP, 0.13, -0.13)
		set(ThumbTip, 0.18, -0.16)
	} else {
		set(ThumbIP, 0.08, -0.15)
		set(ThumbTip, 0.03, -0.15)
	}

	columns := [slot.NumFingers]float64{slot.Index: 0.05, slot.Middle: 0, slot.Ring: -0.05, slot.Pinky: -0.10}
	for f := slot.Index; f <= slot.Pinky; f++ {
		x := columns[f]
		mcp := tips[f] - 3
		set(mcp, x, -0.12)
		if fingers[f] {
			set(mcp+1, x, -0.25)
			set(mcp+2, x, -0.33)
			set(mcp+3, x, -0.40)
		} else {
			set(mcp+1, x, -0.14)
			set(mcp+2, x, -0.12)
			set(mcp+3, x, -0.10)
		}
	}
	return h
}

// OpenHand returns a hand with every finger raised.
func OpenHand(label string, wrist Point3D) HandLandmarks {
	return SyntheticHand(label, wrist, [slot.NumFingers]bool{true, true, true, true, true})
}

// Fist returns a hand with every finger lowered.
func Fist(label string, wrist Point3D) HandLandmarks {
	return SyntheticHand(label, wrist, [slot.NumFingers]bool{})
}
