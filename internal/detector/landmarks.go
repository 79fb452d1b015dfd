// Package detector finds hands in camera frames and reads which fingers are raised.
package detector

import "github.com/ayusman/handchord/internal/slot"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// tips and pips index the tip and middle joint of each finger, thumb first.
// For the thumb the middle joint is the IP joint.
var (
	tips = [slot.NumFingers]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}
	pips = [slot.NumFingers]int{ThumbIP, IndexPIP, MiddlePIP, RingPIP, PinkyPIP}
)

// Point3D is a landmark position. X and Y are normalized to the frame with
// Y growing downwards.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
	// Fingers is the service's own up/down reading, when it sends one.
	Fingers *[slot.NumFingers]bool `json:"fingers,omitempty"`
}

// FingersUp reports which fingers are raised, thumb first.
//
// A finger is raised when its tip is above its PIP joint. The thumb is raised
// when its tip lies further out from the pinky side of the palm than its IP
// joint, which holds for either hand and for mirrored frames. A reading
// reported by the service takes precedence over the landmarks.
func (h *HandLandmarks) FingersUp() [slot.NumFingers]bool {
	if h.Fingers != nil {
		return *h.Fingers
	}

	var up [slot.NumFingers]bool

	pinky := h.Points[PinkyMCP].X
	up[slot.Thumb] = abs(h.Points[ThumbTip].X-pinky) > abs(h.Points[ThumbIP].X-pinky)

	for f := slot.Index; f <= slot.Pinky; f++ {
		up[f] = h.Points[tips[f]].Y < h.Points[pips[f]].Y
	}
	return up
}

// PalmCenter returns the mean of the wrist and the four finger knuckles.
func (h *HandLandmarks) PalmCenter() Point3D {
	idx := [...]int{Wrist, IndexMCP, MiddleMCP, RingMCP, PinkyMCP}

	var c Point3D
	for _, i := range idx {
		c.X += h.Points[i].X
		c.Y += h.Points[i].Y
		c.Z += h.Points[i].Z
	}
	n := float64(len(idx))
	return Point3D{X: c.X / n, Y: c.Y / n, Z: c.Z / n}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
