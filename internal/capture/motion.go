package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame rates used by Activity.
const (
	// IdleFPS is the frame rate while nothing moves in front of the camera.
	IdleFPS = 5
	// ActiveFPS is the frame rate while playing.
	ActiveFPS = 15
	// DefaultHold is how long the active rate is kept after the last motion.
	DefaultHold = 2 * time.Second
	// DefaultMotionThreshold is the share of changed pixels, in percent,
	// that counts as motion.
	DefaultMotionThreshold = 1.0
)

const (
	// blurSize is the Gaussian kernel applied before differencing.
	blurSize = 21
	// pixelDelta is the grey-level change that counts a pixel as changed.
	pixelDelta = 25
)

// MotionDetector compares consecutive frames and reports the share of
// pixels that changed.
type MotionDetector struct {
	threshold float64
	prev      gocv.Mat
	hasPrev   bool
	mu        sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// changed pixels that counts as motion; 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Detect reports whether frame differs from the previous one by more than
// the threshold, and the percentage of changed pixels. The first frame after
// construction or Reset never counts as motion.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	cur := smoothGray(frame)
	defer cur.Close()

	if !m.hasPrev {
		cur.CopyTo(&m.prev)
		m.hasPrev = true
		return false, 0
	}

	changed := changedPercent(cur, m.prev)
	cur.CopyTo(&m.prev)
	return changed > m.threshold, changed
}

// smoothGray returns a blurred greyscale copy of frame.
func smoothGray(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	out := gocv.NewMat()
	gocv.GaussianBlur(gray, &out, image.Pt(blurSize, blurSize), 0, 0, gocv.BorderDefault)
	return out
}

func changedPercent(a, b gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total) * 100.0
}

// Reset forgets the previous frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the stored frame. The detector stays usable.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prev.Empty() {
		m.prev.Close()
		m.prev = gocv.NewMat()
	}
	m.hasPrev = false
}

// SetThreshold changes the motion threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Activity picks the capture frame rate: ActiveFPS while there is motion or
// a visible hand, IdleFPS once neither was seen for the hold time.
type Activity struct {
	motion   *MotionDetector
	hold     time.Duration
	lastSeen time.Time
}

// NewActivity creates an Activity using motion. A non-positive hold selects
// DefaultHold.
func NewActivity(motion *MotionDetector, hold time.Duration) *Activity {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Activity{motion: motion, hold: hold}
}

// Observe records one frame taken at now and returns the rate to use next.
func (a *Activity) Observe(frame *gocv.Mat, now time.Time, handsVisible bool) int {
	moved := false
	if a.motion != nil {
		moved, _ = a.motion.Detect(frame)
	}
	return a.Mark(now, moved || handsVisible)
}

// Mark records whether anything was happening at now and returns the rate
// to use next.
func (a *Activity) Mark(now time.Time, busy bool) int {
	if busy {
		a.lastSeen = now
	}
	if !a.lastSeen.IsZero() && now.Sub(a.lastSeen) < a.hold {
		return ActiveFPS
	}
	return IdleFPS
}
