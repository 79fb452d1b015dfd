package engine

import (
	"math"
	"sync"
)

// Velocity shaping defaults.
const (
	// MaxVelocity is the MIDI velocity used when shaping is off.
	MaxVelocity = 127
	// DefaultMinVelocityFactor is the lower clamp on the height ratio.
	DefaultMinVelocityFactor = 0.2
	// DefaultBaseline is the reference height used when calibration never
	// obtained a sample: the vertical middle of a normalized frame.
	DefaultBaseline = 0.5
	// DefaultCalibrationSamples is the number of samples averaged into the baseline.
	DefaultCalibrationSamples = 30
)

// Point is a normalized image coordinate; Y grows downwards.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Velocity maps the current hand height to a MIDI velocity:
// round(clamp(baseline/current, minFactor, 1) * 127).
// A non-positive current height is treated as the loudest position.
func Velocity(baseline, current, minFactor float64) int {
	factor := 1.0
	if current > 0 {
		factor = baseline / current
	}
	factor = math.Max(minFactor, math.Min(1.0, factor))
	return int(math.Round(factor * MaxVelocity))
}

// Calibrator averages the reference height over a fixed number of samples.
type Calibrator struct {
	mu     sync.Mutex
	target int
	sum    float64
	n      int
}

// NewCalibrator creates a Calibrator that completes after samples readings.
// Non-positive values select DefaultCalibrationSamples.
func NewCalibrator(samples int) *Calibrator {
	if samples <= 0 {
		samples = DefaultCalibrationSamples
	}
	return &Calibrator{target: samples}
}

// Add records one height sample and reports whether calibration is complete.
// Samples arriving after completion and non-finite or non-positive values
// are ignored.
func (c *Calibrator) Add(y float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.n >= c.target {
		return true
	}
	if y <= 0 || math.IsNaN(y) || math.IsInf(y, 0) {
		return false
	}
	c.sum += y
	c.n++
	return c.n >= c.target
}

// Done reports whether the target sample count was reached.
func (c *Calibrator) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n >= c.target
}

// Samples returns how many samples were recorded.
func (c *Calibrator) Samples() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Target returns the number of samples needed to complete.
func (c *Calibrator) Target() int {
	return c.target
}

// Baseline returns the average of the recorded samples, or DefaultBaseline
// when there are none.
func (c *Calibrator) Baseline() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		return DefaultBaseline
	}
	return c.sum / float64(c.n)
}
