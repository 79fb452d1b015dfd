package engine

import (
	"math"
	"testing"
)

func TestVelocity(t *testing.T) {
	tests := []struct {
		name     string
		baseline float64
		current  float64
		want     int
	}{
		{name: "at baseline", baseline: 0.5, current: 0.5, want: 127},
		{name: "raised above baseline", baseline: 0.5, current: 0.1, want: 127},
		{name: "lowered", baseline: 0.4, current: 0.8, want: 64},
		{name: "clamped at min", baseline: 0.1, current: 1.0, want: 25},
		{name: "zero height", baseline: 0.5, current: 0, want: 127},
		{name: "negative height", baseline: 0.5, current: -0.3, want: 127},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Velocity(tt.baseline, tt.current, DefaultMinVelocityFactor); got != tt.want {
				t.Errorf("Velocity(%v, %v) = %d, want %d", tt.baseline, tt.current, got, tt.want)
			}
		})
	}
}

func TestCalibrator(t *testing.T) {
	c := NewCalibrator(3)

	if c.Done() {
		t.Fatal("new calibrator reports done")
	}
	if got := c.Baseline(); got != DefaultBaseline {
		t.Errorf("Baseline() with no samples = %v, want %v", got, DefaultBaseline)
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if c.Add(bad) {
			t.Errorf("Add(%v) completed calibration", bad)
		}
	}
	if c.Samples() != 0 {
		t.Errorf("Samples() = %d after invalid input, want 0", c.Samples())
	}

	c.Add(0.4)
	c.Add(0.5)
	if !c.Add(0.6) {
		t.Error("Add() did not report completion on the last sample")
	}
	if c.Add(0.9) != true || c.Samples() != 3 {
		t.Errorf("sample after completion was recorded: Samples() = %d", c.Samples())
	}
	if got := c.Baseline(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Baseline() = %v, want 0.5", got)
	}

	if got := NewCalibrator(0).Target(); got != DefaultCalibrationSamples {
		t.Errorf("Target() = %d, want %d", got, DefaultCalibrationSamples)
	}
}
