package accel

import (
	"math"
	"time"
)

// Sample is a single accelerometer reading. Time is seconds since an
// arbitrary epoch (the printer's clock); axes are mm/s^2.
type Sample struct {
	Time float64
	X    float64
	Y    float64
	Z    float64
}

// Mean returns the mean of the three axis readings. Gravity biases this
// value, but the bias is identical in the baseline and active segments, so
// it cancels out of the spike comparison.
func (s Sample) Mean() float64 {
	return (s.X + s.Y + s.Z) / 3
}

// Window is an ordered capture of samples with monotonically increasing
// timestamps.
type Window []Sample

// Duration returns the time span covered by the window.
func (w Window) Duration() time.Duration {
	if len(w) < 2 {
		return 0
	}
	return time.Duration((w[len(w)-1].Time - w[0].Time) * float64(time.Second))
}

// SampleRate estimates the capture rate in Hz from the window span.
func (w Window) SampleRate() float64 {
	d := w.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(len(w)-1) / d
}

// After returns the samples from the given offset (relative to the first
// sample) through the end of the window.
func (w Window) After(from time.Duration) Window {
	if len(w) == 0 {
		return nil
	}
	t0 := w[0].Time
	var out Window
	for _, s := range w {
		if s.Time-t0 >= from.Seconds() {
			out = append(out, s)
		}
	}
	return out
}

// Slice returns the samples whose timestamps fall in [from, to), both
// relative to the first sample of the window.
func (w Window) Slice(from, to time.Duration) Window {
	if len(w) == 0 {
		return nil
	}
	t0 := w[0].Time
	var out Window
	for _, s := range w {
		offset := s.Time - t0
		if offset >= from.Seconds() && offset < to.Seconds() {
			out = append(out, s)
		}
	}
	return out
}

func meanStddev(w Window) (mean, stddev float64) {
	if len(w) == 0 {
		return 0, 0
	}
	for _, s := range w {
		mean += s.Mean()
	}
	mean /= float64(len(w))

	var variance float64
	for _, s := range w {
		d := s.Mean() - mean
		variance += d * d
	}
	variance /= float64(len(w))

	return mean, math.Sqrt(variance)
}
