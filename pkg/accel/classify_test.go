package accel

import (
	"errors"
	"testing"
	"time"
)

// syntheticWindow builds a capture at the given rate: a settle segment of
// low-level noise followed by an active segment, with optional spikes at
// offsets (seconds from window start).
func syntheticWindow(rate float64, total time.Duration, spikes ...float64) Window {
	var w Window
	n := int(total.Seconds() * rate)
	for i := 0; i < n; i++ {
		t := float64(i) / rate
		// Deterministic pseudo-noise around 9810 mm/s^2 (gravity on Z).
		noise := float64(i%7)*2 - 6
		s := Sample{Time: 1000 + t, X: noise, Y: -noise / 2, Z: 9810 + noise}
		for _, at := range spikes {
			if t >= at && t < at+0.02 {
				s.Z += 5000
			}
		}
		w = append(w, s)
	}
	return w
}

func newTestClassifier() *Classifier {
	return &Classifier{NoiseMargin: 10, Settle: time.Second}
}

func TestClassifyClean(t *testing.T) {
	c := newTestClassifier()
	w := syntheticWindow(100, 4*time.Second)

	v, err := c.Classify(w, 2*time.Second)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if v != VerdictClean {
		t.Fatalf("expected Clean, got %s", v)
	}
}

func TestClassifyClicked(t *testing.T) {
	c := newTestClassifier()
	// Spike 1.5s in, well inside the active interval.
	w := syntheticWindow(100, 4*time.Second, 1.5)

	v, err := c.Classify(w, 2*time.Second)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if v != VerdictClicked {
		t.Fatalf("expected Clicked, got %s", v)
	}
}

func TestClassifyClickAfterNominalInterval(t *testing.T) {
	// Script latency pushes the real extrusion later than its nominal
	// interval, so a click can land between the interval's end and the end
	// of the window. It must still be caught.
	c := newTestClassifier()
	w := syntheticWindow(100, 4*time.Second, 3.1)

	v, err := c.Classify(w, 2*time.Second)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if v != VerdictClicked {
		t.Fatalf("expected Clicked for a late spike, got %s", v)
	}
}

func TestClassifySpikeInBaselineOnly(t *testing.T) {
	// A disturbance during the settle dwell raises the noise floor instead
	// of producing a click verdict.
	c := newTestClassifier()
	w := syntheticWindow(100, 4*time.Second, 0.5)

	v, err := c.Classify(w, 2*time.Second)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if v != VerdictClean {
		t.Fatalf("expected Clean, got %s", v)
	}
}

func TestClassifyTruncatedWindow(t *testing.T) {
	c := newTestClassifier()
	// Capture covers only half of the expected active interval.
	w := syntheticWindow(100, 2*time.Second)

	_, err := c.Classify(w, 2*time.Second)
	if !errors.Is(err, ErrInconclusive) {
		t.Fatalf("expected ErrInconclusive, got %v", err)
	}
}

func TestClassifyEmptyWindow(t *testing.T) {
	c := newTestClassifier()
	_, err := c.Classify(nil, time.Second)
	if !errors.Is(err, ErrInconclusive) {
		t.Fatalf("expected ErrInconclusive, got %v", err)
	}
}

func TestClassifyShortBaseline(t *testing.T) {
	c := newTestClassifier()
	// 2 Hz capture leaves only two baseline samples; noise estimate would
	// be garbage.
	w := syntheticWindow(2, 4*time.Second)

	_, err := c.Classify(w, 2*time.Second)
	if !errors.Is(err, ErrInconclusive) {
		t.Fatalf("expected ErrInconclusive, got %v", err)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := newTestClassifier()
	w := syntheticWindow(100, 4*time.Second, 1.5)

	first, err := c.Classify(w, 2*time.Second)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		v, err := c.Classify(w, 2*time.Second)
		if err != nil {
			t.Fatalf("Classify failed on repeat %d: %v", i, err)
		}
		if v != first {
			t.Fatalf("verdict changed on repeat %d: %s != %s", i, v, first)
		}
	}
}

func TestWindowSampleRate(t *testing.T) {
	w := syntheticWindow(100, 2*time.Second)
	rate := w.SampleRate()
	if rate < 99 || rate > 101 {
		t.Fatalf("expected ~100 Hz, got %f", rate)
	}
}
