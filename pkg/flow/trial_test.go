package flow

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTrialSpecFeedRate(t *testing.T) {
	spec, err := NewTrialSpec(5, 50, 1.75)
	if err != nil {
		t.Fatalf("NewTrialSpec failed: %v", err)
	}

	// 5 mm^3/s through a 1.75 mm filament: 5*60/(pi*1.75^2/4).
	want := 5 * 60 / (math.Pi * 1.75 * 1.75 / 4)
	if math.Abs(spec.FeedRate()-want) > 1e-9 {
		t.Fatalf("feed rate = %f, want %f", spec.FeedRate(), want)
	}
}

func TestTrialSpecDuration(t *testing.T) {
	spec, err := NewTrialSpec(5, 50, 1.75)
	if err != nil {
		t.Fatalf("NewTrialSpec failed: %v", err)
	}

	// 50 mm at 5/2.405 mm/s is about 24 seconds.
	got := spec.Duration()
	if got < 23*time.Second || got > 25*time.Second {
		t.Fatalf("duration = %s, want ~24s", got)
	}
	if got <= 0 {
		t.Fatal("duration must be positive")
	}
}

func TestTrialSpecFeedRateMonotonic(t *testing.T) {
	prev := 0.0
	for rate := 1.0; rate <= 50; rate += 0.5 {
		spec, err := NewTrialSpec(rate, 50, 1.75)
		if err != nil {
			t.Fatalf("NewTrialSpec(%f) failed: %v", rate, err)
		}
		if spec.FeedRate() <= prev {
			t.Fatalf("feed rate not strictly increasing at rate %f", rate)
		}
		prev = spec.FeedRate()
	}
}

func TestTrialSpecValidation(t *testing.T) {
	cases := []struct {
		name                   string
		rate, length, diameter float64
	}{
		{"zero rate", 0, 50, 1.75},
		{"negative rate", -5, 50, 1.75},
		{"zero length", 5, 0, 1.75},
		{"zero diameter", 5, 50, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewTrialSpec(c.rate, c.length, c.diameter)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}
