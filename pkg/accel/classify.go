package accel

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Verdict is the outcome of classifying one trial capture.
type Verdict string

const (
	VerdictClean   Verdict = "Clean"
	VerdictClicked Verdict = "Clicked"
)

// ErrInconclusive is returned when a capture cannot be classified safely,
// e.g. the window is truncated or the baseline segment is too short. Callers
// must retry the trial rather than trust a verdict.
var ErrInconclusive = errors.New("inconclusive capture")

// minBaselineSamples is the fewest baseline samples from which a noise
// estimate is still meaningful. ADXL345 capture rates start at 25 Hz, so a
// healthy one-second settle segment has far more.
const minBaselineSamples = 8

// Classifier decides whether a capture window contains an extruder click.
//
// A click is a skipped stepper step: it shows up as a sharp, short spike in
// acceleration well above the ambient noise floor. The classifier estimates
// the floor from the pre-extrusion settle segment of the window and flags
// any active-segment sample exceeding mean + NoiseMargin standard
// deviations.
type Classifier struct {
	// NoiseMargin is the z-score a sample must exceed to count as a click.
	// Deliberately high to avoid false positives from travel vibration.
	NoiseMargin float64

	// Settle is the quiet dwell recorded before the extrusion starts. The
	// same margin trails the extrusion to guard against truncation.
	Settle time.Duration
}

// Classify inspects a capture window for a click. The window starts at the
// beginning of the settle dwell; the extrusion nominally occupies
// [Settle, Settle+active) but may run later, so everything after the
// baseline is inspected. Pure function of its inputs.
func (c *Classifier) Classify(w Window, active time.Duration) (Verdict, error) {
	if len(w) == 0 {
		return "", ErrInconclusive
	}

	// The capture must cover the whole extrusion, otherwise a click near
	// the end could be missed and a false Clean reported.
	if w.Duration() < c.Settle+active {
		logrus.WithFields(logrus.Fields{
			"captured": w.Duration(),
			"expected": c.Settle + active,
		}).Warn("capture window truncated")
		return "", ErrInconclusive
	}

	baseline := w.Slice(0, c.Settle)
	if len(baseline) < minBaselineSamples {
		return "", ErrInconclusive
	}

	mean, stddev := meanStddev(baseline)
	upperBound := mean + c.NoiseMargin*stddev

	// Scan everything after the baseline through the end of the window.
	// Request latency shifts the real extrusion later than its nominal
	// interval, and a click late in the move (where pressure peaks) must
	// not escape inspection. The trailing dwell is quiet, so widening the
	// scan cannot produce a false click.
	activeWindow := w.After(c.Settle)
	if len(activeWindow) == 0 {
		return "", ErrInconclusive
	}

	for _, s := range activeWindow {
		if s.Mean() > upperBound {
			logrus.WithFields(logrus.Fields{
				"at":         s.Time - w[0].Time,
				"value":      s.Mean(),
				"upperBound": upperBound,
			}).Debug("click spike detected")
			return VerdictClicked, nil
		}
	}

	return VerdictClean, nil
}
