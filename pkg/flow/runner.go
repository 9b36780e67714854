package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jsundahl/max-vol-flow/pkg/accel"
)

// ParkGrid walks trial positions across the bed so every extrusion lands on
// a fresh spot.
type ParkGrid struct {
	OriginX, OriginY float64
	MaxX, MaxY       float64
	Step             float64
}

// Runner executes single trials: position, capture, extrude, classify.
type Runner struct {
	dev        Device
	classifier *accel.Classifier

	lengthMM         float64
	filamentDiameter float64

	grid       ParkGrid
	posX, posY float64
	exhausted  bool
}

// NewRunner builds a trial runner over a connected device.
func NewRunner(dev Device, classifier *accel.Classifier, lengthMM, filamentDiameter float64, grid ParkGrid) *Runner {
	return &Runner{
		dev:              dev,
		classifier:       classifier,
		lengthMM:         lengthMM,
		filamentDiameter: filamentDiameter,
		grid:             grid,
		posX:             grid.OriginX,
		posY:             grid.OriginY,
	}
}

// Prepare homes the printer, moves to the first test position and brings
// the extruder to temperature. Must be called once before any trial.
func (r *Runner) Prepare(celsius float64) error {
	logrus.Info("homing")
	if err := r.dev.Home(); err != nil {
		return &DeviceError{Op: "homing", Err: err}
	}
	if err := r.dev.MoveTo(r.posX, r.posY); err != nil {
		return &DeviceError{Op: "initial positioning", Err: err}
	}

	logrus.WithField("target", celsius).Info("heating extruder")
	if err := r.dev.WaitTemperatureStable(celsius); err != nil {
		return &DeviceError{Op: "heating", Err: err}
	}
	return nil
}

// RunTrial performs one trial at the given flow rate and classifies it. An
// inconclusive capture is retried once at the same rate; a second
// inconclusive capture escalates to a fatal device error.
func (r *Runner) RunTrial(rate float64) (accel.Verdict, error) {
	spec, err := NewTrialSpec(rate, r.lengthMM, r.filamentDiameter)
	if err != nil {
		return "", err
	}

	if err := r.advance(); err != nil {
		return "", err
	}

	verdict, err := r.runOnce(spec)
	if errors.Is(err, accel.ErrInconclusive) {
		logrus.WithField("rate", rate).Warn("inconclusive capture, retrying trial once")
		verdict, err = r.runOnce(spec)
		if errors.Is(err, accel.ErrInconclusive) {
			return "", &DeviceError{Op: "capture", Err: err}
		}
	}
	if err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"rate":    rate,
		"verdict": verdict,
	}).Info("trial complete")

	return verdict, nil
}

// runOnce is a single capture-extrude-classify pass.
func (r *Runner) runOnce(spec TrialSpec) (accel.Verdict, error) {
	name := captureName(spec.Rate)
	log := logrus.WithFields(logrus.Fields{
		"rate":     spec.Rate,
		"feedRate": spec.FeedRate(),
		"duration": spec.Duration(),
		"capture":  name,
	})
	log.Debug("starting trial")

	if err := r.dev.PrepareTrial(); err != nil {
		return "", &DeviceError{Op: "trial preparation", Err: err}
	}
	if err := r.dev.StartCapture(name); err != nil {
		return "", &DeviceError{Op: "capture start", Err: err}
	}
	if err := r.dev.Dwell(r.classifier.Settle); err != nil {
		return "", &DeviceError{Op: "settle dwell", Err: err}
	}
	if err := r.dev.Extrude(spec.LengthMM, spec.FeedRate()); err != nil {
		return "", &DeviceError{Op: "extrusion", Err: err}
	}
	if err := r.dev.Dwell(r.classifier.Settle); err != nil {
		return "", &DeviceError{Op: "settle dwell", Err: err}
	}

	window, err := r.dev.StopCapture(name)
	if err != nil {
		if errors.Is(err, accel.ErrInconclusive) {
			// Still finish the move so the next attempt starts clean.
			_ = r.dev.FinishTrial()
			return "", err
		}
		return "", &DeviceError{Op: "capture stop", Err: err}
	}

	if err := r.dev.FinishTrial(); err != nil {
		return "", &DeviceError{Op: "trial cleanup", Err: err}
	}

	return r.classifier.Classify(window, spec.Duration())
}

// advance moves to the current grid position and steps to the next one.
func (r *Runner) advance() error {
	if r.exhausted {
		return errors.New("test positions exhausted, bed fully used")
	}

	if err := r.dev.MoveTo(r.posX, r.posY); err != nil {
		return &DeviceError{Op: "positioning", Err: err}
	}

	r.posX += r.grid.Step
	if r.posX > r.grid.MaxX {
		r.posX = r.grid.OriginX
		r.posY += r.grid.Step
		if r.posY > r.grid.MaxY {
			r.exhausted = true
		}
	}
	return nil
}

func captureName(rate float64) string {
	return fmt.Sprintf("%s-%.4gmm3s", time.Now().Format("2006-01-02-15-04-05"), rate)
}
