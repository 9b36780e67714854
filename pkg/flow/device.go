package flow

import (
	"time"

	"github.com/jsundahl/max-vol-flow/pkg/accel"
)

// Device is the printer seam. Every method blocks until the printer has
// acknowledged (and for motion, completed) the request, so the caller can
// rely on strict ordering: a capture is running before the extrusion
// starts, and the extrusion has finished before the capture stops.
//
// Any error from a Device method is treated as a fatal fault, with one
// exception: StopCapture may return accel.ErrInconclusive when the capture
// file never materialized or is truncated, which grants a single retry.
type Device interface {
	// Home homes all axes.
	Home() error
	// MoveTo travels to a bed position.
	MoveTo(x, y float64) error
	// PrepareTrial lowers the toolhead near the plate. Done before capture
	// starts so travel vibration stays out of the noise baseline.
	PrepareTrial() error
	// FinishTrial retracts and lifts clear after a trial.
	FinishTrial() error
	// WaitTemperatureStable heats the extruder and blocks until the target
	// is reached and holding.
	WaitTemperatureStable(celsius float64) error
	// StartCapture begins an accelerometer measurement.
	StartCapture(name string) error
	// Dwell pauses the printer for the given duration.
	Dwell(d time.Duration) error
	// Extrude pushes lengthMM of filament at feedRate mm/min and blocks
	// through move completion.
	Extrude(lengthMM, feedRate float64) error
	// StopCapture ends the measurement and retrieves the sample window.
	StopCapture(name string) (accel.Window, error)
}
