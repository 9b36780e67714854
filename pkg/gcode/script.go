// Package gcode builds the G-code scripts the calibration drives the
// printer with. Scripts are plain strings; Moonraker accepts multi-line
// scripts and holds the request open until the last command finishes, which
// is what makes each builder below a synchronization barrier.
package gcode

import (
	"fmt"
	"strings"
	"time"
)

// Travel and retract feed rates in mm/min. Conservative values that any
// printer able to run this test can follow.
const (
	XYTravelSpeed = 6000
	ZTravelSpeed  = 600
	RetractSpeed  = 1800
)

// Home homes all axes and switches to absolute positioning.
func Home() string {
	return join(
		"G28",
		"G90",
	)
}

// Park moves the toolhead to a test position.
func Park(x, y float64) string {
	return fmt.Sprintf("G1 X%.1f Y%.1f F%d", x, y, XYTravelSpeed)
}

// PrepareTrial lowers the toolhead near the build plate. This happens
// before the capture starts so the Z travel does not pollute the noise
// baseline.
func PrepareTrial() string {
	return join(
		"G90",
		fmt.Sprintf("G1 Z5 F%d", ZTravelSpeed),
	)
}

// FinishTrial retracts and lifts clear after a trial.
func FinishTrial() string {
	return join(
		"M83",
		fmt.Sprintf("G1 E-1 F%d", RetractSpeed),
		"G91",
		fmt.Sprintf("G1 Z10 F%d", ZTravelSpeed),
		"G90",
	)
}

// Heat sets the extruder target and blocks until it is reached.
func Heat(celsius float64) string {
	return fmt.Sprintf("M109 S%.0f", celsius)
}

// HeaterOff turns the extruder heater off without waiting.
func HeaterOff() string {
	return "M104 S0"
}

// MotorsOff disables the steppers.
func MotorsOff() string {
	return "M84"
}

// Measure toggles an accelerometer measurement. The same command starts a
// capture and, issued again with the same name, stops it and writes the
// samples to a CSV on the printer host.
func Measure(name string) string {
	return fmt.Sprintf("ACCELEROMETER_MEASURE NAME=%s", name)
}

// Dwell pauses the printer.
func Dwell(d time.Duration) string {
	return fmt.Sprintf("G4 P%d", d.Milliseconds())
}

// Extrude pushes lengthMM of filament at feedRate mm/min in relative
// extruder mode. The trailing M400 drains the motion planner so the
// blocking script request does not return before the move is physically
// done.
func Extrude(lengthMM, feedRate float64) string {
	return join(
		"M83",
		fmt.Sprintf("G1 E%.1f F%.1f", lengthMM, feedRate),
		"M400",
	)
}

func join(lines ...string) string {
	return strings.Join(lines, "\n")
}
