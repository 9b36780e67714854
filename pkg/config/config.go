package config

import "time"

// Config is the source of the calibration tunables. The click-detection
// constants are empirically tuned, so they live here with documented
// defaults instead of being buried as literals.
type Config interface {
	// Server is the Moonraker base URL.
	Server() string
	// FilamentDiameter is the filament diameter in mm.
	FilamentDiameter() float64
	// NoiseMargin is the click-detection z-score threshold.
	NoiseMargin() float64
	// SettleMargin is the quiet dwell before and after each extrusion.
	SettleMargin() time.Duration
	// Tolerance is the default search resolution in mm^3/s.
	Tolerance() float64
	// MaxIterations caps the bisection as a backstop against stalls.
	MaxIterations() int
	// CaptureDir is where the printer host writes capture CSVs.
	CaptureDir() string
	// CaptureWait bounds the wait for a capture file to appear and settle.
	CaptureWait() time.Duration
	// ScriptTimeout bounds a single blocking G-code script request.
	ScriptTimeout() time.Duration
	// ParkOrigin, ParkMax and ParkStep define the grid of test positions
	// walked across the bed, one position per trial.
	ParkOrigin() (x, y float64)
	ParkMax() (x, y float64)
	ParkStep() float64

	SetServer(string)
	SetFilamentDiameter(float64)
	SetNoiseMargin(float64)
	SetSettleMargin(time.Duration)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
