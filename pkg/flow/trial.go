package flow

import (
	"math"
	"time"
)

// TrialSpec is the motion plan for one test extrusion, derived from a
// candidate volumetric flow rate and the filament geometry.
type TrialSpec struct {
	// Rate is the candidate volumetric flow rate in mm^3/s.
	Rate float64
	// LengthMM is the filament length to extrude.
	LengthMM float64
	// FilamentDiameter is the filament diameter in mm.
	FilamentDiameter float64
}

// NewTrialSpec validates the inputs and builds a spec.
func NewTrialSpec(rate, lengthMM, filamentDiameter float64) (TrialSpec, error) {
	if rate <= 0 {
		return TrialSpec{}, &ConfigError{Reason: "flow rate must be positive"}
	}
	if lengthMM <= 0 {
		return TrialSpec{}, &ConfigError{Reason: "extrusion length must be positive"}
	}
	if filamentDiameter <= 0 {
		return TrialSpec{}, &ConfigError{Reason: "filament diameter must be positive"}
	}
	return TrialSpec{Rate: rate, LengthMM: lengthMM, FilamentDiameter: filamentDiameter}, nil
}

// CrossSection returns the filament cross-sectional area in mm^2.
func (t TrialSpec) CrossSection() float64 {
	return math.Pi * t.FilamentDiameter * t.FilamentDiameter / 4
}

// FeedRate converts the volumetric rate to the linear G-code feed rate in
// mm/min. Strictly increasing in Rate.
func (t TrialSpec) FeedRate() float64 {
	return t.Rate * 60 / t.CrossSection()
}

// Duration is how long the extrusion move takes.
func (t TrialSpec) Duration() time.Duration {
	linearSpeed := t.Rate / t.CrossSection() // mm/s
	return time.Duration(t.LengthMM / linearSpeed * float64(time.Second))
}
