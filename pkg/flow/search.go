package flow

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jsundahl/max-vol-flow/pkg/accel"
)

// Phase is a step of the search state machine.
type Phase string

const (
	PhaseInit         Phase = "Init"
	PhasePrecheckLow  Phase = "PrecheckLow"
	PhasePrecheckHigh Phase = "PrecheckHigh"
	PhaseSearching    Phase = "Searching"
	PhaseConverged    Phase = "Converged"
	PhaseCapped       Phase = "Capped"
	PhaseError        Phase = "Error"
)

// Trialer runs one trial at a candidate rate. Runner implements it; tests
// substitute fakes.
type Trialer interface {
	RunTrial(rate float64) (accel.Verdict, error)
}

// State is the live search state, owned exclusively by the Searcher. Low is
// always the highest rate known (or assumed) clean, High the lowest known
// (or assumed) clicked.
type State struct {
	Phase       Phase
	Low         float64
	High        float64
	Iterations  int
	LastVerdict accel.Verdict
}

// Result is the outcome of a completed search.
type Result struct {
	// MaxFlow is the highest flow rate that extruded cleanly, in mm^3/s.
	MaxFlow float64
	// Tolerance the search converged to.
	Tolerance float64
	// Iterations is the number of bisection steps, prechecks excluded.
	Iterations int
	// Capped means the trial at the upper bound was already clean: the
	// true maximum may exceed the tested range and MaxFlow is only a
	// lower-bound estimate.
	Capped bool
	// CapReached means the iteration cap tripped before the interval
	// narrowed to Tolerance. MaxFlow is still the highest clean rate
	// found, but at a coarser resolution (Resolution) than requested.
	CapReached bool
	// Resolution is the final width of the search interval. Equal to or
	// below Tolerance unless CapReached is set.
	Resolution float64
	// Elapsed is the wall-clock duration of the whole search.
	Elapsed time.Duration
}

// Searcher bisects the flow-rate axis between configured bounds. Each probe
// is a physical extrusion, so the trial count matters: a search over
// (max-min)/tolerance candidates takes ceil(log2((max-min)/tolerance))
// trials plus the two boundary prechecks.
type Searcher struct {
	trials        Trialer
	minFlow       float64
	maxFlow       float64
	tolerance     float64
	maxIterations int

	state State
}

// NewSearcher builds a searcher over the given trial runner.
func NewSearcher(trials Trialer, minFlow, maxFlow, tolerance float64, maxIterations int) *Searcher {
	return &Searcher{
		trials:        trials,
		minFlow:       minFlow,
		maxFlow:       maxFlow,
		tolerance:     tolerance,
		maxIterations: maxIterations,
		state:         State{Phase: PhaseInit},
	}
}

// State returns a copy of the current search state.
func (s *Searcher) State() State {
	return s.state
}

// Run executes the whole search: validation, boundary prechecks, bisection.
// It is fully deterministic given deterministic trial outcomes.
func (s *Searcher) Run() (*Result, error) {
	start := time.Now()

	if err := s.validate(); err != nil {
		s.state.Phase = PhaseError
		return nil, err
	}
	s.state.Low = s.minFlow
	s.state.High = s.maxFlow

	// The lower bound must extrude cleanly, otherwise the whole range is
	// unusable and bisection would converge onto garbage.
	s.state.Phase = PhasePrecheckLow
	verdict, err := s.runTrial(s.minFlow)
	if err != nil {
		return nil, err
	}
	if verdict == accel.VerdictClicked {
		s.state.Phase = PhaseError
		return nil, &ConfigError{
			Reason: fmt.Sprintf("extruder clicks at the minimum flow rate %.4g mm3/s; lower --min-flow or raise the temperature", s.minFlow),
		}
	}

	// If the upper bound is clean there is nothing to bisect: the true
	// maximum may lie beyond the tested range.
	s.state.Phase = PhasePrecheckHigh
	verdict, err = s.runTrial(s.maxFlow)
	if err != nil {
		return nil, err
	}
	if verdict == accel.VerdictClean {
		s.state.Phase = PhaseCapped
		logrus.WithField("maxFlow", s.maxFlow).Warn("no click up to the maximum tested rate; result is a lower-bound estimate")
		return &Result{
			MaxFlow:   s.maxFlow,
			Tolerance: s.tolerance,
			Capped:    true,
			Elapsed:   time.Since(start),
		}, nil
	}

	s.state.Phase = PhaseSearching
	capReached := false
	for s.state.High-s.state.Low > s.tolerance {
		if s.state.Iterations >= s.maxIterations {
			// Backstop against floating-point or device-noise stalls.
			logrus.WithFields(logrus.Fields{
				"iterations": s.state.Iterations,
				"low":        s.state.Low,
				"high":       s.state.High,
			}).Warn("iteration cap reached before convergence")
			capReached = true
			break
		}

		mid := (s.state.Low + s.state.High) / 2
		logrus.WithFields(logrus.Fields{
			"iteration": s.state.Iterations + 1,
			"low":       s.state.Low,
			"high":      s.state.High,
			"mid":       mid,
		}).Info("probing flow rate")

		verdict, err := s.runTrial(mid)
		if err != nil {
			return nil, err
		}

		if verdict == accel.VerdictClean {
			s.state.Low = mid
		} else {
			s.state.High = mid
		}
		s.state.Iterations++
	}

	s.state.Phase = PhaseConverged
	return &Result{
		MaxFlow:    s.state.Low,
		Tolerance:  s.tolerance,
		Iterations: s.state.Iterations,
		CapReached: capReached,
		Resolution: s.state.High - s.state.Low,
		Elapsed:    time.Since(start),
	}, nil
}

func (s *Searcher) validate() error {
	if s.minFlow <= 0 {
		return &ConfigError{Reason: "minimum flow rate must be positive"}
	}
	if s.minFlow >= s.maxFlow {
		return &ConfigError{Reason: fmt.Sprintf("minimum flow rate %.4g must be below maximum %.4g", s.minFlow, s.maxFlow)}
	}
	if s.tolerance <= 0 {
		return &ConfigError{Reason: "tolerance must be positive"}
	}
	if s.maxIterations <= 0 {
		return &ConfigError{Reason: "iteration cap must be positive"}
	}
	return nil
}

func (s *Searcher) runTrial(rate float64) (accel.Verdict, error) {
	verdict, err := s.trials.RunTrial(rate)
	if err != nil {
		s.state.Phase = PhaseError
		return "", err
	}
	s.state.LastVerdict = verdict
	return verdict, nil
}
