package moonraker

import (
	"errors"
	"fmt"
)

var (
	// ErrServerUnreachable is returned when the Moonraker server cannot be
	// reached at all.
	ErrServerUnreachable = errors.New("moonraker server unreachable")

	// ErrKlippyNotReady is returned when Moonraker is up but Klipper is not
	// in the ready state (starting up, shut down, or in an error state).
	ErrKlippyNotReady = errors.New("klippy not ready")
)

// GCodeError is returned when a G-code script is rejected or fails while
// executing. The script is included so the failing command is visible in
// the log.
type GCodeError struct {
	Script     string
	StatusCode int
	Response   string
}

func (e *GCodeError) Error() string {
	return fmt.Sprintf("g-code script failed with status %d: %s (script: %q)",
		e.StatusCode, e.Response, e.Script)
}
