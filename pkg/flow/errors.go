package flow

import "fmt"

// ConfigError means the requested test range can never produce a valid
// answer (bad bounds, or the extruder already clicks at the minimum rate).
// No search is attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid test configuration: " + e.Reason
}

// DeviceError is any fault surfaced by the printer: thermal, communication,
// mechanical, or a capture that stayed inconclusive after a retry. Device
// errors are always fatal; continuing to push filament through a faulting
// machine is not safe.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device fault during %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
