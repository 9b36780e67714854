// Package printer adapts a Moonraker-connected Klipper printer to the
// flow.Device seam: every device operation becomes a blocking G-code script
// request, and capture windows are read back from the ADXL345 CSV files the
// firmware writes on the printer host.
package printer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jsundahl/max-vol-flow/pkg/accel"
	"github.com/jsundahl/max-vol-flow/pkg/config"
	"github.com/jsundahl/max-vol-flow/pkg/gcode"
	"github.com/jsundahl/max-vol-flow/pkg/moonraker"
)

// tempBand is how close the measured extruder temperature must be to the
// target after M109 returns to count as stable.
const tempBand = 2.0

// readyTimeout bounds the initial klippy readiness check.
const readyTimeout = 10 * time.Second

// capturePollInterval is how often the capture file is re-checked while
// waiting for the firmware to flush it.
const capturePollInterval = 250 * time.Millisecond

// Printer drives a Klipper printer through Moonraker. It implements
// flow.Device.
type Printer struct {
	client   *moonraker.Client
	listener *moonraker.Listener

	captureDir  string
	captureWait time.Duration
}

// Connect dials the printer, verifies Klipper is ready, and returns a
// session handle. The caller owns the session and must call Shutdown on
// every exit path.
func Connect(cfg config.Config) (*Printer, error) {
	client := moonraker.NewClient(cfg.Server(), cfg.ScriptTimeout())

	listener, err := moonraker.DialListener(cfg.Server())
	if err != nil {
		return nil, err
	}
	if err := listener.KlippyReady(readyTimeout); err != nil {
		_ = listener.Close()
		return nil, err
	}

	logrus.WithField("server", cfg.Server()).Info("connected to printer")

	return &Printer{
		client:      client,
		listener:    listener,
		captureDir:  cfg.CaptureDir(),
		captureWait: cfg.CaptureWait(),
	}, nil
}

// Shutdown leaves the printer in a safe state: heater off, steppers
// released. Best effort; it runs on every exit path including faults, so
// failures are logged rather than returned.
func (p *Printer) Shutdown() {
	if err := p.client.RunScript(gcode.HeaterOff()); err != nil {
		logrus.WithError(err).Error("failed to turn the heater off; check the printer")
	}
	if err := p.client.RunScript(gcode.MotorsOff()); err != nil {
		logrus.WithError(err).Warn("failed to release the steppers")
	}
	if err := p.listener.Close(); err != nil {
		logrus.WithError(err).Debug("failed to close the websocket")
	}
	logrus.Info("printer session closed")
}

// Responses exposes the async G-code response stream for display.
func (p *Printer) Responses() <-chan string {
	return p.listener.Responses()
}

func (p *Printer) Home() error {
	logrus.Debug("homing all axes")
	return p.client.RunScript(gcode.Home())
}

func (p *Printer) MoveTo(x, y float64) error {
	logrus.WithFields(logrus.Fields{"x": x, "y": y}).Debug("moving toolhead")
	return p.client.RunScript(gcode.Park(x, y))
}

func (p *Printer) PrepareTrial() error {
	return p.client.RunScript(gcode.PrepareTrial())
}

func (p *Printer) FinishTrial() error {
	return p.client.RunScript(gcode.FinishTrial())
}

// WaitTemperatureStable heats the extruder with M109, which blocks until
// Klipper considers the target reached, then double-checks the reading is
// actually inside the stability band.
func (p *Printer) WaitTemperatureStable(celsius float64) error {
	if err := p.client.RunScript(gcode.Heat(celsius)); err != nil {
		return err
	}

	ext, err := p.client.QueryExtruder()
	if err != nil {
		return err
	}
	if math.Abs(ext.Temperature-celsius) > tempBand {
		return pkgerrors.Errorf("extruder at %.1fC after heating, expected %.1fC +/- %.1fC",
			ext.Temperature, celsius, tempBand)
	}

	logrus.WithField("temperature", ext.Temperature).Info("extruder temperature stable")
	return nil
}

func (p *Printer) StartCapture(name string) error {
	return p.client.RunScript(gcode.Measure(name))
}

func (p *Printer) Dwell(d time.Duration) error {
	return p.client.RunScript(gcode.Dwell(d))
}

func (p *Printer) Extrude(lengthMM, feedRate float64) error {
	return p.client.RunScript(gcode.Extrude(lengthMM, feedRate))
}

// StopCapture toggles the measurement off and retrieves the capture file.
// The firmware flushes the CSV asynchronously, so the file is polled until
// its size stops changing. A file that never appears or settles within the
// capture wait is an inconclusive capture, not a hard fault: the trial gets
// one retry.
func (p *Printer) StopCapture(name string) (accel.Window, error) {
	if err := p.client.RunScript(gcode.Measure(name)); err != nil {
		return nil, err
	}

	path := filepath.Join(p.captureDir, fmt.Sprintf("adxl345-%s.csv", name))
	if err := p.waitForCapture(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: capture file %s unreadable: %v", accel.ErrInconclusive, path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Warnf("failed to close capture file %s", path)
		}
	}()

	window, err := accel.DecodeCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", accel.ErrInconclusive, err)
	}

	logrus.WithFields(logrus.Fields{
		"capture":    name,
		"samples":    len(window),
		"sampleRate": window.SampleRate(),
	}).Debug("capture retrieved")

	return window, nil
}

// waitForCapture waits until the capture file exists and its size is stable
// across two consecutive polls.
func (p *Printer) waitForCapture(path string) error {
	deadline := time.Now().Add(p.captureWait)
	lastSize := int64(-1)

	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if err == nil {
			if info.Size() > 0 && info.Size() == lastSize {
				return nil
			}
			lastSize = info.Size()
		}
		time.Sleep(capturePollInterval)
	}

	return fmt.Errorf("%w: capture file %s did not settle within %s",
		accel.ErrInconclusive, path, p.captureWait)
}
