package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var defaultFileConfig = &RawFileConfig{
	Server:               ptr("http://localhost:7125"),
	FilamentDiameter:     ptr(1.75),
	NoiseMargin:          ptr(10.0),
	SettleMarginSeconds:  ptr(1.0),
	Tolerance:            ptr(1.0),
	MaxIterations:        ptr(20),
	CaptureDir:           ptr("/tmp"),
	CaptureWaitSeconds:   ptr(30.0),
	ScriptTimeoutSeconds: ptr(600.0),
	ParkOriginX:          ptr(20.0),
	ParkOriginY:          ptr(20.0),
	ParkMaxX:             ptr(200.0),
	ParkMaxY:             ptr(200.0),
	ParkStep:             ptr(10.0),
}

var _ Config = &File{}

// File is a Config backed by a JSON file. Unset fields fall back to the
// defaults, so an empty or missing file is a valid configuration.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the on-disk representation. Pointer fields distinguish
// "unset, use the default" from an explicit zero.
type RawFileConfig struct {
	Server               *string  `json:"server,omitempty"`
	FilamentDiameter     *float64 `json:"filamentDiameter,omitempty"`
	NoiseMargin          *float64 `json:"noiseMargin,omitempty"`
	SettleMarginSeconds  *float64 `json:"settleMarginSeconds,omitempty"`
	Tolerance            *float64 `json:"tolerance,omitempty"`
	MaxIterations        *int     `json:"maxIterations,omitempty"`
	CaptureDir           *string  `json:"captureDir,omitempty"`
	CaptureWaitSeconds   *float64 `json:"captureWaitSeconds,omitempty"`
	ScriptTimeoutSeconds *float64 `json:"scriptTimeoutSeconds,omitempty"`
	ParkOriginX          *float64 `json:"parkOriginX,omitempty"`
	ParkOriginY          *float64 `json:"parkOriginY,omitempty"`
	ParkMaxX             *float64 `json:"parkMaxX,omitempty"`
	ParkMaxY             *float64 `json:"parkMaxY,omitempty"`
	ParkStep             *float64 `json:"parkStep,omitempty"`
}

func (f *File) Server() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.Server, defaultFileConfig.Server)
}

func (f *File) FilamentDiameter() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.FilamentDiameter, defaultFileConfig.FilamentDiameter)
}

func (f *File) NoiseMargin() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.NoiseMargin, defaultFileConfig.NoiseMargin)
}

func (f *File) SettleMargin() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return seconds(orDefault(f.c.SettleMarginSeconds, defaultFileConfig.SettleMarginSeconds))
}

func (f *File) Tolerance() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.Tolerance, defaultFileConfig.Tolerance)
}

func (f *File) MaxIterations() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.MaxIterations, defaultFileConfig.MaxIterations)
}

func (f *File) CaptureDir() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.CaptureDir, defaultFileConfig.CaptureDir)
}

func (f *File) CaptureWait() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return seconds(orDefault(f.c.CaptureWaitSeconds, defaultFileConfig.CaptureWaitSeconds))
}

func (f *File) ScriptTimeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return seconds(orDefault(f.c.ScriptTimeoutSeconds, defaultFileConfig.ScriptTimeoutSeconds))
}

func (f *File) ParkOrigin() (float64, float64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.ParkOriginX, defaultFileConfig.ParkOriginX),
		orDefault(f.c.ParkOriginY, defaultFileConfig.ParkOriginY)
}

func (f *File) ParkMax() (float64, float64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.ParkMaxX, defaultFileConfig.ParkMaxX),
		orDefault(f.c.ParkMaxY, defaultFileConfig.ParkMaxY)
}

func (f *File) ParkStep() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return orDefault(f.c.ParkStep, defaultFileConfig.ParkStep)
}

func (f *File) SetServer(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Server = &s
}

func (f *File) SetFilamentDiameter(d float64) {
	if d <= 0 {
		panic("filament diameter must be positive")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.FilamentDiameter = &d
}

func (f *File) SetNoiseMargin(m float64) {
	if m <= 0 {
		panic("noise margin must be positive")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.NoiseMargin = &m
}

func (f *File) SetSettleMargin(d time.Duration) {
	if d <= 0 {
		panic("settle margin must be positive")
	}

	s := d.Seconds()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SettleMarginSeconds = &s
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// An empty file is also the empty config.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"server":           f.Server(),
		"filamentDiameter": f.FilamentDiameter(),
		"noiseMargin":      f.NoiseMargin(),
		"settleMargin":     f.SettleMargin(),
		"tolerance":        f.Tolerance(),
		"maxIterations":    f.MaxIterations(),
		"captureDir":       f.CaptureDir(),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func orDefault[T any](v, def *T) T {
	if v != nil {
		return *v
	}
	return *def
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
