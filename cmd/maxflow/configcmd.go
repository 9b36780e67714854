package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show or change saved settings",
		GroupID: gBasic,
	}
	cmd.AddCommand(
		NewConfigShowCommand(),
		NewConfigSetCommand(),
	)
	return cmd
}

func NewConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			bold := color.New(color.Bold)
			fmt.Printf("server:            %s\n", bold.Sprint(cfg.Server()))
			fmt.Printf("filament-diameter: %s mm\n", bold.Sprintf("%.2f", cfg.FilamentDiameter()))
			fmt.Printf("noise-margin:      %s\n", bold.Sprintf("%.1f", cfg.NoiseMargin()))
			fmt.Printf("settle-margin:     %s\n", bold.Sprint(cfg.SettleMargin()))
			fmt.Printf("tolerance:         %s mm3/s\n", bold.Sprintf("%.2f", cfg.Tolerance()))
			fmt.Printf("max-iterations:    %s\n", bold.Sprintf("%d", cfg.MaxIterations()))
			fmt.Printf("capture-dir:       %s\n", bold.Sprint(cfg.CaptureDir()))
			fmt.Printf("capture-wait:      %s\n", bold.Sprint(cfg.CaptureWait()))
			ox, oy := cfg.ParkOrigin()
			mx, my := cfg.ParkMax()
			fmt.Printf("park-grid:         %s\n",
				bold.Sprintf("(%.0f,%.0f) to (%.0f,%.0f) step %.0f", ox, oy, mx, my, cfg.ParkStep()))
			return nil
		},
	}
}

// configSetters maps settable keys to validated appliers. Keys not listed
// here can only be changed by editing the config file directly.
var configSetters = map[string]func(cfg settableConfig, val string) error{
	"server": func(cfg settableConfig, val string) error {
		if val == "" {
			return errors.New("server must not be empty")
		}
		cfg.SetServer(val)
		return nil
	},
	"filament-diameter": func(cfg settableConfig, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return errors.Errorf("invalid filament diameter %q, expected a positive number in mm", val)
		}
		cfg.SetFilamentDiameter(f)
		return nil
	},
	"noise-margin": func(cfg settableConfig, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return errors.Errorf("invalid noise margin %q, expected a positive number", val)
		}
		cfg.SetNoiseMargin(f)
		return nil
	},
	"settle-margin": func(cfg settableConfig, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return errors.Errorf("invalid settle margin %q, expected a positive duration like 1s", val)
		}
		cfg.SetSettleMargin(d)
		return nil
	},
}

type settableConfig interface {
	SetServer(string)
	SetFilamentDiameter(float64)
	SetNoiseMargin(float64)
	SetSettleMargin(time.Duration)
	Save() error
}

func NewConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting and save it",
		Long: `Change a setting and save it.

Settable keys: server, filament-diameter, noise-margin, settle-margin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			key, val := args[0], args[1]
			set, ok := configSetters[key]
			if !ok {
				return errors.Errorf("unknown key %q, settable keys are: server, filament-diameter, noise-margin, settle-margin", key)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := set(cfg, val); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return errors.Wrapf(err, "failed to save config")
			}
			fmt.Printf("%s = %s\n", key, val)
			return nil
		},
	}
}
