package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jsundahl/max-vol-flow/pkg/config"
	"github.com/jsundahl/max-vol-flow/pkg/moonraker"
	"github.com/jsundahl/max-vol-flow/pkg/version"
)

var (
	logLevel   = "info"
	configPath = defaultConfigPath()
	serverURL  = ""
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "maxflow.json"
	}
	return filepath.Join(home, ".config", "maxflow.json")
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.File, error) {
	cfg, err := config.NewFile(configPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.SetServer(serverURL)
	}
	return cfg, nil
}

func handleCmdError(err error) {
	if errors.Is(err, moonraker.ErrServerUnreachable) {
		fmt.Fprintln(os.Stderr, "\nError: cannot reach the Moonraker server")
		fmt.Fprintln(os.Stderr, "  - Is the printer on and Moonraker running?")
		fmt.Fprintln(os.Stderr, "  - Check the server URL with '--server' or in the config file")
	} else if errors.Is(err, moonraker.ErrKlippyNotReady) {
		fmt.Fprintln(os.Stderr, "\nError: Klipper is not ready")
		fmt.Fprintln(os.Stderr, "  - The firmware may still be starting, or it may be shut down after an error")
		fmt.Fprintln(os.Stderr, "  - Check the printer console and issue FIRMWARE_RESTART if needed")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maxflow",
		Short: "maxflow finds the maximum volumetric flow rate your extruder can sustain",
		Long: `maxflow finds the maximum volumetric flow rate your extruder can sustain
before the stepper starts skipping steps ("clicking"), using the printer's
accelerometer to detect the skips. The printer is driven over its Moonraker
API.

Load filament and make sure the accelerometer (e.g. an ADXL345 on the
toolhead) is configured in Klipper before running a calibration.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVarP(&serverURL, "server", "s", "", "Moonraker base URL (overrides the config file)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewCalibrateCommand(),
		NewStatusCommand(),
		NewGCodeCommand(),
		NewConfigCommand(),
		NewVersionCommand(),
	)

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}
