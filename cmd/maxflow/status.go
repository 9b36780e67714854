package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jsundahl/max-vol-flow/pkg/moonraker"
)

// statusTimeout bounds the quick queries the status command makes; none of
// them run G-code, so they should answer fast.
const statusTimeout = 10 * time.Second

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show printer state and extruder temperature",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := moonraker.NewClient(cfg.Server(), statusTimeout)

			info, err := client.Info()
			if err != nil {
				return fmt.Errorf("failed to get server info: %w", err)
			}

			stateColor := color.New(color.FgRed)
			if info.KlippyState == "ready" {
				stateColor = color.New(color.FgGreen)
			}
			fmt.Printf("Klipper: %s\n", stateColor.Sprint(info.KlippyState))

			if !info.KlippyConnected {
				return nil
			}

			ext, err := client.QueryExtruder()
			if err != nil {
				return fmt.Errorf("failed to query extruder: %w", err)
			}
			fmt.Printf("Extruder: %.1fC (target %.1fC)\n", ext.Temperature, ext.Target)

			tool, err := client.QueryToolhead()
			if err != nil {
				return fmt.Errorf("failed to query toolhead: %w", err)
			}
			if tool.HomedAxes == "" {
				fmt.Println("Homed axes: none")
			} else {
				fmt.Printf("Homed axes: %s\n", tool.HomedAxes)
			}
			if len(tool.Position) >= 3 {
				fmt.Printf("Position: X%.1f Y%.1f Z%.1f\n", tool.Position[0], tool.Position[1], tool.Position[2])
			}

			return nil
		},
	}
}
