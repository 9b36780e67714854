package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsundahl/max-vol-flow/pkg/moonraker"
)

func NewGCodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "gcode <command>...",
		Short:   "Run a raw G-code script on the printer",
		Long: `Run a raw G-code script on the printer.

Multiple arguments are joined with newlines, so quoting each command
separately sends a multi-line script:

  maxflow gcode "M83" "G1 E5 F300"`,
		GroupID: gAdvanced,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := moonraker.NewClient(cfg.Server(), cfg.ScriptTimeout())

			script := strings.Join(args, "\n")
			start := time.Now()
			if err := client.RunScript(script); err != nil {
				return fmt.Errorf("script failed: %w", err)
			}
			fmt.Printf("ok (%s)\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
