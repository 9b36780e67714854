package main

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestCalibrateRejectsColdTemperature(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "maxflow.json")

	for _, temp := range []string{"0", "-10", "80"} {
		cmd := NewCommand()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"calibrate", "--temp", temp})

		err := cmd.Execute()
		if err == nil {
			t.Fatalf("expected --temp %s to be rejected", temp)
		}
		if !strings.Contains(err.Error(), "temperature") {
			t.Fatalf("unexpected error for --temp %s: %v", temp, err)
		}
	}
}
