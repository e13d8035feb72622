// Package cmd provides CLI commands for the meshforge binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Shared flags for commands that render a payload.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, lod, jobs, generate only)",
	}

	// ConfigFlag points at a meshforge.yaml. Without it ./meshforge.yaml is
	// used when present.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (default ./meshforge.yaml if present)",
		EnvVars: []string{"MESHFORGE_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared output flags. --tui is always present so
// commands without a view can reject it explicitly.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

// ConfigFlags returns ReadOnlyFlags plus --config.
func ConfigFlags() []cli.Flag {
	return append(ReadOnlyFlags(), ConfigFlag)
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
