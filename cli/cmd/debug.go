package cmd

import (
	"bufio"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/cli/render"
	"github.com/justapithecus/meshforge/iox"
)

// DebugCommand returns the debug command with subcommands.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools",
		Subcommands: []*cli.Command{
			{
				Name:      "ipc",
				Usage:     "Decode an ipc frame stream (mesh file or captured generator stdout)",
				ArgsUsage: "<file|->",
				Flags:     ReadOnlyFlags(),
				Action:    debugIPCAction,
			},
		},
	}
}

func debugIPCAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", exitFailure)
	}
	if c.NArg() < 1 {
		return cli.Exit("file required (use - for stdin)", exitFailure)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	source := c.Args().First()
	in, err := iox.OpenInput(source)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	defer iox.DiscardClose(in)

	dump := reader.DumpFrames(source, bufio.NewReader(in))
	if err := r.Render(dump); err != nil {
		return err
	}
	if dump.Error != "" {
		return cli.Exit("", exitFailure)
	}
	return nil
}
