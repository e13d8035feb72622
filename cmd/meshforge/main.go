// Package main provides the meshforge CLI entrypoint.
//
// Usage:
//
//	meshforge <command> [subcommand] [options]
//
// Exit codes:
//   - 0: success
//   - 1: a job failed, or invalid arguments or input
//   - 2: invalid configuration or storage setup
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/meshforge/cli/cmd"
	"github.com/justapithecus/meshforge/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func newApp() *cli.App {
	return &cli.App{
		Name:           "meshforge",
		Usage:          "Generate, optimize and inspect game-ready meshes",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.GenerateCommand(),
			cmd.InspectCommand(),
			cmd.DecimateCommand(),
			cmd.LODCommand(),
			cmd.SweepCommand(),
			cmd.JobsCommand(),
			cmd.DebugCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportError(os.Stderr, err))
}

// reportError prints err to w and returns the process exit code for it.
func reportError(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N) carries no message worth printing.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
