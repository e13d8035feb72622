package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/meshforge/cli/config"
	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/cli/render"
)

// Exit codes.
const (
	exitFailure = 1
	exitConfig  = 2
)

// loadConfig reads --config, or ./meshforge.yaml when present.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfig)
	}
	return cfg, nil
}

// loadSource loads the mesh named by the first argument.
func loadSource(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", cli.Exit("mesh source required (file path or primitive:<cube|sphere|grid>)", exitFailure)
	}
	return c.Args().First(), nil
}

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Report topology, quality and engine compatibility of a mesh",
		ArgsUsage: "<mesh-file|primitive:...>",
		Flags:     ConfigFlags(),
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	source, err := loadSource(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	m, err := reader.LoadMesh(source)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	ins, err := reader.Inspect(source, m, cfg.EngineLimits()...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid mesh: %v", err), exitFailure)
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_mesh", ins)
	}
	return r.Render(ins)
}
