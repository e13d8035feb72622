package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/cli/render"
	"github.com/justapithecus/meshforge/lod"
)

// parseRatios parses a comma-separated ratio list such as "1,0.5,0.25".
func parseRatios(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ratio %q", p)
		}
		out = append(out, v)
	}
	if err := lod.ValidateRatios(out); err != nil {
		return nil, err
	}
	return out, nil
}

// LODCommand returns the lod command.
func LODCommand() *cli.Command {
	flags := append(ConfigFlags(),
		&cli.StringFlag{
			Name:  "ratios",
			Usage: "Comma-separated LOD ratios, strictly decreasing, first 1.0 (default from config or 1,0.5,0.25)",
		},
		&cli.Float64Flag{
			Name:  "distance-k",
			Usage: "Switch distance scale",
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Write each level to <dir>/lod<N>.mesh",
		},
	)
	return &cli.Command{
		Name:      "lod",
		Usage:     "Build a level-of-detail chain for a mesh",
		ArgsUsage: "<mesh-file|primitive:...>",
		Flags:     append(flags, pipelineFlags()...),
		Action:    lodAction,
	}
}

func lodAction(c *cli.Context) error {
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

	ratios := cfg.Pipeline.LODRatios
	if c.IsSet("ratios") {
		if ratios, err = parseRatios(c.String("ratios")); err != nil {
			return cli.Exit(err.Error(), exitFailure)
		}
	}
	if ratios == nil {
		ratios = lod.DefaultRatios
	}
	k := cfg.Pipeline.DistanceK
	if c.IsSet("distance-k") {
		k = c.Float64("distance-k")
	}

	m, err := reader.LoadMesh(source)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	gen := lod.New(lod.Options{
		DistanceK:   k,
		Concurrency: cfg.Pipeline.LODConcurrency,
		Decimation:  decimationOptions(pipelineConfig(c, cfg)),
	})
	set, err := gen.GenerateContext(c.Context, m, ratios)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	out := &reader.LODResult{Source: source, Raw: set.Levels}
	for i, l := range set.Levels {
		out.Levels = append(out.Levels, reader.LODRow{
			Level:          i,
			Ratio:          l.Ratio,
			TargetFaces:    l.TargetFaces,
			Faces:          l.Faces,
			SwitchDistance: l.SwitchDistance,
			UsedClustering: l.UsedClustering,
		})
	}
	if dir := c.String("output-dir"); dir != "" {
		for i, l := range set.Levels {
			path := filepath.Join(dir, fmt.Sprintf("lod%d.mesh", i))
			if err := reader.SaveMesh(path, l.Mesh); err != nil {
				return cli.Exit(err.Error(), exitFailure)
			}
			out.Paths = append(out.Paths, path)
		}
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_lod", out)
	}
	return r.Render(out)
}
