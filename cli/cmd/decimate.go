package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/meshforge/cli/config"
	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/cli/render"
	"github.com/justapithecus/meshforge/decimate"
	"github.com/justapithecus/meshforge/stats"
)

// pipelineFlags override the pipeline section of the config.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:  "max-flip-angle",
			Usage: "Largest allowed normal rotation per collapse, in degrees",
		},
		&cli.IntFlag{
			Name:  "stall-limit",
			Usage: "Consecutive rejected collapses before vertex clustering takes over",
		},
	}
}

// pipelineConfig returns cfg.Pipeline with any pipeline flags set on c applied.
func pipelineConfig(c *cli.Context, cfg *config.Config) config.PipelineConfig {
	p := cfg.Pipeline
	if c.IsSet("max-flip-angle") {
		p.MaxFlipAngle = c.Float64("max-flip-angle")
	}
	if c.IsSet("stall-limit") {
		p.StallLimit = c.Int("stall-limit")
	}
	return p
}

func decimationOptions(p config.PipelineConfig) decimate.Options {
	opts := decimate.Options{
		MaxFlipAngle: p.MaxFlipAngleRadians(),
		StallLimit:   p.StallLimit,
	}
	if p.TargetPolicy == "pass_through" {
		opts.TargetPolicy = decimate.TargetPassThrough
	}
	return opts
}

// DecimateCommand returns the decimate command.
func DecimateCommand() *cli.Command {
	flags := append(ConfigFlags(),
		&cli.IntFlag{
			Name:     "target",
			Aliases:  []string{"t"},
			Usage:    "Target face count",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the decimated mesh to this file",
		},
		&cli.BoolFlag{
			Name:  "pass-through",
			Usage: "Return the mesh unchanged when the target is not below its face count",
		},
	)
	return &cli.Command{
		Name:      "decimate",
		Usage:     "Reduce a mesh to a target face count",
		ArgsUsage: "<mesh-file|primitive:...>",
		Flags:     append(flags, pipelineFlags()...),
		Action:    decimateAction,
	}
}

func decimateAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for decimate command", exitFailure)
	}
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

	opts := decimationOptions(pipelineConfig(c, cfg))
	if c.Bool("pass-through") {
		opts.TargetPolicy = decimate.TargetPassThrough
	}

	start := time.Now()
	res, err := decimate.New(opts).Run(m, c.Int("target"))
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	elapsed := time.Since(start)

	out := &reader.DecimationResult{
		Source:         source,
		InputFaces:     res.InputFaces,
		OutputFaces:    res.Mesh.FaceCount(),
		Target:         res.Target,
		ReachedTarget:  res.ReachedTarget(),
		Collapses:      res.Collapses,
		Rejections:     res.Rejections,
		UsedClustering: res.UsedClustering,
		PassThrough:    res.PassThrough,
		QualityScore:   stats.Analyze(res.Mesh).QualityScore,
		DurationMs:     elapsed.Milliseconds(),
	}
	if path := c.String("output"); path != "" {
		if err := reader.SaveMesh(path, res.Mesh); err != nil {
			return cli.Exit(err.Error(), exitFailure)
		}
		out.Output = path
	}
	return r.Render(out)
}
