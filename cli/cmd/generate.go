package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/cli/render"
	"github.com/justapithecus/meshforge/cli/tui"
	"github.com/justapithecus/meshforge/generator"
	"github.com/justapithecus/meshforge/log"
	"github.com/justapithecus/meshforge/runtime"
)

const (
	pollInterval    = 50 * time.Millisecond
	shutdownTimeout = 30 * time.Second
)

// GenerateResult is one row of the generate payload.
type GenerateResult struct {
	JobID        string   `json:"job_id" yaml:"job_id"`
	Prompt       string   `json:"prompt" yaml:"prompt"`
	State        string   `json:"state" yaml:"state"`
	ErrorKind    string   `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error        string   `json:"error,omitempty" yaml:"error,omitempty"`
	Faces        int      `json:"faces" yaml:"faces"`
	QualityScore float64  `json:"quality_score" yaml:"quality_score"`
	Grade        string   `json:"grade,omitempty" yaml:"grade,omitempty"`
	LODs         int      `json:"lods" yaml:"lods"`
	Warnings     []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	DurationMs   int64    `json:"duration_ms" yaml:"duration_ms"`
	Outputs      []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// GenerateCommand returns the generate command: it runs the full pipeline
// for each prompt and waits for every job to finish.
func GenerateCommand() *cli.Command {
	flags := append(ConfigFlags(),
		&cli.IntFlag{Name: "workers", Usage: "Concurrent jobs (overrides config)"},
		&cli.IntFlag{Name: "steps", Usage: fmt.Sprintf("Generation steps [%d, %d]", generator.MinSteps, generator.MaxSteps)},
		&cli.Float64Flag{Name: "guidance", Usage: fmt.Sprintf("Guidance scale [%g, %g]", generator.MinGuidance, generator.MaxGuidance)},
		&cli.Int64Flag{Name: "seed", Usage: "Generation seed"},
		&cli.IntFlag{Name: "target", Aliases: []string{"t"}, Usage: "Decimation target face count (default from config or 2000)"},
		&cli.BoolFlag{Name: "no-postprocess", Usage: "Skip decimation"},
		&cli.BoolFlag{Name: "lods", Usage: "Generate a LOD chain"},
		&cli.StringFlag{Name: "lod-ratios", Usage: "Comma-separated LOD ratios (implies --lods)"},
		&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Write final meshes and LODs to this directory"},
	)
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate meshes from prompts through the full pipeline",
		ArgsUsage: "<prompt> [prompt...]",
		Flags:     append(flags, pipelineFlags()...),
		Action:    generateAction,
	}
}

func jobParams(c *cli.Context, prompt string) (runtime.Params, error) {
	p := runtime.DefaultParams(prompt)
	p.Generation.Steps = c.Int("steps")
	p.Generation.GuidanceScale = c.Float64("guidance")
	if c.IsSet("seed") {
		seed := c.Int64("seed")
		p.Generation.Seed = &seed
	}
	p.TargetFaces = c.Int("target")
	p.PostProcess = !c.Bool("no-postprocess")
	p.GenerateLODs = c.Bool("lods") || c.IsSet("lod-ratios")
	if c.IsSet("lod-ratios") {
		ratios, err := parseRatios(c.String("lod-ratios"))
		if err != nil {
			return p, err
		}
		p.LODRatios = ratios
	}
	return p, nil
}

func submit(ctx context.Context, c *cli.Context, orch *runtime.Orchestrator, prompt string) (string, error) {
	params, err := jobParams(c, prompt)
	if err != nil {
		return "", err
	}
	return orch.Submit(ctx, params)
}

func generateAction(c *cli.Context) error {
	prompts := c.Args().Slice()
	if len(prompts) == 0 {
		return cli.Exit("at least one prompt required", exitFailure)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	cfg.Pipeline = pipelineConfig(c, cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	useTUI := c.Bool("tui")
	logger := log.NewLogger("meshforge")
	if useTUI {
		// The watch view owns the terminal.
		logger = log.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	if err := s.orch.Start(ctx); err != nil {
		return err
	}
	shutdown := func() error {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.shutdown(sctx)
	}

	if cfg.Metrics.Listen != "" {
		srv, addr, err := s.serveMetrics(cfg.Metrics.Listen, cfg.Metrics.Namespace, logger)
		if err != nil {
			return errors.Join(cli.Exit(err.Error(), exitConfig), shutdown())
		}
		defer func() { _ = srv.Close() }()
		logger.Info("metrics listening", map[string]any{"addr": addr})
	}

	ids := make([]string, 0, len(prompts))
	for _, prompt := range prompts {
		id, err := submit(ctx, c, s.orch, prompt)
		if err != nil {
			return errors.Join(cli.Exit(fmt.Sprintf("submit %q: %v", prompt, err), exitFailure), shutdown())
		}
		ids = append(ids, id)
	}

	if useTUI {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = waitJobs(ctx, s.orch, ids)
		}()
		feed := tui.Feed{Statuses: func() []runtime.Status { return jobStatuses(s.orch, ids) }, Done: done}
		if err := r.RenderTUI("watch_jobs", feed); err != nil {
			return errors.Join(err, shutdown())
		}
	}
	if err := waitJobs(ctx, s.orch, ids); err != nil {
		logger.Warn("interrupted, cancelling jobs", map[string]any{"error": err.Error()})
		for _, id := range ids {
			_ = s.orch.Cancel(id)
		}
		_ = waitJobs(context.WithoutCancel(ctx), s.orch, ids)
	}

	results, err := collectResults(s.orch, ids, c.String("output-dir"))
	if err != nil {
		return errors.Join(cli.Exit(err.Error(), exitFailure), shutdown())
	}
	if err := shutdown(); err != nil {
		logger.Warn("shutdown", map[string]any{"error": err.Error()})
	}

	if err := r.Render(results); err != nil {
		return err
	}
	for _, res := range results {
		if res.State != string(runtime.StateCompleted) {
			return cli.Exit("", exitFailure)
		}
	}
	return nil
}

// waitJobs polls until every job in ids is terminal or ctx is done.
func waitJobs(ctx context.Context, orch *runtime.Orchestrator, ids []string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if allTerminal(orch, ids) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func allTerminal(orch *runtime.Orchestrator, ids []string) bool {
	for _, id := range ids {
		st, err := orch.Status(id)
		if err == nil && !st.State.Terminal() {
			return false
		}
	}
	return true
}

func jobStatuses(orch *runtime.Orchestrator, ids []string) []runtime.Status {
	out := make([]runtime.Status, 0, len(ids))
	for _, st := range orch.List() {
		if slices.Contains(ids, st.ID) {
			out = append(out, st)
		}
	}
	return out
}

// collectResults summarises each job and, when dir is set, writes completed
// meshes as <dir>/<job_id>.mesh and LOD levels as <dir>/<job_id>_lod<N>.mesh.
func collectResults(orch *runtime.Orchestrator, ids []string, dir string) ([]GenerateResult, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	results := make([]GenerateResult, 0, len(ids))
	for _, id := range ids {
		job, err := orch.Job(id)
		if err != nil {
			return nil, err
		}
		res := GenerateResult{
			JobID:      id,
			Prompt:     job.Params.Prompt,
			State:      string(job.State),
			ErrorKind:  string(job.ErrorKind),
			Error:      job.Error,
			Warnings:   job.Warnings,
			DurationMs: job.Duration().Milliseconds(),
		}
		if job.Summary != nil {
			res.Faces = job.Summary.Report.FaceCount
			res.QualityScore = job.Summary.Report.QualityScore
			res.Grade = string(job.Summary.Compatibility.Grade)
			res.LODs = len(job.Summary.LODs)
		}
		if dir != "" && job.State == runtime.StateCompleted {
			if res.Outputs, err = writeOutputs(orch, id, res.LODs, dir); err != nil {
				return nil, err
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func writeOutputs(orch *runtime.Orchestrator, id string, lods int, dir string) ([]string, error) {
	final, err := orch.Result(id, nil)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, id+".mesh")
	if err := reader.SaveMesh(path, final); err != nil {
		return nil, err
	}
	paths := []string{path}
	for i := 1; i < lods; i++ {
		m, err := orch.Result(id, &i)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_lod%d.mesh", id, i))
		if err := reader.SaveMesh(path, m); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
