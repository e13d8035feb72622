package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/meshforge/cli/render"
	"github.com/justapithecus/meshforge/cli/tui"
	"github.com/justapithecus/meshforge/log"
	"github.com/justapithecus/meshforge/runtime"
	"github.com/justapithecus/meshforge/sweep"
)

// SweepCommand returns the sweep command: it generates a grid of trials
// that vary one parameter at a time and aggregates them per parameter.
func SweepCommand() *cli.Command {
	flags := append(ConfigFlags(),
		&cli.IntFlag{Name: "workers", Usage: "Concurrent trials (overrides config)"},
		&cli.StringFlag{Name: "axes", Usage: "Comma-separated axes: " + strings.Join(sweep.Axes, ", ") + " (default all)"},
		&cli.StringFlag{Name: "steps", Usage: "Comma-separated step counts for the steps axis (default 16,32,64,128)"},
		&cli.StringFlag{Name: "guidance", Usage: "Comma-separated guidance scales for the guidance axis (default 3,7.5,15,20)"},
		&cli.StringFlag{Name: "seeds", Usage: "Comma-separated seeds for the seed axis (default 42,123,456,789,1024)"},
		&cli.StringFlag{Name: "object", Usage: "Base object for the prompt axis (default last word of the prompt)"},
		&cli.BoolFlag{Name: "trials", Usage: "Table output lists every trial instead of the per-axis summary"},
	)
	return &cli.Command{
		Name:      "sweep",
		Usage:     "Measure how generation parameters affect mesh size, timing and quality",
		ArgsUsage: "<prompt>",
		Flags:     flags,
		Action:    sweepAction,
	}
}

func parseList[T any](s string, parse func(string) (T, error)) ([]T, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]T, 0, len(parts))
	for _, p := range parts {
		v, err := parse(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

func sweepPlan(c *cli.Context) (sweep.Plan, error) {
	p := sweep.Plan{Prompt: c.Args().First(), Object: c.String("object")}
	var err error
	if axes := c.String("axes"); axes != "" {
		for _, a := range strings.Split(axes, ",") {
			p.Axes = append(p.Axes, strings.TrimSpace(a))
		}
	}
	if p.Steps, err = parseList(c.String("steps"), strconv.Atoi); err != nil {
		return p, fmt.Errorf("--steps: %w", err)
	}
	parseFloat := func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	if p.Guidance, err = parseList(c.String("guidance"), parseFloat); err != nil {
		return p, fmt.Errorf("--guidance: %w", err)
	}
	parseSeed := func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
	if p.Seeds, err = parseList(c.String("seeds"), parseSeed); err != nil {
		return p, fmt.Errorf("--seeds: %w", err)
	}
	return p, nil
}

func sweepAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("prompt required", exitFailure)
	}
	plan, err := sweepPlan(c)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	trials, err := plan.Trials()
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
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

	logger.Info("sweep started", map[string]any{"trials": len(trials), "prompt": plan.Prompt})
	ids := make([]string, 0, len(trials))
	for _, t := range trials {
		id, err := s.orch.Submit(ctx, t.JobParams())
		if err != nil {
			return errors.Join(cli.Exit(fmt.Sprintf("submit %s: %v", t.ID, err), exitFailure), shutdown())
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
		logger.Warn("interrupted, cancelling trials", map[string]any{"error": err.Error()})
		for _, id := range ids {
			_ = s.orch.Cancel(id)
		}
		_ = waitJobs(context.WithoutCancel(ctx), s.orch, ids)
	}

	results := make([]sweep.TrialResult, 0, len(trials))
	for i, t := range trials {
		job, err := s.orch.Job(ids[i])
		if err != nil {
			return errors.Join(cli.Exit(err.Error(), exitFailure), shutdown())
		}
		results = append(results, sweep.Collect(t, job))
	}
	if err := shutdown(); err != nil {
		logger.Warn("shutdown", map[string]any{"error": err.Error()})
	}

	report := sweep.NewReport(results)
	var payload any = report
	if r.Format() == render.FormatTable {
		payload = report.Axes
		if c.Bool("trials") {
			payload = report.Trials
		}
	}
	if err := r.Render(payload); err != nil {
		return err
	}
	if report.Failed() == len(results) {
		return cli.Exit("", exitFailure)
	}
	return nil
}
