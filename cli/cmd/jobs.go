package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/meshforge/cli/reader"
	"github.com/justapithecus/meshforge/cli/render"
	"github.com/justapithecus/meshforge/lode"
)

// listWarningThreshold is the result count above which an unlimited list
// prints a hint on an interactive stderr.
const listWarningThreshold = 100

func storeFlags() []cli.Flag {
	return append(ConfigFlags(),
		&cli.StringFlag{
			Name:  "path",
			Usage: "Read records from this fs storage root instead of the configured storage",
		},
	)
}

// openReader opens the configured storage, or --path as an fs store.
func openReader(c *cli.Context) (*reader.Reader, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	sc := cfg.Storage
	if path := c.String("path"); path != "" {
		sc.Backend, sc.Path = "fs", path
	}
	if sc.Backend != "fs" && sc.Backend != "s3" {
		return nil, cli.Exit("jobs commands need fs or s3 storage (set storage in config or pass --path)", exitConfig)
	}
	store, _, err := buildStore(c.Context, sc)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitConfig)
	}
	return reader.New(store), nil
}

// JobsCommand returns the jobs command with subcommands over persisted records.
func JobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Query persisted job records and metrics",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List jobs, newest first",
				Flags: append(storeFlags(),
					&cli.StringFlag{Name: "state", Usage: "Only jobs in this state (completed, failed, cancelled)"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of jobs (0 = all)"},
				),
				Action: jobsListAction,
			},
			{
				Name:      "inspect",
				Usage:     "Show the latest record of one job",
				ArgsUsage: "<job-id>",
				Flags:     storeFlags(),
				Action:    jobsInspectAction,
			},
			{
				Name:   "stats",
				Usage:  "Aggregate persisted job records",
				Flags:  storeFlags(),
				Action: jobsStatsAction,
			},
			{
				Name:   "metrics",
				Usage:  "Show the latest persisted metrics snapshot",
				Flags:  storeFlags(),
				Action: jobsMetricsAction,
			},
		},
	}
}

func jobsListAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for jobs list command", exitFailure)
	}
	rd, err := openReader(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	limit := c.Int("limit")
	rows, err := rd.ListJobs(c.Context, c.String("state"), limit)
	if err != nil {
		return err
	}
	if len(rows) > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(rows))
	}
	return r.Render(rows)
}

func jobsInspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("job-id required", exitFailure)
	}
	rd, err := openReader(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rec, err := rd.InspectJob(c.Context, c.Args().First())
	if errors.Is(err, reader.ErrJobNotFound) {
		return cli.Exit(err.Error(), exitFailure)
	}
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("inspect_job", rec)
	}
	return r.Render(rec)
}

func jobsStatsAction(c *cli.Context) error {
	rd, err := openReader(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	stats, err := rd.Stats(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("stats_jobs", stats)
	}
	return r.Render(stats)
}

func jobsMetricsAction(c *cli.Context) error {
	rd, err := openReader(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	rec, err := rd.Metrics(c.Context)
	if errors.Is(err, lode.ErrNoMetricsFound) {
		return cli.Exit(err.Error(), exitFailure)
	}
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("stats_metrics", rec)
	}
	return r.Render(rec)
}
