// workpool runs a batch of demo jobs on a fixed-size worker pool.
//
// Usage:
//
//	workpool run [--workers 4] [--jobs 5] [--scale 1s] [--config workpool.yaml]
//
// Job i sleeps for the i-th entry of 1, 2, 2, 2, 0 (cycled) times scale. Once
// every job has run the pool is shut down and the final stats are printed.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jirevwe/workpool"
	"github.com/jirevwe/workpool/config"
	"github.com/urfave/cli/v3"
)

var Version = "0.1.0-dev"

// demo durations in units of --scale
var durations = []time.Duration{1, 2, 2, 2, 0}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func createApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "workpool",
		Usage:   "run jobs on a fixed-size worker pool",
		Version: Version,
		Writer:  out,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "submit demo jobs and wait for them to finish",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "path to a YAML or JSON config file",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "number of workers, overrides the config file",
						Value:   4,
					},
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"n"},
						Usage:   "number of jobs to submit",
						Value:   5,
					},
					&cli.DurationFlag{
						Name:  "scale",
						Usage: "unit of the demo job durations",
						Value: time.Second,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Default()
					if path := cmd.String("config"); path != "" {
						loaded, err := config.Load(path)
						if err != nil {
							return err
						}
						cfg = loaded
					}

					if cmd.IsSet("workers") || cmd.String("config") == "" {
						cfg.Workers = int(cmd.Int("workers"))
					}

					return runDemo(ctx, cmd.Root().Writer, cfg, int(cmd.Int("jobs")), cmd.Duration("scale"))
				},
			},
		},
	}
}

func runDemo(ctx context.Context, out io.Writer, cfg *config.Config, jobs int, scale time.Duration) error {
	if jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", jobs)
	}

	s, err := workpool.NewServer(cfg)
	if err != nil {
		return err
	}

	for i := 0; i < jobs; i++ {
		n := i + 1
		d := durations[i%len(durations)] * scale

		err = s.Submit(func() {
			fmt.Fprintf(out, "job %d: started, sleeping %s\n", n, d)
			time.Sleep(d)
			fmt.Fprintf(out, "job %d: done\n", n)
		})
		if err != nil {
			_ = s.Close()
			return fmt.Errorf("failed to submit job %d: %w", n, err)
		}
	}

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()

	select {
	case err = <-closed:
	case <-ctx.Done():
		fmt.Fprintln(out, "interrupted, waiting for running jobs")
		err = <-closed
	}

	stats := s.Pool().Stats()
	fmt.Fprintf(out, "workers=%d submitted=%d completed=%d panicked=%d\n",
		stats.Size, stats.Submitted, stats.Completed, stats.Panicked)

	return err
}
