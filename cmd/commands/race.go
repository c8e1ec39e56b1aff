package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/NetPo4ki/go-flow/flow"
)

// NewRaceCommand returns the race subcommand.
func NewRaceCommand() *cli.Command {
	return &cli.Command{
		Name:      "race",
		Usage:     "Sleep for every duration at once and keep the first to finish",
		ArgsUsage: "DURATION...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runCombinator(ctx, cmd, "race", func(co *flow.Co, tasks []flow.Task) ([]flow.Outcome, error) {
				return co.TillAny(tasks...)
			})
		},
	}
}

// NewAllCommand returns the all subcommand.
func NewAllCommand() *cli.Command {
	return &cli.Command{
		Name:      "all",
		Usage:     "Sleep for every duration at once and wait for all of them",
		ArgsUsage: "DURATION...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runCombinator(ctx, cmd, "all", func(co *flow.Co, tasks []flow.Task) ([]flow.Outcome, error) {
				return co.TillAll(tasks...)
			})
		},
	}
}

func runCombinator(ctx context.Context, cmd *cli.Command, name string, till func(*flow.Co, []flow.Task) ([]flow.Outcome, error)) error {
	ds, err := parseDurations(cmd)
	if err != nil {
		return err
	}
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	tasks := make([]flow.Task, len(ds))
	for i, d := range ds {
		tasks[i] = sleeper(d, d.String())
	}
	start := time.Now()
	v, err := rt.run(ctx, flow.Coop(func(co *flow.Co) flow.Result {
		return co.Done(till(co, tasks))
	}).Named(name))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out, _ := v.([]flow.Outcome)
	w := cmd.Root().Writer
	for i, o := range out {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, ds[i], o)
	}
	if out != nil {
		fmt.Fprintf(w, "elapsed\t%s\n", time.Since(start).Round(time.Millisecond))
	}
	return nil
}
