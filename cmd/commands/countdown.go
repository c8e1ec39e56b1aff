package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/NetPo4ki/go-flow/flow"
)

// NewCountdownCommand returns the countdown subcommand.
func NewCountdownCommand() *cli.Command {
	return &cli.Command{
		Name:      "countdown",
		Usage:     "Sum N..1 with a chain of tail calls that keeps a single flow",
		ArgsUsage: "N",
		Action:    runCountdown,
	}
}

func countdown(co *flow.Co) flow.Result {
	n, acc := co.Arg(0).(int), co.Arg(1).(int)
	co.Logger().Debug("countdown", "n", n, "acc", acc)
	if n <= 0 {
		return co.Return(acc)
	}
	return co.TailCall(flow.Coop(countdown, n-1, acc+n).Named("countdown"))
}

func runCountdown(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("countdown takes exactly one argument")
	}
	n, err := strconv.Atoi(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("parse N: %w", err)
	}
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	v, err := rt.run(ctx, flow.Coop(countdown, n, 0).Named("countdown"))
	if err != nil {
		return fmt.Errorf("countdown: %w", err)
	}
	if v == nil {
		return nil
	}
	fmt.Fprintf(cmd.Root().Writer, "sum\t%v\nflows\t%d\n", v, rt.sched.Stats().Spawned)
	return nil
}
