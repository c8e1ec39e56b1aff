package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NetPo4ki/go-flow/flow"
)

var signals = map[string]os.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  os.Interrupt,
	"TERM": syscall.SIGTERM,
}

func parseSignal(name string) (os.Signal, error) {
	key := strings.TrimPrefix(strings.ToUpper(name), "SIG")
	sig, ok := signals[key]
	if !ok {
		return nil, fmt.Errorf("unsupported signal %q", name)
	}
	return sig, nil
}

// NewWaitSignalCommand returns the wait-signal subcommand.
func NewWaitSignalCommand() *cli.Command {
	return &cli.Command{
		Name:  "wait-signal",
		Usage: "Block until the process receives a signal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "signal",
				Usage: "Signal to wait for (HUP, INT or TERM)",
				Value: "HUP",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long (0 waits forever)",
			},
			&cli.BoolFlag{
				Name:  "forever",
				Usage: "Keep counting signals until the timeout or an interrupt",
			},
		},
		Action: runWaitSignal,
	}
}

func runWaitSignal(ctx context.Context, cmd *cli.Command) error {
	sig, err := parseSignal(cmd.String("signal"))
	if err != nil {
		return err
	}
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	w := cmd.Root().Writer
	var hits atomic.Int64
	handler := flow.Coop(func(co *flow.Co) flow.Result {
		n := hits.Add(1)
		co.Logger().Info("signal received", "signal", sig.String(), "count", n)
		return co.Return(sig.String())
	}).Named("on " + sig.String())

	wait := flow.Coop(func(co *flow.Co) flow.Result {
		if cmd.Bool("forever") {
			return co.Done(co.OnSignalForever(sig, handler))
		}
		return co.Done(co.OnSignal(sig, handler))
	}).Named("wait-signal")

	root := wait
	if timeout := cmd.Duration("timeout"); timeout > 0 {
		root = flow.Coop(func(co *flow.Co) flow.Result {
			out, err := co.TillAny(wait, sleeper(timeout, nil))
			if err != nil {
				return co.Raise(err)
			}
			if out[0].Kind != flow.Value {
				return co.Return(nil)
			}
			return co.Done(out[0].Unwrap())
		}).Named("wait-signal with timeout")
	}

	v, err := rt.run(ctx, root)
	if err != nil {
		return fmt.Errorf("wait-signal: %w", err)
	}
	switch {
	case hits.Load() == 0:
		fmt.Fprintln(w, "no signal received")
	case v != nil:
		fmt.Fprintf(w, "received %v\n", v)
	default:
		fmt.Fprintf(w, "received %s %d times\n", sig, hits.Load())
	}
	return nil
}
