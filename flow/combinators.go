package flow

import (
	"context"
	"maps"
	"os"
	"os/signal"
	"time"

	cron "github.com/netresearch/go-cron"
)

// Sleep returns a blocking task that waits for d, or until the flow is torn
// down.
func Sleep(d time.Duration) Task {
	return Blocking(func(ctx context.Context, _ ...any) (any, error) {
		return nil, sleep(ctx, d)
	}).Named("sleep " + d.String())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-tm.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func till(pred func([]Outcome) bool, tasks []Task) Func {
	return func(co *Co) Result {
		if len(tasks) == 0 {
			return co.Return([]Outcome{})
		}
		ids := make([]ID, 0, len(tasks))
		for _, t := range tasks {
			id, err := co.Spawn(t)
			if err != nil {
				return co.Raise(err)
			}
			ids = append(ids, id)
		}
		seen := make(map[ID]Outcome, len(ids))
		snapshot := func() []Outcome {
			out := make([]Outcome, len(ids))
			for i, id := range ids {
				out[i] = seen[id] // zero Outcome is Spawned
			}
			return out
		}
		for !pred(snapshot()) {
			res, err := co.GetResults()
			if err != nil {
				return co.Raise(err)
			}
			maps.Copy(seen, res)
		}
		res, err := co.CancelRemaining()
		if err != nil {
			return co.Raise(err)
		}
		maps.Copy(seen, res)
		return co.Return(snapshot())
	}
}

func onTimeout(delay time.Duration, t Task) Func {
	return func(co *Co) Result {
		if _, err := co.Run(Sleep(delay)); err != nil {
			return co.Raise(err)
		}
		return co.Done(co.Run(t))
	}
}

func onInterval(period time.Duration, t Task) Func {
	return func(co *Co) Result {
		for {
			if _, err := co.Run(Sleep(period)); err != nil {
				return co.Raise(err)
			}
			if _, err := co.Run(t); err != nil {
				return co.Raise(err)
			}
		}
	}
}

// waitSignal captures sig only while waiting; signal.Stop hands the signal
// back to whatever disposition it had before.
func waitSignal(sig os.Signal) Task {
	return Blocking(func(ctx context.Context, _ ...any) (any, error) {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, sig)
		defer signal.Stop(ch)
		select {
		case s := <-ch:
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}).Named("wait " + sig.String())
}

func onSignal(sig os.Signal, t Task, forever bool) Func {
	return func(co *Co) Result {
		for {
			if _, err := co.Run(waitSignal(sig)); err != nil {
				return co.Raise(err)
			}
			v, err := co.Run(t)
			if err != nil || !forever {
				return co.Done(v, err)
			}
		}
	}
}

func onCron(sched cron.Schedule, t Task) Func {
	return func(co *Co) Result {
		for {
			next := sched.Next(time.Now())
			if _, err := co.Run(Sleep(time.Until(next))); err != nil {
				return co.Raise(err)
			}
			if _, err := co.Run(t); err != nil {
				return co.Raise(err)
			}
		}
	}
}
