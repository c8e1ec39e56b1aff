package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/NetPo4ki/go-flow/flow"
	"github.com/NetPo4ki/go-flow/internal/config"
)

// NewCronCommand returns the cron subcommand.
func NewCronCommand() *cli.Command {
	return &cli.Command{
		Name:  "cron",
		Usage: "Run the configured cron jobs until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "spec",
				Usage: "Add a job with this five-field cron spec",
			},
			&cli.StringFlag{
				Name:  "message",
				Usage: "Message logged by the --spec job",
				Value: "tick",
			},
			&cli.DurationFlag{
				Name:  "work",
				Usage: "Blocking work simulated by the --spec job",
			},
		},
		Action: runCron,
	}
}

func cronJob(job config.JobConfig) flow.Task {
	activation := flow.Coop(func(co *flow.Co) flow.Result {
		co.Logger().Info("cron job fired", "job", job.Name, "message", job.Message)
		if d := job.Work.Duration(); d > 0 {
			if _, err := co.Run(flow.Sleep(d)); err != nil {
				return co.Raise(err)
			}
		}
		return co.Return(nil)
	}).Named(job.Name)

	return flow.Coop(func(co *flow.Co) flow.Result {
		return co.Done(co.OnCron(job.Cron, activation))
	}).Named("cron " + job.Name)
}

func runCron(ctx context.Context, cmd *cli.Command) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	jobs := rt.cfg.Jobs
	if spec := cmd.String("spec"); spec != "" {
		jobs = append(jobs, config.JobConfig{
			Name:    "cli",
			Cron:    spec,
			Message: cmd.String("message"),
			Work:    config.Duration(cmd.Duration("work")),
		})
	}
	if len(jobs) == 0 {
		return errors.New("no cron jobs: pass --spec or list jobs in the config")
	}

	tasks := make([]flow.Task, len(jobs))
	for i, job := range jobs {
		tasks[i] = cronJob(job)
		rt.log.Info("cron job scheduled", "job", job.Name, "spec", job.Cron)
	}
	_, err = rt.run(ctx, flow.Coop(func(co *flow.Co) flow.Result {
		// A job only returns when it fails; that stops every other job.
		out, err := co.TillAny(tasks...)
		if err != nil {
			return co.Raise(err)
		}
		for _, o := range out {
			if o.Kind == flow.Error {
				return co.Raise(o.Err)
			}
		}
		return co.Return(nil)
	}).Named("cron"))
	if err != nil {
		return fmt.Errorf("cron: %w", err)
	}
	return nil
}
