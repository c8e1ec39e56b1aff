package commands

import (
	"github.com/urfave/cli/v3"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "flowctl",
		Usage: "Run structured-concurrency flows from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a JSONC or YAML config file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.IntFlag{
				Name:  "max-workers",
				Usage: "Bound on concurrently running blocking tasks",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address",
			},
		},
		Commands: []*cli.Command{
			NewRaceCommand(),
			NewAllCommand(),
			NewCountdownCommand(),
			NewWaitSignalCommand(),
			NewCronCommand(),
		},
	}
}
