package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/avironsec/aviron/internal/shell"
)

func commandCPULimit() *cli.Command {
	return &cli.Command{
		Name:  "cpulimit",
		Usage: "Cap the CPU usage of a local clamd process",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "percent",
				Aliases: []string{"l"},
				Usage:   "CPU percentage the daemon may use",
				Value:   50,
			},
			&cli.StringFlag{
				Name:  "process",
				Usage: "Process name to limit",
				Value: "clamd",
			},
			&cli.StringFlag{
				Name:  "program",
				Usage: "Path to the cpulimit binary",
			},
		},
		Action: func(c *cli.Context) error {
			limiter, err := shell.NewCPULimiter(c.String("program"), c.Int("percent"))
			if err != nil {
				return err
			}

			pids, err := limiter.LimitProcessName(c.Context, c.String("process"))
			if err != nil {
				return err
			}
			fmt.Printf("limiting %v to %d%% CPU, press Ctrl-C to release\n", pids, c.Int("percent"))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			limiter.Stop()
			return nil
		},
	}
}
