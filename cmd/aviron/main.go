package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "aviron",
		Usage: "Drive a remote clamd daemon and watch filestores in real time",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the configuration file",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "clamd server hostname",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "clamd server port",
			},
			&cli.StringFlag{
				Name:  "separator",
				Usage: "Path separator flavor the daemon expects (PLATFORM, LOCAL, UNIX, WINDOWS)",
			},
			&cli.IntFlag{
				Name:  "connect-timeout",
				Usage: "Connect timeout in milliseconds",
			},
			&cli.IntFlag{
				Name:  "read-timeout",
				Usage: "Read timeout in milliseconds",
			},
			&cli.StringFlag{
				Name:  "quarantine-action",
				Usage: "Action for infected files (NONE, COPY, MOVE, REMOVE)",
			},
			&cli.StringFlag{
				Name:  "quarantine-dir",
				Usage: "Directory receiving quarantined files",
			},
		},
	}

	app.Commands = append(
		app.Commands,
		commandPing(),
		commandDaemonVersion(),
		commandStats(),
		commandCommands(),
		commandReload(),
		commandShutdown(),
		commandScan(),
		commandWatch(),
		commandQuarantine(),
		commandCPULimit(),
		commandVersion(),
	)

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
