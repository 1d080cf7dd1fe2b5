package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
)

func commandPing() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the daemon answers PING with PONG",
		Action: func(c *cli.Context) error {
			client, _, err := buildClient(c)
			if err != nil {
				return err
			}

			ok, err := client.Ping()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("daemon did not answer with PONG")
			}
			fmt.Println("PONG")
			return nil
		},
	}
}

func commandDaemonVersion() *cli.Command {
	return &cli.Command{
		Name:  "daemon-version",
		Usage: "Print the daemon's version string",
		Action: func(c *cli.Context) error {
			client, _, err := buildClient(c)
			if err != nil {
				return err
			}

			version, err := client.Version()
			if err != nil {
				return err
			}
			fmt.Println(version)
			return nil
		},
	}
}

func commandStats() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print the daemon's scan queue and memory statistics",
		Action: func(c *cli.Context) error {
			client, _, err := buildClient(c)
			if err != nil {
				return err
			}

			stats, err := client.Stats()
			if err != nil {
				return err
			}
			fmt.Println(stats)
			return nil
		},
	}
}

func commandCommands() *cli.Command {
	return &cli.Command{
		Name:  "commands",
		Usage: "List the commands the daemon advertises",
		Action: func(c *cli.Context) error {
			client, _, err := buildClient(c)
			if err != nil {
				return err
			}

			cmds, err := client.AvailableCommands()
			if err != nil {
				return err
			}
			sort.Strings(cmds)
			for _, cmd := range cmds {
				fmt.Println(cmd)
			}
			return nil
		},
	}
}

func commandReload() *cli.Command {
	return &cli.Command{
		Name:  "reload",
		Usage: "Make the daemon reload its virus databases",
		Action: func(c *cli.Context) error {
			client, _, err := buildClient(c)
			if err != nil {
				return err
			}
			return client.Reload()
		},
	}
}

func commandShutdown() *cli.Command {
	return &cli.Command{
		Name:  "shutdown",
		Usage: "Shut the daemon down",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Shut down without confirmation",
				Value:   false,
			},
		},
		Action: func(c *cli.Context) error {
			client, cfg, err := buildClient(c)
			if err != nil {
				return err
			}

			if !c.Bool("force") {
				fmt.Printf("Warning: This will shut down the daemon at %s:%d\n",
					cfg.Server.Hostname, cfg.Server.Port)
				fmt.Print("Are you sure you want to continue? (y/N): ")
				var response string
				fmt.Scanln(&response)
				if response != "y" && response != "Y" {
					fmt.Println("Shutdown aborted.")
					return nil
				}
			}

			return client.ShutdownServer()
		},
	}
}
