package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func commandQuarantine() *cli.Command {
	return &cli.Command{
		Name:  "quarantine",
		Usage: "Inspect and manage quarantined files",
		Subcommands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "List quarantined files",
				Action: func(c *cli.Context) error {
					client, _, err := buildClient(c)
					if err != nil {
						return err
					}
					if !client.IsQuarantineActive() {
						return fmt.Errorf("no quarantine is configured, set quarantine-action and quarantine-dir")
					}

					files, err := client.ListQuarantineFiles()
					if err != nil {
						return err
					}
					if len(files) == 0 {
						fmt.Println("quarantine is empty")
						return nil
					}

					for _, f := range files {
						fmt.Printf("%s\n", f.QuarantineFileName)
						fmt.Printf("  original: %s\n", f.InfectedFile)
						fmt.Printf("  viruses:  %s\n", f.VirusListFormatted())
						fmt.Printf("  action:   %s\n", f.Action)
						fmt.Printf("  when:     %s\n", humanize.Time(f.QuarantinedAt))
					}
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "Remove a quarantined file, or all of them",
				ArgsUsage: "[<quarantine-file-name>]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Remove every quarantined file",
						Value: false,
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Remove without confirmation",
						Value:   false,
					},
				},
				Action: func(c *cli.Context) error {
					client, _, err := buildClient(c)
					if err != nil {
						return err
					}
					if !client.IsQuarantineActive() {
						return fmt.Errorf("no quarantine is configured, set quarantine-action and quarantine-dir")
					}

					if c.Bool("all") {
						if !c.Bool("force") {
							fmt.Print("Remove all quarantined files? (y/N): ")
							var response string
							fmt.Scanln(&response)
							if response != "y" && response != "Y" {
								fmt.Println("Removal aborted.")
								return nil
							}
						}
						return client.RemoveAllQuarantineFiles()
					}

					if c.NArg() != 1 {
						return fmt.Errorf("a quarantine file name or --all is required")
					}
					name := c.Args().First()

					files, err := client.ListQuarantineFiles()
					if err != nil {
						return err
					}
					for _, f := range files {
						if f.QuarantineFileName == name {
							return client.RemoveQuarantineFile(f)
						}
					}
					return fmt.Errorf("quarantine file %q not found", name)
				},
			},
		},
	}
}
