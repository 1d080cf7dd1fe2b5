package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/avironsec/aviron"
)

func commandScan() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Scan a file or directory on the daemon host",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "cont",
				Usage: "Keep scanning after the first hit (CONTSCAN)",
				Value: false,
			},
			&cli.BoolFlag{
				Name:  "parallel",
				Usage: "Scan with the daemon's thread pool (MULTISCAN)",
				Value: false,
			},
			&cli.BoolFlag{
				Name:  "stream",
				Usage: "Stream stdin to the daemon instead of scanning a path (INSTREAM)",
				Value: false,
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "INSTREAM chunk size in bytes",
				Value: aviron.DefaultChunkSize,
			},
		},
		Action: func(c *cli.Context) error {
			client, _, err := buildClient(c)
			if err != nil {
				return err
			}

			if c.Bool("stream") {
				result, err := client.ScanStreamChunked(os.Stdin, c.Int("chunk-size"))
				if err != nil {
					return err
				}
				return printResult(result)
			}

			if c.NArg() != 1 {
				return fmt.Errorf("exactly one path argument is required")
			}
			path := c.Args().First()

			var result *aviron.ScanResult
			switch {
			case c.Bool("cont"):
				result, err = client.ContScan(path)
			case c.Bool("parallel"):
				result, err = client.ParallelScan(path)
			default:
				result, err = client.Scan(path)
			}
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}
}

func printResult(result *aviron.ScanResult) error {
	fmt.Print(result.String())
	if result.HasVirus() || result.HasError() {
		return cli.Exit("", 1)
	}
	return nil
}
