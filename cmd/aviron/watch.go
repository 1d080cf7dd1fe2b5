package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/avironsec/aviron"
	"github.com/avironsec/aviron/internal/cache"
	"github.com/avironsec/aviron/internal/demofs"
	"github.com/avironsec/aviron/internal/util"
	"github.com/avironsec/aviron/watcher"
)

func commandWatch() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch a directory tree and scan created or modified files in real time",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "secondary",
				Usage: "Additional directory trees to watch",
			},
			&cli.IntFlag{
				Name:  "idle-sleep",
				Usage: "Worker idle sleep in seconds",
			},
			&cli.IntFlag{
				Name:  "queue-size",
				Usage: "Pending-path queue capacity",
			},
			&cli.BoolFlag{
				Name:  "fswatch",
				Usage: "Use the external fswatch backend instead of the native watcher",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "fswatch-program",
				Usage: "Path to the fswatch binary",
			},
			&cli.StringFlag{
				Name:  "monitor",
				Usage: "fswatch monitor backend (platform default if empty)",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the clean-verdict scan cache",
				Value: false,
			},
			&cli.BoolFlag{
				Name:  "demo",
				Usage: "Generate demo file activity in the watched directory",
				Value: false,
			},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one directory argument is required")
	}
	dir := c.Args().First()

	client, cfg, err := buildClient(c)
	if err != nil {
		return err
	}

	if c.Int("idle-sleep") != 0 {
		cfg.Realtime.IdleSleepSeconds = c.Int("idle-sleep")
	}
	if c.Int("queue-size") != 0 {
		cfg.Realtime.QueueSize = c.Int("queue-size")
	}
	if c.String("fswatch-program") != "" {
		cfg.Realtime.FsWatchProgram = c.String("fswatch-program")
	}
	if c.String("monitor") != "" {
		cfg.Realtime.FsWatchMonitor = c.String("monitor")
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	opts := []aviron.RealtimeOption{
		aviron.WithIdleSleep(time.Duration(cfg.Realtime.IdleSleepSeconds) * time.Second),
		aviron.WithQueueSize(cfg.Realtime.QueueSize),
		aviron.WithScanListener(printScanEvent),
	}
	if len(cfg.Realtime.SecondaryDirs) > 0 {
		opts = append(opts, aviron.WithSecondaryDirs(cfg.Realtime.SecondaryDirs...))
	}
	if dirs := c.StringSlice("secondary"); len(dirs) > 0 {
		opts = append(opts, aviron.WithSecondaryDirs(dirs...))
	}
	if !c.Bool("no-cache") {
		sc := cache.NewScanCache(ctx, cfg.Realtime.CacheSizeMB, cfg.Realtime.CachePath)
		defer sc.Save()
		opts = append(opts, aviron.WithScanCache(sc))
	}
	if c.Bool("fswatch") {
		program := cfg.Realtime.FsWatchProgram
		if program == "" {
			program = defaultFsWatchProgram()
		}
		monitor := cfg.Realtime.FsWatchMonitor
		opts = append(opts, aviron.WithWatcherFactory(func(mainDir string) (watcher.FileWatcher, error) {
			return watcher.NewFsWatchWatcher(program, monitor, mainDir)
		}))
	}

	scanner, err := aviron.NewRealtimeScanner(client, dir, opts...)
	if err != nil {
		return err
	}
	if err := scanner.Start(); err != nil {
		return err
	}
	defer scanner.Stop()

	fmt.Printf("watching %s, press Ctrl-C to stop\n", dir)

	if c.Bool("demo") {
		go runDemoActivity(ctx, dir)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Printf("stopping, %d paths still pending, %d dropped on overflow\n",
		scanner.PendingCount(), scanner.OverflowCount())
	return nil
}

// defaultFsWatchProgram picks the fswatch binary when the config does not name
// one: the Homebrew install location on macOS, a PATH lookup elsewhere.
func defaultFsWatchProgram() string {
	if util.IsMacOSX() {
		return watcher.HomebrewFsWatchProgram
	}
	return "fswatch"
}

func printScanEvent(ev aviron.RealtimeScanEvent) {
	switch {
	case ev.Err != nil:
		fmt.Printf("ERROR    %s: %v\n", ev.Path, ev.Err)
	case ev.Result.HasVirus():
		for path, viruses := range ev.Result.VirusesFound() {
			fmt.Printf("INFECTED %s: %v\n", path, viruses)
		}
	case ev.Result.HasError():
		fmt.Print(ev.Result.String())
	default:
		fmt.Printf("OK       %s\n", ev.Path)
	}
}

// runDemoActivity churns files in the watched directory so the pipeline has
// something to do: create, append, and occasionally delete right away.
func runDemoActivity(ctx context.Context, dir string) {
	fs, err := demofs.New(dir, 3)
	if err != nil {
		fmt.Printf("demo: %v\n", err)
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path, err := fs.CreateFile(fmt.Sprintf("demo content %d", n))
			if err != nil {
				fmt.Printf("demo: %v\n", err)
				continue
			}
			fs.Append(path, " with a bit more")
			if n%5 == 4 {
				fs.Delete(path)
			}
			n++
		}
	}
}
