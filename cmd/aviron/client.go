package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/avironsec/aviron"
	"github.com/avironsec/aviron/internal/config"
)

// buildClient assembles an aviron client from the config file and CLI flag
// overrides.
func buildClient(ctx *cli.Context) (*aviron.Client, *config.Config, error) {
	cfg, err := config.LoadConfigFromCLI(ctx)
	if err != nil {
		return nil, nil, err
	}

	separator, err := parseSeparator(cfg.Server.FileSeparator)
	if err != nil {
		return nil, nil, err
	}
	action, err := parseQuarantineAction(cfg.Quarantine.Action)
	if err != nil {
		return nil, nil, err
	}

	opts := []aviron.Option{
		aviron.WithHostname(cfg.Server.Hostname),
		aviron.WithPort(cfg.Server.Port),
		aviron.WithFileSeparator(separator),
		aviron.WithConnectTimeout(time.Duration(cfg.Server.ConnectTimeoutMillis) * time.Millisecond),
		aviron.WithReadTimeout(time.Duration(cfg.Server.ReadTimeoutMillis) * time.Millisecond),
	}
	if action != aviron.QuarantineNone {
		opts = append(opts, aviron.WithQuarantine(action, cfg.Quarantine.Dir))
	}

	client, err := aviron.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

func parseSeparator(s string) (aviron.FileSeparator, error) {
	switch strings.ToUpper(s) {
	case "", "PLATFORM":
		return aviron.SeparatorPlatform, nil
	case "LOCAL":
		return aviron.SeparatorLocal, nil
	case "UNIX":
		return aviron.SeparatorUnix, nil
	case "WINDOWS":
		return aviron.SeparatorWindows, nil
	default:
		return aviron.SeparatorPlatform, fmt.Errorf("unknown file separator %q", s)
	}
}

func parseQuarantineAction(s string) (aviron.QuarantineFileAction, error) {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return aviron.QuarantineNone, nil
	case "COPY":
		return aviron.QuarantineCopy, nil
	case "MOVE":
		return aviron.QuarantineMove, nil
	case "REMOVE":
		return aviron.QuarantineRemove, nil
	default:
		return aviron.QuarantineNone, fmt.Errorf("unknown quarantine action %q", s)
	}
}
