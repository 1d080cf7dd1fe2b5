// Package shell runs external helper programs for the CLI: one-shot commands,
// pid lookup and the signal cascade used to stop long-running children.
package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/avironsec/aviron/internal/log"
)

// Run executes a program and returns its combined output with surrounding
// whitespace trimmed.
func Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Pgrep returns the pids of processes whose name matches pattern. A pattern
// that matches nothing yields an empty slice, not an error.
func Pgrep(ctx context.Context, pattern string) ([]int, error) {
	out, err := exec.CommandContext(ctx, "pgrep", pattern).Output()
	if err != nil {
		var exitErr *exec.ExitError
		// pgrep exits 1 when nothing matched
		if ok := asExitError(err, &exitErr); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep %s: %w", pattern, err)
	}
	return parsePids(string(out))
}

func asExitError(err error, target **exec.ExitError) bool {
	e, ok := err.(*exec.ExitError)
	if ok {
		*target = e
	}
	return ok
}

func parsePids(out string) ([]int, error) {
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("unexpected pgrep output line %q", line)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// Terminate stops a process with SIGTERM, waits up to grace for it to go
// away and falls back to SIGKILL.
func Terminate(pid int, grace time.Duration) error {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		return fmt.Errorf("SIGTERM pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	log.Debugf("shell: pid %d did not exit within %s, sending SIGKILL", pid, grace)
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("SIGKILL pid %d: %w", pid, err)
	}
	return nil
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
