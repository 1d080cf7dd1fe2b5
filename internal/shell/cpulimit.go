package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/avironsec/aviron/internal/log"
)

// DefaultCPULimitProgram is the cpulimit binary looked up on PATH.
const DefaultCPULimitProgram = "cpulimit"

// cpuLimitKillGrace is how long a cpulimit child gets after SIGTERM.
const cpuLimitKillGrace = 3 * time.Second

// CPULimiter throttles a running clamd process by driving one cpulimit child
// per daemon pid. Scanning large files makes clamd saturate a core; capping it
// keeps interactive hosts responsive.
type CPULimiter struct {
	program string
	percent int

	mu   sync.Mutex
	cmds []*exec.Cmd
}

// NewCPULimiter creates a limiter capping processes at percent CPU.
func NewCPULimiter(program string, percent int) (*CPULimiter, error) {
	if program == "" {
		program = DefaultCPULimitProgram
	}
	if percent < 1 || percent > 100 {
		return nil, fmt.Errorf("cpu limit percent must be between 1 and 100, got %d", percent)
	}
	if _, err := exec.LookPath(program); err != nil {
		return nil, fmt.Errorf("cpulimit program %q not found: %w", program, err)
	}
	return &CPULimiter{program: program, percent: percent}, nil
}

// LimitProcessName finds all processes matching name and limits each of them.
// Returns the pids that were limited.
func (l *CPULimiter) LimitProcessName(ctx context.Context, name string) ([]int, error) {
	pids, err := Pgrep(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("no process matching %q found", name)
	}

	for _, pid := range pids {
		if err := l.LimitPid(pid); err != nil {
			l.Stop()
			return nil, err
		}
	}
	return pids, nil
}

// LimitPid spawns a cpulimit child throttling the given pid. The child runs
// until Stop or until the target exits.
func (l *CPULimiter) LimitPid(pid int) error {
	cmd := exec.Command(l.program,
		"--pid", strconv.Itoa(pid),
		"--limit", strconv.Itoa(l.percent))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s for pid %d: %w", l.program, pid, err)
	}
	log.Debugf("cpulimit: pid %d limited to %d%% by pid %d", pid, l.percent, cmd.Process.Pid)

	l.mu.Lock()
	l.cmds = append(l.cmds, cmd)
	l.mu.Unlock()

	go cmd.Wait()
	return nil
}

// Stop terminates all cpulimit children. The throttled processes keep running
// unthrottled.
func (l *CPULimiter) Stop() {
	l.mu.Lock()
	cmds := l.cmds
	l.cmds = nil
	l.mu.Unlock()

	for _, cmd := range cmds {
		if cmd.Process == nil {
			continue
		}
		if err := Terminate(cmd.Process.Pid, cpuLimitKillGrace); err != nil {
			log.Errorf("cpulimit: failed to stop pid %d: %v", cmd.Process.Pid, err)
		}
	}
}
