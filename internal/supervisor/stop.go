package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/constants"
)

// Stopper issues a graceful stop request for a single process. It must not
// wait for the exit; escalation does that.
type Stopper interface {
	RequestStop(ctx context.Context, pid int, timeout time.Duration) error
}

// SignalStopper sends an interrupt to exactly the target pid, never to its
// process group.
type SignalStopper struct{}

// RequestStop implements Stopper
func (SignalStopper) RequestStop(_ context.Context, pid int, _ time.Duration) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding pid %d: %w", pid, err)
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("interrupting pid %d: %w", pid, err)
	}
	return nil
}

// CommandStopper runs a helper command, such as dotnet-stop, that asks the
// target to quit. Template placeholders are {pid} and {timeout}, the latter
// in milliseconds. The helper's output is discarded.
type CommandStopper struct {
	Template string
	// Executable replaces the template's first word when set, e.g. the
	// located dotnet muxer for "dotnet stop ...".
	Executable string
}

// NewCommandStopper creates a CommandStopper for template
func NewCommandStopper(template, executable string) *CommandStopper {
	return &CommandStopper{Template: template, Executable: executable}
}

// Command expands the template for pid and timeout
func (c *CommandStopper) Command(pid int, timeout time.Duration) []string {
	fields := strings.Fields(c.Template)
	for i, f := range fields {
		f = strings.ReplaceAll(f, "{pid}", strconv.Itoa(pid))
		f = strings.ReplaceAll(f, "{timeout}", strconv.FormatInt(timeout.Milliseconds(), 10))
		fields[i] = f
	}
	if c.Executable != "" && len(fields) > 0 {
		fields[0] = c.Executable
	}
	return fields
}

// RequestStop implements Stopper. The helper is started, not awaited.
func (c *CommandStopper) RequestStop(_ context.Context, pid int, timeout time.Duration) error {
	argv := c.Command(pid, timeout)
	if len(argv) == 0 {
		return fmt.Errorf("empty stop command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("running stop command %q: %w", argv[0], err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

// UsesStopTool reports whether the template needs the dotnet-stop tool
func (c *CommandStopper) UsesStopTool() bool {
	fields := strings.Fields(c.Template)
	return len(fields) >= 2 && fields[0] == "dotnet" && fields[1] == "stop"
}

// target is anything terminate can escalate against: our own children and
// processes found on the system.
type target interface {
	PID() int
	Exited() bool
	Done() <-chan struct{}
	Kill() error
}

// terminate requests a graceful stop, waits up to timeout, then kills.
// The exit may race with any step; a kill failure on a process that has
// already exited is not an error.
func terminate(ctx context.Context, stopper Stopper, t target, timeout time.Duration) error {
	pid := t.PID()
	logger := log.WithField("pid", pid)

	if err := stopper.RequestStop(ctx, pid, timeout); err != nil {
		logger.WithError(err).Warn("graceful stop request failed")
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-t.Done():
			logger.Debug("stopped gracefully")
			return nil
		case <-timer.C:
			logger.Debugf("still running after %s", timeout)
		case <-ctx.Done():
		}
	}

	if t.Exited() {
		return nil
	}

	logger.Info("killing process")
	if err := t.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && !t.Exited() {
		return fmt.Errorf("killing pid %d: %w", pid, err)
	}

	select {
	case <-t.Done():
		return nil
	case <-time.After(constants.KillWaitTimeout):
		if t.Exited() {
			return nil
		}
		return fmt.Errorf("pid %d still running after kill", pid)
	}
}
