// Package supervisor manages the lifecycle of the single supervised tool:
// spawning it, stopping it with a graceful request followed by a kill, and
// turning a failing exit into a program shutdown when configured to.
//
// # Console Model
//
// The child shares the supervisor's stdin, stdout and stderr and is not
// placed in its own process group, so interactive tools behave as if run
// directly. A Ctrl+C in the terminal therefore reaches both processes.
// When the child dies of it before the interrupt is handled here, its
// failing exit code wins over the clean exit of a user interrupt.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charliek/evergreen/internal/constants"
)

// LaunchSpec describes one launch of the supervised tool
type LaunchSpec struct {
	// Name is the tool's command name, used for messages and singleton matching
	Name string
	// Path is the resolved executable
	Path string
	// Args are passed to the executable verbatim
	Args []string
	// Env is added to the inherited environment
	Env map[string]string
	// Dir is the working directory, empty for the current one
	Dir string
}

// ProcessName returns the OS-visible process name for the launch
func (s LaunchSpec) ProcessName() string {
	return strings.TrimSuffix(filepath.Base(s.Path), ".exe")
}

// ProcessRunner creates and starts processes
type ProcessRunner interface {
	Start(spec LaunchSpec) (Process, error)
}

// Process represents a running process
type Process interface {
	PID() int
	Wait() error
	Kill() error
}

// ExecRunner implements ProcessRunner using os/exec
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner creates an ExecRunner attached to the current console
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Start starts a new process. Cancellation is handled by stop escalation,
// not by the exec package, so no context is attached to the command.
func (r *ExecRunner) Start(spec LaunchSpec) (Process, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	// Set up environment
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	return &execProcess{cmd: cmd}, nil
}

// execProcess wraps exec.Cmd to implement Process interface
type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// exitCode converts the result of Wait into a program exit code.
// Death by signal N is reported as 128+N, the way shells do.
func exitCode(err error) int {
	if err == nil {
		return constants.ExitOK
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return constants.ExitFailure
}
