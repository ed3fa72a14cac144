package domain

import "time"

// ProcessState represents the current state of a supervised launch.
// A launch moves from starting to running, then either through stopping
// to stopped (intentional stop) or directly to exited/crashed.
type ProcessState string

const (
	// ProcessStateStarting indicates the child is being spawned
	ProcessStateStarting ProcessState = "starting"
	// ProcessStateRunning indicates the child is alive
	ProcessStateRunning ProcessState = "running"
	// ProcessStateStopping indicates a stop was requested and is in progress
	ProcessStateStopping ProcessState = "stopping"
	// ProcessStateStopped indicates the child exited because we stopped it
	ProcessStateStopped ProcessState = "stopped"
	// ProcessStateExited indicates the child exited on its own with code 0
	ProcessStateExited ProcessState = "exited"
	// ProcessStateCrashed indicates the child exited on its own with a non-zero code
	ProcessStateCrashed ProcessState = "crashed"
)

// String returns the string representation of ProcessState
func (s ProcessState) String() string {
	return string(s)
}

// IsRunning returns true if the process is in a running state
func (s ProcessState) IsRunning() bool {
	return s == ProcessStateRunning
}

// IsTerminal returns true once the process is gone, for whatever reason
func (s ProcessState) IsTerminal() bool {
	return s == ProcessStateStopped || s == ProcessStateExited || s == ProcessStateCrashed
}

// ProcessInfo represents the runtime state of the supervised child
type ProcessInfo struct {
	Command   string       `json:"command"`
	Args      []string     `json:"args,omitempty"`
	State     ProcessState `json:"status"`
	PID       int          `json:"pid"`
	ExitCode  *int         `json:"exit_code,omitempty"`
	StartedAt time.Time    `json:"started_at,omitempty"`
}

// UptimeSeconds returns the number of seconds the process has been running
func (p ProcessInfo) UptimeSeconds() int64 {
	if p.StartedAt.IsZero() || p.State.IsTerminal() {
		return 0
	}
	return int64(time.Since(p.StartedAt).Seconds())
}
