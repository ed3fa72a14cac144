package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charliek/evergreen/internal/domain"
)

// Handle is one launch of the supervised tool. It is created running and
// becomes immutable once the exit has been observed.
type Handle struct {
	mu sync.RWMutex
	// stopMu serialises concurrent Stop calls
	stopMu sync.Mutex

	spec      LaunchSpec
	process   Process
	pid       int
	startedAt time.Time
	state     domain.ProcessState
	exitCode  int

	exited        atomic.Bool
	stopRequested atomic.Bool

	// done is closed when the process exits
	done chan struct{}
	// retired is closed once the exit has been observed and reported
	retired    chan struct{}
	retireOnce sync.Once
}

func newHandle(spec LaunchSpec, proc Process) *Handle {
	h := &Handle{
		spec:      spec,
		process:   proc,
		pid:       proc.PID(),
		startedAt: time.Now(),
		state:     domain.ProcessStateRunning,
		done:      make(chan struct{}),
		retired:   make(chan struct{}),
	}
	go h.wait()
	return h
}

// wait reaps the process and records how it ended
func (h *Handle) wait() {
	code := exitCode(h.process.Wait())

	h.mu.Lock()
	h.exitCode = code
	switch {
	case h.stopRequested.Load():
		h.state = domain.ProcessStateStopped
	case code == 0:
		h.state = domain.ProcessStateExited
	default:
		h.state = domain.ProcessStateCrashed
	}
	h.mu.Unlock()

	h.exited.Store(true)
	close(h.done)
}

// PID returns the process id
func (h *Handle) PID() int {
	return h.pid
}

// Spec returns the launch description
func (h *Handle) Spec() LaunchSpec {
	return h.spec
}

// Done is closed when the process exits
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has exited
func (h *Handle) Exited() bool {
	return h.exited.Load()
}

// ExitCode returns the exit code, valid once Exited is true
func (h *Handle) ExitCode() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.exitCode
}

// StopRequested reports whether the exit was asked for
func (h *Handle) StopRequested() bool {
	return h.stopRequested.Load()
}

// State returns the current state
func (h *Handle) State() domain.ProcessState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Retired is closed once the exit has been observed and reported and the
// launch no longer needs anything from the supervisor.
func (h *Handle) Retired() <-chan struct{} {
	return h.retired
}

func (h *Handle) retire() {
	h.retireOnce.Do(func() {
		close(h.retired)
	})
}

// Info returns a snapshot for status reporting
func (h *Handle) Info() domain.ProcessInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	info := domain.ProcessInfo{
		Command:   h.spec.Name,
		Args:      h.spec.Args,
		State:     h.state,
		PID:       h.pid,
		StartedAt: h.startedAt,
	}
	if h.exited.Load() {
		code := h.exitCode
		info.ExitCode = &code
	}
	return info
}

// Kill terminates the process immediately
func (h *Handle) Kill() error {
	if h.Exited() {
		return nil
	}
	return h.process.Kill()
}

// Stop asks the process to exit through stopper and kills it if it has not
// exited within timeout. Stopping an exited process is a no-op.
func (h *Handle) Stop(ctx context.Context, stopper Stopper, timeout time.Duration) error {
	h.stopMu.Lock()
	defer h.stopMu.Unlock()

	if h.Exited() {
		return nil
	}

	h.stopRequested.Store(true)
	h.mu.Lock()
	if !h.state.IsTerminal() {
		h.state = domain.ProcessStateStopping
	}
	h.mu.Unlock()

	return terminate(ctx, stopper, h, timeout)
}
