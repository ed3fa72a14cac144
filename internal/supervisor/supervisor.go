package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/constants"
	"github.com/charliek/evergreen/internal/domain"
)

// Supervisor runs the supervised tool, one launch at a time, and turns its
// lifecycle into console output and shutdown requests.
type Supervisor struct {
	mu sync.RWMutex

	// sctx holds the shutdown signal, settings and output shared by the run
	sctx *Context
	// runner handles the actual process execution (can be mocked for testing)
	runner ProcessRunner
	// stopper issues graceful stop requests
	stopper Stopper
	// reaper stops other instances for singleton launches
	reaper *Reaper

	// current is the most recent launch, nil before the first one
	current *Handle

	// stopping is set while we are stopping the child ourselves, so that
	// an interrupt caused by the stop is not mistaken for the user's.
	// It is a heuristic, not a lock.
	stopping atomic.Bool
	// exitOnExit ends the program when the child fails on its own
	exitOnExit atomic.Bool
}

// New creates a new supervisor. Nil dependencies get the system defaults.
func New(sctx *Context, runner ProcessRunner, stopper Stopper, finder ProcessFinder) *Supervisor {
	if runner == nil {
		runner = NewExecRunner()
	}
	if stopper == nil {
		stopper = NewCommandStopper(constants.DefaultStopCommand, "")
	}

	s := &Supervisor{
		sctx:    sctx,
		runner:  runner,
		stopper: stopper,
		reaper:  NewReaper(finder, stopper),
	}
	s.exitOnExit.Store(sctx.Settings.ExitOnExit)
	return s
}

// Context returns the shared run context
func (s *Supervisor) Context() *Context {
	return s.sctx
}

// Reaper returns the reaper used for singleton launches
func (s *Supervisor) Reaper() *Reaper {
	return s.reaper
}

// Start launches the tool. ctx scopes this launch only: cancelling it stops
// the child without shutting the program down. Callers derive it from the
// shutdown context so that shutdown stops the child too.
func (s *Supervisor) Start(ctx context.Context, spec LaunchSpec, singleton bool) (*Handle, error) {
	if s.sctx.Shutdown.Requested() {
		return nil, domain.ErrShutdownInProgress
	}

	logger := s.sctx.Log.WithField("command", spec.Name)

	if singleton {
		n, err := s.reaper.StopAllByName(ctx, spec.ProcessName())
		if err != nil {
			logger.WithError(err).Warn("failed to stop other instances")
		} else if n > 0 {
			logger.Infof("stopped %d other instance(s)", n)
		}
	}

	proc, err := s.runner.Start(spec)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", spec.Name, err)
	}

	h := newHandle(spec, proc)

	s.mu.Lock()
	s.current = h
	s.mu.Unlock()

	logger.WithField("pid", h.PID()).Debug("launched")
	s.sctx.Console.Lifecycle("%s:%d started", spec.Name, h.PID())

	go s.watch(ctx, h)

	return h, nil
}

// watch is the single goroutine observing one launch
func (s *Supervisor) watch(ctx context.Context, h *Handle) {
	defer h.retire()

	select {
	case <-h.Done():
		s.onExit(h)
	case <-ctx.Done():
		s.stop(ctx, h)
		if h.Exited() {
			s.sctx.Console.Lifecycle("%s exited", h.Spec().Name)
		}
	}
}

// stop escalates against h. The launch context is already cancelled, so
// escalation runs on a context detached from it.
func (s *Supervisor) stop(ctx context.Context, h *Handle) {
	s.stopping.Store(true)
	defer s.stopping.Store(false)

	if err := h.Stop(context.WithoutCancel(ctx), s.stopper, s.sctx.Settings.StopTimeout); err != nil {
		s.sctx.Log.WithField("pid", h.PID()).WithError(err).Error("failed to stop process")
	}
}

// onExit reacts to a child exit that was observed before any stop. Only a
// failing exit can end the program; a clean one leaves the supervisor
// waiting for the next update or an interrupt.
func (s *Supervisor) onExit(h *Handle) {
	name := h.Spec().Name
	code := h.ExitCode()
	logger := s.sctx.Log.WithFields(log.Fields{"command": name, "pid": h.PID(), "rc": code})

	if h.StopRequested() || s.sctx.Shutdown.Requested() {
		logger.Debug("exited after stop")
		s.sctx.Console.Lifecycle("%s exited", name)
		return
	}

	if code == constants.ExitOK {
		logger.Info("exited cleanly, waiting for next update")
		s.sctx.Console.Lifecycle("%s exited", name)
		return
	}

	s.sctx.Console.Error("%s exited with code %d", name, code)

	if !s.ExitOnExit() {
		logger.Info("exited, waiting for next update")
		return
	}

	logger.Debug("exited, shutting down")
	s.sctx.Shutdown.Request(code)
}

// OnInterrupt handles Ctrl+C and termination requests. The interrupt is
// ignored while we are stopping the child ourselves.
func (s *Supervisor) OnInterrupt() {
	if s.stopping.Load() {
		s.sctx.Log.Debug("interrupt while stopping child, ignored")
		return
	}
	if s.sctx.Shutdown.Request(constants.ExitOK) {
		s.sctx.Console.Notice("Shutting down...")
	}
}

// Stop requests shutdown with exit code 0 unless one was already recorded
func (s *Supervisor) Stop() {
	if s.sctx.Shutdown.Request(constants.ExitOK) {
		s.sctx.Console.Notice("Shutting down...")
	}
}

// SetExitOnExit toggles whether an unexpected failing exit ends the program
func (s *Supervisor) SetExitOnExit(enabled bool) {
	s.exitOnExit.Store(enabled)
}

// ExitOnExit reports the current exit-on-exit policy
func (s *Supervisor) ExitOnExit() bool {
	return s.exitOnExit.Load()
}

// Stopper returns the stopper used for escalation
func (s *Supervisor) Stopper() Stopper {
	return s.stopper
}

// Current returns the most recent launch, or nil
func (s *Supervisor) Current() *Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Wait blocks until the current launch is retired or ctx is done
func (s *Supervisor) Wait(ctx context.Context) error {
	h := s.Current()
	if h == nil {
		return nil
	}

	select {
	case <-h.Retired():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
