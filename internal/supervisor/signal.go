package supervisor

import (
	"context"
	"sync"

	"github.com/charliek/evergreen/internal/constants"
)

// ShutdownSignal is the program-wide, one-shot request to exit. The first
// request fixes the exit code and optional fatal cause; later requests are
// ignored. It is never cleared.
type ShutdownSignal struct {
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	code int
	err  error
	set  bool
}

// NewShutdownSignal creates an unrequested ShutdownSignal
func NewShutdownSignal() *ShutdownSignal {
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownSignal{ctx: ctx, cancel: cancel}
}

// Request asks for shutdown with the given exit code. It reports whether
// this call was the one that set the signal.
func (s *ShutdownSignal) Request(code int) bool {
	return s.trigger(code, nil)
}

// Fail asks for shutdown because of a fatal error. The exit code is
// ExitFailure unless shutdown was already requested.
func (s *ShutdownSignal) Fail(err error) bool {
	return s.trigger(constants.ExitFailure, err)
}

func (s *ShutdownSignal) trigger(code int, err error) bool {
	first := false
	s.once.Do(func() {
		s.mu.Lock()
		s.code = code
		s.err = err
		s.set = true
		s.mu.Unlock()
		s.cancel()
		first = true
	})
	return first
}

// Done is closed once shutdown has been requested
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Context is cancelled once shutdown has been requested. Per-launch
// contexts derive from it so that shutdown cascades into the child.
func (s *ShutdownSignal) Context() context.Context {
	return s.ctx
}

// Requested reports whether shutdown has been requested
func (s *ShutdownSignal) Requested() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// ExitCode returns the recorded exit code, 0 while unrequested
func (s *ShutdownSignal) ExitCode() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// Err returns the fatal cause, if the first request was a failure
func (s *ShutdownSignal) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
