package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// interruptSignals are turned into an orderly shutdown
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// HandleSignals forwards interrupts to OnInterrupt until ctx is done or the
// returned function is called. While registered, interrupts never terminate
// the program directly.
func (s *Supervisor) HandleSignals(ctx context.Context) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, interruptSignals...)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				s.OnInterrupt()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
