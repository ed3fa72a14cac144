package supervisor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charliek/evergreen/internal/console"
	"github.com/stretchr/testify/require"
)

// lockedBuffer lets tests read console output written by watcher goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func quietRunner() *ExecRunner {
	return &ExecRunner{Stdout: io.Discard, Stderr: io.Discard}
}

func shellSpec(script string) LaunchSpec {
	return LaunchSpec{Name: "sh", Path: "sh", Args: []string{"-c", script}}
}

func sleepSpec() LaunchSpec {
	return LaunchSpec{Name: "sleep", Path: "sleep", Args: []string{"30"}}
}

func newTestContext(out io.Writer) *Context {
	settings := DefaultSettings()
	settings.StopTimeout = 500 * time.Millisecond
	return NewContext(settings, console.NewPrinter(out, false))
}

func startHandle(t *testing.T, spec LaunchSpec) *Handle {
	t.Helper()
	proc, err := quietRunner().Start(spec)
	require.NoError(t, err)
	h := newHandle(spec, proc)
	t.Cleanup(func() {
		_ = h.Kill()
	})
	return h
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// ignoringStopper accepts the request and does nothing
type ignoringStopper struct{}

func (ignoringStopper) RequestStop(context.Context, int, time.Duration) error {
	return nil
}

// failingStopper cannot deliver the request
type failingStopper struct{}

func (failingStopper) RequestStop(context.Context, int, time.Duration) error {
	return errors.New("no route to process")
}

// countingStopper records requests and forwards them
type countingStopper struct {
	mu    sync.Mutex
	pids  []int
	inner Stopper
}

func (s *countingStopper) RequestStop(ctx context.Context, pid int, timeout time.Duration) error {
	s.mu.Lock()
	s.pids = append(s.pids, pid)
	s.mu.Unlock()
	return s.inner.RequestStop(ctx, pid, timeout)
}

func (s *countingStopper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pids)
}
