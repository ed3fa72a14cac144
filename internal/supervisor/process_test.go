package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/charliek/evergreen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_Lifecycle(t *testing.T) {
	h := startHandle(t, shellSpec("exit 3"))

	assert.Greater(t, h.PID(), 0)
	waitClosed(t, h.Done(), "exit")

	assert.True(t, h.Exited())
	assert.False(t, h.StopRequested())
	assert.Equal(t, 3, h.ExitCode())
	assert.Equal(t, domain.ProcessStateCrashed, h.State())

	info := h.Info()
	assert.Equal(t, "sh", info.Command)
	require.NotNil(t, info.ExitCode)
	assert.Equal(t, 3, *info.ExitCode)
	assert.Equal(t, int64(0), info.UptimeSeconds())
}

func TestHandle_CleanExit(t *testing.T) {
	h := startHandle(t, shellSpec("exit 0"))
	waitClosed(t, h.Done(), "exit")
	assert.Equal(t, domain.ProcessStateExited, h.State())
}

func TestHandle_Stop(t *testing.T) {
	t.Run("graceful stop", func(t *testing.T) {
		h := startHandle(t, sleepSpec())
		assert.Equal(t, domain.ProcessStateRunning, h.State())
		assert.Nil(t, h.Info().ExitCode)

		err := h.Stop(context.Background(), SignalStopper{}, 5*time.Second)
		require.NoError(t, err)

		assert.True(t, h.Exited())
		assert.True(t, h.StopRequested())
		assert.Equal(t, domain.ProcessStateStopped, h.State())
		// sleep dies from the interrupt itself
		assert.Equal(t, 130, h.ExitCode())
	})

	t.Run("idempotent", func(t *testing.T) {
		h := startHandle(t, sleepSpec())

		require.NoError(t, h.Stop(context.Background(), SignalStopper{}, 5*time.Second))
		require.NoError(t, h.Stop(context.Background(), SignalStopper{}, 5*time.Second))
		assert.Equal(t, domain.ProcessStateStopped, h.State())
	})

	t.Run("already exited is a no-op", func(t *testing.T) {
		h := startHandle(t, shellSpec("exit 0"))
		waitClosed(t, h.Done(), "exit")

		stopper := &countingStopper{inner: SignalStopper{}}
		require.NoError(t, h.Stop(context.Background(), stopper, time.Second))
		assert.Equal(t, 0, stopper.count())
		assert.Equal(t, domain.ProcessStateExited, h.State())
	})

	t.Run("ignored request ends in kill", func(t *testing.T) {
		h := startHandle(t, sleepSpec())

		start := time.Now()
		err := h.Stop(context.Background(), ignoringStopper{}, 200*time.Millisecond)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
		assert.True(t, h.Exited())
		assert.Equal(t, 137, h.ExitCode())
		assert.Equal(t, domain.ProcessStateStopped, h.State())
	})

	t.Run("failed request kills immediately", func(t *testing.T) {
		h := startHandle(t, sleepSpec())

		start := time.Now()
		err := h.Stop(context.Background(), failingStopper{}, 10*time.Second)
		require.NoError(t, err)

		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, 137, h.ExitCode())
	})

	t.Run("cancelled context skips the wait", func(t *testing.T) {
		h := startHandle(t, sleepSpec())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		require.NoError(t, h.Stop(ctx, ignoringStopper{}, 10*time.Second))
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.True(t, h.Exited())
	})

	t.Run("concurrent stops", func(t *testing.T) {
		h := startHandle(t, sleepSpec())
		stopper := &countingStopper{inner: SignalStopper{}}

		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = h.Stop(context.Background(), stopper, 5*time.Second)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
		assert.Equal(t, 1, stopper.count())
		assert.True(t, h.Exited())
	})
}

func TestHandle_Retired(t *testing.T) {
	h := startHandle(t, shellSpec("exit 0"))

	select {
	case <-h.Retired():
		t.Fatal("retired before being reported")
	default:
	}

	h.retire()
	h.retire()
	waitClosed(t, h.Retired(), "retirement")
}
