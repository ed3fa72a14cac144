package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandStopper_Command(t *testing.T) {
	tests := []struct {
		name       string
		template   string
		executable string
		want       []string
	}{
		{
			name:     "dotnet stop",
			template: "dotnet stop {pid} -t {timeout} -q",
			want:     []string{"dotnet", "stop", "4242", "-t", "2000", "-q"},
		},
		{
			name:       "located muxer",
			template:   "dotnet stop {pid} -t {timeout} -q",
			executable: "/usr/share/dotnet/dotnet",
			want:       []string{"/usr/share/dotnet/dotnet", "stop", "4242", "-t", "2000", "-q"},
		},
		{
			name:     "placeholders inside words",
			template: "kill -INT {pid} --grace={timeout}ms",
			want:     []string{"kill", "-INT", "4242", "--grace=2000ms"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCommandStopper(tt.template, tt.executable)
			assert.Equal(t, tt.want, s.Command(4242, 2*time.Second))
		})
	}
}

func TestCommandStopper_UsesStopTool(t *testing.T) {
	assert.True(t, NewCommandStopper("dotnet stop {pid} -t {timeout} -q", "").UsesStopTool())
	assert.False(t, NewCommandStopper("kill -INT {pid}", "").UsesStopTool())
	assert.False(t, NewCommandStopper("", "").UsesStopTool())
}

func TestCommandStopper_RequestStop(t *testing.T) {
	t.Run("stops the target", func(t *testing.T) {
		h := startHandle(t, sleepSpec())

		err := h.Stop(context.Background(), NewCommandStopper("kill -INT {pid}", ""), 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 130, h.ExitCode())
	})

	t.Run("missing helper escalates to kill", func(t *testing.T) {
		h := startHandle(t, sleepSpec())

		stopper := NewCommandStopper("evergreen-no-such-helper {pid}", "")
		require.Error(t, stopper.RequestStop(context.Background(), h.PID(), time.Second))

		require.NoError(t, h.Stop(context.Background(), stopper, 10*time.Second))
		assert.Equal(t, 137, h.ExitCode())
	})

	t.Run("empty template", func(t *testing.T) {
		err := NewCommandStopper("", "").RequestStop(context.Background(), 1, time.Second)
		assert.Error(t, err)
	})
}

func TestTerminate_ForeignProcess(t *testing.T) {
	h := startHandle(t, sleepSpec())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := watchProcess(ctx, &handleProcess{h})
	assert.False(t, w.Exited())

	require.NoError(t, terminate(ctx, ignoringStopper{}, w, 100*time.Millisecond))
	waitClosed(t, w.Done(), "foreign exit")
	assert.True(t, w.Exited())
	assert.True(t, h.Exited())
}
