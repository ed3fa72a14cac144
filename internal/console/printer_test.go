package console

import (
	"bytes"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestPrinter(t *testing.T) {
	t.Run("lifecycle lines", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, false)

		p.Lifecycle("%s:%d started", "dotnet-serve", 4242)
		p.Notice("Update v%s found.", "1.2.3")
		p.Error("Tool '%s' not found", "dotnet-serve")

		out := buf.String()
		assert.Contains(t, out, "dotnet-serve:4242 started")
		assert.Contains(t, out, "Update v1.2.3 found.")
		assert.Contains(t, out, "Tool 'dotnet-serve' not found")
	})

	t.Run("output shown when not quiet", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, false)
		p.Output("Tool 'dotnet-serve' was successfully updated.\n")
		assert.Contains(t, buf.String(), "successfully updated")
	})

	t.Run("output suppressed when quiet", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, true)
		assert.True(t, p.Quiet())
		p.Output("Tool 'dotnet-serve' was successfully updated.")
		assert.Empty(t, buf.String())
	})

	t.Run("blank output skipped", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewPrinter(&buf, false)
		p.Output("\n\n")
		assert.Empty(t, buf.String())
	})
}

func TestRunWithStatus_NonInteractive(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	assert.False(t, p.interactive)

	called := false
	err := p.RunWithStatus("Updating dotnet-serve", func() error {
		called = true
		return errors.New("boom")
	})

	assert.True(t, called)
	assert.EqualError(t, err, "boom")
	assert.Empty(t, buf.String())
}

func TestStatusModel(t *testing.T) {
	m := newStatusModel("Checking for updates")
	assert.Contains(t, m.View(), "Checking for updates")

	updated, cmd := m.Update(statusDoneMsg{})
	assert.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, updated.View())
}
