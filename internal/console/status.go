package console

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// statusDoneMsg ends the spinner program
type statusDoneMsg struct{}

// statusModel is a one-line spinner shown while a registry command runs
type statusModel struct {
	spinner spinner.Model
	title   string
	done    bool
}

func newStatusModel(title string) statusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return statusModel{spinner: s, title: title}
}

func (m statusModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m statusModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + lifecycleStyle.Render(m.title) + "\n"
}

// RunWithStatus runs fn while a spinner titled title is shown. Without a
// terminal, or in quiet mode, fn simply runs.
func (p *Printer) RunWithStatus(title string, fn func() error) error {
	if !p.interactive {
		return fn()
	}

	prog := tea.NewProgram(newStatusModel(title),
		tea.WithOutput(p.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = prog.Run()
	}()

	err := fn()
	prog.Send(statusDoneMsg{})
	<-finished
	return err
}
