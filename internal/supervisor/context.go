package supervisor

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/console"
	"github.com/charliek/evergreen/internal/constants"
)

// Settings are the supervision knobs taken from the resolved configuration
type Settings struct {
	// StopTimeout bounds a graceful stop before the child is killed
	StopTimeout time.Duration
	// ExitOnExit ends the program when the child exits on its own
	ExitOnExit bool
	// Singleton stops other instances of the command before each launch
	Singleton bool
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		StopTimeout: constants.DefaultStopTimeout,
		ExitOnExit:  true,
	}
}

// Context carries the state shared by every component of one program
// run. It replaces process-wide globals.
type Context struct {
	Shutdown *ShutdownSignal
	Settings Settings
	Console  *console.Printer
	Log      *log.Entry
}

// NewContext creates a Context with a fresh ShutdownSignal
func NewContext(settings Settings, printer *console.Printer) *Context {
	if printer == nil {
		printer = console.Discard()
	}
	return &Context{
		Shutdown: NewShutdownSignal(),
		Settings: settings,
		Console:  printer,
		Log:      log.NewEntry(log.StandardLogger()),
	}
}
