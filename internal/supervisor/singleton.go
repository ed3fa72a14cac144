package supervisor

import (
	"context"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/constants"
)

// ForeignProcess is a process found on the system rather than spawned by us
type ForeignProcess interface {
	PID() int
	IsRunning() (bool, error)
	Kill() error
}

// ProcessFinder enumerates processes by executable base name
type ProcessFinder interface {
	FindByName(ctx context.Context, name string) ([]ForeignProcess, error)
}

// SystemProcessFinder finds processes of the current user with gopsutil.
// The calling process is never returned.
type SystemProcessFinder struct{}

// FindByName implements ProcessFinder
func (SystemProcessFinder) FindByName(ctx context.Context, name string) ([]ForeignProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	self := os.Getpid()
	var found []ForeignProcess
	for _, p := range procs {
		if int(p.Pid) == self {
			continue
		}
		pname, err := p.NameWithContext(ctx)
		if err != nil || !sameProcessName(pname, name) {
			continue
		}
		if !isProcessOwnedByCurrentUser(p) {
			continue
		}
		found = append(found, &systemProcess{proc: p})
	}
	return found, nil
}

func sameProcessName(a, b string) bool {
	a = strings.TrimSuffix(a, ".exe")
	b = strings.TrimSuffix(b, ".exe")
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// systemProcess adapts a gopsutil process to ForeignProcess
type systemProcess struct {
	proc *process.Process
}

func (p *systemProcess) PID() int {
	return int(p.proc.Pid)
}

func (p *systemProcess) IsRunning() (bool, error) {
	running, err := p.proc.IsRunning()
	if err != nil || !running {
		return false, err
	}
	// An exited child of someone else lingers as a zombie until reaped
	if status, err := p.proc.Status(); err == nil && len(status) > 0 && status[0] == process.Zombie {
		return false, nil
	}
	return true, nil
}

func (p *systemProcess) Kill() error {
	return p.proc.Kill()
}

// watchedProcess polls a ForeignProcess so terminate can wait on it
type watchedProcess struct {
	ForeignProcess
	exited atomic.Bool
	done   chan struct{}
}

func watchProcess(ctx context.Context, p ForeignProcess) *watchedProcess {
	w := &watchedProcess{ForeignProcess: p, done: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(constants.ForeignPollInterval)
		defer ticker.Stop()
		for {
			if running, err := p.IsRunning(); err != nil || !running {
				w.exited.Store(true)
				close(w.done)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return w
}

func (w *watchedProcess) Exited() bool {
	return w.exited.Load()
}

func (w *watchedProcess) Done() <-chan struct{} {
	return w.done
}

// Reaper stops every process of a given name. It backs both the singleton
// launch option and the registry's forced update.
type Reaper struct {
	Finder  ProcessFinder
	Stopper Stopper
	Timeout time.Duration
}

// NewReaper creates a Reaper using the fixed singleton timeout
func NewReaper(finder ProcessFinder, stopper Stopper) *Reaper {
	if finder == nil {
		finder = SystemProcessFinder{}
	}
	if stopper == nil {
		stopper = SignalStopper{}
	}
	return &Reaper{
		Finder:  finder,
		Stopper: stopper,
		Timeout: constants.SingletonStopTimeout,
	}
}

// StopAllByName stops every process named name, one after the other, and
// returns how many were found. Failures are aggregated.
func (r *Reaper) StopAllByName(ctx context.Context, name string) (int, error) {
	procs, err := r.Finder.FindByName(ctx, name)
	if err != nil {
		return 0, err
	}

	var result *multierror.Error
	for _, p := range procs {
		log.WithFields(log.Fields{"pid": p.PID(), "name": name}).Info("stopping running instance")

		watchCtx, cancel := context.WithCancel(ctx)
		err := terminate(ctx, r.Stopper, watchProcess(watchCtx, p), r.Timeout)
		cancel()
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return len(procs), result.ErrorOrNil()
}
