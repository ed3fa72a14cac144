// Package updater periodically checks the package registry for a newer
// version of the supervised tool and, when one is found, retires the
// running launch, applies the update and relaunches with the same
// arguments.
package updater

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/constants"
	"github.com/charliek/evergreen/internal/domain"
	"github.com/charliek/evergreen/internal/registry"
	"github.com/charliek/evergreen/internal/supervisor"
)

// Config describes the tool being kept up to date
type Config struct {
	// PackageID is the tool as given on the command line
	PackageID string
	// Args are passed to every launch verbatim
	Args []string
	// Env is added to every launch's environment
	Env map[string]string
	// Dir is the working directory of every launch
	Dir string
	// Interval is the time between update checks
	Interval time.Duration
	// Force stops running instances when an update fails, then retries
	Force bool
	// Singleton stops other instances before each launch
	Singleton bool
}

// Scheduler owns the current launch and the update cycle. At most one
// cycle runs at a time and the timer is re-armed only once it finishes.
type Scheduler struct {
	mu sync.RWMutex

	cfg      Config
	sup      *supervisor.Supervisor
	registry registry.Client

	tool         domain.Tool
	spec         supervisor.LaunchSpec
	handle       *supervisor.Handle
	cancelLaunch context.CancelFunc

	lastCheck time.Time
	updates   int
	checking  atomic.Bool

	trigger chan struct{}
	done    chan struct{}
}

// New creates a Scheduler
func New(sup *supervisor.Supervisor, client registry.Client, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultInterval
	}
	return &Scheduler{
		cfg:      cfg,
		sup:      sup,
		registry: client,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Launch resolves the installed tool and starts the first launch
func (s *Scheduler) Launch() error {
	if err := s.resolve(); err != nil {
		return err
	}
	return s.launch()
}

// resolve looks up the installed tool and its command path
func (s *Scheduler) resolve() error {
	tool, ok := s.registry.Find(s.cfg.PackageID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrToolNotInstalled, s.cfg.PackageID)
	}
	path, err := s.registry.CommandPath(tool)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tool = tool
	s.spec = supervisor.LaunchSpec{
		Name: tool.Command,
		Path: path,
		Args: s.cfg.Args,
		Env:  s.cfg.Env,
		Dir:  s.cfg.Dir,
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{"tool": tool.String(), "path": path}).Debug("resolved tool")
	return nil
}

// launch starts the tool under a fresh per-launch context derived from
// the shutdown context.
func (s *Scheduler) launch() error {
	s.mu.RLock()
	spec := s.spec
	s.mu.RUnlock()

	launchCtx, cancel := context.WithCancel(s.sup.Context().Shutdown.Context())
	h, err := s.sup.Start(launchCtx, spec, s.cfg.Singleton)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.handle = h
	s.cancelLaunch = cancel
	s.mu.Unlock()
	return nil
}

// Run checks for updates every interval until ctx is done, shutdown is
// requested, or an update fails.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	shutdown := s.sup.Context().Shutdown
	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if !s.cycle(ctx, timer) {
			return
		}
	}
}

// cycle runs one update check. It reports false when the update failed
// fatally, in which case the timer is left disarmed.
func (s *Scheduler) cycle(ctx context.Context, timer *time.Timer) (ok bool) {
	defer func() {
		if ok {
			timer.Reset(s.cfg.Interval)
		}
	}()

	s.checking.Store(true)
	defer s.checking.Store(false)

	tool := s.Tool()
	logger := log.WithField("package", tool.PackageID)

	update, err := s.registry.FindUpdate(ctx, tool.PackageID, tool.Version)

	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()

	if err != nil {
		logger.WithError(err).Warn("update check failed")
		return true
	}
	desc := domain.UpdateDescriptor{PackageID: tool.PackageID, Running: tool.Version, Discovered: update}
	if !desc.Available() {
		logger.Debug("no update")
		return true
	}

	s.sup.Context().Console.Notice("Update v%s found.", desc.Discovered.String())
	if err := s.apply(ctx, tool, desc.Discovered); err != nil {
		s.sup.Context().Console.Error("Failed to update %s", tool.PackageID)
		s.sup.Context().Shutdown.Fail(err)
		return false
	}
	return true
}

// apply retires the running launch, updates the tool and relaunches it.
// The update itself is not cancelled by shutdown; only the relaunch is
// skipped.
func (s *Scheduler) apply(ctx context.Context, tool domain.Tool, update *version.Version) error {
	logger := log.WithFields(log.Fields{"package": tool.PackageID, "version": update.String()})

	policy := s.sup.ExitOnExit()
	s.sup.SetExitOnExit(false)
	defer s.sup.SetExitOnExit(policy)

	s.retire()

	if err := s.registry.Update(context.WithoutCancel(ctx), tool.PackageID, s.cfg.Force); err != nil {
		return err
	}
	if err := s.resolve(); err != nil {
		return err
	}

	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	logger.Info("updated")

	if s.sup.Context().Shutdown.Requested() {
		logger.Info("shutdown requested, not relaunching")
		return nil
	}
	if err := s.launch(); err != nil {
		return fmt.Errorf("relaunching %s: %w", tool.PackageID, err)
	}
	return nil
}

// retire cancels the current launch and waits until it is retired. The
// wait is bounded by the stop timeout plus a grace period, after which
// the process is killed.
func (s *Scheduler) retire() {
	s.mu.Lock()
	h := s.handle
	cancel := s.cancelLaunch
	s.cancelLaunch = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if h == nil {
		return
	}

	bound := s.sup.Context().Settings.StopTimeout + constants.RetireGracePeriod
	select {
	case <-h.Retired():
		return
	case <-time.After(bound):
	}

	log.WithField("pid", h.PID()).Warn("launch did not retire in time, killing")
	if err := h.Kill(); err != nil {
		log.WithField("pid", h.PID()).WithError(err).Error("kill failed")
	}
	select {
	case <-h.Retired():
	case <-time.After(constants.KillWaitTimeout):
	}
}

// TriggerCheck requests an immediate update check. Requests made while one
// is pending are coalesced; it reports whether this call queued one.
func (s *Scheduler) TriggerCheck() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Wait blocks until Run has returned or ctx is done
func (s *Scheduler) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tool returns the tool as last resolved
func (s *Scheduler) Tool() domain.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tool
}

// Handle returns the current launch
func (s *Scheduler) Handle() *supervisor.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// LastCheck returns when the registry was last queried
func (s *Scheduler) LastCheck() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCheck
}

// Updates returns how many updates have been applied
func (s *Scheduler) Updates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

// Checking reports whether an update cycle is in flight
func (s *Scheduler) Checking() bool {
	return s.checking.Load()
}
