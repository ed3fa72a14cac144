// Package registry installs, updates and queries .NET global tools through
// the dotnet CLI and a NuGet v3 feed.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/console"
	"github.com/charliek/evergreen/internal/constants"
	"github.com/charliek/evergreen/internal/domain"
)

// Client is the package registry as seen by the supervisor
type Client interface {
	Refresh(ctx context.Context) error
	Installed() []domain.Tool
	Find(packageID string) (domain.Tool, bool)
	FindUpdate(ctx context.Context, packageID string, local *version.Version) (*version.Version, error)
	Install(ctx context.Context, packageID string) error
	Update(ctx context.Context, packageID string, force bool) error
	InstallOrUpdate(ctx context.Context, packageID string, force bool) error
	CommandPath(tool domain.Tool) (string, error)
}

// ProcessStopper stops every running process with the given name. It is
// used by forced updates, whose binaries are locked while running.
type ProcessStopper interface {
	StopAllByName(ctx context.Context, name string) (int, error)
}

// Options configure a DotnetTools client
type Options struct {
	// Source is the NuGet v3 service index
	Source string
	// Prerelease allows updating to prerelease versions
	Prerelease bool
	// HTTPClient is used for feed queries
	HTTPClient *http.Client
	// ToolsDir overrides where tool commands are looked up
	ToolsDir string
}

// DotnetTools implements Client over "dotnet tool" and a NuGet feed
type DotnetTools struct {
	mu        sync.RWMutex
	installed []domain.Tool

	exec       Executor
	feed       *Feed
	source     string
	prerelease bool
	toolsDir   string
	printer    *console.Printer
	stopper    ProcessStopper
}

// New creates a DotnetTools client. stopper may be nil, in which case
// forced updates do not retry.
func New(exec Executor, printer *console.Printer, stopper ProcessStopper, opts Options) *DotnetTools {
	if opts.Source == "" {
		opts.Source = constants.DefaultPackageFeed
	}
	if opts.ToolsDir == "" {
		opts.ToolsDir = DefaultToolsDir()
	}
	if printer == nil {
		printer = console.Discard()
	}
	return &DotnetTools{
		exec:       exec,
		feed:       NewFeed(opts.Source, opts.HTTPClient),
		source:     opts.Source,
		prerelease: opts.Prerelease,
		toolsDir:   opts.ToolsDir,
		printer:    printer,
		stopper:    stopper,
	}
}

// Refresh reloads the installed tool list
func (t *DotnetTools) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RegistryCommandTimeout)
	defer cancel()

	stdout, _, err := t.exec.Run(ctx, "tool", "list", "-g")
	if err != nil {
		return fmt.Errorf("listing installed tools: %w", err)
	}

	tools := ParseToolList(stdout)

	t.mu.Lock()
	t.installed = tools
	t.mu.Unlock()

	log.WithField("count", len(tools)).Debug("refreshed installed tools")
	return nil
}

// Installed returns the tools found by the last Refresh
func (t *DotnetTools) Installed() []domain.Tool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make([]domain.Tool, len(t.installed))
	copy(result, t.installed)
	return result
}

// Find looks up an installed tool by package id or command name
func (t *DotnetTools) Find(packageID string) (domain.Tool, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, tool := range t.installed {
		if strings.EqualFold(tool.PackageID, packageID) {
			return tool, true
		}
	}
	for _, tool := range t.installed {
		if tool.Command == packageID {
			return tool, true
		}
	}
	return domain.Tool{}, false
}

// FindUpdate returns the newest published version greater than local, or
// nil when there is none.
func (t *DotnetTools) FindUpdate(ctx context.Context, packageID string, local *version.Version) (*version.Version, error) {
	versions, err := t.feed.Versions(ctx, packageID)
	if err != nil {
		return nil, err
	}
	return latest(versions, local, t.prerelease), nil
}

// Install installs packageID as a global tool
func (t *DotnetTools) Install(ctx context.Context, packageID string) error {
	if err := t.runToolCommand(ctx, "Installing "+packageID, t.toolArgs("install", packageID)...); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInstallFailed, packageID, err)
	}
	return nil
}

// Update updates packageID. When force is set and the first attempt fails,
// every running instance of the tool's command is stopped and the update
// retried once.
func (t *DotnetTools) Update(ctx context.Context, packageID string, force bool) error {
	args := t.toolArgs("update", packageID)

	err := t.runToolCommand(ctx, "Updating "+packageID, args...)
	if err == nil {
		return nil
	}
	if !force || t.stopper == nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrUpdateFailed, packageID, err)
	}

	tool, ok := t.Find(packageID)
	if !ok {
		return fmt.Errorf("%w: %s: %v", domain.ErrUpdateFailed, packageID, err)
	}

	n, stopErr := t.stopper.StopAllByName(ctx, tool.Command)
	if stopErr != nil {
		log.WithField("command", tool.Command).WithError(stopErr).Warn("failed to stop running instances")
	}
	log.WithFields(log.Fields{"command": tool.Command, "stopped": n}).Info("retrying update")

	if err := t.runToolCommand(ctx, "Updating "+packageID, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrUpdateFailed, packageID, err)
	}
	return nil
}

// InstallOrUpdate makes sure packageID is installed and current. A failed
// update query is not an error: the installed version is used.
func (t *DotnetTools) InstallOrUpdate(ctx context.Context, packageID string, force bool) error {
	t.mu.RLock()
	empty := len(t.installed) == 0
	t.mu.RUnlock()

	if empty {
		if err := t.Refresh(ctx); err != nil {
			return err
		}
	}

	tool, ok := t.Find(packageID)
	if !ok {
		return t.Install(ctx, packageID)
	}

	update, err := t.FindUpdate(ctx, tool.PackageID, tool.Version)
	if err != nil {
		log.WithField("package", tool.PackageID).WithError(err).Warn("update check failed, using installed version")
		return nil
	}
	if update == nil {
		return nil
	}
	return t.Update(ctx, tool.PackageID, force)
}

// CommandPath returns the executable of an installed tool
func (t *DotnetTools) CommandPath(tool domain.Tool) (string, error) {
	return commandPath(t.toolsDir, tool)
}

// toolArgs builds "tool <verb> -g --no-cache [--add-source feed] <id>".
// The public feed is already a default source.
func (t *DotnetTools) toolArgs(verb, packageID string) []string {
	args := []string{"tool", verb, "-g", "--no-cache"}
	if t.source != constants.DefaultPackageFeed {
		args = append(args, "--add-source", t.source)
	}
	return append(args, packageID)
}

// runToolCommand runs a dotnet command behind a status spinner, refreshes
// the installed list on success and shows the command's output.
func (t *DotnetTools) runToolCommand(ctx context.Context, status string, args ...string) error {
	var stdout, stderr string
	err := t.printer.RunWithStatus(status, func() error {
		var runErr error
		stdout, stderr, runErr = t.exec.Run(ctx, args...)
		if runErr != nil {
			return runErr
		}
		return t.Refresh(ctx)
	})

	t.printer.Output(stdout)
	if !t.printer.Quiet() && strings.TrimSpace(stderr) != "" {
		t.printer.Error("%s", strings.TrimSpace(stderr))
	}
	return err
}
