package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/domain"
)

// Executor runs the dotnet CLI
type Executor interface {
	Run(ctx context.Context, args ...string) (stdout, stderr string, err error)
}

// DotnetExecutor runs the dotnet muxer found at Path
type DotnetExecutor struct {
	Path string
}

// NewDotnetExecutor locates dotnet and returns an executor for it
func NewDotnetExecutor() (*DotnetExecutor, error) {
	path, err := LocateDotnet()
	if err != nil {
		return nil, err
	}
	return &DotnetExecutor{Path: path}, nil
}

// Run implements Executor. A non-zero exit is returned as an error
// carrying the first line of stderr.
func (e *DotnetExecutor) Run(ctx context.Context, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "DOTNET_NOLOGO=1", "DOTNET_CLI_TELEMETRY_OPTOUT=1")

	log.WithField("args", args).Debug("running dotnet")
	err := cmd.Run()
	if err != nil {
		if line := firstLine(stderr.String()); line != "" {
			err = fmt.Errorf("dotnet %s: %w: %s", strings.Join(args, " "), err, line)
		} else {
			err = fmt.Errorf("dotnet %s: %w", strings.Join(args, " "), err)
		}
	}
	return stdout.String(), stderr.String(), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// LocateDotnet finds the dotnet muxer, first under DOTNET_ROOT and then
// on PATH.
func LocateDotnet() (string, error) {
	name := executableName("dotnet")

	if root := os.Getenv("DOTNET_ROOT"); root != "" {
		candidate := filepath.Join(root, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", domain.ErrDotnetNotFound
	}
	return path, nil
}

// DefaultToolsDir is where global tools install their commands
func DefaultToolsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".dotnet", "tools")
	}
	return filepath.Join(home, ".dotnet", "tools")
}

// ToolLocationError reports a tool whose command is missing on disk
type ToolLocationError struct {
	PackageID string
	Path      string
}

func (e *ToolLocationError) Error() string {
	return fmt.Sprintf("Tool '%s' not found at expected location '%s'", e.PackageID, e.Path)
}

func (e *ToolLocationError) Unwrap() error {
	return domain.ErrToolNotFound
}

// commandPath returns the executable for tool under dir, failing if it
// does not exist.
func commandPath(dir string, tool domain.Tool) (string, error) {
	path := filepath.Join(dir, executableName(tool.Command))
	if _, err := os.Stat(path); err != nil {
		return "", &ToolLocationError{PackageID: tool.PackageID, Path: path}
	}
	return path, nil
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
