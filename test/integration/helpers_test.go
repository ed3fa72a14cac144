//go:build !windows

package integration

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// buildBinary builds the evergreen binary and returns its path
func buildBinary(t *testing.T) string {
	t.Helper()

	// Get project root (two directories up from test/integration)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	projectRoot := filepath.Join(wd, "..", "..")

	binary := filepath.Join(t.TempDir(), "evergreen")

	cmd := exec.Command("go", "build", "-o", binary, "./cmd/evergreen")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, output)
	}

	return binary
}

// syncBuffer collects the binary's output while it runs
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// toolEnv is a fake dotnet installation with the global tools "mytool"
// and "dotnet-stop". mytool's version lives in a state file; "dotnet tool
// update" bumps it to 1.1.0 and "dotnet stop" interrupts the pid.
type toolEnv struct {
	home  string
	root  string
	state string
}

const fakeDotnetScript = `#!/bin/sh
case "$1 $2" in
  "tool list")
    printf 'Package Id      Version      Commands\n-------------------------------------\n'
    printf 'mytool          %s        mytool\n' "$(cat "$EVERGREEN_TEST_STATE/version")"
    printf 'dotnet-stop     1.0.0        dotnet-stop\n'
    ;;
  "tool update")
    echo 1.1.0 > "$EVERGREEN_TEST_STATE/version"
    echo "Tool 'mytool' was successfully updated."
    ;;
  "stop "*)
    kill -INT "$2"
    ;;
  *) exit 1 ;;
esac
`

// mytool prints its version and arguments, then sleeps in place so that
// signals reach it directly
const mytoolScript = `#!/bin/sh
echo "mytool v$(cat "$EVERGREEN_TEST_STATE/version") $*"
exec sleep 30
`

func newToolEnv(t *testing.T) *toolEnv {
	t.Helper()
	env := &toolEnv{home: t.TempDir(), root: t.TempDir(), state: t.TempDir()}

	tools := filepath.Join(env.home, ".dotnet", "tools")
	requireNoError(t, os.MkdirAll(tools, 0755), "creating tools dir")
	requireNoError(t, os.WriteFile(filepath.Join(env.root, "dotnet"), []byte(fakeDotnetScript), 0755), "writing dotnet")
	requireNoError(t, os.WriteFile(filepath.Join(tools, "mytool"), []byte(mytoolScript), 0755), "writing mytool")
	requireNoError(t, os.WriteFile(filepath.Join(env.state, "version"), []byte("1.0.0\n"), 0644), "writing version")
	return env
}

func (e *toolEnv) environ() []string {
	return append(os.Environ(),
		"HOME="+e.home,
		"DOTNET_ROOT="+e.root,
		"EVERGREEN_TEST_STATE="+e.state,
	)
}

// testFeed serves a NuGet v3 feed publishing versions of mytool
type testFeed struct {
	url      string
	mu       sync.Mutex
	versions []string
}

func newFeed(t *testing.T, versions ...string) *testFeed {
	t.Helper()
	feed := &testFeed{versions: versions}

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/index.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":"3.0.0","resources":[{"@id":"%s/flat/","@type":"PackageBaseAddress/3.0.0"}]}`, srv.URL)
	})
	mux.HandleFunc("/flat/mytool/index.json", func(w http.ResponseWriter, r *http.Request) {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		fmt.Fprintf(w, `{"versions":["%s"]}`, strings.Join(feed.versions, `","`))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	feed.url = srv.URL + "/v3/index.json"
	return feed
}

func (f *testFeed) publish(version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, version)
}

// startEvergreen starts the binary with the given arguments
func startEvergreen(t *testing.T, binary string, env *toolEnv, args ...string) (*exec.Cmd, *syncBuffer) {
	t.Helper()

	out := &syncBuffer{}
	cmd := exec.Command(binary, args...)
	cmd.Dir = env.home
	cmd.Env = env.environ()
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start evergreen: %v", err)
	}
	t.Cleanup(func() { killEvergreen(cmd) })

	return cmd, out
}

// killEvergreen forcefully kills the evergreen process
func killEvergreen(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil && cmd.ProcessState == nil {
		cmd.Process.Kill()
		cmd.Wait()
	}
}

// waitExit waits for the binary to exit and returns its exit code
func waitExit(t *testing.T, cmd *exec.Cmd, out *syncBuffer, timeout time.Duration) int {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		requireNoError(t, err, "waiting for evergreen")
		return 0
	case <-time.After(timeout):
		t.Fatalf("evergreen did not exit within %v\noutput:\n%s", timeout, out)
		return -1
	}
}

// waitForOutput waits until the output contains substr count times
func waitForOutput(t *testing.T, out *syncBuffer, substr string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Count(out.String(), substr) >= count {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("output did not contain %q %d time(s) within %v\noutput:\n%s", substr, count, timeout, out)
}

// waitForAPI waits for the status API to be ready
func waitForAPI(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("API did not become ready within %v", timeout)
}

// freeAddr returns a loopback address with a port that was free a moment ago
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	requireNoError(t, err, "finding a free port")
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// requireNoError fails the test if err is not nil
func requireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// skipShort skips the test if -short flag is provided
func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
