package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocalhostOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost", true},
		{"https://localhost:3000", true},
		{"http://127.0.0.1:8080", true},
		{"http://[::1]", true},
		{"", false},
		{"http://evil.com", false},
		{"http://sub.localhost", false},
		{"http://localhost.evil.com", false},
		{"file://localhost", false},
		{"http://user@localhost", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocalhostOrigin(tt.origin))
		})
	}
}

func TestCorsMiddleware(t *testing.T) {
	s := newTestServer(newTestSupervisor(), &fakeUpdater{})

	t.Run("localhost origin allowed", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := doRequest(s, req)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin gets no header", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.Header.Set("Origin", "http://evil.com")
		w := doRequest(s, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, "/api/v1/shutdown", nil)
		req.Header.Set("Origin", "http://localhost")
		w := doRequest(s, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, s.handlers.supervisor.Context().Shutdown.Requested())
	})
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(newTestSupervisor(), &fakeUpdater{})
	w := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServer_ListenServeShutdown(t *testing.T) {
	s := newTestServer(newTestSupervisor(), &fakeUpdater{})
	assert.Equal(t, "127.0.0.1:0", s.Addr())

	require.NoError(t, s.Listen())
	addr := s.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)

	served := make(chan error, 1)
	go func() {
		served <- s.Serve()
	}()

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestServer_ServeWithoutListen(t *testing.T) {
	s := newTestServer(newTestSupervisor(), &fakeUpdater{})
	assert.Error(t, s.Serve())
	assert.NoError(t, s.Shutdown(context.Background()))
}
