// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package serve

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/tombee/brazegate/internal/commands/shared"
	mcpserver "github.com/tombee/brazegate/internal/mcp/server"
	"github.com/tombee/brazegate/internal/safety"
)

func setupEnv(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("BRAZEGATE_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("BRAZE_API_KEY", "test-key")
	t.Setenv("BRAZE_BASE_URL", "https://rest.demo-eu.braze.example")
	t.Setenv("BRAZE_WRITE_ENABLED", "true")
	for _, key := range []string{"BRAZEGATE_TRANSPORT", "BRAZEGATE_ADDR", "BRAZEGATE_METRICS_ADDR", "BRAZEGATE_RATE_LIMIT_REDIS_URL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func execute(ctx context.Context, args ...string) error {
	cmd := NewCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// pipeStdin keeps the stdio transport off the test binary's stdin.
func pipeStdin(t *testing.T) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = orig
		_ = w.Close()
		_ = r.Close()
	})
}

func TestServe_RequiresBaseURL(t *testing.T) {
	setupEnv(t)
	t.Setenv("BRAZE_BASE_URL", "")

	err := execute(context.Background())

	require.Error(t, err)
	assert.Equal(t, shared.ExitConfigError, shared.ExitCode(err))
	assert.Contains(t, err.Error(), "cannot start server")
}

func TestServe_InvalidTransportOverride(t *testing.T) {
	setupEnv(t)

	err := execute(context.Background(), "--transport", "grpc")

	require.Error(t, err)
	assert.Equal(t, shared.ExitConfigError, shared.ExitCode(err))
}

func TestServe_HTTPTransportUsesAddrOverride(t *testing.T) {
	setupEnv(t)

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = execute(ctx, "--transport", "http", "--addr", occupied.Addr().String())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on "+occupied.Addr().String())
}

func TestServe_HTTPTransportStopsOnCancel(t *testing.T) {
	setupEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, execute(ctx, "--transport", "http", "--addr", freeAddr(t)))
}

func newTestServer(t *testing.T) *mcpserver.Server {
	t.Helper()
	catalog := safety.NewCatalog()
	catalog.Freeze()
	srv, err := mcpserver.NewServer(mcpserver.ServerConfig{
		Dispatcher: safety.NewDispatcher(catalog, safety.DefaultConfig(), "https://rest.demo-eu.braze.example"),
		Logger:     slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return srv
}

func TestServeStdio_MetricsListenerStopsWithServer(t *testing.T) {
	pipeStdin(t)
	srv := newTestServer(t)
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveStdio(ctx, srv, addr, time.Second) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serveStdio did not return after cancel")
	}

	// The metrics listener has been shut down by the time serveStdio returns.
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	_ = ln.Close()
}

func TestServeStdio_MetricsListenerFailureStopsServer(t *testing.T) {
	pipeStdin(t)
	srv := newTestServer(t)

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	done := make(chan error, 1)
	go func() { done <- serveStdio(context.Background(), srv, occupied.Addr().String(), time.Second) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listen on")
	case <-time.After(5 * time.Second):
		t.Fatal("serveStdio did not return after the metrics listener failed")
	}
}
