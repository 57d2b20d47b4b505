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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tombee/brazegate/internal/commands/shared"
	"github.com/tombee/brazegate/internal/config"
	"github.com/tombee/brazegate/internal/log"
	mcpserver "github.com/tombee/brazegate/internal/mcp/server"
)

// NewCommand creates the serve command.
func NewCommand() *cobra.Command {
	var (
		transport   string
		addr        string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the brazegate MCP server.

The server exposes three tools: list_functions, call_function and
workspace_info. The stdio transport (default) is used by MCP clients that
launch brazegate as a subprocess. The http transport serves streamable
HTTP at /mcp alongside /healthz and /metrics.

Writes are disabled unless BRAZE_WRITE_ENABLED=true, and are only allowed
against workspaces matching BRAZE_ALLOWED_WORKSPACES.

Examples:
  # Serve over stdio
  brazegate serve

  # Serve over HTTP with metrics on a separate port
  brazegate serve --transport http --addr :8080 --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return run(cmd.Context(), func(c *config.Config) {
				if flags.Changed("transport") {
					c.Server.Transport = transport
				}
				if flags.Changed("addr") {
					c.Server.Addr = addr
				}
				if flags.Changed("metrics-addr") {
					c.Server.MetricsAddr = metricsAddr
				}
			})
		},
	}

	cmd.Flags().StringVar(&transport, "transport", config.TransportStdio, "Transport (stdio, http)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address for the http transport")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics on a separate address")

	return cmd
}

func run(parent context.Context, override func(*config.Config)) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := shared.NewRuntime(ctx, override)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Warn("failed to flush traces", log.Error(err))
		}
	}()

	if err := rt.Config.RequireBaseURL(); err != nil {
		return shared.NewConfigError("cannot start server", err)
	}

	v, _, _ := shared.GetVersion()
	srv, err := mcpserver.NewServer(mcpserver.ServerConfig{
		Name:       "brazegate",
		Version:    v,
		Dispatcher: rt.Dispatcher,
		Logger:     rt.Logger,
		Auth:       rt.Config.Server.Auth.Verifier(),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if !rt.Config.Safety.WriteEnabled {
		rt.Logger.Warn("write operations are disabled; set BRAZE_WRITE_ENABLED=true to enable")
	} else if !rt.Dispatcher.Config().IsSafeDestination(rt.Dispatcher.Destination()) {
		rt.Logger.Warn("workspace does not match any allowed pattern; writes will be refused",
			"base_url", rt.Dispatcher.Destination(),
			"allowed_patterns", rt.Config.Safety.AllowedWorkspaces)
	}

	switch rt.Config.Server.Transport {
	case config.TransportHTTP:
		if !rt.Config.Server.Auth.Verifier().Enabled() {
			rt.Logger.Warn("http transport has no authentication; set BRAZEGATE_HTTP_JWT_SECRET to require bearer tokens",
				"addr", rt.Config.Server.Addr)
		}
		return srv.ServeHTTP(ctx, mcpserver.HTTPConfig{
			Addr:            rt.Config.Server.Addr,
			MetricsAddr:     rt.Config.Server.MetricsAddr,
			ShutdownTimeout: rt.Config.Server.ShutdownTimeout,
		})
	default:
		return serveStdio(ctx, srv, rt.Config.Server.MetricsAddr, rt.Config.Server.ShutdownTimeout)
	}
}

// serveStdio runs the stdio transport and, when metricsAddr is set, a
// metrics listener that stops with it. A failing listener ends both.
func serveStdio(ctx context.Context, srv *mcpserver.Server, metricsAddr string, shutdownTimeout time.Duration) error {
	if metricsAddr == "" {
		return srv.Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	ctx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return srv.Run(ctx)
	})
	g.Go(func() error {
		return mcpserver.ServeMetrics(ctx, metricsAddr, shutdownTimeout)
	})
	return g.Wait()
}
