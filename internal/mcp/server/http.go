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

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tombee/brazegate/internal/auth"
	"github.com/tombee/brazegate/internal/tracing"
)

// HTTPConfig configures the HTTP listeners.
type HTTPConfig struct {
	// Addr serves /mcp, /healthz and, unless MetricsAddr is set, /metrics.
	Addr string

	// MetricsAddr optionally serves /metrics on a separate listener.
	MetricsAddr string

	// ShutdownTimeout bounds graceful shutdown once ctx is cancelled.
	ShutdownTimeout time.Duration
}

// Router builds the HTTP routes for the streamable MCP transport.
func (s *Server) Router(withMetrics bool) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracing.CorrelationMiddleware)
	r.Use(otelhttp.NewMiddleware("brazegate.mcp"))

	r.Get("/healthz", healthz)
	if withMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.With(auth.Middleware(s.auth, s.logger)).Handle(EndpointPath, s.HTTPHandler())
	return r
}

// MetricsRouter serves only /metrics and /healthz.
func MetricsRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ServeHTTP runs the MCP HTTP transport until ctx is cancelled.
func (s *Server) ServeHTTP(ctx context.Context, cfg HTTPConfig) error {
	separateMetrics := cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.Addr

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting MCP server", "name", s.name, "version", s.version,
			"transport", "http", "addr", cfg.Addr, "endpoint", EndpointPath, "auth", s.auth.Enabled())
		return listen(ctx, newHTTPServer(cfg.Addr, s.Router(!separateMetrics)), cfg.ShutdownTimeout)
	})
	if separateMetrics {
		g.Go(func() error {
			s.logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			return ServeMetrics(ctx, cfg.MetricsAddr, cfg.ShutdownTimeout)
		})
	}

	err := g.Wait()
	s.logger.Info("MCP server stopped")
	return err
}

// ServeMetrics exposes /metrics on addr until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	return listen(ctx, newHTTPServer(addr, MetricsRouter()), shutdownTimeout)
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// listen serves srv and shuts it down gracefully when ctx is done.
func listen(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
	}
	return <-errCh
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
