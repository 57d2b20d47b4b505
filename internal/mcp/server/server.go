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

// Package server exposes the safety-gated Braze operation catalog as MCP
// tools over stdio or streamable HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/brazegate/internal/auth"
	"github.com/tombee/brazegate/internal/log"
	"github.com/tombee/brazegate/internal/safety"
	"github.com/tombee/brazegate/internal/tracing"
)

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// Server wraps the MCP server and the dispatcher behind its tools.
type Server struct {
	mcpServer  *server.MCPServer
	dispatcher *safety.Dispatcher
	name       string
	version    string
	logger     *slog.Logger
	tools      *log.ToolMiddleware
	auth       auth.Config
}

// ServerConfig configures the MCP server
type ServerConfig struct {
	// Name is the server name (default: "brazegate")
	Name string

	// Version is the brazegate version
	Version string

	// Dispatcher runs every call_function invocation. Required.
	Dispatcher *safety.Dispatcher

	// Logger receives tool call logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Auth guards the HTTP endpoint with bearer tokens when a secret is set.
	Auth auth.Config
}

// NewServer creates a new MCP server instance
func NewServer(config ServerConfig) (*Server, error) {
	if config.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if config.Name == "" {
		config.Name = "brazegate"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "mcp")

	s := &Server{
		mcpServer:  server.NewMCPServer(config.Name, config.Version, server.WithToolCapabilities(false)),
		dispatcher: config.Dispatcher,
		name:       config.Name,
		version:    config.Version,
		logger:     logger,
		tools:      log.NewToolMiddleware(logger),
		auth:       config.Auth,
	}
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Run serves MCP over stdin/stdout until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "name", s.name, "version", s.version, "transport", "stdio")

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server error: %w", err)
	}

	s.logger.Info("MCP server stopped")
	return nil
}

// HTTPHandler returns the streamable HTTP transport. The correlation ID
// and the authenticated subject are carried into tool handlers.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer,
		server.WithEndpointPath(EndpointPath),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id := tracing.FromContextOrEmpty(r.Context()); id != "" {
				ctx = tracing.ToContext(ctx, id)
			}
			if claims, ok := auth.FromContext(r.Context()); ok {
				ctx = safety.WithCaller(ctx, claims.Subject)
			}
			return ctx
		}),
	)
}

// errorResponse creates an error response
func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// textResponse creates a text response
func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

// jsonResponse renders v as indented JSON text.
func jsonResponse(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("failed to encode response: %v", err)), nil
	}
	return textResponse(string(data)), nil
}
