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

// Package braze implements the Braze REST write operations and registers
// them in the safety catalog.
package braze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tombee/brazegate/internal/log"
	"github.com/tombee/brazegate/internal/secrets"
	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

const (
	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 << 20

	// maxTracedBody caps bodies written at trace level.
	maxTracedBody = 2048
)

// Client calls the Braze REST API with bearer authentication.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	masker  *secrets.Masker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for baseURL. The API key may be empty, in
// which case every call fails with a configuration error.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    http.DefaultClient,
		logger:  slog.Default(),
		masker:  secrets.NewMasker(apiKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends body as JSON to path and decodes the JSON response. Non-2xx
// responses return *APIError. A 2xx body that is not a JSON object is
// returned under "raw_response" (non-JSON) or "data" (other JSON).
func (c *Client) Do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	if c.apiKey == "" {
		return nil, &gateerrors.ConfigError{
			Key:    "BRAZE_API_KEY",
			Reason: "no API key configured; set BRAZE_API_KEY or run 'brazegate credentials set'",
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
		log.Trace(ctx, c.logger, "braze request body",
			slog.String("path", path), slog.String("body", c.traceBody(data)))
	}

	url := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, gateerrors.Wrapf(err, "braze %s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, gateerrors.Wrap(err, "reading response")
	}

	log.Trace(ctx, c.logger, "braze response body",
		slog.String("path", path), slog.Int("status", resp.StatusCode), slog.String("body", c.traceBody(raw)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       c.masker.Value(decodeBody(raw)),
			RequestID:  resp.Header.Get("X-Request-Id"),
		}
		c.logger.WarnContext(ctx, "braze request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("error_type", apiErr.ErrorType()),
		)
		return nil, apiErr
	}

	return decodeResult(raw), nil
}

// traceBody masks the API key and truncates long bodies.
func (c *Client) traceBody(raw []byte) string {
	s := c.masker.String(string(raw))
	if len(s) > maxTracedBody {
		return s[:maxTracedBody] + "...(truncated)"
	}
	return s
}

func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func decodeResult(raw []byte) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"raw_response": string(raw)}
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"data": v}
}
