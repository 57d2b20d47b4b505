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

// Package config loads brazegate configuration from defaults, an optional
// YAML or TOML file and environment variables, in that order of
// precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/tombee/brazegate/internal/audit"
	"github.com/tombee/brazegate/internal/auth"
	"github.com/tombee/brazegate/internal/safety"
	"github.com/tombee/brazegate/internal/tracing"
	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

// Transport names accepted by ServerConfig.Transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the complete brazegate configuration.
type Config struct {
	Safety  safety.Config `yaml:"safety"`
	Braze   BrazeConfig   `yaml:"braze"`
	Server  ServerConfig  `yaml:"server"`
	Tracing TracingConfig `yaml:"tracing"`

	// Audit persists the write audit trail to a local file when a path is set.
	Audit audit.Config `yaml:"audit"`

	// RateLimitStore moves rate-limit windows to Redis when a URL is set.
	RateLimitStore RateLimitStoreConfig `yaml:"rate_limit_store"`
}

// RateLimitStoreConfig points at a Redis server shared by every gateway
// process writing to the same workspace.
type RateLimitStoreConfig struct {
	// URL is a redis:// or rediss:// URL. Empty keeps windows in memory.
	URL       string        `yaml:"url" json:"-" env:"BRAZEGATE_RATE_LIMIT_REDIS_URL"`
	KeyPrefix string        `yaml:"key_prefix" env:"BRAZEGATE_RATE_LIMIT_REDIS_PREFIX"`
	Timeout   time.Duration `yaml:"timeout" env:"BRAZEGATE_RATE_LIMIT_REDIS_TIMEOUT"`
}

// Enabled reports whether a Redis URL is configured.
func (c RateLimitStoreConfig) Enabled() bool { return c.URL != "" }

// BrazeConfig configures the REST client.
type BrazeConfig struct {
	// APIKey is never read from the config file. When unset it is resolved
	// from the OS keychain.
	APIKey string `yaml:"-" json:"-" env:"BRAZE_API_KEY"`

	// BaseURL is the REST endpoint and doubles as the workspace identifier
	// checked against the allowed patterns.
	BaseURL string `yaml:"base_url" env:"BRAZE_BASE_URL"`

	Timeout           time.Duration `yaml:"timeout" env:"BRAZE_HTTP_TIMEOUT"`
	RetryAttempts     int           `yaml:"retry_attempts" env:"BRAZE_HTTP_RETRIES"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"BRAZE_HTTP_RPS"`
}

// ServerConfig configures the MCP server transport.
type ServerConfig struct {
	// Transport is "stdio" or "http".
	Transport string `yaml:"transport" env:"BRAZEGATE_TRANSPORT"`

	// Addr is the listen address for the http transport.
	Addr string `yaml:"addr" env:"BRAZEGATE_ADDR"`

	// MetricsAddr, when set with the stdio transport, serves /metrics and
	// /healthz on a separate listener.
	MetricsAddr string `yaml:"metrics_addr" env:"BRAZEGATE_METRICS_ADDR"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"BRAZEGATE_SHUTDOWN_TIMEOUT"`

	// Auth requires a bearer token on /mcp when a secret is set.
	Auth HTTPAuthConfig `yaml:"auth"`
}

// minJWTSecretLen is the HS256 key size.
const minJWTSecretLen = 32

// HTTPAuthConfig configures bearer-token authentication for the http
// transport. The secret is only read from the environment.
type HTTPAuthConfig struct {
	Secret    string        `yaml:"-" json:"-" env:"BRAZEGATE_HTTP_JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env:"BRAZEGATE_HTTP_JWT_ISSUER"`
	Audience  string        `yaml:"audience" env:"BRAZEGATE_HTTP_JWT_AUDIENCE"`
	ClockSkew time.Duration `yaml:"clock_skew" env:"BRAZEGATE_HTTP_JWT_CLOCK_SKEW"`
}

// Verifier returns the token settings used by the HTTP middleware.
func (c HTTPAuthConfig) Verifier() auth.Config {
	return auth.Config{
		Secret:    []byte(c.Secret),
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		ClockSkew: c.ClockSkew,
	}
}

// TracingConfig selects span exporters. Tracing is off when neither is set.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPProtocol string `yaml:"otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	OTLPInsecure bool   `yaml:"otlp_insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	Console      bool   `yaml:"console" env:"BRAZEGATE_TRACE_CONSOLE"`
}

// Default returns a configuration with default values applied.
func Default() *Config {
	return &Config{
		Safety: safety.DefaultConfig(),
		Braze: BrazeConfig{
			Timeout:           30 * time.Second,
			RetryAttempts:     2,
			RequestsPerSecond: 10,
		},
		Server: ServerConfig{
			Transport:       TransportStdio,
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
			Auth:            HTTPAuthConfig{Issuer: "brazegate", ClockSkew: 30 * time.Second},
		},
		RateLimitStore: RateLimitStoreConfig{
			KeyPrefix: "brazegate",
			Timeout:   2 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at
// configPath (if non-empty) and the process environment.
func Load(configPath string) (*Config, error) {
	return load(configPath, nil)
}

// LoadWithEnv is Load with an explicit environment instead of the
// process environment.
func LoadWithEnv(configPath string, environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(configPath, environ)
}

func load(configPath string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &gateerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	if err := parseEnv(cfg, environ); err != nil {
		return nil, &gateerrors.ConfigError{
			Key:    "environment",
			Reason: "failed to parse environment variables",
			Cause:  err,
		}
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if data, err = tomlToYAML(data); err != nil {
			return err
		}
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// tomlToYAML re-encodes a TOML document as YAML so that one set of yaml
// struct tags describes both file formats.
func tomlToYAML(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert TOML: %w", err)
	}
	return out, nil
}

func (c *Config) normalize() {
	c.Safety.Normalize()
	c.Braze.BaseURL = strings.TrimRight(strings.TrimSpace(c.Braze.BaseURL), "/")
	c.Server.Transport = strings.ToLower(strings.TrimSpace(c.Server.Transport))
	c.Tracing.OTLPProtocol = strings.ToLower(strings.TrimSpace(c.Tracing.OTLPProtocol))
	c.Audit.Path = strings.TrimSpace(c.Audit.Path)
	c.Audit.Format = strings.ToLower(strings.TrimSpace(c.Audit.Format))
	c.RateLimitStore.URL = strings.TrimSpace(c.RateLimitStore.URL)
}

// Validate checks the configuration and returns a *errors.ConfigError
// describing the first problem found.
func (c *Config) Validate() error {
	if err := c.Safety.Validate(); err != nil {
		return err
	}

	if c.Braze.BaseURL != "" {
		u, err := url.Parse(c.Braze.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &gateerrors.ConfigError{
				Key:    "BRAZE_BASE_URL",
				Reason: fmt.Sprintf("must be an http(s) URL, got %q", c.Braze.BaseURL),
				Cause:  err,
			}
		}
	}
	if c.Braze.Timeout < 0 {
		return &gateerrors.ConfigError{Key: "BRAZE_HTTP_TIMEOUT", Reason: "must not be negative"}
	}
	if c.Braze.RetryAttempts < 0 {
		return &gateerrors.ConfigError{Key: "BRAZE_HTTP_RETRIES", Reason: "must not be negative"}
	}
	if c.Braze.RequestsPerSecond < 0 {
		return &gateerrors.ConfigError{Key: "BRAZE_HTTP_RPS", Reason: "must not be negative"}
	}

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return &gateerrors.ConfigError{
			Key:    "BRAZEGATE_TRANSPORT",
			Reason: fmt.Sprintf("must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport),
		}
	}
	if c.Server.Transport == TransportHTTP && c.Server.Addr == "" {
		return &gateerrors.ConfigError{Key: "BRAZEGATE_ADDR", Reason: "required for the http transport"}
	}
	if s := c.Server.Auth.Secret; s != "" && len(s) < minJWTSecretLen {
		return &gateerrors.ConfigError{
			Key:    "BRAZEGATE_HTTP_JWT_SECRET",
			Reason: fmt.Sprintf("must be at least %d bytes", minJWTSecretLen),
		}
	}
	if c.Server.Auth.ClockSkew < 0 {
		return &gateerrors.ConfigError{Key: "BRAZEGATE_HTTP_JWT_CLOCK_SKEW", Reason: "must not be negative"}
	}

	switch c.Tracing.OTLPProtocol {
	case "", tracing.ProtocolHTTP, tracing.ProtocolGRPC:
	default:
		return &gateerrors.ConfigError{
			Key:    "OTEL_EXPORTER_OTLP_PROTOCOL",
			Reason: fmt.Sprintf("must be %q or %q, got %q", tracing.ProtocolHTTP, tracing.ProtocolGRPC, c.Tracing.OTLPProtocol),
		}
	}

	switch c.Audit.Format {
	case "", audit.FormatJSON, audit.FormatText:
	default:
		return &gateerrors.ConfigError{
			Key:    "BRAZEGATE_AUDIT_FORMAT",
			Reason: fmt.Sprintf("must be %q or %q, got %q", audit.FormatJSON, audit.FormatText, c.Audit.Format),
		}
	}
	if c.Audit.MaxSize < 0 {
		return &gateerrors.ConfigError{Key: "BRAZEGATE_AUDIT_MAX_SIZE", Reason: "must not be negative"}
	}
	if c.Audit.MaxAge < 0 {
		return &gateerrors.ConfigError{Key: "BRAZEGATE_AUDIT_MAX_AGE", Reason: "must not be negative"}
	}
	if c.Audit.BufferSize < 0 {
		return &gateerrors.ConfigError{Key: "BRAZEGATE_AUDIT_BUFFER_SIZE", Reason: "must not be negative"}
	}

	if c.RateLimitStore.Enabled() {
		// Neither the URL nor the parse error is echoed: both may carry
		// the password.
		if _, err := redis.ParseURL(c.RateLimitStore.URL); err != nil {
			return &gateerrors.ConfigError{
				Key:    "BRAZEGATE_RATE_LIMIT_REDIS_URL",
				Reason: "must be a redis:// or rediss:// URL",
			}
		}
	}
	if c.RateLimitStore.Timeout <= 0 {
		return &gateerrors.ConfigError{Key: "BRAZEGATE_RATE_LIMIT_REDIS_TIMEOUT", Reason: "must be positive"}
	}
	return nil
}

// RequireBaseURL reports an error when no Braze endpoint is configured.
func (c *Config) RequireBaseURL() error {
	if c.Braze.BaseURL == "" {
		return &gateerrors.ConfigError{
			Key:    "BRAZE_BASE_URL",
			Reason: "is required (for example https://rest.iad-01.braze.com)",
		}
	}
	return nil
}
