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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Safety.WriteEnabled {
		t.Error("writes must be disabled by default")
	}
	if cfg.Safety.AllowProduction {
		t.Error("production must be disallowed by default")
	}
	if cfg.Braze.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Braze.Timeout)
	}
	if cfg.Braze.RetryAttempts != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.Braze.RetryAttempts)
	}
	if cfg.Server.Transport != TransportStdio {
		t.Errorf("expected stdio transport, got %q", cfg.Server.Transport)
	}
}

func TestLoadWithEnv_DefaultsOnly(t *testing.T) {
	cfg, err := LoadWithEnv("", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"demo-", "poc-", "test-"}, cfg.Safety.AllowedWorkspaces)
	assert.Equal(t, 1000, cfg.Safety.MaxSendsPerHour)
	assert.Equal(t, 100, cfg.Safety.MaxCatalogUpdatesPerMin)
	assert.True(t, cfg.Safety.DryRunConsumesQuota)
	assert.Empty(t, cfg.Braze.BaseURL)
}

func TestLoadWithEnv_EnvironmentOverrides(t *testing.T) {
	cfg, err := LoadWithEnv("", map[string]string{
		"BRAZE_WRITE_ENABLED":               "true",
		"BRAZE_ALLOW_PRODUCTION":            "false",
		"BRAZE_ALLOWED_WORKSPACES":          " sandbox- , ,staging- ",
		"BRAZE_DRY_RUN_DEFAULT":             "1",
		"BRAZE_MAX_SENDS_PER_HOUR":          "50",
		"BRAZE_MAX_CATALOG_UPDATES_PER_MIN": "5",
		"BRAZE_DRY_RUN_CONSUMES_QUOTA":      "false",
		"BRAZE_API_KEY":                     "key-123",
		"BRAZE_BASE_URL":                    "https://rest.demo-01.braze.com/",
		"BRAZE_HTTP_TIMEOUT":                "5s",
		"BRAZE_HTTP_RETRIES":                "0",
		"BRAZE_HTTP_RPS":                    "2.5",
		"BRAZEGATE_TRANSPORT":               "HTTP",
		"BRAZEGATE_ADDR":                    "127.0.0.1:9000",
		"BRAZEGATE_TRACE_CONSOLE":           "true",
		"OTEL_EXPORTER_OTLP_PROTOCOL":       "GRPC",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Safety.WriteEnabled)
	assert.False(t, cfg.Safety.AllowProduction)
	assert.Equal(t, []string{"sandbox-", "staging-"}, cfg.Safety.AllowedWorkspaces)
	assert.True(t, cfg.Safety.DryRunDefault)
	assert.Equal(t, 50, cfg.Safety.MaxSendsPerHour)
	assert.Equal(t, 5, cfg.Safety.MaxCatalogUpdatesPerMin)
	assert.False(t, cfg.Safety.DryRunConsumesQuota)

	assert.Equal(t, "key-123", cfg.Braze.APIKey)
	assert.Equal(t, "https://rest.demo-01.braze.com", cfg.Braze.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Braze.Timeout)
	assert.Equal(t, 0, cfg.Braze.RetryAttempts)
	assert.Equal(t, 2.5, cfg.Braze.RequestsPerSecond)

	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Tracing.Console)
	assert.Equal(t, "grpc", cfg.Tracing.OTLPProtocol)
}

func TestLoadWithEnv_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
safety:
  write_enabled: true
  allowed_workspaces: ["demo-"]
  max_sends_per_hour: 10
braze:
  base_url: https://rest.demo-01.braze.com
  api_key: must-be-ignored
server:
  transport: http
  addr: ":7000"
`)

	cfg, err := LoadWithEnv(path, map[string]string{
		"BRAZE_MAX_SENDS_PER_HOUR": "20",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Safety.WriteEnabled, "file value survives when env is unset")
	assert.Equal(t, []string{"demo-"}, cfg.Safety.AllowedWorkspaces)
	assert.Equal(t, 20, cfg.Safety.MaxSendsPerHour, "env wins over file")
	assert.Equal(t, 100, cfg.Safety.MaxCatalogUpdatesPerMin, "default survives")
	assert.Equal(t, "https://rest.demo-01.braze.com", cfg.Braze.BaseURL)
	assert.Empty(t, cfg.Braze.APIKey, "api key is never read from file")
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadWithEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantKey string
	}{
		{"bad bool", map[string]string{"BRAZE_WRITE_ENABLED": "maybe"}, "environment"},
		{"bad int", map[string]string{"BRAZE_MAX_SENDS_PER_HOUR": "lots"}, "environment"},
		{"negative sends", map[string]string{"BRAZE_MAX_SENDS_PER_HOUR": "-1"}, "BRAZE_MAX_SENDS_PER_HOUR"},
		{"negative catalog", map[string]string{"BRAZE_MAX_CATALOG_UPDATES_PER_MIN": "-1"}, "BRAZE_MAX_CATALOG_UPDATES_PER_MIN"},
		{"bad url", map[string]string{"BRAZE_BASE_URL": "rest.braze.com"}, "BRAZE_BASE_URL"},
		{"negative rps", map[string]string{"BRAZE_HTTP_RPS": "-1"}, "BRAZE_HTTP_RPS"},
		{"bad transport", map[string]string{"BRAZEGATE_TRANSPORT": "grpc"}, "BRAZEGATE_TRANSPORT"},
		{"bad otlp protocol", map[string]string{"OTEL_EXPORTER_OTLP_PROTOCOL": "http/json"}, "OTEL_EXPORTER_OTLP_PROTOCOL"},
		{"bad audit format", map[string]string{"BRAZEGATE_AUDIT_FORMAT": "xml"}, "BRAZEGATE_AUDIT_FORMAT"},
		{"negative audit size", map[string]string{"BRAZEGATE_AUDIT_MAX_SIZE": "-1"}, "BRAZEGATE_AUDIT_MAX_SIZE"},
		{"bad redis url", map[string]string{"BRAZEGATE_RATE_LIMIT_REDIS_URL": "http://cache:6379"}, "BRAZEGATE_RATE_LIMIT_REDIS_URL"},
		{"short jwt secret", map[string]string{"BRAZEGATE_HTTP_JWT_SECRET": "short"}, "BRAZEGATE_HTTP_JWT_SECRET"},
		{"negative jwt skew", map[string]string{"BRAZEGATE_HTTP_JWT_CLOCK_SKEW": "-1s"}, "BRAZEGATE_HTTP_JWT_CLOCK_SKEW"},
		{"zero redis timeout", map[string]string{"BRAZEGATE_RATE_LIMIT_REDIS_TIMEOUT": "0s"}, "BRAZEGATE_RATE_LIMIT_REDIS_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv("", tt.env)
			require.Error(t, err)

			var cfgErr *gateerrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestLoadWithEnv_Audit(t *testing.T) {
	path := writeConfig(t, `
audit:
  path: /var/log/brazegate/audit.jsonl
  rotate_daily: true
`)

	cfg, err := LoadWithEnv(path, map[string]string{
		"BRAZEGATE_AUDIT_FORMAT":  " TEXT ",
		"BRAZEGATE_AUDIT_MAX_AGE": "720h",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Audit.Enabled())
	assert.Equal(t, "/var/log/brazegate/audit.jsonl", cfg.Audit.Path)
	assert.Equal(t, "text", cfg.Audit.Format)
	assert.True(t, cfg.Audit.RotateDaily)
	assert.Equal(t, 720*time.Hour, cfg.Audit.MaxAge)
	assert.False(t, Default().Audit.Enabled())
}

func TestLoadWithEnv_RateLimitStore(t *testing.T) {
	cfg, err := LoadWithEnv("", nil)
	require.NoError(t, err)
	assert.False(t, cfg.RateLimitStore.Enabled())
	assert.Equal(t, "brazegate", cfg.RateLimitStore.KeyPrefix)
	assert.Equal(t, 2*time.Second, cfg.RateLimitStore.Timeout)

	cfg, err = LoadWithEnv("", map[string]string{
		"BRAZEGATE_RATE_LIMIT_REDIS_URL":    " redis://:secret@cache:6379/2 ",
		"BRAZEGATE_RATE_LIMIT_REDIS_PREFIX": "staging",
	})
	require.NoError(t, err)
	assert.True(t, cfg.RateLimitStore.Enabled())
	assert.Equal(t, "redis://:secret@cache:6379/2", cfg.RateLimitStore.URL)
	assert.Equal(t, "staging", cfg.RateLimitStore.KeyPrefix)
}

func TestLoadWithEnv_HTTPAuth(t *testing.T) {
	path := writeConfig(t, `
server:
  transport: http
  auth:
    audience: brazegate-mcp
`)

	cfg, err := LoadWithEnv(path, nil)
	require.NoError(t, err)
	assert.False(t, cfg.Server.Auth.Verifier().Enabled())

	cfg, err = LoadWithEnv(path, map[string]string{
		"BRAZEGATE_HTTP_JWT_SECRET": "0123456789abcdef0123456789abcdef",
	})
	require.NoError(t, err)

	v := cfg.Server.Auth.Verifier()
	assert.True(t, v.Enabled())
	assert.Equal(t, "brazegate", v.Issuer)
	assert.Equal(t, "brazegate-mcp", v.Audience)
	assert.Equal(t, 30*time.Second, v.ClockSkew)
}

func TestLoadWithEnv_RedisURLNotEchoed(t *testing.T) {
	_, err := LoadWithEnv("", map[string]string{"BRAZEGATE_RATE_LIMIT_REDIS_URL": "ftp://:hunter2@cache"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestLoadWithEnv_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[braze]
base_url = "https://rest.demo-01.braze.example/"
timeout = "12s"

[safety]
write_enabled = true
allowed_workspaces = ["demo-", "sandbox-"]
max_sends_per_hour = 50

[server]
transport = "http"
addr = ":9090"
`), 0o600))

	cfg, err := LoadWithEnv(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://rest.demo-01.braze.example", cfg.Braze.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.Braze.Timeout)
	assert.True(t, cfg.Safety.WriteEnabled)
	assert.Equal(t, []string{"demo-", "sandbox-"}, cfg.Safety.AllowedWorkspaces)
	assert.Equal(t, 50, cfg.Safety.MaxSendsPerHour)
	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoadWithEnv_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[safety\nwrite_enabled ="), 0o600))

	_, err := LoadWithEnv(path, nil)
	var cfgErr *gateerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "config_file", cfgErr.Key)
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"), nil)

	var cfgErr *gateerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "config_file", cfgErr.Key)
}

func TestLoadWithEnv_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "safety: [unclosed")
	_, err := LoadWithEnv(path, nil)
	assert.Error(t, err)
}

func TestRequireBaseURL(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.RequireBaseURL())

	cfg.Braze.BaseURL = "https://rest.demo-01.braze.com"
	assert.NoError(t, cfg.RequireBaseURL())
}

func TestResolvePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvConfigPath, "")

	assert.Equal(t, "/explicit.yaml", ResolvePath("/explicit.yaml"))
	assert.Empty(t, ResolvePath(""), "no default file present")

	dir, err := ConfigDir()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o700))

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(""), 0o600))
	assert.Equal(t, tomlPath, ResolvePath(""))

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("{}"), 0o600))
	assert.Equal(t, yamlPath, ResolvePath(""), "yaml wins when both exist")

	t.Setenv(EnvConfigPath, "/from-env.yaml")
	assert.Equal(t, "/from-env.yaml", ResolvePath(""))
}
