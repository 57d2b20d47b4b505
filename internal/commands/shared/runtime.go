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

package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tombee/brazegate/internal/audit"
	"github.com/tombee/brazegate/internal/braze"
	"github.com/tombee/brazegate/internal/config"
	"github.com/tombee/brazegate/internal/jq"
	"github.com/tombee/brazegate/internal/log"
	"github.com/tombee/brazegate/internal/ratestore"
	"github.com/tombee/brazegate/internal/safety"
	"github.com/tombee/brazegate/internal/secrets"
	"github.com/tombee/brazegate/internal/tracing"
	pkgerrors "github.com/tombee/brazegate/pkg/errors"
	"github.com/tombee/brazegate/pkg/httpclient"
)

// NewSecretResolver builds the resolver used to find the Braze API key.
// Tests replace it to avoid touching the system keychain.
var NewSecretResolver = secrets.NewDefaultResolver

// Runtime holds the components a command needs to dispatch operations.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Catalog    *safety.Catalog
	Dispatcher *safety.Dispatcher

	tracing *tracing.Provider
	audit   *audit.Logger
	redis   *redis.Client
}

// NewRuntime loads configuration, resolves credentials and assembles the
// catalog and dispatcher. Overrides apply CLI flags on top of the file
// and environment, and the result is validated again.
func NewRuntime(ctx context.Context, overrides ...func(*config.Config)) (*Runtime, error) {
	cfg, err := config.Load(config.ResolvePath(GetConfigPath()))
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError("invalid configuration", err)
	}

	logCfg := log.FromEnv()
	if level := GetLogLevel(); level != "" {
		logCfg.Level = level
	}
	logCfg.Output = os.Stderr
	logger := log.New(logCfg)

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:    "brazegate",
		ServiceVersion: globals.version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		OTLPProtocol:   cfg.Tracing.OTLPProtocol,
		OTLPInsecure:   cfg.Tracing.OTLPInsecure,
		Console:        cfg.Tracing.Console,
		ConsoleWriter:  os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	rt := &Runtime{Config: cfg, Logger: logger, tracing: provider}
	if err := rt.assemble(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// assemble builds everything after tracing. Resources it opens are
// recorded on rt so Close releases them on failure.
func (rt *Runtime) assemble(ctx context.Context) error {
	cfg, logger := rt.Config, rt.Logger

	apiKey := resolveAPIKey(ctx, cfg, logger)
	logger.Debug("configuration loaded",
		"base_url", cfg.Braze.BaseURL,
		"api_key", log.SanitizeAPIKey(apiKey),
		"write_enabled", cfg.Safety.WriteEnabled,
		"allow_production", cfg.Safety.AllowProduction,
		"dry_run_default", cfg.Safety.DryRunDefault,
		"shared_rate_limits", cfg.RateLimitStore.Enabled(),
	)

	httpCfg := httpclient.DefaultConfig()
	if cfg.Braze.Timeout > 0 {
		httpCfg.Timeout = cfg.Braze.Timeout
	}
	httpCfg.RetryAttempts = cfg.Braze.RetryAttempts
	if cfg.Braze.RequestsPerSecond > 0 {
		httpCfg.RequestsPerSecond = cfg.Braze.RequestsPerSecond
	}
	httpCfg.UserAgent = "brazegate/" + globals.version
	httpCfg.Logger = log.WithComponent(logger, "httpclient")

	hc, err := httpclient.New(httpCfg)
	if err != nil {
		return NewConfigError("invalid HTTP client configuration", err)
	}

	client := braze.NewClient(cfg.Braze.BaseURL, apiKey,
		braze.WithHTTPClient(hc),
		braze.WithLogger(logger),
	)

	rt.Catalog = safety.NewCatalog()
	if err := braze.Register(rt.Catalog, client); err != nil {
		return fmt.Errorf("failed to register operations: %w", err)
	}
	rt.Catalog.Freeze()

	opts := []safety.DispatcherOption{
		safety.WithLogger(logger),
		safety.WithTracer(rt.tracing.Tracer("github.com/tombee/brazegate/internal/safety")),
		safety.WithResultTransform(jq.NewExecutor(0, 0)),
	}

	if cfg.RateLimitStore.Enabled() {
		quota, err := rt.openRateLimitStore(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, safety.WithQuota(quota))
	}

	if cfg.Audit.Enabled() {
		rt.audit, err = audit.NewLogger(cfg.Audit, log.WithComponent(logger, "audit"))
		if err != nil {
			return NewConfigError("failed to open audit file", err)
		}
		opts = append(opts, safety.WithAuditSink(safety.MultiAuditSink(
			safety.NewSlogAuditSink(logger),
			rt.audit,
		)))
	}

	rt.Dispatcher = safety.NewDispatcher(rt.Catalog, cfg.Safety, cfg.Braze.BaseURL, opts...)
	return nil
}

// openRateLimitStore connects to Redis and checks it answers before any
// call is admitted against it.
func (rt *Runtime) openRateLimitStore(ctx context.Context) (*ratestore.Store, error) {
	storeCfg := rt.Config.RateLimitStore
	redisOpts, err := redis.ParseURL(storeCfg.URL)
	if err != nil {
		return nil, NewConfigError("invalid rate limit store", &pkgerrors.ConfigError{
			Key:    "BRAZEGATE_RATE_LIMIT_REDIS_URL",
			Reason: "must be a redis:// or rediss:// URL",
		})
	}
	redisOpts.DialTimeout = storeCfg.Timeout
	redisOpts.ReadTimeout = storeCfg.Timeout
	redisOpts.WriteTimeout = storeCfg.Timeout
	rt.redis = redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, storeCfg.Timeout)
	defer cancel()
	if err := rt.redis.Ping(pingCtx).Err(); err != nil {
		return nil, NewConfigError("rate limit store unreachable", &pkgerrors.ConfigError{
			Key:    "BRAZEGATE_RATE_LIMIT_REDIS_URL",
			Reason: "redis did not answer PING",
			Cause:  err,
		})
	}

	return ratestore.New(rt.redis, rt.Config.Safety.RateLimits(), rt.Config.Braze.BaseURL,
		ratestore.WithPrefix(storeCfg.KeyPrefix)), nil
}

// Close drains the audit file, closes the quota store connection and
// flushes pending spans within the configured shutdown timeout.
func (r *Runtime) Close() error {
	var errs []error
	if r.audit != nil {
		if err := r.audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audit: %w", err))
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rate limit store: %w", err))
		}
	}
	if r.tracing != nil {
		timeout := r.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := r.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}

// resolveAPIKey prefers BRAZE_API_KEY from configuration and falls back
// to the secret store. A missing key is not an error until a request is
// made.
func resolveAPIKey(ctx context.Context, cfg *config.Config, logger *slog.Logger) string {
	if cfg.Braze.APIKey != "" {
		return cfg.Braze.APIKey
	}
	key, err := NewSecretResolver().Get(ctx, secrets.APIKeyName)
	if err != nil {
		if !errors.Is(err, secrets.ErrSecretNotFound) {
			logger.Warn("failed to read API key from secret store", log.Error(err))
		}
		return ""
	}
	return key
}
