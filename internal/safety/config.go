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

package safety

import (
	"fmt"
	"slices"
	"strings"
	"time"

	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

const (
	// SendWindow is the sliding window for RateClassSend.
	SendWindow = time.Hour
	// CatalogUpdateWindow is the sliding window for RateClassCatalogUpdate.
	CatalogUpdateWindow = time.Minute
)

// DefaultAllowedWorkspaces are the substrings a destination must contain
// unless production writes are allowed.
var DefaultAllowedWorkspaces = []string{"demo-", "poc-", "test-"}

// Config is the process-wide safety configuration. It is loaded once at
// startup and read-only afterwards.
type Config struct {
	// WriteEnabled is the global kill switch.
	WriteEnabled bool `yaml:"write_enabled" env:"BRAZE_WRITE_ENABLED"`

	// AllowProduction disables workspace pattern validation.
	AllowProduction bool `yaml:"allow_production" env:"BRAZE_ALLOW_PRODUCTION"`

	// AllowedWorkspaces are case-sensitive substrings matched against the
	// destination.
	AllowedWorkspaces []string `yaml:"allowed_workspaces" env:"BRAZE_ALLOWED_WORKSPACES" envSeparator:","`

	// DryRunDefault applies when a call omits dry_run.
	DryRunDefault bool `yaml:"dry_run_default" env:"BRAZE_DRY_RUN_DEFAULT"`

	MaxSendsPerHour         int `yaml:"max_sends_per_hour" env:"BRAZE_MAX_SENDS_PER_HOUR"`
	MaxCatalogUpdatesPerMin int `yaml:"max_catalog_updates_per_min" env:"BRAZE_MAX_CATALOG_UPDATES_PER_MIN"`

	// DryRunConsumesQuota makes previews count toward rate limits.
	DryRunConsumesQuota bool `yaml:"dry_run_consumes_quota" env:"BRAZE_DRY_RUN_CONSUMES_QUOTA"`
}

// DefaultConfig returns the fail-closed defaults: writes disabled,
// production disallowed.
func DefaultConfig() Config {
	return Config{
		AllowedWorkspaces:       slices.Clone(DefaultAllowedWorkspaces),
		MaxSendsPerHour:         1000,
		MaxCatalogUpdatesPerMin: 100,
		DryRunConsumesQuota:     true,
	}
}

// Normalize trims workspace patterns and drops empty entries.
func (c *Config) Normalize() {
	patterns := make([]string, 0, len(c.AllowedWorkspaces))
	for _, p := range c.AllowedWorkspaces {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	c.AllowedWorkspaces = patterns
}

// Validate checks numeric limits.
func (c Config) Validate() error {
	if c.MaxSendsPerHour < 0 {
		return &gateerrors.ConfigError{
			Key:    "BRAZE_MAX_SENDS_PER_HOUR",
			Reason: fmt.Sprintf("must be >= 0, got %d", c.MaxSendsPerHour),
		}
	}
	if c.MaxCatalogUpdatesPerMin < 0 {
		return &gateerrors.ConfigError{
			Key:    "BRAZE_MAX_CATALOG_UPDATES_PER_MIN",
			Reason: fmt.Sprintf("must be >= 0, got %d", c.MaxCatalogUpdatesPerMin),
		}
	}
	return nil
}

// RateLimits derives the per-class quotas.
func (c Config) RateLimits() map[RateClass]RateLimit {
	return map[RateClass]RateLimit{
		RateClassSend:          {Max: c.MaxSendsPerHour, Window: SendWindow},
		RateClassCatalogUpdate: {Max: c.MaxCatalogUpdatesPerMin, Window: CatalogUpdateWindow},
	}
}

// IsSafeDestination reports whether writes to dest pass workspace
// validation: production is allowed, or dest contains a pattern. Blank
// patterns never match.
func (c Config) IsSafeDestination(dest string) bool {
	if c.AllowProduction {
		return true
	}
	for _, p := range c.AllowedWorkspaces {
		p = strings.TrimSpace(p)
		if p != "" && strings.Contains(dest, p) {
			return true
		}
	}
	return false
}
