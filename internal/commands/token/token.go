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


// Package token implements the token command.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/brazegate/internal/auth"
	"github.com/tombee/brazegate/internal/commands/shared"
	"github.com/tombee/brazegate/internal/config"
)

// NewCommand creates the token command.
func NewCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for the HTTP transport",
		Long: `Issue a bearer token for the HTTP MCP endpoint, signed with
BRAZEGATE_HTTP_JWT_SECRET. The subject names the caller and is recorded
with every audited call made with the token.

Examples:
  brazegate token ci-bot
  brazegate token ci-bot --ttl 2h --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				return shared.NewConfigError("invalid --ttl", fmt.Errorf("must be positive, got %s", ttl))
			}
			cfg, err := config.Load(config.ResolvePath(shared.GetConfigPath()))
			if err != nil {
				return shared.NewConfigError("failed to load configuration", err)
			}
			verifier := cfg.Server.Auth.Verifier()
			if !verifier.Enabled() {
				return shared.NewConfigError("cannot issue token",
					errors.New("BRAZEGATE_HTTP_JWT_SECRET is not set"))
			}

			now := time.Now()
			signed, err := auth.Issue(verifier, args[0], ttl, now)
			if err != nil {
				return shared.NewOperationError("failed to issue token", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), map[string]any{
					"token":      signed,
					"subject":    args[0],
					"expires_at": now.Add(ttl).UTC(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "Token lifetime")
	return cmd
}
