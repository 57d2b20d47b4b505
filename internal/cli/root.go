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

// Package cli assembles the brazegate command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/brazegate/internal/commands/credentials"
	"github.com/tombee/brazegate/internal/commands/invoke"
	"github.com/tombee/brazegate/internal/commands/operations"
	"github.com/tombee/brazegate/internal/commands/serve"
	"github.com/tombee/brazegate/internal/commands/shared"
	tokencmd "github.com/tombee/brazegate/internal/commands/token"
	versioncmd "github.com/tombee/brazegate/internal/commands/version"
	workspacecmd "github.com/tombee/brazegate/internal/commands/workspace"
	"github.com/tombee/brazegate/internal/log"
)

// SetVersion records build metadata injected by the linker.
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand returns the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brazegate",
		Short: "Safety-gated Braze write operations for AI agents",
		Long: `brazegate exposes Braze marketing API write operations to AI agents
over MCP.

Every call passes a global write switch, a workspace allowlist, a
confirmation step for destructive operations and sliding-window rate
limits before anything reaches Braze. Dry runs preview a call without
executing it.

Writes are off until BRAZE_WRITE_ENABLED=true. Start with:

  brazegate workspace      # what the gate will allow
  brazegate operations     # what can be called
  brazegate serve          # MCP over stdio`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: validateGlobalFlags,
	}

	json, config, logLevel := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/brazegate/config.yaml)")
	cmd.PersistentFlags().StringVar(logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		serve.NewCommand(),
		operations.NewCommand(),
		invoke.NewCommand(),
		workspacecmd.NewCommand(),
		credentials.NewCommand(),
		tokencmd.NewCommand(),
		versioncmd.NewVersionCommand(),
	)

	return cmd
}

func validateGlobalFlags(cmd *cobra.Command, args []string) error {
	if level := shared.GetLogLevel(); level != "" && !log.ValidLevel(level) {
		return shared.NewConfigError(fmt.Sprintf("invalid --log-level %q", level), nil)
	}
	return nil
}

// HandleExitError prints err and exits with its mapped code.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
