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

package workspace

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/brazegate/internal/commands/shared"
	mcpserver "github.com/tombee/brazegate/internal/mcp/server"
)

// NewCommand creates the workspace command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Show workspace safety settings",
		Long: `Show the configured Braze workspace and whether write operations
would be admitted against it.

A workspace is safe for writes when its URL contains one of the allowed
patterns (BRAZE_ALLOWED_WORKSPACES) or BRAZE_ALLOW_PRODUCTION=true.

Examples:
  brazegate workspace
  brazegate workspace --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := shared.NewRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			info := mcpserver.Workspace(cmd.Context(), rt.Dispatcher)
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), info)
			}
			render(cmd.OutOrStdout(), info)
			return nil
		},
	}

	return cmd
}

func render(out io.Writer, info mcpserver.WorkspaceInfo) {
	st := shared.NewStyler(out)

	baseURL := info.BaseURL
	if baseURL == "" {
		baseURL = st.Render(shared.Muted, "(not configured)")
	}

	fmt.Fprintln(out, st.Render(shared.Header, "Workspace"))
	fmt.Fprintf(out, "  %s %s\n", st.Render(shared.Muted, "Base URL:        "), baseURL)
	fmt.Fprintf(out, "  %s %s\n", st.Render(shared.Muted, "Allowed patterns:"), strings.Join(info.AllowedPatterns, ", "))
	fmt.Fprintln(out)

	fmt.Fprintln(out, st.Render(shared.Header, "Safety"))
	fmt.Fprintf(out, "  %s\n", st.Status(info.WriteEnabled, "Writes enabled"))
	if info.AllowProduction {
		fmt.Fprintf(out, "  %s\n", st.Warn("Production writes allowed"))
	}
	fmt.Fprintf(out, "  %s\n", st.Status(info.IsSafe, "Workspace allowed"))
	if info.DryRunDefault {
		fmt.Fprintf(out, "  %s\n", st.Status(true, "Dry run by default"))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, st.Render(shared.Header, "Rate limits"))
	if info.RateLimitsError != "" {
		fmt.Fprintf(out, "  %s\n", st.Warn("Quota store unavailable: "+info.RateLimitsError))
	}
	for _, u := range info.RateLimits {
		fmt.Fprintf(out, "  %-15s %d/%d per %s\n", u.Class, u.Count, u.Limit, u.Window)
	}
}
