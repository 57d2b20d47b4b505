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

package operations

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/brazegate/internal/braze"
	"github.com/tombee/brazegate/internal/commands/shared"
	mcpserver "github.com/tombee/brazegate/internal/mcp/server"
	"github.com/tombee/brazegate/internal/safety"
)

// NewCommand creates the operations command.
func NewCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "List available Braze write operations",
		Long: `List every Braze write operation in the catalog with its rate limit
class and whether it is destructive.

Destructive operations require confirm=true. Operations in the send class
share the hourly send quota; catalog_update operations share the
per-minute catalog quota.

Examples:
  brazegate operations
  brazegate operations --verbose
  brazegate operations --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := buildCatalog()
			if err != nil {
				return err
			}

			list := mcpserver.ListFunctions(catalog)
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), list)
			}
			return render(cmd.OutOrStdout(), list, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show parameters for each operation")

	return cmd
}

// buildCatalog registers the Braze operations without a live client.
func buildCatalog() (*safety.Catalog, error) {
	catalog := safety.NewCatalog()
	if err := braze.Register(catalog, braze.NewClient("", "")); err != nil {
		return nil, fmt.Errorf("failed to register operations: %w", err)
	}
	catalog.Freeze()
	return catalog, nil
}

func render(out io.Writer, list mcpserver.FunctionList, verbose bool) error {
	st := shared.NewStyler(out)

	fmt.Fprintln(out, st.Render(shared.Header, fmt.Sprintf("%d operations", list.TotalFunctions)))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRATE CLASS\tDESTRUCTIVE\tDESCRIPTION")
	for _, op := range list.Operations {
		destructive := "no"
		if op.Destructive {
			destructive = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", op.Name, op.RateLimitClass, destructive, op.Description)
		if verbose {
			for _, p := range op.Parameters {
				fmt.Fprintf(w, "\t\t\t  %s\n", st.Render(shared.Muted, describeParameter(p)))
			}
		}
	}
	return w.Flush()
}

func describeParameter(p safety.Parameter) string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(" (")
	b.WriteString(p.Type)
	if p.Required {
		b.WriteString(", required")
	}
	b.WriteString(")")
	if p.Description != "" {
		b.WriteString(": ")
		b.WriteString(p.Description)
	}
	return b.String()
}
