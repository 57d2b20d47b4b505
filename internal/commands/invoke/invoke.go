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

package invoke

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/brazegate/internal/commands/shared"
	mcpserver "github.com/tombee/brazegate/internal/mcp/server"
	"github.com/tombee/brazegate/internal/safety"
)

type options struct {
	params  string
	confirm bool
	dryRun  *bool
	filter  string
	timeout time.Duration
}

// NewCommand creates the invoke command.
func NewCommand() *cobra.Command {
	var (
		opts   options
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "invoke <operation>",
		Short: "Run one operation through the safety gate",
		Long: `Run a single Braze write operation through the same safety gate the
MCP server uses, and print the response envelope as JSON.

Parameters are passed as a JSON object. Use --params - to read them from
standard input. The command exits with status 1 when the envelope is an
error, including refusals by the safety gate.

Examples:
  # Preview a send without contacting Braze
  brazegate invoke send_campaign --params '{"campaign_id": "abc"}' --dry-run

  # Delete a user (destructive operations need --confirm)
  brazegate invoke delete_user --params '{"external_id": "u1"}' --confirm

  # Keep only part of the response
  brazegate invoke track_event --params @event.json --filter '.message'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("dry-run") {
				opts.dryRun = &dryRun
			}
			return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.params, "params", "p", "", "Parameters as a JSON object, @file, or - for stdin")
	cmd.Flags().BoolVar(&opts.confirm, "confirm", false, "Confirm a destructive operation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the call without executing it (default from BRAZE_DRY_RUN_DEFAULT)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "jq expression applied to the response")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall timeout for the call")

	return cmd
}

func run(ctx context.Context, in io.Reader, out io.Writer, name string, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	rt, err := shared.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	env := dispatch(ctx, rt.Dispatcher, in, name, opts)
	if err := shared.EmitJSON(out, env); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if env.IsError() {
		return shared.NewOperationError("", nil)
	}
	return nil
}

func dispatch(ctx context.Context, d *safety.Dispatcher, in io.Reader, name string, opts options) *safety.Envelope {
	raw, err := readParams(in, opts.params)
	if err != nil {
		return safety.InvalidParameters(err)
	}
	params, err := mcpserver.ParseParameters(raw)
	if err != nil {
		return safety.InvalidParameters(err)
	}

	return d.Invoke(ctx, name, params, safety.Flags{
		Confirm:      opts.confirm,
		DryRun:       opts.dryRun,
		ResultFilter: opts.filter,
	})
}

// readParams resolves the --params value: literal JSON, @file, or - for
// the given reader.
func readParams(in io.Reader, value string) (string, error) {
	switch {
	case value == "-":
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read parameters from stdin: %w", err)
		}
		return string(data), nil
	case len(value) > 1 && value[0] == '@':
		data, err := os.ReadFile(value[1:])
		if err != nil {
			return "", fmt.Errorf("failed to read parameters file: %w", err)
		}
		return string(data), nil
	default:
		return value, nil
	}
}
