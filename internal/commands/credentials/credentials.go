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

package credentials

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tombee/brazegate/internal/commands/shared"
	"github.com/tombee/brazegate/internal/log"
	"github.com/tombee/brazegate/internal/secrets"
)

// NewCommand creates the credentials command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the Braze API key",
		Long: `Manage the Braze REST API key used by brazegate.

The key is read from BRAZE_API_KEY when set, and otherwise from the system
keychain (macOS Keychain, Linux Secret Service, Windows Credential
Manager). These commands manage the keychain entry.

Examples:
  brazegate credentials set
  echo "$KEY" | brazegate credentials set
  brazegate credentials status
  brazegate credentials delete`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newDeleteCommand())
	cmd.AddCommand(newStatusCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Store the API key in the keychain",
		Long: `Store the Braze API key in the system keychain.

The key is read from standard input when it is piped, and otherwise
prompted for with hidden input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecretValue(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			if value == "" {
				return errors.New("API key cannot be empty")
			}

			backend, err := shared.NewSecretResolver().Set(cmd.Context(), secrets.APIKeyName, value)
			if err != nil {
				if errors.Is(err, secrets.ErrBackendUnavailable) {
					return fmt.Errorf("%w\n\nThe system keychain is not available. Set BRAZE_API_KEY in the environment instead", err)
				}
				return err
			}

			st := shared.NewStyler(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), st.Status(true, fmt.Sprintf("API key stored in %s backend", backend)))
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the API key from the keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := shared.NewSecretResolver().Delete(cmd.Context(), secrets.APIKeyName); err != nil {
				if errors.Is(err, secrets.ErrSecretNotFound) {
					return errors.New("no API key stored in the keychain")
				}
				return err
			}

			st := shared.NewStyler(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), st.Status(true, "API key deleted"))
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether an API key is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			st := shared.NewStyler(out)

			value, err := shared.NewSecretResolver().Get(cmd.Context(), secrets.APIKeyName)
			if err != nil {
				if !errors.Is(err, secrets.ErrSecretNotFound) {
					return err
				}
				fmt.Fprintln(out, st.Status(false, "No API key configured"))
				return shared.NewConfigError("", nil)
			}

			fmt.Fprintln(out, st.Status(true, "API key configured: "+log.SanitizeAPIKey(value)))
			return nil
		},
	}
}

// readSecretValue reads piped input, or prompts with hidden input when in
// is a terminal.
func readSecretValue(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Enter Braze API key (hidden): ")
		value, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(value)), nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
