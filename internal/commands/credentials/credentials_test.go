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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/tombee/brazegate/internal/commands/shared"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCredentialsLifecycle(t *testing.T) {
	keyring.MockInit()
	t.Setenv("BRAZE_API_KEY", "")

	out, err := execute(t, "", "status")
	require.Error(t, err)
	assert.Equal(t, shared.ExitConfigError, shared.ExitCode(err))
	assert.Contains(t, out, "No API key configured")

	out, err = execute(t, "  abcd-1234-secret-wxyz\n", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "API key stored in keychain backend")

	out, err = execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "wxyz")
	assert.NotContains(t, out, "abcd-1234")

	out, err = execute(t, "", "delete")
	require.NoError(t, err)
	assert.Contains(t, out, "API key deleted")

	_, err = execute(t, "", "delete")
	assert.EqualError(t, err, "no API key stored in the keychain")
}

func TestCredentialsSet_EmptyInput(t *testing.T) {
	keyring.MockInit()

	_, err := execute(t, "   \n", "set")
	assert.EqualError(t, err, "API key cannot be empty")
}

func TestCredentialsStatus_EnvironmentKey(t *testing.T) {
	keyring.MockInit()
	t.Setenv("BRAZE_API_KEY", "env-key-9876")

	out, err := execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "9876")
}
