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
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/brazegate/internal/commands/shared"
	mcpserver "github.com/tombee/brazegate/internal/mcp/server"
)

func TestOperationsTable(t *testing.T) {
	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "21 operations")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "send_campaign")
	assert.Contains(t, out, "delete_catalog_items")
	assert.NotContains(t, out, "\x1b[", "styling must be disabled when not writing to a terminal")
}

func TestOperationsVerbose(t *testing.T) {
	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--verbose"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "campaign_id (string, required)")
}

func TestOperationsJSON(t *testing.T) {
	shared.SetJSONForTest(true)
	defer shared.SetJSONForTest(false)

	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	var list mcpserver.FunctionList
	require.NoError(t, json.Unmarshal(buf.Bytes(), &list))
	assert.Equal(t, 21, list.TotalFunctions)
	assert.Len(t, list.Operations, 21)
	assert.Equal(t, "track_user_data", list.Operations[0].Name)
	assert.True(t, list.AvailableFunctions["delete_user"].Destructive)
	assert.Equal(t, "send", list.AvailableFunctions["send_campaign"].RateLimitClass)
	assert.Equal(t, "catalog_update", list.AvailableFunctions["update_catalog_items"].RateLimitClass)
}
