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

package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMasker_String(t *testing.T) {
	m := NewMasker("sk-live-0123456789", "", "short")

	assert.Equal(t, "invalid key *** supplied", m.String("invalid key sk-live-0123456789 supplied"))
	assert.Equal(t, "short text stays", m.String("short text stays"))

	var nilMasker *Masker
	assert.Equal(t, "sk-live-0123456789", nilMasker.String("sk-live-0123456789"))
}

func TestMasker_Value(t *testing.T) {
	m := NewMasker("sk-live-0123456789")
	in := map[string]any{
		"message": "bad key sk-live-0123456789",
		"errors":  []any{"sk-live-0123456789", 42.0, true},
		"nested":  map[string]any{"echo": "Bearer sk-live-0123456789"},
		"count":   3.0,
	}

	out := m.Value(in).(map[string]any)

	assert.Equal(t, "bad key ***", out["message"])
	assert.Equal(t, []any{"***", 42.0, true}, out["errors"])
	assert.Equal(t, "Bearer ***", out["nested"].(map[string]any)["echo"])
	assert.Equal(t, 3.0, out["count"])
	assert.Equal(t, "bad key sk-live-0123456789", in["message"], "input is not modified")
}

func TestMasker_AddDeduplicates(t *testing.T) {
	m := NewMasker()
	m.Add("duplicate-secret")
	m.Add("duplicate-secret")
	assert.Len(t, m.values, 1)
	assert.Equal(t, "x", m.Value("x"))
}
