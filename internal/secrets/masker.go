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
	"fmt"
	"strings"
)

// Mask is the replacement for a known secret value.
const Mask = "***"

// minMaskLength keeps short values like "1" from shredding unrelated text.
const minMaskLength = 8

// Masker replaces known secret values wherever they appear.
type Masker struct {
	values []string
}

// NewMasker masks the given values. Empty and very short values are ignored.
func NewMasker(values ...string) *Masker {
	m := &Masker{}
	for _, v := range values {
		m.Add(v)
	}
	return m
}

// Add registers another value to mask.
func (m *Masker) Add(value string) {
	if len(value) < minMaskLength {
		return
	}
	for _, v := range m.values {
		if v == value {
			return
		}
	}
	m.values = append(m.values, value)
}

// String masks every known value in s.
func (m *Masker) String(s string) string {
	if m == nil {
		return s
	}
	for _, v := range m.values {
		if strings.Contains(s, v) {
			s = strings.ReplaceAll(s, v, Mask)
		}
	}
	return s
}

// Value masks strings inside decoded JSON, returning a copy of maps and
// slices. Other scalars are returned unchanged.
func (m *Masker) Value(v any) any {
	if m == nil || len(m.values) == 0 {
		return v
	}
	switch val := v.(type) {
	case string:
		return m.String(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = m.Value(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = m.Value(item)
		}
		return out
	case fmt.Stringer:
		return m.String(val.String())
	default:
		return v
	}
}
