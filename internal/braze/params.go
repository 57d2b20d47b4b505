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

package braze

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tombee/brazegate/internal/safety"
	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

// Parameter accessors for JSON-decoded call parameters. Missing and null
// values are treated alike; wrong types return *errors.ValidationError.

func invalid(field, format string, args ...any) error {
	return &gateerrors.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func present(p safety.Params, name string) bool {
	v, ok := p[name]
	return ok && v != nil
}

func stringParam(p safety.Params, name string) (string, error) {
	if !present(p, name) {
		return "", nil
	}
	switch v := p[name].(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", invalid(name, "%s must be a string", name)
	}
}

func requireString(p safety.Params, name string) (string, error) {
	s, err := stringParam(p, name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", invalid(name, "%s is required", name)
	}
	return s, nil
}

func boolParam(p safety.Params, name string) (bool, error) {
	if !present(p, name) {
		return false, nil
	}
	switch v := p[name].(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, invalid(name, "%s must be a boolean", name)
		}
		return b, nil
	default:
		return false, invalid(name, "%s must be a boolean", name)
	}
}

func numberParam(p safety.Params, name string) (float64, bool, error) {
	if !present(p, name) {
		return 0, false, nil
	}
	switch v := p[name].(type) {
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, invalid(name, "%s must be a number", name)
		}
		return f, true, nil
	default:
		return 0, false, invalid(name, "%s must be a number", name)
	}
}

func objectParam(p safety.Params, name string) (map[string]any, error) {
	if !present(p, name) {
		return nil, nil
	}
	switch v := p[name].(type) {
	case map[string]any:
		return v, nil
	case safety.Params:
		return v, nil
	default:
		return nil, invalid(name, "%s must be an object", name)
	}
}

func listParam(p safety.Params, name string) ([]any, error) {
	if !present(p, name) {
		return nil, nil
	}
	switch v := p[name].(type) {
	case []any:
		return v, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	default:
		return nil, invalid(name, "%s must be an array", name)
	}
}

func requireList(p safety.Params, name string) ([]any, error) {
	l, err := listParam(p, name)
	if err != nil {
		return nil, err
	}
	if len(l) == 0 {
		return nil, invalid(name, "%s must be a non-empty array", name)
	}
	return l, nil
}

func stringListParam(p safety.Params, name string) ([]string, error) {
	l, err := listParam(p, name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(l))
	for _, item := range l {
		s, ok := item.(string)
		if !ok {
			return nil, invalid(name, "%s must contain only strings", name)
		}
		out = append(out, s)
	}
	return out, nil
}

// userRef resolves the external_id / user_alias pair every single-user
// operation accepts.
func userRef(p safety.Params) (externalID string, alias map[string]any, err error) {
	if externalID, err = stringParam(p, "external_id"); err != nil {
		return "", nil, err
	}
	if alias, err = objectParam(p, "user_alias"); err != nil {
		return "", nil, err
	}
	if externalID == "" && len(alias) == 0 {
		return "", nil, &gateerrors.ValidationError{
			Field:      "external_id",
			Message:    "Must provide either external_id or user_alias",
			Suggestion: "user_alias is an object with alias_name and alias_label",
		}
	}
	return externalID, alias, nil
}

// pathSegment validates and escapes a value substituted into a URL path.
func pathSegment(name, value string) (string, error) {
	lower := strings.ToLower(value)
	for _, bad := range []string{"/", "\\", "..", "%2e%2e", "%2f", "%5c", "\x00", "%00"} {
		if strings.Contains(lower, bad) {
			return "", invalid(name, "%s contains an illegal path sequence", name)
		}
	}
	return url.PathEscape(value), nil
}
