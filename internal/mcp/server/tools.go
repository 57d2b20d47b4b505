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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/brazegate/internal/log"
	"github.com/tombee/brazegate/internal/safety"
	"github.com/tombee/brazegate/internal/tracing"
	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

const (
	toolListFunctions = "list_functions"
	toolCallFunction  = "call_function"
	toolWorkspaceInfo = "workspace_info"
)

// FunctionInfo describes one catalog operation to MCP clients.
type FunctionInfo struct {
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Parameters     []safety.Parameter `json:"parameters"`
	Destructive    bool               `json:"destructive"`
	RateLimitClass string             `json:"rate_limit_class"`
}

// FunctionList is the list_functions payload.
type FunctionList struct {
	AvailableFunctions map[string]FunctionInfo `json:"available_functions"`
	TotalFunctions     int                     `json:"total_functions"`
	Operations         []FunctionInfo          `json:"operations"`
}

// ListFunctions describes every registered operation in registration order.
func ListFunctions(catalog *safety.Catalog) FunctionList {
	list := FunctionList{
		AvailableFunctions: make(map[string]FunctionInfo, catalog.Len()),
		Operations:         make([]FunctionInfo, 0, catalog.Len()),
	}
	for d := range catalog.All() {
		params := d.Parameters
		if params == nil {
			params = []safety.Parameter{}
		}
		info := FunctionInfo{
			Name:           d.Name,
			Description:    d.Description,
			Parameters:     params,
			Destructive:    d.Destructive,
			RateLimitClass: d.RateClass.String(),
		}
		list.AvailableFunctions[d.Name] = info
		list.Operations = append(list.Operations, info)
	}
	list.TotalFunctions = len(list.Operations)
	return list
}

// WorkspaceInfo reports the write-safety posture of the configured workspace.
type WorkspaceInfo struct {
	BaseURL         string         `json:"base_url"`
	WriteEnabled    bool           `json:"write_enabled"`
	AllowProduction bool           `json:"allow_production"`
	AllowedPatterns []string       `json:"allowed_patterns"`
	IsSafe          bool           `json:"is_safe"`
	DryRunDefault   bool           `json:"dry_run_default"`
	RateLimits      []safety.Usage `json:"rate_limits"`

	// RateLimitsError is set when the quota store could not be read.
	RateLimitsError string `json:"rate_limits_error,omitempty"`
}

// Workspace snapshots the dispatcher's configuration and quota usage.
func Workspace(ctx context.Context, d *safety.Dispatcher) WorkspaceInfo {
	cfg := d.Config()
	patterns := cfg.AllowedWorkspaces
	if patterns == nil {
		patterns = []string{}
	}
	info := WorkspaceInfo{
		BaseURL:         d.Destination(),
		WriteEnabled:    cfg.WriteEnabled,
		AllowProduction: cfg.AllowProduction,
		AllowedPatterns: patterns,
		IsSafe:          cfg.IsSafeDestination(d.Destination()),
		DryRunDefault:   cfg.DryRunDefault,
		RateLimits:      []safety.Usage{},
	}
	usage, err := d.Usage(ctx)
	if err != nil {
		info.RateLimitsError = err.Error()
		return info
	}
	info.RateLimits = usage
	return info
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        toolListFunctions,
		Description: "List every Braze write function with its parameters, whether it is destructive, and its rate limit class.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListFunctions)

	s.mcpServer.AddTool(mcp.Tool{
		Name: toolCallFunction,
		Description: "Call a Braze write function through the safety gate. Writes must be enabled and the workspace allowed. " +
			"Destructive functions require confirm=true. Use dry_run=true to preview a call without contacting Braze.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"function_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the function to call (see list_functions)",
				},
				"parameters": map[string]interface{}{
					"type":        []string{"object", "string"},
					"description": "Function parameters as an object or a JSON-encoded object",
				},
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Confirm a destructive operation",
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "Preview the call without executing it",
				},
				"result_filter": map[string]interface{}{
					"type":        "string",
					"description": "Optional jq expression applied to the Braze response",
				},
			},
			Required: []string{"function_name"},
		},
	}, s.handleCallFunction)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        toolWorkspaceInfo,
		Description: "Show the Braze workspace URL, whether writes are enabled and allowed there, and current rate limit usage.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleWorkspaceInfo)
}

func (s *Server) handleListFunctions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		result *mcp.CallToolResult
		err    error
	)
	s.tools.Handle(ctx, &log.ToolCall{Tool: toolListFunctions}, func() (bool, string) {
		result, err = jsonResponse(ListFunctions(s.dispatcher.Catalog()))
		return err == nil && !result.IsError, ""
	})
	return result, err
}

func (s *Server) handleWorkspaceInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		result *mcp.CallToolResult
		err    error
	)
	s.tools.Handle(ctx, &log.ToolCall{Tool: toolWorkspaceInfo}, func() (bool, string) {
		result, err = jsonResponse(Workspace(ctx, s.dispatcher))
		return err == nil && !result.IsError, ""
	})
	return result, err
}

func (s *Server) handleCallFunction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, _ := args["function_name"].(string)
	name = strings.TrimSpace(name)

	ctx, _ = tracing.EnsureContext(ctx)

	var env *safety.Envelope
	s.tools.Handle(ctx, &log.ToolCall{Tool: toolCallFunction, Operation: name}, func() (bool, string) {
		env = s.callFunction(ctx, name, args)
		if env.IsError() {
			return false, string(env.Error.Kind)
		}
		return true, ""
	})

	result, err := jsonResponse(env)
	if err != nil {
		return nil, err
	}
	result.IsError = result.IsError || env.IsError()
	return result, nil
}

func (s *Server) callFunction(ctx context.Context, name string, args map[string]any) *safety.Envelope {
	if name == "" {
		return safety.InvalidParameters(&gateerrors.ValidationError{
			Field:      "function_name",
			Message:    "function_name is required",
			Suggestion: "Use list_functions to see all available functions",
		})
	}

	params, err := ParseParameters(args["parameters"])
	if err != nil {
		return safety.InvalidParameters(err)
	}

	flags, err := liftFlags(params, args)
	if err != nil {
		return safety.InvalidParameters(err)
	}

	return s.dispatcher.Invoke(ctx, name, params, flags)
}

// ParseParameters accepts call parameters as an object or a JSON-encoded
// object. Missing or blank parameters yield an empty set.
func ParseParameters(raw any) (safety.Params, error) {
	switch v := raw.(type) {
	case nil:
		return safety.Params{}, nil
	case map[string]any:
		return maps.Clone(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return safety.Params{}, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, &gateerrors.ValidationError{
				Field:      "parameters",
				Message:    fmt.Sprintf("parameters is not valid JSON: %v", err),
				Suggestion: `Pass parameters as a JSON object, for example {"campaign_id": "..."}`,
			}
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			return nil, &gateerrors.ValidationError{
				Field:      "parameters",
				Message:    fmt.Sprintf("parameters must be a JSON object, got %s", jsonKind(decoded)),
				Suggestion: `Pass parameters as a JSON object, for example {"campaign_id": "..."}`,
			}
		}
		return obj, nil
	default:
		return nil, &gateerrors.ValidationError{
			Field:   "parameters",
			Message: fmt.Sprintf("parameters must be an object or JSON string, got %T", raw),
		}
	}
}

// liftFlags moves confirm and dry_run out of params. Explicit tool
// arguments take precedence over values found inside params.
func liftFlags(params safety.Params, args map[string]any) (safety.Flags, error) {
	var flags safety.Flags

	confirm, err := popBool(params, "confirm")
	if err != nil {
		return flags, err
	}
	if explicit, err := optionalBool(args, "confirm"); err != nil {
		return flags, err
	} else if explicit != nil {
		confirm = explicit
	}
	flags.Confirm = confirm != nil && *confirm

	dryRun, err := popBool(params, "dry_run")
	if err != nil {
		return flags, err
	}
	if explicit, err := optionalBool(args, "dry_run"); err != nil {
		return flags, err
	} else if explicit != nil {
		dryRun = explicit
	}
	flags.DryRun = dryRun

	if filter, ok := args["result_filter"].(string); ok {
		flags.ResultFilter = strings.TrimSpace(filter)
	}
	return flags, nil
}

func popBool(params safety.Params, key string) (*bool, error) {
	v, err := optionalBool(params, key)
	delete(params, key)
	return v, err
}

func optionalBool(m map[string]any, key string) (*bool, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case bool:
		return &v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, &gateerrors.ValidationError{
				Field:   key,
				Message: fmt.Sprintf("%s must be a boolean, got %q", key, v),
			}
		}
		return &b, nil
	default:
		return nil, &gateerrors.ValidationError{
			Field:   key,
			Message: fmt.Sprintf("%s must be a boolean, got %T", key, raw),
		}
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
