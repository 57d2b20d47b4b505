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
	"fmt"
	"net/http"
)

// Error types reported by APIError.ErrorType.
const (
	ErrorTypeAuth       = "auth_error"
	ErrorTypeNotFound   = "not_found"
	ErrorTypeValidation = "validation_error"
	ErrorTypeRateLimit  = "rate_limited"
	ErrorTypeServer     = "server_error"
)

// APIError is a non-2xx response from the Braze REST API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string

	// Body is the decoded JSON response, or the raw text when the body is
	// not JSON.
	Body any

	RequestID string
}

// Error implements error.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("braze %s %s: HTTP %d %s", e.Method, e.Path, e.StatusCode, e.Status)
	if m := e.upstreamMessage(); m != "" {
		msg += ": " + m
	}
	return msg
}

// HTTPStatus returns the upstream status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ResponseBody returns the decoded upstream body.
func (e *APIError) ResponseBody() any { return e.Body }

// ErrorType implements pkg/errors.ErrorClassifier.
func (e *APIError) ErrorType() string {
	return classifyStatus(e.StatusCode)
}

// IsRetryable implements pkg/errors.ErrorClassifier.
func (e *APIError) IsRetryable() bool {
	switch e.ErrorType() {
	case ErrorTypeRateLimit, ErrorTypeServer:
		return true
	}
	return false
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *APIError) IsUserVisible() bool { return true }

// UserMessage implements pkg/errors.UserVisibleError.
func (e *APIError) UserMessage() string {
	if m := e.upstreamMessage(); m != "" {
		return m
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Status)
}

// Suggestion implements pkg/errors.UserVisibleError.
func (e *APIError) Suggestion() string {
	switch e.ErrorType() {
	case ErrorTypeAuth:
		return "Check that BRAZE_API_KEY is valid and has the required permissions"
	case ErrorTypeNotFound:
		return "Verify the identifier and BRAZE_BASE_URL are correct"
	case ErrorTypeValidation:
		return "Check the parameters against list_functions"
	case ErrorTypeRateLimit:
		return "Braze rate limit reached; retry later"
	case ErrorTypeServer:
		return "Retry, or check the Braze status page"
	}
	return ""
}

// upstreamMessage extracts Braze's "message" field when present.
func (e *APIError) upstreamMessage() string {
	switch b := e.Body.(type) {
	case map[string]any:
		if m, ok := b["message"].(string); ok {
			return m
		}
	case string:
		if len(b) > 200 {
			return b[:200] + "..."
		}
		return b
	}
	return ""
}

func classifyStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorTypeAuth
	case code == http.StatusNotFound:
		return ErrorTypeNotFound
	case code == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case code >= 500:
		return ErrorTypeServer
	default:
		return ErrorTypeValidation
	}
}
