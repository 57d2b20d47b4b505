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

package errors_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *gateerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &gateerrors.ValidationError{
				Field:   "campaign_id",
				Message: "required parameter is missing",
			},
			wantMsg: "validation failed on campaign_id: required parameter is missing",
		},
		{
			name:    "without field",
			err:     &gateerrors.ValidationError{Message: "parameters must be an object"},
			wantMsg: "validation failed: parameters must be an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &gateerrors.NotFoundError{Resource: "operation", ID: "launch_rocket"}
	if got, want := err.Error(), "operation not found: launch_rocket"; got != want {
		t.Errorf("NotFoundError.Error() = %q, want %q", got, want)
	}
}

func TestConfigError(t *testing.T) {
	cause := fmt.Errorf("parse failure")
	tests := []struct {
		name    string
		err     *gateerrors.ConfigError
		wantMsg string
	}{
		{
			name:    "with key",
			err:     &gateerrors.ConfigError{Key: "BRAZE_BASE_URL", Reason: "must be an absolute URL", Cause: cause},
			wantMsg: "config error at BRAZE_BASE_URL: must be an absolute URL",
		},
		{
			name:    "without key",
			err:     &gateerrors.ConfigError{Reason: "file unreadable"},
			wantMsg: "config error: file unreadable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConfigError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	wrapped := &gateerrors.ConfigError{Key: "k", Reason: "r", Cause: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the cause of a ConfigError")
	}
}

func TestTimeoutError(t *testing.T) {
	err := &gateerrors.TimeoutError{Operation: "result filter", Duration: 2 * time.Second}
	if got, want := err.Error(), "result filter operation timed out after 2s"; got != want {
		t.Errorf("TimeoutError.Error() = %q, want %q", got, want)
	}
	if !err.IsRetryable() {
		t.Error("timeouts should be retryable")
	}
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name      string
		err       gateerrors.ErrorClassifier
		wantType  string
		retryable bool
	}{
		{"validation", &gateerrors.ValidationError{Message: "x"}, "validation", false},
		{"not found", &gateerrors.NotFoundError{Resource: "operation", ID: "x"}, "not_found", false},
		{"config", &gateerrors.ConfigError{Reason: "x"}, "config", false},
		{"timeout", &gateerrors.TimeoutError{Operation: "x"}, "timeout", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.ErrorType(); got != tt.wantType {
				t.Errorf("ErrorType() = %q, want %q", got, tt.wantType)
			}
			if got := tt.err.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}
