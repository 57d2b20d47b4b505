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


package errors

import (
	"fmt"
	"time"
)

// Categories reported by ErrorType.
const (
	TypeValidation = "validation"
	TypeNotFound   = "not_found"
	TypeConfig     = "config"
	TypeTimeout    = "timeout"
)

// ValidationError reports bad operation parameters or a malformed call,
// such as a parameters payload that is not a JSON object. Field is empty
// when the whole payload is at fault.
type ValidationError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return "validation failed on " + e.Field + ": " + e.Message
}

func (e *ValidationError) ErrorType() string { return TypeValidation }

// IsRetryable is always false: the same parameters fail the same way.
func (e *ValidationError) IsRetryable() bool { return false }

// NotFoundError reports a lookup miss. Resource is a noun such as
// "operation" or "credential"; ID is what was looked up.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) ErrorType() string { return TypeNotFound }
func (e *NotFoundError) IsRetryable() bool { return false }

// ConfigError reports an unusable setting. Key names the environment
// variable or YAML key when one is to blame.
type ConfigError struct {
	Key    string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config error: " + e.Reason
	}
	return "config error at " + e.Key + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error     { return e.Cause }
func (e *ConfigError) ErrorType() string { return TypeConfig }
func (e *ConfigError) IsRetryable() bool { return false }

// TimeoutError reports work that ran past its deadline, e.g. a result
// filter. Retrying may succeed once the load that slowed it is gone.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	Cause     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

func (e *TimeoutError) Unwrap() error     { return e.Cause }
func (e *TimeoutError) ErrorType() string { return TypeTimeout }
func (e *TimeoutError) IsRetryable() bool { return true }
