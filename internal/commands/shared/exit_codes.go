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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/brazegate/pkg/errors"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitOperationFailed = 1
	ExitConfigError     = 2
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewOperationError reports a failed or refused invocation. An empty
// message exits silently, for output that already describes the failure.
func NewOperationError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitOperationFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError reports invalid or missing configuration.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConfigError,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitOperationFailed
}

// HandleExitError prints err and exits with the appropriate code
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(reportError(os.Stderr, err))
}

// reportError writes err and its suggestion to w and returns the exit code.
// Errors with an empty message are not printed.
func reportError(w io.Writer, err error) int {
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(w, "Error:", msg)
		if s := suggestionFor(err); s != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", s)
		}
	}
	return ExitCode(err)
}

// suggestionFor finds a remediation hint in the error chain.
func suggestionFor(err error) string {
	if s := pkgerrors.SuggestionOf(err); s != "" {
		return s
	}
	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Key != "" {
		return fmt.Sprintf("Check %s in the environment or the config file (brazegate workspace shows the effective settings)", cfgErr.Key)
	}
	return ""
}
