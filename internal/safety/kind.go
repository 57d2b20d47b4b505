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

package safety

// Kind classifies a failed invocation. Values are serialized verbatim in
// the error envelope.
type Kind string

const (
	KindWritesDisabled        Kind = "WritesDisabled"
	KindWorkspaceNotAllowed   Kind = "WorkspaceNotAllowed"
	KindConfirmationRequired  Kind = "ConfirmationRequired"
	KindRateLimitExceeded     Kind = "RateLimitExceeded"
	KindUnknownOperation      Kind = "UnknownOperation"
	KindRemoteExecutionFailed Kind = "RemoteExecutionFailed"
	KindInvalidParameters     Kind = "InvalidParameters"
)

// Retryable reports whether resubmitting the same call can succeed
// without reconfiguring the process. RemoteExecutionFailed is left to the
// caller.
func (k Kind) Retryable() bool {
	switch k {
	case KindConfirmationRequired, KindRateLimitExceeded:
		return true
	}
	return false
}

// Denial is the structured reason attached to an error envelope.
type Denial struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Error implements error so a Denial can be logged or wrapped.
func (d *Denial) Error() string {
	return string(d.Kind) + ": " + d.Message
}
