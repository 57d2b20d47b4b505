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

import (
	"encoding/json"
)

// PreviewMessage accompanies every preview envelope.
const PreviewMessage = "This is a dry run. No actual API call was made."

// WouldExecute describes the call a preview stopped short of.
type WouldExecute struct {
	Operation string `json:"operation"`
	Params    Params `json:"params"`
}

// Envelope is the uniform response for every invocation. Exactly one of
// the success, preview or error shapes is populated.
type Envelope struct {
	OK     bool
	Result any

	// Warning is set on success when post-processing failed after the
	// remote call completed.
	Warning string

	DryRun       bool
	WouldExecute *WouldExecute
	Message      string

	Error *Denial
}

// Success wraps an executor payload.
func Success(result any) *Envelope {
	return &Envelope{OK: true, Result: result}
}

// Preview wraps a would-execute description.
func Preview(operation string, params Params) *Envelope {
	if params == nil {
		params = Params{}
	}
	return &Envelope{
		DryRun:       true,
		WouldExecute: &WouldExecute{Operation: operation, Params: params},
		Message:      PreviewMessage,
	}
}

// Failure wraps a denial or execution failure.
func Failure(d *Denial) *Envelope {
	return &Envelope{Error: d}
}

// Failed builds a failure envelope from its parts.
func Failed(kind Kind, message string, detail map[string]any) *Envelope {
	return Failure(&Denial{Kind: kind, Message: message, Detail: detail})
}

// IsError reports whether e is an error envelope.
func (e *Envelope) IsError() bool {
	return e.Error != nil
}

// IsPreview reports whether e is a dry-run preview.
func (e *Envelope) IsPreview() bool {
	return e.DryRun
}

type successJSON struct {
	OK      bool   `json:"ok"`
	Result  any    `json:"result"`
	Warning string `json:"warning,omitempty"`
}

type previewJSON struct {
	OK           bool          `json:"ok"`
	DryRun       bool          `json:"dry_run"`
	WouldExecute *WouldExecute `json:"would_execute"`
	Message      string        `json:"message"`
}

type errorJSON struct {
	OK    bool    `json:"ok"`
	Error *Denial `json:"error"`
}

// MarshalJSON emits only the fields of the envelope's shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch {
	case e.Error != nil:
		return json.Marshal(errorJSON{Error: e.Error})
	case e.DryRun:
		return json.Marshal(previewJSON{DryRun: true, WouldExecute: e.WouldExecute, Message: e.Message})
	default:
		return json.Marshal(successJSON{OK: true, Result: e.Result, Warning: e.Warning})
	}
}

// UnmarshalJSON accepts any of the three shapes.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		OK           bool          `json:"ok"`
		Result       any           `json:"result"`
		Warning      string        `json:"warning"`
		DryRun       bool          `json:"dry_run"`
		WouldExecute *WouldExecute `json:"would_execute"`
		Message      string        `json:"message"`
		Error        *Denial       `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Envelope{
		OK:           raw.OK,
		Result:       raw.Result,
		Warning:      raw.Warning,
		DryRun:       raw.DryRun,
		WouldExecute: raw.WouldExecute,
		Message:      raw.Message,
		Error:        raw.Error,
	}
	return nil
}
