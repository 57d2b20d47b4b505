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

// Package safety catalogs the callable Braze write operations and runs
// every invocation through an ordered, fail-closed admission pipeline:
// write enablement, workspace validation, destructive confirmation,
// per-class rate limiting and dry-run resolution.
//
// Callers only ever see an Envelope. Expected failures, including
// executor errors, are converted to structured error envelopes and never
// escape the Dispatcher as Go errors.
package safety
