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

// ErrorClassifier is implemented by errors that know their own category.
// The dispatcher copies ErrorType and IsRetryable into the failure detail
// of a remote execution error.
type ErrorClassifier interface {
	error
	ErrorType() string
	IsRetryable() bool
}

// UserVisibleError carries an operator-facing message and a remediation
// hint. UserMessage leaves out request details such as method and path;
// Suggestion may be empty.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string
	Suggestion() string
}
