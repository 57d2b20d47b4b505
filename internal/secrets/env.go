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

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvBackendPriority lets environment variables override stored secrets.
const EnvBackendPriority = 100

// EnvBackend provides read-only access to secrets via environment variables.
// A key such as "braze/api_key" is looked up as BRAZE_API_KEY.
type EnvBackend struct {
	lookup func(string) string
}

// NewEnvBackend creates a new environment variable backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{lookup: os.Getenv}
}

// Name returns the backend identifier.
func (e *EnvBackend) Name() string { return "env" }

// Get retrieves a secret from the environment.
func (e *EnvBackend) Get(_ context.Context, key string) (string, error) {
	envKey := EnvName(key)
	if value := e.lookup(envKey); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s not set", ErrSecretNotFound, envKey)
}

// Set returns ErrReadOnlyBackend.
func (e *EnvBackend) Set(context.Context, string, string) error { return ErrReadOnlyBackend }

// Delete returns ErrReadOnlyBackend.
func (e *EnvBackend) Delete(context.Context, string) error { return ErrReadOnlyBackend }

// Available returns true.
func (e *EnvBackend) Available() bool { return true }

// Priority returns EnvBackendPriority.
func (e *EnvBackend) Priority() int { return EnvBackendPriority }

// EnvName maps a secret key to its environment variable name.
func EnvName(key string) string {
	r := strings.NewReplacer("/", "_", "-", "_", ".", "_")
	return strings.ToUpper(r.Replace(key))
}
