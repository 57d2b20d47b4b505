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

// Package secrets resolves the Braze API key from the environment or the
// operating system keychain.
package secrets

import (
	"context"
	"errors"
)

// APIKeyName is the secret key under which the Braze REST API key is stored.
const APIKeyName = "braze/api_key"

// Sentinel errors shared by all backends.
var (
	ErrSecretNotFound     = errors.New("secret not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrReadOnlyBackend    = errors.New("backend is read-only")
)

// Backend is one place the API key can live. The environment is read-only;
// the keychain backs `brazegate credentials`.
type Backend interface {
	// Name is reported by `credentials set`, e.g. "keychain".
	Name() string

	// Get fails with ErrSecretNotFound when key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set fails with ErrReadOnlyBackend on the environment backend.
	Set(ctx context.Context, key, value string) error

	Delete(ctx context.Context, key string) error

	// Available is false when the backend cannot work on this host, such
	// as a keychain without a session bus.
	Available() bool

	// Priority orders backends; higher is consulted first.
	Priority() int
}
