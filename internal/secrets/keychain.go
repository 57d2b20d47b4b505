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
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeychainBackendPriority ranks the OS keychain below the environment,
	// so BRAZE_API_KEY overrides a stored key.
	KeychainBackendPriority = 50

	keychainService = "brazegate"
	probeAccount    = "__brazegate_availability_test__"
)

// Substrings of keyring errors that mean the keychain itself is unusable
// (locked, no D-Bus session, prompt dismissed) rather than the key missing.
var unavailableHints = []string{
	"locked",
	"cannot access",
	"permission denied",
	"failed to unlock",
	"user interaction required",
	"secret service",
	"dbus",
	"user canceled",
}

// KeychainBackend stores the Braze API key in the OS keychain under the
// "brazegate" service. Availability is probed once at construction.
type KeychainBackend struct {
	available bool
}

func NewKeychainBackend() *KeychainBackend {
	_, err := keyring.Get(keychainService, probeAccount)
	return &KeychainBackend{available: err == nil || errors.Is(err, keyring.ErrNotFound)}
}

func (k *KeychainBackend) Name() string    { return "keychain" }
func (k *KeychainBackend) Available() bool { return k.available }
func (k *KeychainBackend) Priority() int   { return KeychainBackendPriority }

func (k *KeychainBackend) Get(_ context.Context, key string) (string, error) {
	var value string
	err := k.do(key, func() (err error) {
		value, err = keyring.Get(keychainService, key)
		return err
	})
	return value, err
}

func (k *KeychainBackend) Set(_ context.Context, key, value string) error {
	return k.do(key, func() error { return keyring.Set(keychainService, key, value) })
}

func (k *KeychainBackend) Delete(_ context.Context, key string) error {
	return k.do(key, func() error { return keyring.Delete(keychainService, key) })
}

// do runs op when the keychain is reachable and maps keyring errors onto
// the package sentinels.
func (k *KeychainBackend) do(key string, op func() error) error {
	if !k.available {
		return fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}
	err := op()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	case keychainUnavailable(err):
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	default:
		return fmt.Errorf("keychain error: %w", err)
	}
}

func keychainUnavailable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, hint := range unavailableHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
