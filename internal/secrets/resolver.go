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
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
)

// Resolver walks its backends from highest to lowest priority. Get
// returns the first value found; Set writes to the first writable
// backend; Delete removes the key everywhere it can.
type Resolver struct {
	backends []Backend
}

// NewResolver keeps only the available backends.
func NewResolver(backends ...Backend) *Resolver {
	usable := slices.DeleteFunc(slices.Clone(backends), func(b Backend) bool { return !b.Available() })
	slices.SortStableFunc(usable, func(a, b Backend) int { return cmp.Compare(b.Priority(), a.Priority()) })
	return &Resolver{backends: usable}
}

// NewDefaultResolver reads BRAZE_API_KEY first and the OS keychain second.
func NewDefaultResolver() *Resolver {
	return NewResolver(NewEnvBackend(), NewKeychainBackend())
}

// Get returns ErrSecretNotFound only when every backend missed. Any other
// backend failure is reported in preference to a plain miss.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	if len(r.backends) == 0 {
		return "", fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}

	var failure error
	for _, b := range r.backends {
		value, err := b.Get(ctx, key)
		switch {
		case err == nil:
			return value, nil
		case !errors.Is(err, ErrSecretNotFound):
			failure = err
		}
	}
	if failure != nil {
		return "", fmt.Errorf("reading secret %q: %w", key, failure)
	}
	return "", fmt.Errorf("%w: %q", ErrSecretNotFound, key)
}

// Set returns the name of the backend that stored the value.
func (r *Resolver) Set(ctx context.Context, key, value string) (string, error) {
	for _, b := range r.backends {
		err := b.Set(ctx, key, value)
		if errors.Is(err, ErrReadOnlyBackend) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("storing secret in %s: %w", b.Name(), err)
		}
		return b.Name(), nil
	}
	return "", fmt.Errorf("%w: no writable backend", ErrBackendUnavailable)
}

func (r *Resolver) Delete(ctx context.Context, key string) error {
	removed := 0
	for _, b := range r.backends {
		err := b.Delete(ctx, key)
		if err == nil {
			removed++
			continue
		}
		if errors.Is(err, ErrReadOnlyBackend) || errors.Is(err, ErrSecretNotFound) {
			continue
		}
		return fmt.Errorf("deleting secret from %s: %w", b.Name(), err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %q", ErrSecretNotFound, key)
	}
	return nil
}
