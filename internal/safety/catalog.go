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
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

// RateClass groups operations that share one quota and sliding window.
type RateClass string

const (
	// RateClassNone is never throttled.
	RateClassNone RateClass = ""
	// RateClassSend covers campaign and canvas sends and schedules.
	RateClassSend RateClass = "send"
	// RateClassCatalogUpdate covers catalog item writes.
	RateClassCatalogUpdate RateClass = "catalog_update"
)

// String returns the class name, "none" for RateClassNone.
func (c RateClass) String() string {
	if c == RateClassNone {
		return "none"
	}
	return string(c)
}

// Valid reports whether c is a known class.
func (c RateClass) Valid() bool {
	switch c {
	case RateClassNone, RateClassSend, RateClassCatalogUpdate:
		return true
	}
	return false
}

// Params are the caller-supplied operation parameters.
type Params map[string]any

// Executor performs the remote call for one operation.
type Executor func(ctx context.Context, params Params) (any, error)

// Parameter documents one operation parameter for discovery.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Descriptor is the immutable catalog entry for one operation.
type Descriptor struct {
	Name        string
	Description string
	Destructive bool
	RateClass   RateClass
	Parameters  []Parameter

	// Execute is invoked only by the Dispatcher, after admission.
	Execute Executor

	// Validate optionally checks parameter shape before preview or execution.
	Validate func(Params) error
}

var (
	// ErrDuplicateOperation is returned when a name is registered twice.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrInvalidDescriptor is returned for malformed descriptors.
	ErrInvalidDescriptor = errors.New("invalid operation descriptor")

	// ErrCatalogFrozen is returned by Register after Freeze.
	ErrCatalogFrozen = errors.New("catalog is frozen")
)

// Catalog maps operation names to descriptors in registration order.
//
// Registration happens once at startup. After Freeze the catalog is
// read-only and lookups take no locks.
type Catalog struct {
	mu      sync.Mutex
	frozen  atomic.Bool
	byName  map[string]int
	entries []Descriptor
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]int)}
}

// Register adds d to the catalog.
func (c *Catalog) Register(d Descriptor) error {
	if c.frozen.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrCatalogFrozen, d.Name)
	}
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	case d.Execute == nil:
		return fmt.Errorf("%w: %s has no executor", ErrInvalidDescriptor, d.Name)
	case !d.RateClass.Valid():
		return fmt.Errorf("%w: %s has unknown rate class %q", ErrInvalidDescriptor, d.Name, d.RateClass)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, d.Name)
	}
	c.byName[d.Name] = len(c.entries)
	c.entries = append(c.entries, d)
	return nil
}

// MustRegister is Register for static provider tables; it panics on error.
func (c *Catalog) MustRegister(descriptors ...Descriptor) {
	for _, d := range descriptors {
		if err := c.Register(d); err != nil {
			panic(err)
		}
	}
}

// Freeze rejects any further registrations.
func (c *Catalog) Freeze() {
	c.frozen.Store(true)
}

// Lookup returns the descriptor for name, or a *errors.NotFoundError.
func (c *Catalog) Lookup(name string) (Descriptor, error) {
	idx, ok := c.byName[name]
	if !ok {
		return Descriptor{}, &gateerrors.NotFoundError{Resource: "operation", ID: name}
	}
	return c.entries[idx], nil
}

// All yields descriptors in registration order. The sequence can be
// ranged over any number of times.
func (c *Catalog) All() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for _, d := range c.entries {
			if !yield(d) {
				return
			}
		}
	}
}

// Names returns operation names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for d := range c.All() {
		names = append(names, d.Name)
	}
	return names
}

// Len returns the number of registered operations.
func (c *Catalog) Len() int {
	return len(c.entries)
}
