// Copyright 2024 SpotHero
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

package entity

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

// ValidationMode controls how strictly Build and Validator.Validate enforce
// key and nullability constraints.
type ValidationMode int

const (
	// Strict requires every entity to declare at least one key property and
	// rejects key-order gaps or duplicates.
	Strict ValidationMode = iota
	// Relaxed allows keyless entities (value-only streams) and tolerates
	// key-order gaps, sorting whatever key properties exist by their
	// declared order.
	Relaxed
)

// ModelBuilder accumulates entity registrations and freezes them into
// Descriptors on Build. It is mutable only during the build phase: a
// ModelBuilder is safe for concurrent Register calls up until Build is
// called, after which further Register calls fail with ErrBuilderFrozen.
type ModelBuilder struct {
	mu     sync.Mutex
	frozen atomic.Bool
	specs  []registration
	mode   ValidationMode
}

type registration struct {
	t     reflect.Type
	topic string
}

// NewModelBuilder creates a ModelBuilder with the given validation mode.
func NewModelBuilder(mode ValidationMode) *ModelBuilder {
	return &ModelBuilder{mode: mode}
}

// Register records an entity type's backing topic for later Build. T is
// given as a type argument, e.g. Register[Order](builder, "orders").
func Register[T any](b *ModelBuilder, topic string) error {
	if b.frozen.Load() {
		return ErrBuilderFrozen
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen.Load() {
		return ErrBuilderFrozen
	}
	var zero T
	b.specs = append(b.specs, registration{t: reflect.TypeOf(zero), topic: topic})
	return nil
}

// Build freezes the builder and produces a Descriptor for every registered
// type, storing each in the package-level registry so that Describe[T] can
// retrieve it later without re-walking struct tags.
func (b *ModelBuilder) Build() ([]*Descriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen.Store(true)

	descriptors := make([]*Descriptor, 0, len(b.specs))
	for _, spec := range b.specs {
		d, err := b.describe(spec.t, spec.topic)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
		store(spec.t, d)
	}
	return descriptors, nil
}

func (b *ModelBuilder) describe(t reflect.Type, topic string) (*Descriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity: %s is not a struct", t)
	}

	d := &Descriptor{Name: t.Name(), GoType: t, Topic: topic}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		prop, err := parseTag(field)
		if err != nil {
			return nil, err
		}
		if prop.Ignored {
			continue
		}
		if prop.Kind == Unsupported {
			return nil, &ValidationError{Entity: t.Name(), Property: field.Name, Reason: "unsupported Go type " + field.Type.String()}
		}
		d.Properties = append(d.Properties, prop)
		if prop.KeyOrder > 0 {
			d.KeyProps = append(d.KeyProps, prop)
		}
	}

	sort.Slice(d.KeyProps, func(i, j int) bool { return d.KeyProps[i].KeyOrder < d.KeyProps[j].KeyOrder })

	if b.mode == Strict {
		if len(d.KeyProps) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoKey, t.Name())
		}
		seen := make(map[int]bool, len(d.KeyProps))
		for i, kp := range d.KeyProps {
			if seen[kp.KeyOrder] {
				return nil, fmt.Errorf("%w: %s has two key properties at order %d", ErrDuplicateKeyOrder, t.Name(), kp.KeyOrder)
			}
			seen[kp.KeyOrder] = true
			if kp.KeyOrder != i+1 {
				return nil, &ValidationError{
					Entity: t.Name(), Property: kp.FieldName,
					Reason: fmt.Sprintf("key order must be contiguous starting at 1, got %d at position %d", kp.KeyOrder, i+1),
				}
			}
		}
	}

	return d, nil
}

// Describe returns the Descriptor registered for T by a prior ModelBuilder
// Build call. It panics if called before registration, mirroring the
// teacher's convention that misconfiguration at startup should fail loudly
// rather than be handled as a runtime error on the hot path.
func Describe[T any]() *Descriptor {
	var zero T
	t := reflect.TypeOf(zero)
	d, ok := Lookup(t)
	if !ok {
		panic(fmt.Sprintf("entity: %s was never registered with a ModelBuilder", t))
	}
	return d
}
