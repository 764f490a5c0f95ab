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

import "errors"

// ErrBuilderFrozen is returned when Register is called on a ModelBuilder
// after Build has already been called on it.
var ErrBuilderFrozen = errors.New("entity: model builder is frozen after Build")

// ErrNoKey is returned by Build when strict mode is enabled and a type has
// no properties tagged as key columns.
var ErrNoKey = errors.New("entity: entity has no key properties")

// ErrDuplicateKeyOrder is returned when two properties declare the same
// key=<order> value.
var ErrDuplicateKeyOrder = errors.New("entity: duplicate key order")

// ValidationError reports a single property-level validation failure
// encountered while building or while validating a value against a
// Descriptor at runtime.
type ValidationError struct {
	Entity   string
	Property string
	Reason   string
}

func (e *ValidationError) Error() string {
	return "entity: " + e.Entity + "." + e.Property + ": " + e.Reason
}
