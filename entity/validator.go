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
)

// Validator checks a value of an entity's Go type against its Descriptor's
// nullability and max-length constraints before it is produced to Kafka.
type Validator struct {
	Mode ValidationMode
}

// NewValidator creates a Validator for the given mode.
func NewValidator(mode ValidationMode) *Validator {
	return &Validator{Mode: mode}
}

// Validate checks value (which must be of d.GoType) against every
// non-ignored property's constraints. In Strict mode, a nil key property or
// a string exceeding its declared maxlen is an error; in Relaxed mode these
// are tolerated (the caller accepts ksqlDB's own runtime behavior).
func (v *Validator) Validate(d *Descriptor, value interface{}) error {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return &ValidationError{Entity: d.Name, Property: "<receiver>", Reason: "value is nil"}
		}
		rv = rv.Elem()
	}
	if rv.Type() != d.GoType {
		return fmt.Errorf("entity: value of type %s does not match descriptor for %s", rv.Type(), d.Name)
	}

	for _, p := range d.Properties {
		field := rv.FieldByName(p.FieldName)
		if !field.IsValid() {
			continue
		}
		if err := v.validateField(d, p, field); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateField(d *Descriptor, p Property, field reflect.Value) error {
	isNil := field.Kind() == reflect.Ptr && field.IsNil()

	if p.KeyOrder > 0 && isNil {
		if v.Mode == Strict {
			return &ValidationError{Entity: d.Name, Property: p.Name, Reason: "key property must not be null"}
		}
		return nil
	}
	if isNil {
		return nil
	}

	if p.MaxLength > 0 && p.Kind == String {
		s := field
		if s.Kind() == reflect.Ptr {
			s = s.Elem()
		}
		if s.Kind() == reflect.String && len(s.String()) > p.MaxLength {
			if v.Mode == Strict {
				return &ValidationError{
					Entity: d.Name, Property: p.Name,
					Reason: fmt.Sprintf("value exceeds max length %d", p.MaxLength),
				}
			}
		}
	}
	return nil
}
