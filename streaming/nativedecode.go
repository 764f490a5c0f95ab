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

package streaming

import (
	"fmt"
	"reflect"

	"github.com/spothero/ksqlstream/entity"
)

// structFromNative converts a goavro-decoded native value (the
// map[string]interface{} a kafkatransport.Consumer hands its Handler) back
// into a value of T, the mirror image of kafkatransport's own toNative.
// Nullable fields arrive wrapped in Avro's union representation
// (map[string]interface{}{"<branch>": value} or nil); every other field
// arrives as its plain native Go value.
func structFromNative[T any](d *entity.Descriptor, native map[string]interface{}) (T, error) {
	var zero T
	out := reflect.New(d.GoType).Elem()
	for _, prop := range d.Properties {
		raw, ok := native[prop.Name]
		if !ok {
			continue
		}
		field := out.FieldByName(prop.FieldName)
		if !field.IsValid() {
			continue
		}
		if err := assignNative(field, prop, raw); err != nil {
			return zero, fmt.Errorf("streaming: decoding field %s: %w", prop.Name, err)
		}
	}
	return out.Interface().(T), nil
}

// assignNative unwraps a possibly union-wrapped native value and assigns it
// to field, allocating a pointer for nullable fields as needed.
func assignNative(field reflect.Value, prop entity.Property, raw interface{}) error {
	if raw == nil {
		if field.Kind() == reflect.Ptr {
			field.Set(reflect.Zero(field.Type()))
		}
		return nil
	}

	if prop.Nullable {
		if union, ok := raw.(map[string]interface{}); ok {
			for _, v := range union {
				raw = v
				break
			}
		}
	}

	target := field
	if field.Kind() == reflect.Ptr {
		target = reflect.New(field.Type().Elem()).Elem()
	}

	rv := reflect.ValueOf(raw)
	if !rv.Type().AssignableTo(target.Type()) {
		if rv.Type().ConvertibleTo(target.Type()) {
			rv = rv.Convert(target.Type())
		} else {
			return fmt.Errorf("value of type %s is not assignable to field of type %s", rv.Type(), target.Type())
		}
	}
	target.Set(rv)

	if field.Kind() == reflect.Ptr {
		field.Set(target.Addr())
	}
	return nil
}
