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

// extractKey mirrors kafkatransport's wire-level key derivation (0 key
// properties -> the whole value, 1 -> a bare scalar, >1 -> a composite
// keyed by property name) but over reflect.Value directly, so
// EntitySet.Key can compute a key without touching Kafka or paying for
// Avro encoding.
func extractKey(d *entity.Descriptor, rv reflect.Value) (interface{}, error) {
	switch len(d.KeyProps) {
	case 0:
		return rv.Interface(), nil
	case 1:
		return keyField(d.KeyProps[0], rv)
	default:
		composite := make(map[string]interface{}, len(d.KeyProps))
		for _, prop := range d.KeyProps {
			value, err := keyField(prop, rv)
			if err != nil {
				return nil, err
			}
			composite[prop.Name] = value
		}
		return composite, nil
	}
}

func keyField(p entity.Property, rv reflect.Value) (interface{}, error) {
	field := rv.FieldByName(p.FieldName)
	if !field.IsValid() {
		return nil, fmt.Errorf("streaming: entity %s is missing key field %s", rv.Type(), p.FieldName)
	}
	if field.Kind() == reflect.Ptr && field.IsNil() {
		return nil, nil
	}
	if field.Kind() == reflect.Ptr {
		field = field.Elem()
	}
	return field.Interface(), nil
}

// indirect dereferences rv until it is no longer a pointer, returning an
// error for a nil pointer rather than panicking on the eventual
// FieldByName call.
func indirect(d *entity.Descriptor, value interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, &entity.ValidationError{Entity: d.Name, Property: "<receiver>", Reason: "value is nil"}
		}
		rv = rv.Elem()
	}
	if rv.Type() != d.GoType {
		return reflect.Value{}, fmt.Errorf("streaming: value of type %s does not match entity %s", rv.Type(), d.Name)
	}
	return rv, nil
}
