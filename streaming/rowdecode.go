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
	"github.com/spothero/ksqlstream/ksql"
)

// decodeRow converts one ksqlDB query row into a value of T, assigning
// row.Columns positionally to d.Properties in declaration order. This
// mirrors the column order Translate emits for an unprojected "SELECT *"
// (the only shape a plain EntitySet[T], with no Select applied, ever
// produces); a projected EntitySet built through the package-level Select
// function carries its own element type and is decoded the same way
// against that type's descriptor.
func decodeRow[T any](d *entity.Descriptor, row ksql.QueryRow) (T, error) {
	var zero T
	if len(row.Columns) < len(d.Properties) {
		return zero, fmt.Errorf("streaming: row has %d columns, expected at least %d for entity %s",
			len(row.Columns), len(d.Properties), d.Name)
	}

	out := reflect.New(d.GoType).Elem()
	for i, prop := range d.Properties {
		field := out.FieldByName(prop.FieldName)
		if !field.IsValid() {
			continue
		}
		if err := assignColumn(field, prop, row.Columns[i]); err != nil {
			return zero, fmt.Errorf("streaming: decoding column %s: %w", prop.Name, err)
		}
	}
	return out.Interface().(T), nil
}

// assignColumn sets field from a JSON-decoded column value (float64,
// string, bool, nil, or a nested []interface{}/map[string]interface{} for
// composite columns), coercing numeric kinds the way encoding/json always
// hands back float64 for JSON numbers.
func assignColumn(field reflect.Value, prop entity.Property, raw interface{}) error {
	if raw == nil {
		if field.Kind() == reflect.Ptr {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		if prop.Nullable {
			return nil
		}
		return fmt.Errorf("column is null but %s is not nullable", prop.Name)
	}

	target := field
	if field.Kind() == reflect.Ptr {
		target = reflect.New(field.Type().Elem()).Elem()
	}

	switch target.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", raw)
		}
		target.SetString(s)
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", raw)
		}
		target.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", raw)
		}
		target.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", raw)
		}
		target.SetUint(uint64(f))
	case reflect.Float32, reflect.Float64:
		f, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %T", raw)
		}
		target.SetFloat(f)
	case reflect.Slice:
		if target.Type().Elem().Kind() == reflect.Uint8 {
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("expected base64 string for bytes, got %T", raw)
			}
			target.SetBytes([]byte(s))
			break
		}
		return fmt.Errorf("unsupported slice column type %s", target.Type())
	default:
		return fmt.Errorf("unsupported column kind %s", target.Kind())
	}

	if field.Kind() == reflect.Ptr {
		field.Set(target.Addr())
	}
	return nil
}
