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

// Package entity describes Go structs as ksqlDB-backed entities: their
// backing topic, their properties' Avro/KSQL type mapping, and which
// properties form the entity's key. Registration happens once, via
// Register and ModelBuilder.Build (Describe then looks the result up), and
// is driven by struct tags rather than by reflecting on every record at
// runtime.
package entity

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// PropertyKind is a closed enumeration of the scalar kinds a property can
// take. Unsupported marks a Go field type this library cannot map to an
// Avro/KSQL type.
type PropertyKind int

// Recognized property kinds.
const (
	Unsupported PropertyKind = iota
	Bool
	Int16
	Int32
	Int64
	Uint8
	Float32
	Float64
	String
	Char
	Bytes
	Decimal
	Timestamp
	TimestampOffset
	UUID
)

func (k PropertyKind) String() string {
	switch k {
	case Bool:
		return "Bool"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Uint8:
		return "Uint8"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case String:
		return "String"
	case Char:
		return "Char"
	case Bytes:
		return "Bytes"
	case Decimal:
		return "Decimal"
	case Timestamp:
		return "Timestamp"
	case TimestampOffset:
		return "TimestampOffset"
	case UUID:
		return "UUID"
	default:
		return "Unsupported"
	}
}

// Property describes a single field of an entity: its ksql column name,
// Go struct field, kind, and key/validation metadata parsed from its
// `ksql:"..."` struct tag.
type Property struct {
	Name           string
	FieldName      string
	Kind           PropertyKind
	GoType         reflect.Type
	KeyOrder       int // 0 means not part of the key
	MaxLength      int // 0 means unbounded
	DecimalPrec    int
	DecimalScale   int
	Nullable       bool
	Ignored        bool
}

// Descriptor is the frozen, reflection-free description of an entity type,
// built once by ModelBuilder.Build and reused on every hot-path operation
// thereafter.
type Descriptor struct {
	Name       string
	GoType     reflect.Type
	Topic      string
	Properties []Property
	KeyProps   []Property // sorted by KeyOrder
}

// PropertyByFieldName looks up a property by its Go struct field name.
func (d *Descriptor) PropertyByFieldName(field string) (Property, bool) {
	for _, p := range d.Properties {
		if p.FieldName == field {
			return p, true
		}
	}
	return Property{}, false
}

// registry is the process-wide set of descriptors built by ModelBuilder.
var (
	registryMu sync.RWMutex
	registered = map[reflect.Type]*Descriptor{}
)

// Lookup returns the Descriptor registered for T, if any.
func Lookup(t reflect.Type) (*Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registered[t]
	return d, ok
}

func store(t reflect.Type, d *Descriptor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registered[t] = d
}

// parseTag parses a `ksql:"name,key=<order>,maxlen=<n>,decimal=<p>.<s>,ignore"`
// struct tag into a Property, seeded with the field's name and Go kind.
func parseTag(field reflect.StructField) (Property, error) {
	prop := Property{
		Name:      field.Name,
		FieldName: field.Name,
		GoType:    field.Type,
		Kind:      kindOf(field.Type),
		Nullable:  field.Type.Kind() == reflect.Ptr,
	}

	tag, ok := field.Tag.Lookup("ksql")
	if !ok {
		return prop, nil
	}
	parts := strings.Split(tag, ",")
	if len(parts) > 0 && parts[0] != "" && parts[0] != "-" {
		prop.Name = parts[0]
	}
	if len(parts) > 0 && parts[0] == "-" {
		prop.Ignored = true
	}
	for _, p := range parts[1:] {
		switch {
		case p == "ignore":
			prop.Ignored = true
		case strings.HasPrefix(p, "key="):
			order, err := strconv.Atoi(strings.TrimPrefix(p, "key="))
			if err != nil {
				return prop, fmt.Errorf("entity: invalid key order in tag %q: %w", tag, err)
			}
			prop.KeyOrder = order
		case strings.HasPrefix(p, "maxlen="):
			n, err := strconv.Atoi(strings.TrimPrefix(p, "maxlen="))
			if err != nil {
				return prop, fmt.Errorf("entity: invalid maxlen in tag %q: %w", tag, err)
			}
			prop.MaxLength = n
		case strings.HasPrefix(p, "decimal="):
			spec := strings.TrimPrefix(p, "decimal=")
			precScale := strings.SplitN(spec, ".", 2)
			if len(precScale) != 2 {
				return prop, fmt.Errorf("entity: invalid decimal spec %q, want <precision>.<scale>", spec)
			}
			prec, err := strconv.Atoi(precScale[0])
			if err != nil {
				return prop, fmt.Errorf("entity: invalid decimal precision in tag %q: %w", tag, err)
			}
			scale, err := strconv.Atoi(precScale[1])
			if err != nil {
				return prop, fmt.Errorf("entity: invalid decimal scale in tag %q: %w", tag, err)
			}
			prop.DecimalPrec, prop.DecimalScale = prec, scale
			prop.Kind = Decimal
		}
	}
	return prop, nil
}

// kindOf maps a Go reflect.Type to a PropertyKind, unwrapping a single
// level of pointer indirection to treat *T as a nullable T.
func kindOf(t reflect.Type) PropertyKind {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int16:
		return Int16
	case reflect.Int, reflect.Int32:
		return Int32
	case reflect.Int64:
		return Int64
	case reflect.Uint8:
		return Uint8
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.String:
		return String
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return Bytes
		}
		return Unsupported
	case reflect.Struct:
		switch t.Name() {
		case "Time":
			return Timestamp
		case "UUID":
			return UUID
		}
		return Unsupported
	case reflect.Array:
		if t.Name() == "UUID" {
			return UUID
		}
		return Unsupported
	default:
		return Unsupported
	}
}
