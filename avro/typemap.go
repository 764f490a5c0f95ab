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

// Package avro generates Avro key/value schema JSON for entity.Descriptors,
// the way dangkaka-go-kafka-avro's schemaRegistry.go builds schema payloads,
// but from a typed schema-node tree rather than string templating.
package avro

import (
	"fmt"

	"github.com/spothero/ksqlstream/entity"
)

// node is the minimal Avro schema JSON shape this package emits: either a
// bare type name/reference (string), or a map describing a record, array,
// fixed, or logical type.
type node = interface{}

// primitiveFor maps a PropertyKind to its Avro primitive or logical-type
// node, per the authoritative type table.
func primitiveFor(p entity.Property) (node, error) {
	switch p.Kind {
	case entity.Bool:
		return "boolean", nil
	case entity.Int16, entity.Int32, entity.Uint8:
		return "int", nil
	case entity.Int64:
		return "long", nil
	case entity.Float32:
		return "float", nil
	case entity.Float64:
		return "double", nil
	case entity.String, entity.Char:
		return "string", nil
	case entity.Bytes:
		return "bytes", nil
	case entity.Decimal:
		if p.DecimalPrec <= 0 {
			return nil, fmt.Errorf("avro: property %s is Decimal but has no precision/scale tag", p.Name)
		}
		return map[string]interface{}{
			"type":        "bytes",
			"logicalType": "decimal",
			"precision":   p.DecimalPrec,
			"scale":       p.DecimalScale,
		}, nil
	case entity.Timestamp, entity.TimestampOffset:
		return map[string]interface{}{
			"type":        "long",
			"logicalType": "timestamp-millis",
		}, nil
	case entity.UUID:
		return map[string]interface{}{
			"type":        "string",
			"logicalType": "uuid",
		}, nil
	default:
		// Fallback: render as string rather than failing generation outright.
		return "string", nil
	}
}

// BranchName returns the Avro primitive type name goavro uses as the
// non-null branch key when encoding a native value for a ["null", base]
// union. A logicalType is metadata layered on top of its underlying
// primitive (bytes, long, string); goavro resolves union branches by
// that underlying "type", not by logicalType, so Decimal/Timestamp/UUID
// map to the same branch name as their base primitive.
func BranchName(p entity.Property) (string, error) {
	switch p.Kind {
	case entity.Bool:
		return "boolean", nil
	case entity.Int16, entity.Int32, entity.Uint8:
		return "int", nil
	case entity.Int64, entity.Timestamp, entity.TimestampOffset:
		return "long", nil
	case entity.Float32:
		return "float", nil
	case entity.Float64:
		return "double", nil
	case entity.String, entity.Char, entity.UUID:
		return "string", nil
	case entity.Bytes, entity.Decimal:
		return "bytes", nil
	default:
		return "string", nil
	}
}

// fieldType wraps a primitive/logical node in a nullable union when the
// property is nullable, with null as the first branch per Avro convention
// so that the default value (if any) lines up with a nil Go pointer.
func fieldType(p entity.Property) (node, error) {
	base, err := primitiveFor(p)
	if err != nil {
		return nil, err
	}
	if p.Nullable {
		return []interface{}{"null", base}, nil
	}
	return base, nil
}
