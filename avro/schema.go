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

package avro

import (
	"encoding/json"
	"fmt"

	hambaavro "github.com/hamba/avro/v2"

	"github.com/spothero/ksqlstream/entity"
)

// GenerationStats summarizes a single Build call, for logging/metrics.
type GenerationStats struct {
	ValueFields int
	KeyFields   int
	Nullable    int
}

// Build generates the key and value Avro schema JSON for an entity
// Descriptor. The value schema is always a record named "{topic}_value"
// containing every non-ignored property, key properties included,
// matching ksqlDB's requirement that value records carry their own copy of
// key columns for pull-query projection). The key schema is a bare
// primitive/logical type when there is exactly one key property, or a
// record named "CompositeKey" when there is more than one.
func Build(d *entity.Descriptor) (keySchema string, valueSchema string, stats GenerationStats, err error) {
	valueSchema, stats, err = buildValueSchema(d)
	if err != nil {
		return "", "", stats, err
	}
	keySchema, err = buildKeySchema(d)
	if err != nil {
		return "", "", stats, err
	}
	if err := validateSchemaJSON(keySchema); err != nil {
		return "", "", stats, fmt.Errorf("avro: generated key schema for %s failed self-validation: %w", d.Name, err)
	}
	if err := validateSchemaJSON(valueSchema); err != nil {
		return "", "", stats, fmt.Errorf("avro: generated value schema for %s failed self-validation: %w", d.Name, err)
	}
	return keySchema, valueSchema, stats, nil
}

func buildValueSchema(d *entity.Descriptor) (string, GenerationStats, error) {
	var stats GenerationStats
	fields := make([]map[string]interface{}, 0, len(d.Properties))
	for _, p := range d.Properties {
		ft, err := fieldType(p)
		if err != nil {
			return "", stats, fmt.Errorf("avro: building field %s.%s: %w", d.Name, p.Name, err)
		}
		fields = append(fields, map[string]interface{}{
			"name": p.Name,
			"type": ft,
		})
		stats.ValueFields++
		if p.Nullable {
			stats.Nullable++
		}
		if p.KeyOrder > 0 {
			stats.KeyFields++
		}
	}
	record := map[string]interface{}{
		"type":      "record",
		"name":      d.Topic + "_value",
		"namespace": "github.com.spothero.ksqlstream",
		"fields":    fields,
	}
	out, err := json.Marshal(record)
	if err != nil {
		return "", stats, fmt.Errorf("avro: marshaling value schema for %s: %w", d.Name, err)
	}
	return string(out), stats, nil
}

func buildKeySchema(d *entity.Descriptor) (string, error) {
	switch len(d.KeyProps) {
	case 0:
		return `"string"`, nil
	case 1:
		ft, err := primitiveFor(d.KeyProps[0])
		if err != nil {
			return "", fmt.Errorf("avro: building key for %s: %w", d.Name, err)
		}
		out, err := json.Marshal(ft)
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		fields := make([]map[string]interface{}, 0, len(d.KeyProps))
		for _, p := range d.KeyProps {
			ft, err := primitiveFor(p)
			if err != nil {
				return "", fmt.Errorf("avro: building composite key field %s.%s: %w", d.Name, p.Name, err)
			}
			fields = append(fields, map[string]interface{}{"name": p.Name, "type": ft})
		}
		record := map[string]interface{}{
			"type":      "record",
			"name":      "CompositeKey",
			"namespace": "github.com.spothero.ksqlstream",
			"fields":    fields,
		}
		out, err := json.Marshal(record)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// validateSchemaJSON round-trips the generated schema through hamba/avro to
// confirm it parses as valid Avro and, for records, carries a type and name.
func validateSchemaJSON(schemaJSON string) error {
	schema, err := hambaavro.Parse(schemaJSON)
	if err != nil {
		return err
	}
	if rec, ok := schema.(*hambaavro.RecordSchema); ok {
		if rec.Name() == "" {
			return fmt.Errorf("avro: record schema has no name")
		}
	}
	return nil
}
