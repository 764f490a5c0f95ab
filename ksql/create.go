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

package ksql

import (
	"fmt"
	"sort"
	"strings"
)

// CreateKind selects between a CREATE STREAM and a CREATE TABLE statement.
type CreateKind int

const (
	CreateStream CreateKind = iota
	CreateTable
)

func (k CreateKind) String() string {
	if k == CreateTable {
		return "TABLE"
	}
	return "STREAM"
}

// ColumnDef is a single column in a CREATE statement. KeyOrder is 1-based;
// zero means the column is not part of the key. entity.Descriptor is
// responsible for mapping its own property kinds to KSQL type text before
// building a CreateSpec, keeping this package free of entity-layer types.
type ColumnDef struct {
	Name     string
	Type     string
	KeyOrder int
}

// CreateSpec describes a CREATE STREAM/TABLE statement to emit for an
// entity's topic binding, per spec §4.1 and §4.6.
type CreateSpec struct {
	Kind        CreateKind
	Name        string
	Topic       string
	ValueFormat string // e.g. "AVRO"
	KeyFormat   string // e.g. "AVRO" or "KAFKA" for a single primitive key
	Columns     []ColumnDef
	Partitions  int // 0 means omit PARTITIONS from WITH(...)
	Replicas    int // 0 means omit REPLICAS from WITH(...)
}

// CreateStatementBuilder renders a CREATE STREAM or CREATE TABLE statement
// binding an entity to its backing topic. Key columns are rendered with the
// KEY (stream) / PRIMARY KEY (table) qualifier in KeyOrder order, per
// ksqlDB's requirement that composite keys list every key column in the
// order they appear in the underlying key schema.
func CreateStatementBuilder(spec CreateSpec) (string, error) {
	if spec.Name == "" {
		return "", &TranslationError{Reason: "CREATE statement requires a name"}
	}
	if spec.Topic == "" {
		return "", &TranslationError{Reason: "CREATE statement requires a backing topic"}
	}
	if len(spec.Columns) == 0 {
		return "", &TranslationError{Reason: "CREATE statement requires at least one column"}
	}

	keyQualifier := "KEY"
	if spec.Kind == CreateTable {
		keyQualifier = "PRIMARY KEY"
	}

	keys := make([]ColumnDef, 0)
	rest := make([]ColumnDef, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		if c.KeyOrder > 0 {
			keys = append(keys, c)
			continue
		}
		rest = append(rest, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].KeyOrder < keys[j].KeyOrder })
	ordered := append(keys, rest...)

	cols := make([]string, 0, len(ordered))
	for _, c := range ordered {
		if c.KeyOrder > 0 {
			cols = append(cols, fmt.Sprintf("%s %s %s", c.Name, c.Type, keyQualifier))
			continue
		}
		cols = append(cols, fmt.Sprintf("%s %s", c.Name, c.Type))
	}

	withParts := []string{
		fmt.Sprintf("KAFKA_TOPIC='%s'", spec.Topic),
		fmt.Sprintf("VALUE_FORMAT='%s'", orDefault(spec.ValueFormat, "AVRO")),
	}
	if spec.KeyFormat != "" {
		withParts = append(withParts, fmt.Sprintf("KEY_FORMAT='%s'", spec.KeyFormat))
	}
	if spec.Partitions > 0 {
		withParts = append(withParts, fmt.Sprintf("PARTITIONS=%d", spec.Partitions))
	}
	if spec.Replicas > 0 {
		withParts = append(withParts, fmt.Sprintf("REPLICAS=%d", spec.Replicas))
	}

	return fmt.Sprintf(
		"CREATE %s %s (%s) WITH (%s);",
		spec.Kind, spec.Name, strings.Join(cols, ", "), strings.Join(withParts, ", "),
	), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// InferStatementKind decides whether a query's materialized result is a
// stream or a table, per the GroupBy-dominates resolution of spec §9's open
// question: any aggregation (GroupBy or a bare aggregate call) or a join
// against a table-backed source produces a TABLE; everything else is a
// STREAM. The returned reason is a short diagnostic suitable for logging.
func InferStatementKind(hasAggregation, hasGroupBy, innerIsTable bool) (CreateKind, string) {
	if hasGroupBy || hasAggregation {
		return CreateTable, "GroupBy/aggregate present: result is materialized as a TABLE"
	}
	if innerIsTable {
		return CreateTable, "joined against a table-backed source: result is materialized as a TABLE"
	}
	return CreateStream, "no aggregation or table join: result is materialized as a STREAM"
}
