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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStatementBuilderStream(t *testing.T) {
	spec := CreateSpec{
		Kind:  CreateStream,
		Name:  "orders",
		Topic: "orders-topic",
		Columns: []ColumnDef{
			{Name: "id", Type: "VARCHAR", KeyOrder: 1},
			{Name: "amount", Type: "DOUBLE"},
		},
	}
	text, err := CreateStatementBuilder(spec)
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE STREAM orders (id VARCHAR KEY, amount DOUBLE) WITH (KAFKA_TOPIC='orders-topic', VALUE_FORMAT='AVRO');",
		text)
}

func TestCreateStatementBuilderTableUsesPrimaryKey(t *testing.T) {
	spec := CreateSpec{
		Kind:  CreateTable,
		Name:  "orders_agg",
		Topic: "orders-agg",
		Columns: []ColumnDef{
			{Name: "region", Type: "VARCHAR", KeyOrder: 1},
			{Name: "total", Type: "DOUBLE"},
		},
		Partitions: 6,
		Replicas:   3,
		KeyFormat:  "KAFKA",
	}
	text, err := CreateStatementBuilder(spec)
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE TABLE orders_agg (region VARCHAR PRIMARY KEY, total DOUBLE) "+
			"WITH (KAFKA_TOPIC='orders-agg', VALUE_FORMAT='AVRO', KEY_FORMAT='KAFKA', PARTITIONS=6, REPLICAS=3);",
		text)
}

func TestCreateStatementBuilderOrdersCompositeKeyColumnsByKeyOrder(t *testing.T) {
	spec := CreateSpec{
		Kind:  CreateStream,
		Name:  "orders",
		Topic: "orders-topic",
		Columns: []ColumnDef{
			{Name: "amount", Type: "DOUBLE"},
			{Name: "id", Type: "VARCHAR", KeyOrder: 2},
			{Name: "region", Type: "VARCHAR", KeyOrder: 1},
		},
	}
	text, err := CreateStatementBuilder(spec)
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE STREAM orders (region VARCHAR KEY, id VARCHAR KEY, amount DOUBLE) "+
			"WITH (KAFKA_TOPIC='orders-topic', VALUE_FORMAT='AVRO');",
		text)
}

func TestCreateStatementBuilderRequiresNameTopicAndColumns(t *testing.T) {
	_, err := CreateStatementBuilder(CreateSpec{Topic: "t", Columns: []ColumnDef{{Name: "id", Type: "VARCHAR"}}})
	assert.Error(t, err)

	_, err = CreateStatementBuilder(CreateSpec{Name: "n", Columns: []ColumnDef{{Name: "id", Type: "VARCHAR"}}})
	assert.Error(t, err)

	_, err = CreateStatementBuilder(CreateSpec{Name: "n", Topic: "t"})
	assert.Error(t, err)
}

func TestInferStatementKind(t *testing.T) {
	kind, _ := InferStatementKind(true, false, false)
	assert.Equal(t, CreateTable, kind)

	kind, _ = InferStatementKind(false, true, false)
	assert.Equal(t, CreateTable, kind)

	kind, _ = InferStatementKind(false, false, true)
	assert.Equal(t, CreateTable, kind)

	kind, _ = InferStatementKind(false, false, false)
	assert.Equal(t, CreateStream, kind)
}
