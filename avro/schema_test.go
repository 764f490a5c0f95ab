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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spothero/ksqlstream/entity"
)

type order struct {
	ID     string  `ksql:"id,key=1"`
	Region string  `ksql:"region,key=2"`
	Amount float64 `ksql:"amount,decimal=10.2"`
	Note   *string `ksql:"note"`
}

type valueOnly struct {
	Payload string `ksql:"payload"`
}

func buildDescriptor[T any](t *testing.T, mode entity.ValidationMode, topic string) *entity.Descriptor {
	t.Helper()
	b := entity.NewModelBuilder(mode)
	require.NoError(t, entity.Register[T](b, topic))
	descriptors, err := b.Build()
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	return descriptors[0]
}

func TestBuildCompositeKeySchema(t *testing.T) {
	d := buildDescriptor[order](t, entity.Strict, "orders")
	keySchema, valueSchema, stats, err := Build(d)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.KeyFields)
	assert.Equal(t, 4, stats.ValueFields)
	assert.Equal(t, 1, stats.Nullable)

	var key map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(keySchema), &key))
	assert.Equal(t, "record", key["type"])
	assert.Equal(t, "CompositeKey", key["name"])

	var value map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(valueSchema), &value))
	assert.Equal(t, "record", value["type"])
	assert.Equal(t, "orders_value", value["name"])

	var amountField map[string]interface{}
	for _, f := range value["fields"].([]interface{}) {
		field := f.(map[string]interface{})
		if field["name"] == "amount" {
			amountField = field["type"].(map[string]interface{})
		}
	}
	require.NotNil(t, amountField, "amount field missing from value schema")
	assert.Equal(t, "bytes", amountField["type"])
	assert.Equal(t, "decimal", amountField["logicalType"])
	assert.Equal(t, float64(10), amountField["precision"])
	assert.Equal(t, float64(2), amountField["scale"])
}

func TestBuildSingleKeySchema(t *testing.T) {
	type singleKey struct {
		ID   string `ksql:"id,key=1"`
		Name string `ksql:"name"`
	}
	d := buildDescriptor[singleKey](t, entity.Strict, "things")
	keySchema, _, _, err := Build(d)
	require.NoError(t, err)
	assert.Equal(t, `"string"`, keySchema)
}

func TestBuildNoKeySchema(t *testing.T) {
	d := buildDescriptor[valueOnly](t, entity.Relaxed, "values")
	keySchema, _, _, err := Build(d)
	require.NoError(t, err)
	assert.Equal(t, `"string"`, keySchema)
}

func TestBuildRejectsMissingDecimalPrecision(t *testing.T) {
	type badDecimal struct {
		ID    string  `ksql:"id,key=1"`
		Price float64 `ksql:"price,decimal=0.2"`
	}
	d := buildDescriptor[badDecimal](t, entity.Strict, "bad")
	_, _, _, err := Build(d)
	assert.Error(t, err)
}

func TestValidateSchemaJSONRejectsMalformed(t *testing.T) {
	assert.Error(t, validateSchemaJSON("not json"))
}

func TestValidateSchemaJSONAcceptsRecord(t *testing.T) {
	d := buildDescriptor[valueOnly](t, entity.Relaxed, "values")
	_, valueSchema, _, err := Build(d)
	require.NoError(t, err)
	assert.NoError(t, validateSchemaJSON(valueSchema))
}
