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
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decimalFixture struct {
	Price float64 `ksql:"price,decimal=10.2"`
}

type timestampFixture struct {
	CreatedAt time.Time `ksql:"created_at"`
}

type ignoredFixture struct {
	ID      string `ksql:"id,key=1"`
	Derived string `ksql:"-"`
	Skipped string `ksql:"skipped,ignore"`
}

func fieldOf(t *testing.T, v interface{}, name string) reflect.StructField {
	t.Helper()
	field, ok := reflect.TypeOf(v).FieldByName(name)
	require.True(t, ok)
	return field
}

func TestParseTagDecimal(t *testing.T) {
	prop, err := parseTag(fieldOf(t, decimalFixture{}, "Price"))
	require.NoError(t, err)
	assert.Equal(t, "price", prop.Name)
	assert.Equal(t, 10, prop.DecimalPrec)
	assert.Equal(t, 2, prop.DecimalScale)
}

func TestParseTagInvalidDecimal(t *testing.T) {
	type badDecimal struct {
		Price float64 `ksql:"price,decimal=bad"`
	}
	_, err := parseTag(fieldOf(t, badDecimal{}, "Price"))
	assert.Error(t, err)
}

func TestParseTagInvalidKeyOrder(t *testing.T) {
	type badKey struct {
		ID string `ksql:"id,key=notanumber"`
	}
	_, err := parseTag(fieldOf(t, badKey{}, "ID"))
	assert.Error(t, err)
}

func TestParseTagIgnore(t *testing.T) {
	prop, err := parseTag(fieldOf(t, ignoredFixture{}, "Derived"))
	require.NoError(t, err)
	assert.True(t, prop.Ignored)

	prop, err = parseTag(fieldOf(t, ignoredFixture{}, "Skipped"))
	require.NoError(t, err)
	assert.True(t, prop.Ignored)
}

func TestIgnoredPropertiesExcludedFromDescriptor(t *testing.T) {
	b := NewModelBuilder(Strict)
	require.NoError(t, Register[ignoredFixture](b, "ignored"))
	descriptors, err := b.Build()
	require.NoError(t, err)
	d := descriptors[0]
	for _, p := range d.Properties {
		assert.NotEqual(t, "Derived", p.FieldName)
		assert.NotEqual(t, "Skipped", p.FieldName)
	}
}

func TestKindOfTimestamp(t *testing.T) {
	assert.Equal(t, Timestamp, kindOf(reflect.TypeOf(timestampFixture{}).Field(0).Type))
}

func TestKindOfBytes(t *testing.T) {
	assert.Equal(t, Bytes, kindOf(reflect.TypeOf([]byte(nil))))
}

func TestKindOfUnsupportedSlice(t *testing.T) {
	assert.Equal(t, Unsupported, kindOf(reflect.TypeOf([]string(nil))))
}

func TestKindOfPointerUnwraps(t *testing.T) {
	var s string
	assert.Equal(t, String, kindOf(reflect.TypeOf(&s)))
}

func TestPropertyByFieldName(t *testing.T) {
	b := NewModelBuilder(Strict)
	require.NoError(t, Register[validatorFixture](b, "fixtures"))
	descriptors, err := b.Build()
	require.NoError(t, err)
	d := descriptors[0]

	prop, ok := d.PropertyByFieldName("ID")
	require.True(t, ok)
	assert.Equal(t, "id", prop.Name)

	_, ok = d.PropertyByFieldName("Nonexistent")
	assert.False(t, ok)
}

func TestPropertyKindString(t *testing.T) {
	assert.Equal(t, "Bool", Bool.String())
	assert.Equal(t, "UUID", UUID.String())
	assert.Equal(t, "Unsupported", PropertyKind(999).String())
}
