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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOrder struct {
	ID     string  `ksql:"id,key=1"`
	Amount int64   `ksql:"amount"`
	Note   *string `ksql:"note,maxlen=10"`
	secret string
}

type testNoKey struct {
	Name string `ksql:"name"`
}

type testBadField struct {
	ID  string      `ksql:"id,key=1"`
	Bad complex128  `ksql:"bad"`
}

type testDuplicateKeyOrder struct {
	A string `ksql:"a,key=1"`
	B string `ksql:"b,key=1"`
}

type testGapKeyOrder struct {
	A string `ksql:"a,key=1"`
	B string `ksql:"b,key=3"`
}

func TestRegisterAfterBuildFails(t *testing.T) {
	b := NewModelBuilder(Strict)
	_, err := b.Build()
	require.NoError(t, err)
	err = Register[testOrder](b, "orders")
	assert.ErrorIs(t, err, ErrBuilderFrozen)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		mode      ValidationMode
		register  func(b *ModelBuilder) error
		expectErr error
	}{
		{
			"well-formed entity builds successfully",
			Strict,
			func(b *ModelBuilder) error { return Register[testOrder](b, "orders") },
			nil,
		},
		{
			"strict mode rejects a keyless entity",
			Strict,
			func(b *ModelBuilder) error { return Register[testNoKey](b, "nokeys") },
			ErrNoKey,
		},
		{
			"relaxed mode allows a keyless entity",
			Relaxed,
			func(b *ModelBuilder) error { return Register[testNoKey](b, "nokeys") },
			nil,
		},
		{
			"unsupported Go type is rejected",
			Strict,
			func(b *ModelBuilder) error { return Register[testBadField](b, "bad") },
			nil, // checked separately below: *ValidationError, not a sentinel
		},
		{
			"duplicate key order is rejected",
			Strict,
			func(b *ModelBuilder) error { return Register[testDuplicateKeyOrder](b, "dup") },
			ErrDuplicateKeyOrder,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := NewModelBuilder(test.mode)
			require.NoError(t, test.register(b))
			_, err := b.Build()
			if test.name == "unsupported Go type is rejected" {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			if test.expectErr != nil {
				assert.ErrorIs(t, err, test.expectErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBuildNonContiguousKeyOrder(t *testing.T) {
	b := NewModelBuilder(Strict)
	require.NoError(t, Register[testGapKeyOrder](b, "gap"))
	_, err := b.Build()
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBuildStoresDescriptorForDescribe(t *testing.T) {
	b := NewModelBuilder(Strict)
	require.NoError(t, Register[testOrder](b, "orders"))
	descriptors, err := b.Build()
	require.NoError(t, err)
	require.Len(t, descriptors, 1)

	d := Describe[testOrder]()
	assert.Equal(t, "testOrder", d.Name)
	assert.Equal(t, "orders", d.Topic)
	require.Len(t, d.KeyProps, 1)
	assert.Equal(t, "id", d.KeyProps[0].Name)

	var noteProp Property
	for _, p := range d.Properties {
		if p.FieldName == "Note" {
			noteProp = p
		}
	}
	assert.True(t, noteProp.Nullable)
	assert.Equal(t, 10, noteProp.MaxLength)
}

func TestDescribePanicsWhenUnregistered(t *testing.T) {
	type neverRegistered struct {
		ID string `ksql:"id,key=1"`
	}
	assert.Panics(t, func() { Describe[neverRegistered]() })
}

func TestRegisterOnNonStruct(t *testing.T) {
	b := NewModelBuilder(Relaxed)
	require.NoError(t, Register[int](b, "ints"))
	_, err := b.Build()
	assert.Error(t, err)
}
