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

package serde

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCodec struct{ id int }

func (f *fakeCodec) Serialize(interface{}) ([]byte, error)  { return nil, nil }
func (f *fakeCodec) Deserialize([]byte) (interface{}, error) { return nil, nil }

func TestGetOrConstructConstructsExactlyOnceUnderConcurrency(t *testing.T) {
	cache := NewCache()
	key := CodecKey{EntityTypeID: "Order", Role: RoleValue, SchemaID: 1}

	var constructions int
	var mu sync.Mutex
	construct := func() (Codec, error) {
		mu.Lock()
		constructions++
		mu.Unlock()
		return &fakeCodec{id: 1}, nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrConstruct(key, OperationSerialize, construct)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, constructions, "concurrent misses for the same key must collapse into one construction")
}

func TestGetOrConstructHitsAfterFirstMiss(t *testing.T) {
	cache := NewCache()
	key := CodecKey{EntityTypeID: "Order", Role: RoleKey, SchemaID: 2}

	_, err := cache.GetOrConstruct(key, OperationDeserialize, func() (Codec, error) {
		return &fakeCodec{id: 2}, nil
	})
	require.NoError(t, err)

	_, err = cache.GetOrConstruct(key, OperationDeserialize, func() (Codec, error) {
		t.Fatal("construct should not be called on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestClearForcesReconstruction(t *testing.T) {
	cache := NewCache()
	key := CodecKey{EntityTypeID: "Order", Role: RoleValue, SchemaID: 3}
	constructions := 0
	construct := func() (Codec, error) {
		constructions++
		return &fakeCodec{id: 3}, nil
	}

	_, err := cache.GetOrConstruct(key, OperationSerialize, construct)
	require.NoError(t, err)
	cache.Clear()
	_, err = cache.GetOrConstruct(key, OperationSerialize, construct)
	require.NoError(t, err)
	assert.Equal(t, 2, constructions)
}

func TestClearEntityOnlyEvictsThatEntity(t *testing.T) {
	cache := NewCache()
	orderKey := CodecKey{EntityTypeID: "Order", Role: RoleValue, SchemaID: 1}
	customerKey := CodecKey{EntityTypeID: "Customer", Role: RoleValue, SchemaID: 1}
	construct := func() (Codec, error) { return &fakeCodec{}, nil }

	_, err := cache.GetOrConstruct(orderKey, OperationSerialize, construct)
	require.NoError(t, err)
	_, err = cache.GetOrConstruct(customerKey, OperationSerialize, construct)
	require.NoError(t, err)

	cache.ClearEntity("Order")
	assert.Equal(t, 1, cache.Len())
}

func TestHealthThresholds(t *testing.T) {
	cache := NewCache()
	construct := func() (Codec, error) { return &fakeCodec{}, nil }

	for i := 0; i < 10; i++ {
		key := CodecKey{EntityTypeID: "Order", Role: RoleValue, SchemaID: i}
		_, err := cache.GetOrConstruct(key, OperationSerialize, construct)
		require.NoError(t, err)
	}
	report := cache.Health()
	assert.Equal(t, Critical, report.Overall, "all-miss cache should be critical")
	assert.NotEmpty(t, report.Recommendations)
}

func TestEntityStatsLowPerformerFlagged(t *testing.T) {
	cache := NewCache()
	construct := func() (Codec, error) { return &fakeCodec{}, nil }

	key := CodecKey{EntityTypeID: "Order", Role: RoleValue, SchemaID: 1}
	_, err := cache.GetOrConstruct(key, OperationSerialize, construct)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		miss := CodecKey{EntityTypeID: "Order", Role: RoleValue, SchemaID: 2 + i}
		_, err := cache.GetOrConstruct(miss, OperationSerialize, construct)
		require.NoError(t, err)
	}

	report := cache.Health()
	assert.Contains(t, report.LowPerforming, "Order")
}
