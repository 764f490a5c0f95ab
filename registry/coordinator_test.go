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

package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTopicSkipsUnchangedSchema(t *testing.T) {
	registrations := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registrations++
		w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	coordinator := NewCoordinator(NewClient(server.Client(), server.URL), Config{RegisterRetries: 2})

	id, err := coordinator.RegisterTopic(context.Background(), "orders-value", `"string"`)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = coordinator.RegisterTopic(context.Background(), "orders-value", `"string"`)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, 1, registrations, "identical schema should not trigger a second network call")
}

func TestUpgradeInvalidatesCacheAndReregisters(t *testing.T) {
	registrations := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registrations++
		w.Write([]byte(`{"id":2}`))
	}))
	defer server.Close()

	coordinator := NewCoordinator(NewClient(server.Client(), server.URL), Config{RegisterRetries: 2})
	_, err := coordinator.RegisterTopic(context.Background(), "orders-value", `"string"`)
	require.NoError(t, err)

	id, err := coordinator.Upgrade(context.Background(), "orders-value", `["null","string"]`)
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	assert.Equal(t, 2, registrations)
}

func TestRegisterTopicDoesNotRetryNonRetryableStatus(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error_code":422,"message":"invalid schema"}`))
	}))
	defer server.Close()

	coordinator := NewCoordinator(NewClient(server.Client(), server.URL), Config{RegisterRetries: 3})
	_, err := coordinator.RegisterTopic(context.Background(), "orders-value", `not valid avro`)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a 422 is not retryable and should fail on the first attempt")
}

func TestCanUpgrade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_compatible":false}`))
	}))
	defer server.Close()

	coordinator := NewCoordinator(NewClient(server.Client(), server.URL), Config{CompatibilityRetries: 1})
	compatible, err := coordinator.CanUpgrade(context.Background(), "orders-value", `"int"`)
	require.NoError(t, err)
	assert.False(t, compatible)
}
