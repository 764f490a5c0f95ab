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

package kafkatransport

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spothero/ksqlstream/entity"
	"github.com/spothero/ksqlstream/serde"
)

type fakeCodec struct {
	deserialized interface{}
	err          error
}

func (f fakeCodec) Serialize(interface{}) ([]byte, error) { return nil, nil }
func (f fakeCodec) Deserialize([]byte) (interface{}, error) {
	return f.deserialized, f.err
}

func schemaRegistryWireFormat(schemaID uint32, payload []byte) []byte {
	buf := make([]byte, 5+len(payload))
	buf[0] = 0
	binary.BigEndian.PutUint32(buf[1:5], schemaID)
	copy(buf[5:], payload)
	return buf
}

func newTestConsumer(t *testing.T, cache *serde.Cache) *Consumer {
	t.Helper()
	d := describeFixture[singleKeyOrder](t, entity.Strict, "orders")
	return &Consumer{
		client:     Client{ClientConfig: ClientConfig{ClientID: "test"}},
		descriptor: d,
		cache:      cache,
		metrics:    RegisterConsumerMetrics(prometheus.NewRegistry()),
		logger:     zap.NewNop(),
	}
}

func TestDecodeTooShortMessage(t *testing.T) {
	c := newTestConsumer(t, serde.NewCache())
	_, err := c.decode(context.Background(), &sarama.ConsumerMessage{Value: []byte{1, 2}})
	assert.Error(t, err)
}

func TestDecodeUsesCachedCodec(t *testing.T) {
	cache := serde.NewCache()
	c := newTestConsumer(t, cache)

	key := serde.CodecKey{EntityTypeID: c.descriptor.Name, Role: serde.RoleValue, SchemaID: 7}
	want := map[string]interface{}{"id": "order-1"}
	_, err := cache.GetOrConstruct(key, serde.OperationDeserialize, func() (serde.Codec, error) {
		return fakeCodec{deserialized: want}, nil
	})
	require.NoError(t, err)

	msg := &sarama.ConsumerMessage{Value: schemaRegistryWireFormat(7, []byte("irrelevant"))}
	got, err := c.decode(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
