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
	"fmt"
	"reflect"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spothero/ksqlstream/entity"
	"github.com/spothero/ksqlstream/log"
	"github.com/spothero/ksqlstream/registry"
	"github.com/spothero/ksqlstream/serde"
)

// ConsumerMetrics tracks a Consumer's throughput and failures.
type ConsumerMetrics struct {
	MessagesConsumed *prometheus.CounterVec
	ErrorsConsumed   *prometheus.CounterVec
}

// RegisterConsumerMetrics registers and returns ConsumerMetrics.
func RegisterConsumerMetrics(registerer prometheus.Registerer) ConsumerMetrics {
	labels := []string{"topic", "client"}
	m := ConsumerMetrics{
		MessagesConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ksqlstream_kafka_messages_consumed_total", Help: "Number of Kafka messages consumed"},
			labels,
		),
		ErrorsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ksqlstream_kafka_errors_consumed_total", Help: "Number of Kafka message consumption errors"},
			labels,
		),
	}
	registerer.MustRegister(m.MessagesConsumed, m.ErrorsConsumed)
	return m
}

// Consumer reads an entity's backing topic through a sarama.ConsumerGroup,
// decoding each message's Avro value via a codec drawn from a shared
// serde.Cache and dispatching decoded values to a handler. Partition
// assignment, rebalancing, and (when enabled) offset commits are entirely
// delegated to sarama's consumer-group implementation, the same group_id
// contract ksqlDB's own consumers join under.
type Consumer struct {
	client      Client
	descriptor  *entity.Descriptor
	coordinator *registry.Coordinator
	cache       *serde.Cache
	sarama      sarama.ConsumerGroup
	metrics     ConsumerMetrics
	logger      *zap.Logger
}

// Handler is invoked once per decoded message for an entity topic.
type Handler func(ctx context.Context, value interface{}) error

// NewConsumer builds a Consumer for the entity type t is a value of,
// joining client.GroupID's consumer group.
func NewConsumer(client Client, t reflect.Type, coordinator *registry.Coordinator, cache *serde.Cache, logger *zap.Logger) (*Consumer, error) {
	descriptor, ok := entity.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("kafkatransport: no entity.Descriptor registered for type %s", t)
	}
	groupID := client.GroupID
	if groupID == "" {
		groupID = client.ClientID
	}
	group, err := sarama.NewConsumerGroupFromClient(groupID, client.Sarama)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group %q: %w", groupID, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		client:      client,
		descriptor:  descriptor,
		coordinator: coordinator,
		cache:       cache,
		sarama:      group,
		metrics:     RegisterConsumerMetrics(prometheus.DefaultRegisterer),
		logger:      logger,
	}, nil
}

// ForEach joins the entity's backing topic as a member of the client's
// consumer group and invokes handler once per message until ctx is
// canceled. Sarama re-invokes groupHandler.Setup/ConsumeClaim across
// every rebalance, so ForEach loops on Consume rather than calling it once.
func (c *Consumer) ForEach(ctx context.Context, handler Handler) error {
	gh := &groupHandler{consumer: c, handler: handler}
	go func() {
		for err := range c.sarama.Errors() {
			log.Get(ctx).Error("kafka consumer group error",
				zap.String("entity", c.descriptor.Name), zap.Error(err))
		}
	}()
	for {
		if err := c.sarama.Consume(ctx, []string{c.descriptor.Topic}, gh); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("consumer group session for %s failed: %w", c.descriptor.Topic, err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if gh.handlerErr != nil {
			return gh.handlerErr
		}
	}
}

// groupHandler implements sarama.ConsumerGroupHandler, decoding and
// dispatching each claimed message through the owning Consumer.
type groupHandler struct {
	consumer   *Consumer
	handler    Handler
	handlerErr error
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	c := h.consumer
	labels := prometheus.Labels{"topic": c.descriptor.Topic, "client": c.client.ClientID}
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			value, err := c.decode(ctx, msg)
			if err != nil {
				c.metrics.ErrorsConsumed.With(labels).Inc()
				log.Get(ctx).Error("failed to decode kafka message",
					zap.String("entity", c.descriptor.Name), zap.Error(err))
				session.MarkMessage(msg, "")
				continue
			}
			if err := h.handler(ctx, value); err != nil {
				c.metrics.ErrorsConsumed.With(labels).Inc()
				h.handlerErr = fmt.Errorf("handler failed for %s message: %w", c.descriptor.Name, err)
				return h.handlerErr
			}
			c.metrics.MessagesConsumed.With(labels).Inc()
			session.MarkMessage(msg, "")
		}
	}
}

// decode parses the Confluent wire-format header to find the writer's
// schema ID, fetches that schema through the coordinator, and decodes
// the payload via a codec drawn from the shared cache.
func (c *Consumer) decode(ctx context.Context, msg *sarama.ConsumerMessage) (interface{}, error) {
	if len(msg.Value) < 5 {
		return nil, fmt.Errorf("kafka message too short to contain a schema registry header")
	}
	schemaID := binary.BigEndian.Uint32(msg.Value[1:5])

	key := serde.CodecKey{EntityTypeID: c.descriptor.Name, Role: serde.RoleValue, SchemaID: int(schemaID)}
	codec, err := c.cache.GetOrConstruct(key, serde.OperationDeserialize, func() (serde.Codec, error) {
		schemaJSON, err := c.coordinator.GetByID(ctx, schemaID)
		if err != nil {
			return nil, err
		}
		return serde.NewAvroCodec(schemaJSON, schemaID)
	})
	if err != nil {
		return nil, err
	}
	return codec.Deserialize(msg.Value)
}

// Close closes the underlying sarama consumer.
func (c *Consumer) Close() error {
	return c.sarama.Close()
}
