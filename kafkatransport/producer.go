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
	"fmt"
	"reflect"
	"sync"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spothero/ksqlstream/avro"
	"github.com/spothero/ksqlstream/entity"
	"github.com/spothero/ksqlstream/log"
	"github.com/spothero/ksqlstream/registry"
	"github.com/spothero/ksqlstream/serde"
)

// ProducerMetrics tracks a Producer's throughput and failures.
type ProducerMetrics struct {
	MessagesProduced *prometheus.CounterVec
	ErrorsProduced   *prometheus.CounterVec
}

// RegisterProducerMetrics registers and returns ProducerMetrics.
func RegisterProducerMetrics(registerer prometheus.Registerer) ProducerMetrics {
	labels := []string{"topic", "client"}
	m := ProducerMetrics{
		MessagesProduced: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ksqlstream_kafka_messages_produced_total", Help: "Number of Kafka messages produced"},
			labels,
		),
		ErrorsProduced: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ksqlstream_kafka_errors_produced_total", Help: "Number of Kafka message production errors"},
			labels,
		),
	}
	registerer.MustRegister(m.MessagesProduced, m.ErrorsProduced)
	return m
}

// Producer publishes entity values of a single Go type to their
// descriptor's backing topic, extracting the key from the entity's key
// properties and Avro-encoding both key and value via codecs drawn from
// a shared serde.Cache, registering schemas on first use through a
// registry.Coordinator.
type Producer struct {
	client      Client
	descriptor  *entity.Descriptor
	coordinator *registry.Coordinator
	cache       *serde.Cache
	sarama      sarama.SyncProducer
	metrics     ProducerMetrics
	logger      *zap.Logger

	mu             sync.Mutex
	keySubject     string
	valueSubject   string
	keySchemaJSON  string
	valueSchemaJSON string
	schemasReady   bool
}

// NewProducer builds a Producer for the entity type t is a value of,
// using t's registered entity.Descriptor.
func NewProducer(client Client, t reflect.Type, coordinator *registry.Coordinator, cache *serde.Cache, logger *zap.Logger) (*Producer, error) {
	descriptor, ok := entity.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("kafkatransport: no entity.Descriptor registered for type %s", t)
	}
	syncProducer, err := sarama.NewSyncProducerFromClient(client.Sarama)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		client:      client,
		descriptor:  descriptor,
		coordinator: coordinator,
		cache:       cache,
		sarama:      syncProducer,
		metrics:     RegisterProducerMetrics(prometheus.DefaultRegisterer),
		logger:      logger,
		keySubject:  descriptor.Topic + "-key",
		valueSubject: descriptor.Topic + "-value",
	}, nil
}

// ensureSchemas lazily generates and registers this producer's key and
// value schemas exactly once, the first time Produce is called.
func (p *Producer) ensureSchemas(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.schemasReady {
		return nil
	}
	keySchema, valueSchema, _, err := avro.Build(p.descriptor)
	if err != nil {
		return fmt.Errorf("failed to generate avro schema for %s: %w", p.descriptor.Name, err)
	}
	if _, err := p.coordinator.RegisterTopic(ctx, p.keySubject, keySchema); err != nil {
		return fmt.Errorf("failed to register key schema for %s: %w", p.descriptor.Name, err)
	}
	if _, err := p.coordinator.RegisterTopic(ctx, p.valueSubject, valueSchema); err != nil {
		return fmt.Errorf("failed to register value schema for %s: %w", p.descriptor.Name, err)
	}
	p.keySchemaJSON = keySchema
	p.valueSchemaJSON = valueSchema
	p.schemasReady = true
	return nil
}

// Produce serializes and publishes a single entity value.
func (p *Producer) Produce(ctx context.Context, value interface{}) error {
	if err := p.ensureSchemas(ctx); err != nil {
		return err
	}

	keyNative, valueNative, err := toNative(p.descriptor, value)
	if err != nil {
		return err
	}

	keyCodec, err := p.codecFor(ctx, serde.RoleKey, p.keySchemaJSON)
	if err != nil {
		return err
	}
	valueCodec, err := p.codecFor(ctx, serde.RoleValue, p.valueSchemaJSON)
	if err != nil {
		return err
	}

	keyBytes, err := keyCodec.Serialize(keyNative)
	if err != nil {
		return fmt.Errorf("failed to serialize key for %s: %w", p.descriptor.Name, err)
	}
	valueBytes, err := valueCodec.Serialize(valueNative)
	if err != nil {
		return fmt.Errorf("failed to serialize value for %s: %w", p.descriptor.Name, err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.descriptor.Topic,
		Key:   sarama.ByteEncoder(keyBytes),
		Value: sarama.ByteEncoder(valueBytes),
	}
	labels := prometheus.Labels{"topic": p.descriptor.Topic, "client": p.client.ClientID}
	if _, _, err := p.sarama.SendMessage(message); err != nil {
		p.metrics.ErrorsProduced.With(labels).Inc()
		p.logger.Error("failed to produce kafka message", zap.String("entity", p.descriptor.Name), zap.Error(err))
		return fmt.Errorf("failed to produce message for %s: %w", p.descriptor.Name, err)
	}
	p.metrics.MessagesProduced.With(labels).Inc()
	log.Get(ctx).Debug("produced kafka message", zap.String("entity", p.descriptor.Name), zap.String("topic", p.descriptor.Topic))
	return nil
}

// ProduceMany publishes a batch of entity values, stopping at the first
// error (see entity set add_many's fail-fast contract).
func (p *Producer) ProduceMany(ctx context.Context, values []interface{}) error {
	for i, value := range values {
		if err := p.Produce(ctx, value); err != nil {
			return fmt.Errorf("failed producing item %d of %d: %w", i, len(values), err)
		}
	}
	return nil
}

func (p *Producer) codecFor(ctx context.Context, role serde.Role, schemaJSON string) (serde.Codec, error) {
	var subject string
	if role == serde.RoleKey {
		subject = p.keySubject
	} else {
		subject = p.valueSubject
	}
	version, err := p.coordinator.RegisterTopic(ctx, subject, schemaJSON)
	if err != nil {
		return nil, err
	}
	key := serde.CodecKey{EntityTypeID: p.descriptor.Name, Role: role, SchemaID: version}
	return p.cache.GetOrConstruct(key, serde.OperationSerialize, func() (serde.Codec, error) {
		return serde.NewAvroCodec(schemaJSON, uint32(version))
	})
}

// Close closes the underlying sarama producer.
func (p *Producer) Close() error {
	return p.sarama.Close()
}

// toNative extracts a descriptor's key and value properties from value
// into goavro-compatible native maps, honoring composite keys (>1 key
// property) by nesting them under a CompositeKey record and single keys
// as a bare scalar, mirroring avro.Build's key schema shape.
func toNative(d *entity.Descriptor, value interface{}) (key interface{}, native map[string]interface{}, err error) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil, fmt.Errorf("kafkatransport: nil %s value", d.Name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("kafkatransport: expected struct for %s, got %s", d.Name, rv.Kind())
	}

	native = make(map[string]interface{}, len(d.Properties))
	for _, prop := range d.Properties {
		field := rv.FieldByName(prop.FieldName)
		fieldValue, err := nativeValue(prop, field)
		if err != nil {
			return nil, nil, err
		}
		native[prop.Name] = fieldValue
	}

	switch len(d.KeyProps) {
	case 0:
		key = rv.Interface()
	case 1:
		field := rv.FieldByName(d.KeyProps[0].FieldName)
		key, err = nativeValue(d.KeyProps[0], field)
		if err != nil {
			return nil, nil, err
		}
	default:
		composite := make(map[string]interface{}, len(d.KeyProps))
		for _, prop := range d.KeyProps {
			field := rv.FieldByName(prop.FieldName)
			fieldValue, err := nativeValue(prop, field)
			if err != nil {
				return nil, nil, err
			}
			composite[prop.Name] = fieldValue
		}
		key = composite
	}
	return key, native, nil
}

// nativeValue converts a single struct field into the native Go value
// goavro expects. A nullable field's ["null", base] union resolves to a
// bare nil for the null branch, or a single-entry map keyed by the base
// branch's Avro type name for the non-null branch: goavro's own union
// encoding contract, not an ad hoc convention.
func nativeValue(p entity.Property, field reflect.Value) (interface{}, error) {
	if !field.IsValid() {
		return nil, fmt.Errorf("kafkatransport: missing field %s", p.FieldName)
	}
	if !p.Nullable {
		return field.Interface(), nil
	}
	if field.Kind() == reflect.Ptr && field.IsNil() {
		return nil, nil
	}
	if field.Kind() == reflect.Ptr {
		field = field.Elem()
	}
	branch, err := avro.BranchName(p)
	if err != nil {
		return nil, fmt.Errorf("kafkatransport: resolving union branch for %s: %w", p.Name, err)
	}
	return map[string]interface{}{branch: field.Interface()}, nil
}
