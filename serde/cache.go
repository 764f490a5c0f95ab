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

// Package serde caches the Avro codecs producers and consumers use to
// (de)serialize entity values, amortizing codec construction the way
// dangkaka-go-kafka-avro's CachedSchemaRegistryClient amortizes schema
// lookups, but generalized with golang.org/x/sync/singleflight so that
// concurrent misses for the same key collapse into a single construction
// rather than racing duplicate builds.
package serde

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

// Role identifies whether a codec serializes a key or a value.
type Role int

// The two roles a codec can serve.
const (
	RoleKey Role = iota
	RoleValue
)

func (r Role) String() string {
	if r == RoleKey {
		return "key"
	}
	return "value"
}

// Codec serializes and deserializes a single entity-and-role's wire
// representation. Implementations typically wrap a goavro.Codec.
type Codec interface {
	Serialize(native interface{}) ([]byte, error)
	Deserialize(data []byte) (interface{}, error)
}

// CodecKey identifies a cached codec by entity type, role, and the
// Schema Registry schema ID it was built from.
type CodecKey struct {
	EntityTypeID string
	Role         Role
	SchemaID     int
}

func (k CodecKey) cacheKey() string {
	return fmt.Sprintf("%s/%s/%d", k.EntityTypeID, k.Role, k.SchemaID)
}

// entityCounters holds the eight per-entity hit/miss counters described
// for CodecEntry: one hit and one miss counter per (role, operation).
type entityCounters struct {
	keySerHits     atomic.Int64
	keySerMisses   atomic.Int64
	valSerHits     atomic.Int64
	valSerMisses   atomic.Int64
	keyDeserHits   atomic.Int64
	keyDeserMisses atomic.Int64
	valDeserHits   atomic.Int64
	valDeserMisses atomic.Int64
}

// Operation identifies whether a cache request is for serialization or
// deserialization, used to select which per-entity counter to bump.
type Operation int

// The two operations a cache request can be made for.
const (
	OperationSerialize Operation = iota
	OperationDeserialize
)

// Cache is a concurrent (entity, role, schema-id) -> Codec cache. The
// zero value is not usable; construct with NewCache.
type Cache struct {
	entries sync.Map // CodecKey -> Codec
	group   singleflight.Group

	totalRequests atomic.Int64
	hits          atomic.Int64
	misses        atomic.Int64
	lastAccess    atomic.Int64 // unix nanos
	lastClear     atomic.Int64 // unix nanos

	startedAt time.Time

	countersMu sync.RWMutex
	counters   map[string]*entityCounters // entity type id -> counters
}

// NewCache constructs an empty Cache.
func NewCache() *Cache {
	return &Cache{
		startedAt: time.Now(),
		counters:  map[string]*entityCounters{},
	}
}

// ConstructFunc builds a Codec for a cache miss. It is invoked at most
// once per key even under concurrent callers requesting the same key.
type ConstructFunc func() (Codec, error)

// GetOrConstruct returns the cached codec for key, constructing it via
// construct on a miss. Concurrent misses for the same key are collapsed
// into a single call to construct (G1); hit/miss counters for key.Role
// and op are updated regardless of which caller triggered construction
// (G2).
func (c *Cache) GetOrConstruct(key CodecKey, op Operation, construct ConstructFunc) (Codec, error) {
	c.totalRequests.Inc()
	c.lastAccess.Store(time.Now().UnixNano())

	if cached, ok := c.entries.Load(key); ok {
		c.hits.Inc()
		c.bumpEntityCounter(key, op, true)
		return cached.(Codec), nil
	}

	result, err, _ := c.group.Do(key.cacheKey(), func() (interface{}, error) {
		if cached, ok := c.entries.Load(key); ok {
			return cached.(Codec), nil
		}
		codec, err := construct()
		if err != nil {
			return nil, err
		}
		c.entries.Store(key, codec)
		return codec, nil
	})
	if err != nil {
		c.misses.Inc()
		c.bumpEntityCounter(key, op, false)
		return nil, err
	}
	c.misses.Inc()
	c.bumpEntityCounter(key, op, false)
	return result.(Codec), nil
}

// Clear evicts every cached codec. After Clear returns, subsequent
// GetOrConstruct calls observe a miss and reconstruct (G3).
func (c *Cache) Clear() {
	c.entries.Range(func(key, _ interface{}) bool {
		c.entries.Delete(key)
		return true
	})
	c.lastClear.Store(time.Now().UnixNano())
}

// ClearEntity evicts only the cached codecs belonging to entityTypeID,
// invalidating a single entity's codecs without disturbing the rest of
// the cache.
func (c *Cache) ClearEntity(entityTypeID string) {
	c.entries.Range(func(key, _ interface{}) bool {
		if k := key.(CodecKey); k.EntityTypeID == entityTypeID {
			c.entries.Delete(key)
		}
		return true
	})
	c.lastClear.Store(time.Now().UnixNano())
}

func (c *Cache) bumpEntityCounter(key CodecKey, op Operation, hit bool) {
	counters := c.countersFor(key.EntityTypeID)
	switch {
	case key.Role == RoleKey && op == OperationSerialize && hit:
		counters.keySerHits.Inc()
	case key.Role == RoleKey && op == OperationSerialize && !hit:
		counters.keySerMisses.Inc()
	case key.Role == RoleValue && op == OperationSerialize && hit:
		counters.valSerHits.Inc()
	case key.Role == RoleValue && op == OperationSerialize && !hit:
		counters.valSerMisses.Inc()
	case key.Role == RoleKey && op == OperationDeserialize && hit:
		counters.keyDeserHits.Inc()
	case key.Role == RoleKey && op == OperationDeserialize && !hit:
		counters.keyDeserMisses.Inc()
	case key.Role == RoleValue && op == OperationDeserialize && hit:
		counters.valDeserHits.Inc()
	case key.Role == RoleValue && op == OperationDeserialize && !hit:
		counters.valDeserMisses.Inc()
	}
}

func (c *Cache) countersFor(entityTypeID string) *entityCounters {
	c.countersMu.RLock()
	counters, ok := c.counters[entityTypeID]
	c.countersMu.RUnlock()
	if ok {
		return counters
	}
	c.countersMu.Lock()
	defer c.countersMu.Unlock()
	if counters, ok := c.counters[entityTypeID]; ok {
		return counters
	}
	counters = &entityCounters{}
	c.counters[entityTypeID] = counters
	return counters
}

// Len reports the number of currently cached codecs.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
