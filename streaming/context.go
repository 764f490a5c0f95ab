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

// Package streaming is the top-level entry point a caller constructs once
// per process: it bundles the shared serde.Cache, registry.Coordinator,
// kafkatransport.Client, and ksql.RESTClient that every EntitySet built
// from it reuses, the same way spothero-tools/tracing and spothero-tools/log
// are threaded as shared, process-wide dependencies rather than rebuilt per
// call site.
package streaming

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/spothero/ksqlstream/entity"
	"github.com/spothero/ksqlstream/kafkatransport"
	"github.com/spothero/ksqlstream/ksql"
	"github.com/spothero/ksqlstream/registry"
	"github.com/spothero/ksqlstream/serde"
)

// Context bundles the shared, process-wide dependencies every EntitySet
// built from it reuses: the Kafka client pool, schema cache, schema
// registry coordinator, ksqlDB REST client, and the entity validation mode
// new entity sets enforce on writes.
type Context struct {
	Kafka        kafkatransport.Client
	Cache        *serde.Cache
	Coordinator  *registry.Coordinator
	KSQL         *ksql.RESTClient
	Validator    *entity.Validator
	Logger       *zap.Logger
}

// NewContext builds a streaming Context. mode controls the strictness of
// entity validation performed before every AddOne/AddMany (see
// entity.ValidationMode).
func NewContext(
	kafka kafkatransport.Client,
	cache *serde.Cache,
	coordinator *registry.Coordinator,
	ksqlClient *ksql.RESTClient,
	mode entity.ValidationMode,
	logger *zap.Logger,
) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		Kafka:       kafka,
		Cache:       cache,
		Coordinator: coordinator,
		KSQL:        ksqlClient,
		Validator:   entity.NewValidator(mode),
		Logger:      logger,
	}
}

// descriptorFor resolves T's entity.Descriptor, returning an error that
// names the type when T was never passed to entity.ModelBuilder.Build.
func descriptorFor[T any]() (*entity.Descriptor, error) {
	var zero T
	t := reflect.TypeOf(zero)
	descriptor, ok := entity.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("streaming: type %s has no registered entity.Descriptor; call entity.ModelBuilder.Build first", t)
	}
	return descriptor, nil
}
